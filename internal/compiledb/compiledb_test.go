package compiledb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestResolveByCommand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "foo.cpp")
	writeFile(t, src, "int main() {}")

	db := filepath.Join(dir, "compile_commands.json")
	writeFile(t, db, `[{"file": "`+src+`", "command": "clang++ -c `+src+` -o foo.o"}]`)

	d := Load(dir, nil)
	args, ok := d.Resolve(dir, src)
	require.True(t, ok)
	assert.Equal(t, []string{"clang++", "-c", src, "-o", "foo.o"}, args)
}

func TestResolveByArguments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "foo.cpp")
	writeFile(t, src, "int main() {}")

	db := filepath.Join(dir, "compile_commands.json")
	writeFile(t, db, `[{"file": "`+src+`", "arguments": ["clang++", "-c", "`+src+`"]}]`)

	d := Load(dir, nil)
	args, ok := d.Resolve(dir, src)
	require.True(t, ok)
	assert.Equal(t, []string{"clang++", "-c", src}, args)
}

func TestResolveSkipsMissingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "foo.cpp")
	writeFile(t, src, "int main() {}")

	db := filepath.Join(dir, "compile_commands.json")
	writeFile(t, db, `[
		{"file": "`+filepath.Join(dir, "gone.cpp")+`", "command": "clang++ -c gone.cpp"},
		{"file": "`+src+`", "command": "clang++ -c `+src+`"}
	]`)

	d := Load(dir, nil)
	args, ok := d.Resolve(dir, src)
	require.True(t, ok)
	assert.Equal(t, []string{"clang++", "-c", src}, args)
}

func TestLoadMissingDatabaseIsEmpty(t *testing.T) {
	t.Parallel()

	d := Load(t.TempDir(), nil)
	_, ok := d.Resolve("", "foo.cpp")
	assert.False(t, ok)
}

func TestLoadMalformedDatabaseIsEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "compile_commands.json"), "{not json")

	d := Load(dir, nil)
	_, ok := d.Resolve("", "foo.cpp")
	assert.False(t, ok)
}

func TestSanitizeEscapedQuotes(t *testing.T) {
	t.Parallel()

	in := `[{"file": "a.cpp", "command": "clang++ -DX=\\\"y\\\" -c a.cpp"}]`
	out := sanitize([]byte(in))
	assert.Contains(t, string(out), "'y'")
}

func TestShellSplitQuoting(t *testing.T) {
	t.Parallel()

	got := shellSplit(`clang++ -DFOO="bar baz" -c a.cpp`)
	assert.Equal(t, []string{"clang++", "-DFOO=bar baz", "-c", "a.cpp"}, got)
}
