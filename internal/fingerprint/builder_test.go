package fingerprint

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("int main(){}"), 0o644))
	return path
}

func TestBuildDeterministic(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := writeSource(t, dir, "foo.cpp")

	digest1, err := Build([]byte("pp"), []string{"clang-tidy", src}, []string{"clang", "-c", src}, nil, nil, nil, false, "")
	require.NoError(t, err)
	digest2, err := Build([]byte("pp"), []string{"clang-tidy", src}, []string{"clang", "-c", src}, nil, nil, nil, false, "")
	require.NoError(t, err)

	assert.Equal(t, digest1, digest2)
	assert.Len(t, digest1, 40)
}

func TestBuildArgOrderInsensitive(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := writeSource(t, dir, "foo.cpp")

	a, err := Build([]byte("pp"), []string{"clang-tidy", src}, []string{"clang", "-Wall", "-Wextra", src}, nil, nil, nil, false, "")
	require.NoError(t, err)
	b, err := Build([]byte("pp"), []string{"clang-tidy", src}, []string{"clang", "-Wextra", "-Wall", src}, nil, nil, nil, false, "")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestBuildArgDeduplication(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := writeSource(t, dir, "foo.cpp")

	a, err := Build([]byte("pp"), []string{"clang-tidy", src}, []string{"clang", "-Wall", src}, nil, nil, nil, false, "")
	require.NoError(t, err)
	b, err := Build([]byte("pp"), []string{"clang-tidy", src}, []string{"clang", "-Wall", "-Wall", src}, nil, nil, nil, false, "")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestBuildPathNormalizationViaSymlink(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := writeSource(t, dir, "foo.cpp")
	link := filepath.Join(dir, "alias.cpp")
	require.NoError(t, os.Symlink(src, link))

	a, err := Build([]byte("pp"), []string{"clang-tidy", src}, []string{"clang", "-c", src}, nil, nil, nil, false, "")
	require.NoError(t, err)
	b, err := Build([]byte("pp"), []string{"clang-tidy", src}, []string{"clang", "-c", link}, nil, nil, nil, false, "")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestBuildStripListNeutralizesToken(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := writeSource(t, dir, "foo.cpp")

	strip := []string{"/home/alice"}
	a, err := Build([]byte("pp"), []string{"clang-tidy", src}, []string{"clang", "-I/build/include", src}, nil, strip, nil, false, "")
	require.NoError(t, err)
	b, err := Build([]byte("pp"), []string{"clang-tidy", src}, []string{"clang", "-I/home/alice/build/include", src}, nil, strip, nil, false, "")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestBuildExportFixesInsensitive(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := writeSource(t, dir, "foo.cpp")

	a, err := Build([]byte("pp"), []string{"clang-tidy", src}, []string{"clang", "-c", src}, nil, nil, nil, false, "")
	require.NoError(t, err)
	b, err := Build([]byte("pp"), []string{"clang-tidy", src, "-export-fixes", "/tmp/fixes.yaml"}, []string{"clang", "-c", src}, nil, nil, nil, false, "")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestBuildDiffersOnPreprocessedText(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := writeSource(t, dir, "foo.cpp")

	a, err := Build([]byte("pp-one"), []string{"clang-tidy", src}, []string{"clang", "-c", src}, nil, nil, nil, false, "")
	require.NoError(t, err)
	b, err := Build([]byte("pp-two"), []string{"clang-tidy", src}, []string{"clang", "-c", src}, nil, nil, nil, false, "")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestBuildExcludeHashRegex(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := writeSource(t, dir, "foo.cpp")

	exclude := regexp.MustCompile(`^-random-\d+$`)
	a, err := Build([]byte("pp"), []string{"clang-tidy", src}, []string{"clang", "-random-1", src}, nil, nil, exclude, false, "")
	require.NoError(t, err)
	b, err := Build([]byte("pp"), []string{"clang-tidy", src}, []string{"clang", "-random-2", src}, nil, nil, exclude, false, "")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestActiveConfigFilesAncestorSelection(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	sub := filepath.Join(dir, "project", "src")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	src := writeSource(t, sub, "foo.cpp")

	projectDir := filepath.Join(dir, "project")
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".clang-tidy"), []byte("Checks: '-*'\n"), 0o644))

	files := activeConfigFiles([]string{"clang-tidy", src}, []string{projectDir, dir})
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(projectDir, ".clang-tidy"), files[0])
}

func TestBuildConfigFileContributesToDigest(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := writeSource(t, dir, "foo.cpp")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".clang-tidy"), []byte("Checks: 'bugprone-*'\n"), 0o644))

	withConfig, err := Build([]byte("pp"), []string{"clang-tidy", src}, []string{"clang", "-c", src}, []string{dir}, nil, nil, false, "")
	require.NoError(t, err)

	withoutConfig, err := Build([]byte("pp"), []string{"clang-tidy", src}, []string{"clang", "-c", src}, nil, nil, nil, false, "")
	require.NoError(t, err)

	assert.NotEqual(t, withConfig, withoutConfig)
}

func TestDumpModeWritesAuditLog(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	src := writeSource(t, dir, "foo.cpp")

	_, err := Build([]byte("hello"), []string{"clang-tidy", src}, []string{"clang", "-c", src}, nil, nil, nil, true, dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "ctcache.dump"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}
