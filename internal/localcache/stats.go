package localcache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	statsFileName = "stats"
	lockFileName  = "stats.lock"
	lockRetry     = 100 * time.Millisecond
	lockTimeout   = 3 * time.Second
)

// entryNamePattern matches a shard-local cache entry's base name: the
// 40-char digest minus its 2-char shard prefix.
var entryNamePattern = regexp.MustCompile(`^[0-9a-f]{38}$`)

// counts is the raw "<hits> <misses>" pair persisted to the stats file.
type counts struct {
	hits   int64
	misses int64
}

// Stats is the result of a stats query. Fields populated only by the
// optional companion HTTP server are nil/zero here — the open question in
// the design notes is preserved deliberately: a missing field is not fatal,
// callers render it as "N/A".
type Stats struct {
	HitCount          int64
	MissCount         int64
	HitRate           float64
	MissRate          float64
	TotalHitRate      *float64
	CachedCount       int64
	CleanedCount      *int64
	CleanedSecondsAgo *float64
	SavedSecondsAgo   *float64
	SavedSizeBytes    *int64
	UptimeSeconds     *float64
	AgeDaysHistogram  map[int]int64
	HitCountHistogram map[int64]int64
}

// Render writes a human-readable stats report, row by row, rendering any
// nil optional field as "N/A" rather than failing.
func (s Stats) Render(w io.Writer) {
	fmt.Fprintf(w, "hit_count: %d\n", s.HitCount)
	fmt.Fprintf(w, "miss_count: %d\n", s.MissCount)
	fmt.Fprintf(w, "hit_rate: %.4f\n", s.HitRate)
	fmt.Fprintf(w, "miss_rate: %.4f\n", s.MissRate)
	fmt.Fprintf(w, "total_hit_rate: %s\n", formatFloatPtr(s.TotalHitRate))
	fmt.Fprintf(w, "cached_count: %d\n", s.CachedCount)
	fmt.Fprintf(w, "cleaned_count: %s\n", formatIntPtr(s.CleanedCount))
	fmt.Fprintf(w, "cleaned_seconds_ago: %s\n", formatFloatPtr(s.CleanedSecondsAgo))
	fmt.Fprintf(w, "saved_seconds_ago: %s\n", formatFloatPtr(s.SavedSecondsAgo))
	fmt.Fprintf(w, "saved_size_bytes: %s\n", formatIntPtr(s.SavedSizeBytes))
	fmt.Fprintf(w, "uptime_seconds: %s\n", formatFloatPtr(s.UptimeSeconds))
	fmt.Fprintf(w, "age_days_histogram: %s\n", formatIntHistogram(s.AgeDaysHistogram))
	fmt.Fprintf(w, "hit_count_histogram: %s\n", formatInt64Histogram(s.HitCountHistogram))
}

func formatIntHistogram(h map[int]int64) string {
	if h == nil {
		return "N/A"
	}
	keys := make([]int, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d:%d", k, h[k]))
	}
	return strings.Join(parts, ",")
}

func formatInt64Histogram(h map[int64]int64) string {
	if h == nil {
		return "N/A"
	}
	keys := make([]int64, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d:%d", k, h[k]))
	}
	return strings.Join(parts, ",")
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}

func formatIntPtr(v *int64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatInt(*v, 10)
}

// lock is the advisory lock guarding the stats file: exclusive creation of
// stats.lock, retried every 100ms up to a 3s timeout. Release unlinks the
// lock file and must run on every exit path, error or not.
type lock struct {
	path string
}

func acquireLock(dir string) (*lock, error) {
	path := filepath.Join(dir, lockFileName)
	deadline := time.Now().Add(lockTimeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return &lock{path: path}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("localcache: timed out waiting for %s", path)
		}
		time.Sleep(lockRetry)
	}
}

func (l *lock) release() {
	_ = os.Remove(l.path)
}

// readCounts reads the "<hits> <misses>" pair. An invalid or missing file
// reads as (0, 0), matching the spec's tolerant-read behavior.
func readCounts(dir string) counts {
	data, err := os.ReadFile(filepath.Join(dir, statsFileName)) //nolint:gosec // dir is the operator's configured cache directory
	if err != nil {
		return counts{}
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		return counts{}
	}
	hits, err1 := strconv.ParseInt(fields[0], 10, 64)
	misses, err2 := strconv.ParseInt(fields[1], 10, 64)
	if err1 != nil || err2 != nil {
		return counts{}
	}
	return counts{hits: hits, misses: misses}
}

func writeCounts(dir string, c counts) error {
	line := fmt.Sprintf("%d %d\n", c.hits, c.misses)
	return os.WriteFile(filepath.Join(dir, statsFileName), []byte(line), 0o644)
}

// updateStats increments the hit or miss counter under the advisory lock.
func updateStats(dir string, hit bool) error {
	l, err := acquireLock(dir)
	if err != nil {
		return err
	}
	defer l.release()

	c := readCounts(dir)
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	return writeCounts(dir, c)
}

// zeroStats deletes the stats file outright.
func zeroStats(dir string) error {
	err := os.Remove(filepath.Join(dir, statsFileName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// queryStats computes the local-only view: raw counts, derived rates, and
// cached_count from walking the shard directories. Fields only the
// companion HTTP server can populate are left nil.
func queryStats(dir string) (Stats, error) {
	c := readCounts(dir)
	total := c.hits + c.misses

	s := Stats{
		HitCount:  c.hits,
		MissCount: c.misses,
	}
	if total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
		s.MissRate = float64(c.misses) / float64(total)
	}

	count, err := countEntries(dir)
	if err != nil {
		return Stats{}, err
	}
	s.CachedCount = count
	return s, nil
}

func countEntries(dir string) (int64, error) {
	var count int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if entryNamePattern.MatchString(d.Name()) {
			count++
		}
		return nil
	})
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	return count, err
}
