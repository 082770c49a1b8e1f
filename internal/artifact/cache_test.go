package artifact

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/collision-data-api/internal/observability"
)

// --- helpers ---

type countingCompute struct {
	calls   atomic.Int32
	content []byte
	err     error
}

func (c *countingCompute) fn(_ context.Context) ([]byte, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.content, nil
}

func newTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	c, err := NewCache(t.TempDir(), opts, slog.New(slog.DiscardHandler), observability.NewMetricsForTesting())
	require.NoError(t, err)
	return c
}

var traumasSpec = Spec{Name: "traumas.csv", Fingerprint: Fingerprint("SELECT 1")}

// --- GetOrCompute ---

func TestGetOrCompute_SecondCallHitsCache(t *testing.T) {
	c := newTestCache(t, Options{})
	compute := &countingCompute{content: []byte("age_group,total_people\nyoungs,1\n")}

	first, err := c.GetOrCompute(context.Background(), traumasSpec, compute.fn)
	require.NoError(t, err)
	assert.True(t, first.Computed)

	second, err := c.GetOrCompute(context.Background(), traumasSpec, compute.fn)
	require.NoError(t, err)
	assert.False(t, second.Computed)

	assert.Equal(t, int32(1), compute.calls.Load(), "should only compute once")
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestGetOrCompute_WritesContentAndMetadata(t *testing.T) {
	c := newTestCache(t, Options{})
	compute := &countingCompute{content: []byte("a,b\n1,2\n")}

	entry, err := c.GetOrCompute(context.Background(), traumasSpec, compute.fn)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(c.Dir(), "traumas.csv"), entry.Path)
	data, err := os.ReadFile(entry.Path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))

	meta, err := readMeta(entry.Path + metaSuffix)
	require.NoError(t, err)
	assert.Equal(t, "traumas.csv", meta.Name)
	assert.Equal(t, traumasSpec.Fingerprint, meta.Fingerprint)
	assert.Equal(t, len(data), meta.Size)

	leftovers, err := filepath.Glob(filepath.Join(c.Dir(), ".*.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp files should be renamed away")
}

func TestGetOrCompute_FingerprintChangeRebuilds(t *testing.T) {
	c := newTestCache(t, Options{})
	v1 := &countingCompute{content: []byte("v1")}
	v2 := &countingCompute{content: []byte("v2")}

	_, err := c.GetOrCompute(context.Background(), Spec{Name: "parties.csv", Fingerprint: Fingerprint("q1")}, v1.fn)
	require.NoError(t, err)

	entry, err := c.GetOrCompute(context.Background(), Spec{Name: "parties.csv", Fingerprint: Fingerprint("q2")}, v2.fn)
	require.NoError(t, err)

	assert.Equal(t, "v2", string(entry.Content))
	assert.Equal(t, int32(1), v2.calls.Load())
}

func TestGetOrCompute_MaxAgeExpires(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	c := newTestCache(t, Options{MaxAge: time.Hour, Clock: clock})
	compute := &countingCompute{content: []byte("x")}

	_, err := c.GetOrCompute(context.Background(), traumasSpec, compute.fn)
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, err = c.GetOrCompute(context.Background(), traumasSpec, compute.fn)
	require.NoError(t, err)
	assert.Equal(t, int32(1), compute.calls.Load(), "still fresh")

	clock.Advance(2 * time.Minute)
	entry, err := c.GetOrCompute(context.Background(), traumasSpec, compute.fn)
	require.NoError(t, err)
	assert.True(t, entry.Computed)
	assert.Equal(t, int32(2), compute.calls.Load(), "expired artifact should be rebuilt")
}

func TestGetOrCompute_ZeroMaxAgeNeverExpires(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestCache(t, Options{Clock: clock})
	compute := &countingCompute{content: []byte("x")}

	_, err := c.GetOrCompute(context.Background(), traumasSpec, compute.fn)
	require.NoError(t, err)
	clock.Advance(365 * 24 * time.Hour)
	_, err = c.GetOrCompute(context.Background(), traumasSpec, compute.fn)
	require.NoError(t, err)

	assert.Equal(t, int32(1), compute.calls.Load())
}

func TestGetOrCompute_FileWithoutMetadataIsRebuilt(t *testing.T) {
	c := newTestCache(t, Options{})
	require.NoError(t, os.WriteFile(filepath.Join(c.Dir(), "traumas.csv"), []byte("stale"), 0o644))
	compute := &countingCompute{content: []byte("fresh")}

	entry, err := c.GetOrCompute(context.Background(), traumasSpec, compute.fn)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(entry.Content))
}

func TestGetOrCompute_CorruptMetadataIsRebuilt(t *testing.T) {
	c := newTestCache(t, Options{})
	compute := &countingCompute{content: []byte("fresh")}
	_, err := c.GetOrCompute(context.Background(), traumasSpec, compute.fn)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(c.Dir(), "traumas.csv"+metaSuffix), []byte("{not json"), 0o644))

	entry, err := c.GetOrCompute(context.Background(), traumasSpec, compute.fn)
	require.NoError(t, err)
	assert.True(t, entry.Computed)
	assert.Equal(t, int32(2), compute.calls.Load())
}

func TestGetOrCompute_ComputeErrorIsNotCached(t *testing.T) {
	c := newTestCache(t, Options{})
	failing := &countingCompute{err: errors.New("database is locked")}

	_, err := c.GetOrCompute(context.Background(), traumasSpec, failing.fn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compute artifact traumas.csv")
	assert.NoFileExists(t, filepath.Join(c.Dir(), "traumas.csv"))

	ok := &countingCompute{content: []byte("ok")}
	entry, err := c.GetOrCompute(context.Background(), traumasSpec, ok.fn)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(entry.Content))
}

func TestGetOrCompute_ConcurrentMissesComputeOnce(t *testing.T) {
	c := newTestCache(t, Options{})
	release := make(chan struct{})
	var calls atomic.Int32
	compute := func(_ context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("shared"), nil
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]Entry, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCompute(context.Background(), traumasSpec, compute)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", string(results[i].Content))
	}
}

func TestGetOrCompute_CancelledCallerDoesNotAbortBuild(t *testing.T) {
	c := newTestCache(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sawCancel bool
	entry, err := c.GetOrCompute(ctx, traumasSpec, func(ctx context.Context) ([]byte, error) {
		sawCancel = ctx.Err() != nil
		return []byte("done"), nil
	})
	require.NoError(t, err)
	assert.False(t, sawCancel)
	assert.Equal(t, "done", string(entry.Content))
}

func TestGetOrCompute_InvalidNames(t *testing.T) {
	c := newTestCache(t, Options{})
	compute := &countingCompute{content: []byte("x")}

	for _, name := range []string{"", "../escape.csv", "sub/dir.csv", ".hidden", "x.csv" + metaSuffix} {
		_, err := c.GetOrCompute(context.Background(), Spec{Name: name, Fingerprint: "f"}, compute.fn)
		assert.Error(t, err, "name %q", name)
	}
	assert.Zero(t, compute.calls.Load())
}

// --- invalidation ---

func TestInvalidate_ForcesRecompute(t *testing.T) {
	c := newTestCache(t, Options{})
	compute := &countingCompute{content: []byte("x")}

	_, err := c.GetOrCompute(context.Background(), traumasSpec, compute.fn)
	require.NoError(t, err)

	require.NoError(t, c.Invalidate("traumas.csv"))
	assert.NoFileExists(t, filepath.Join(c.Dir(), "traumas.csv"))
	assert.NoFileExists(t, filepath.Join(c.Dir(), "traumas.csv"+metaSuffix))

	_, err = c.GetOrCompute(context.Background(), traumasSpec, compute.fn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), compute.calls.Load())
}

func TestInvalidate_MissingIsNotAnError(t *testing.T) {
	c := newTestCache(t, Options{})
	assert.NoError(t, c.Invalidate("parties.csv"))
}

func TestInvalidateAll_And_List(t *testing.T) {
	c := newTestCache(t, Options{})
	compute := &countingCompute{content: []byte("x")}

	for _, name := range []string{"parties.csv", "traumas.csv"} {
		_, err := c.GetOrCompute(context.Background(), Spec{Name: name, Fingerprint: "f"}, compute.fn)
		require.NoError(t, err)
	}

	entries, err := c.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.ElementsMatch(t, []string{"parties.csv", "traumas.csv"}, []string{entries[0].Name, entries[1].Name})

	require.NoError(t, c.InvalidateAll())

	entries, err = c.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInvalidateAll_RemovesFilesWithoutMetadata(t *testing.T) {
	c := newTestCache(t, Options{})
	orphan := filepath.Join(c.Dir(), "parties.csv")
	require.NoError(t, os.WriteFile(orphan, []byte("stale"), 0o644))
	inFlight := filepath.Join(c.Dir(), ".traumas.csv.tmp-123")
	require.NoError(t, os.WriteFile(inFlight, []byte("partial"), 0o644))

	require.NoError(t, c.InvalidateAll())

	assert.NoFileExists(t, orphan)
	assert.FileExists(t, inFlight)
}

func TestInvalidate_WhilePersistingRemovesBuild(t *testing.T) {
	c := newTestCache(t, Options{})
	c.afterWrite = func() {
		c.afterWrite = nil
		require.NoError(t, c.Invalidate("parties.csv"))
	}
	compute := &countingCompute{content: []byte("computed from old data")}

	entry, err := c.GetOrCompute(context.Background(), traumasSpec, compute.fn)
	require.NoError(t, err)
	assert.True(t, entry.Computed)
	assert.NoFileExists(t, filepath.Join(c.Dir(), "traumas.csv"))
	assert.NoFileExists(t, filepath.Join(c.Dir(), "traumas.csv"+metaSuffix))

	_, err = c.GetOrCompute(context.Background(), traumasSpec, compute.fn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), compute.calls.Load())
	assert.FileExists(t, filepath.Join(c.Dir(), "traumas.csv"))
}

func TestInvalidate_DuringBuildSkipsPersist(t *testing.T) {
	c := newTestCache(t, Options{})

	entry, err := c.GetOrCompute(context.Background(), traumasSpec, func(context.Context) ([]byte, error) {
		require.NoError(t, c.Invalidate("parties.csv"))
		return []byte("computed from old data"), nil
	})
	require.NoError(t, err)
	assert.True(t, entry.Computed)
	assert.Equal(t, "computed from old data", string(entry.Content))
	assert.NoFileExists(t, filepath.Join(c.Dir(), "traumas.csv"))
}

// --- helpers ---

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("a", "b"), Fingerprint("a", "b"))
	assert.NotEqual(t, Fingerprint("a", "b"), Fingerprint("ab"))
	assert.Len(t, Fingerprint("SELECT 1"), 16)
}
