// Package artifact persists derived CSV artifacts in a data directory and
// serves them until their query changes, they expire, or they are invalidated.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/collision-data-api/internal/observability"
)

const metaSuffix = ".meta.json"

// Lookup results recorded in metrics.
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultStale = "stale"
)

// Spec identifies an artifact: its file name and a fingerprint of whatever
// produces it. A fingerprint change makes the stored file stale.
type Spec struct {
	Name        string
	Fingerprint string
}

// ComputeFunc produces the artifact content.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// Entry is a stored or freshly computed artifact.
type Entry struct {
	Name        string    `json:"name"`
	Path        string    `json:"-"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
	Size        int       `json:"size"`
	Content     []byte    `json:"-"`
	Computed    bool      `json:"-"` // true when this call ran the compute function
}

// Options tune cache invalidation.
type Options struct {
	// MaxAge expires artifacts older than this. Zero keeps them until invalidated.
	MaxAge time.Duration
	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// Cache stores artifacts as files in a directory, each with a metadata sidecar.
// It is safe for concurrent use; concurrent misses on the same artifact share
// one computation, and files are replaced by atomic rename so readers never
// observe partial content.
type Cache struct {
	dir     string
	maxAge  time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	flight singleflight.Group
	// generation advances on every invalidation so builds that started
	// before it do not persist results computed from old data.
	generation atomic.Uint64
	// afterWrite runs between persisting a build and the final generation
	// check. Tests use it to invalidate inside that window.
	afterWrite func()
}

// NewCache creates dir if needed and returns a cache rooted there.
func NewCache(dir string, opts Options, logger *slog.Logger, metrics *observability.Metrics) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{
		dir:     dir,
		maxAge:  opts.MaxAge,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Dir returns the directory artifacts are stored in.
func (c *Cache) Dir() string { return c.dir }

// Fingerprint hashes the parts that determine an artifact's content.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// GetOrCompute returns the stored artifact when it is present, matches
// spec.Fingerprint and has not expired. Otherwise it runs compute once,
// persists the result and returns it.
func (c *Cache) GetOrCompute(ctx context.Context, spec Spec, compute ComputeFunc) (Entry, error) {
	if err := validName(spec.Name); err != nil {
		return Entry{}, err
	}

	entry, result, err := c.lookup(spec)
	c.metrics.ArtifactLookups.WithLabelValues(spec.Name, result).Inc()
	if err != nil {
		return Entry{}, err
	}
	if result == resultHit {
		return entry, nil
	}

	v, err, _ := c.flight.Do(spec.Name+"@"+spec.Fingerprint, func() (any, error) {
		// A flight that finished just before this one may have stored it.
		if e, res, err := c.lookup(spec); err != nil || res == resultHit {
			return e, err
		}
		return c.build(context.WithoutCancel(ctx), spec, compute)
	})
	if err != nil {
		return Entry{}, err
	}
	return v.(Entry), nil
}

func (c *Cache) lookup(spec Spec) (Entry, string, error) {
	path := c.path(spec.Name)

	meta, err := readMeta(path + metaSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, resultMiss, nil
	}
	if err != nil {
		c.logger.Warn("unreadable artifact metadata, rebuilding", "artifact", spec.Name, "error", err)
		return Entry{}, resultStale, nil
	}
	if meta.Fingerprint != spec.Fingerprint {
		return Entry{}, resultStale, nil
	}
	if c.maxAge > 0 && c.clock.Since(meta.CreatedAt) > c.maxAge {
		return Entry{}, resultStale, nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, resultMiss, nil
	}
	if err != nil {
		return Entry{}, "", fmt.Errorf("read artifact %s: %w", spec.Name, err)
	}

	return Entry{
		Name:        spec.Name,
		Path:        path,
		Fingerprint: meta.Fingerprint,
		CreatedAt:   meta.CreatedAt,
		Size:        len(content),
		Content:     content,
	}, resultHit, nil
}

func (c *Cache) build(ctx context.Context, spec Spec, compute ComputeFunc) (Entry, error) {
	gen := c.generation.Load()
	start := c.clock.Now()

	content, err := compute(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("compute artifact %s: %w", spec.Name, err)
	}

	entry := Entry{
		Name:        spec.Name,
		Path:        c.path(spec.Name),
		Fingerprint: spec.Fingerprint,
		CreatedAt:   c.clock.Now().UTC(),
		Size:        len(content),
		Content:     content,
		Computed:    true,
	}

	if c.generation.Load() != gen {
		c.logger.Info("artifact invalidated during build, not persisting", "artifact", spec.Name)
		return entry, nil
	}

	// Content first: a reader pairing new content with an older sidecar
	// either sees a matching fingerprint or rebuilds.
	if err := writeAtomic(entry.Path, content); err != nil {
		return Entry{}, fmt.Errorf("write artifact %s: %w", spec.Name, err)
	}
	if err := writeMeta(entry.Path+metaSuffix, entry); err != nil {
		return Entry{}, fmt.Errorf("write artifact metadata %s: %w", spec.Name, err)
	}
	if c.afterWrite != nil {
		c.afterWrite()
	}
	// An invalidation that landed while the files were written must not
	// leave this build on disk. This may also remove a newer build that
	// raced in after it; that one is recomputed on the next lookup.
	if c.generation.Load() != gen {
		c.logger.Info("artifact invalidated while persisting, removing", "artifact", spec.Name)
		if _, err := removeFiles(entry.Path); err != nil {
			return Entry{}, fmt.Errorf("remove superseded artifact %s: %w", spec.Name, err)
		}
		return entry, nil
	}

	c.metrics.ArtifactBuildDuration.WithLabelValues(spec.Name).Observe(c.clock.Since(start).Seconds())
	c.logger.Info("artifact built",
		"artifact", spec.Name,
		"fingerprint", spec.Fingerprint,
		"bytes", len(content),
	)
	return entry, nil
}

// List returns metadata of every stored artifact, without content.
func (c *Cache) List() ([]Entry, error) {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	var entries []Entry
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), metaSuffix) {
			continue
		}
		meta, err := readMeta(filepath.Join(c.dir, f.Name()))
		if err != nil {
			c.logger.Warn("skipping unreadable artifact metadata", "file", f.Name(), "error", err)
			continue
		}
		meta.Path = c.path(meta.Name)
		entries = append(entries, meta)
	}
	return entries, nil
}

// Invalidate removes one artifact. Missing artifacts are not an error.
func (c *Cache) Invalidate(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	c.generation.Add(1)

	removed, err := removeFiles(c.path(name))
	if err != nil {
		return fmt.Errorf("invalidate artifact %s: %w", name, err)
	}
	if removed {
		c.metrics.ArtifactInvalidations.Inc()
		c.logger.Info("artifact invalidated", "artifact", name)
	}
	return nil
}

// InvalidateAll removes every stored artifact, including content files
// whose metadata sidecar is missing. Hidden files belong to in-flight
// builds and are left alone.
func (c *Cache) InvalidateAll() error {
	c.generation.Add(1)

	files, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("invalidate artifacts: %w", err)
	}
	names := make(map[string]bool)
	for _, f := range files {
		if !f.Type().IsRegular() || strings.HasPrefix(f.Name(), ".") {
			continue
		}
		names[strings.TrimSuffix(f.Name(), metaSuffix)] = true
	}

	var errs []error
	for name := range names {
		errs = append(errs, c.Invalidate(name))
	}
	return errors.Join(errs...)
}

// removeFiles deletes the sidecar and then the content at path. It reports
// whether either existed.
func removeFiles(path string) (bool, error) {
	removed := false
	for _, p := range []string{path + metaSuffix, path} {
		err := os.Remove(p)
		if err == nil {
			removed = true
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
	}
	return removed, nil
}

func (c *Cache) path(name string) string {
	return filepath.Join(c.dir, name)
}

func validName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.HasSuffix(name, metaSuffix) {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}

func readMeta(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if e.Name == "" || e.Fingerprint == "" {
		return Entry{}, fmt.Errorf("decode %s: incomplete metadata", filepath.Base(path))
	}
	return e, nil
}

func writeMeta(path string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// writeAtomic writes data to a temp file next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	err = os.Rename(tmpName, path)
	return err
}
