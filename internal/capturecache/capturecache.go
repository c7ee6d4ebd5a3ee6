package capturecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sys/unix"

	"fluxscp/internal/config"
	"fluxscp/internal/logging"
)

const (
	// freeSpaceFloor is the minimum free-space ratio allowed before pruning.
	freeSpaceFloor = 0.10
	entrySuffix    = ".bin.zst"
)

// ErrMiss means no cached capture exists for the requested track.
var ErrMiss = errors.New("capture not cached")

type statfsFunc func(path string) (total uint64, free uint64, err error)

// Manager stores and prunes cached captures.
type Manager struct {
	root     string
	maxBytes int64
	logger   *slog.Logger
	statfs   statfsFunc

	mu      sync.Mutex
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Stats describes current cache usage.
type Stats struct {
	Sessions   int
	TotalBytes int64
	MaxBytes   int64
	FreeBytes  uint64
	FreeRatio  float64
	Entries    []SessionSummary
}

// SessionSummary describes the cached captures of one session.
type SessionSummary struct {
	SessionID  string
	Tracks     int
	SizeBytes  int64
	ModifiedAt time.Time
}

// NewManager builds a cache manager when enabled; returns nil when caching is
// disabled. A nil *Manager is safe to call and caches nothing.
func NewManager(cfg *config.Config, logger *slog.Logger) (*Manager, error) {
	if cfg == nil || !cfg.Cache.Enabled {
		return nil, nil
	}
	root := strings.TrimSpace(cfg.Paths.CacheDir)
	if root == "" || cfg.Cache.MaxMiB <= 0 {
		return nil, nil
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("capturecache: zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("capturecache: zstd decoder: %w", err)
	}
	return &Manager{
		root:     root,
		maxBytes: int64(cfg.Cache.MaxMiB) * 1024 * 1024,
		logger:   logging.NewComponentLogger(logger, "capturecache"),
		statfs:   realStatfs,
		encoder:  encoder,
		decoder:  decoder,
	}, nil
}

// Close releases the zstd codec resources.
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.decoder.Close()
	_ = m.encoder.Close()
}

// Store compresses raw and records it as the capture of physical in
// sessionID, then prunes older sessions if the cache is over budget.
func (m *Manager) Store(ctx context.Context, sessionID string, physical uint32, raw []byte) error {
	if m == nil {
		return nil
	}
	dir := m.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("capturecache: create session dir: %w", err)
	}

	m.mu.Lock()
	compressed := m.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/4))
	m.mu.Unlock()

	target := m.entryPath(sessionID, physical)
	tmp, err := os.CreateTemp(dir, ".entry-*.tmp")
	if err != nil {
		return fmt.Errorf("capturecache: create temp entry: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(compressed); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("capturecache: write entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("capturecache: close entry: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("capturecache: rename entry: %w", err)
	}
	now := time.Now()
	_ = os.Chtimes(dir, now, now)

	m.logger.DebugContext(ctx, "cached capture",
		logging.Uint64(logging.FieldTrack, uint64(physical)),
		logging.Int("raw_bytes", len(raw)),
		logging.Int("stored_bytes", len(compressed)),
	)
	return m.prune(ctx, dir)
}

// Load returns the raw capture of physical in sessionID.
func (m *Manager) Load(sessionID string, physical uint32) ([]byte, error) {
	if m == nil {
		return nil, ErrMiss
	}
	compressed, err := os.ReadFile(m.entryPath(sessionID, physical))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: session %s track %d", ErrMiss, sessionID, physical)
	}
	if err != nil {
		return nil, fmt.Errorf("capturecache: read entry: %w", err)
	}
	raw, err := m.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("capturecache: decompress track %d: %w", physical, err)
	}
	return raw, nil
}

// Tracks lists the cached physical indices of a session in ascending order.
func (m *Manager) Tracks(sessionID string) ([]uint32, error) {
	if m == nil {
		return nil, nil
	}
	entries, err := os.ReadDir(m.sessionDir(sessionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("capturecache: list session: %w", err)
	}
	out := make([]uint32, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, entrySuffix) {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(name, entrySuffix), 10, 32)
		if err != nil {
			continue
		}
		out = append(out, uint32(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Remove deletes every cached capture of a session.
func (m *Manager) Remove(sessionID string) error {
	if m == nil {
		return nil
	}
	if err := os.RemoveAll(m.sessionDir(sessionID)); err != nil {
		return fmt.Errorf("capturecache: remove session: %w", err)
	}
	return nil
}

// Prune removes the oldest sessions until the cache fits its limits.
func (m *Manager) Prune(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.prune(ctx, "")
}

// Stats returns current cache usage and filesystem free-space info.
func (m *Manager) Stats() (Stats, error) {
	var s Stats
	if m == nil {
		return s, nil
	}
	entries, total, err := m.scan()
	if err != nil {
		return s, err
	}
	totalFS, freeFS, err := m.statfs(m.root)
	if err != nil {
		return s, fmt.Errorf("capturecache: statfs: %w", err)
	}
	ratio := 1.0
	if totalFS > 0 {
		ratio = float64(freeFS) / float64(totalFS)
	}
	s = Stats{
		Sessions:   len(entries),
		TotalBytes: total,
		MaxBytes:   m.maxBytes,
		FreeBytes:  freeFS,
		FreeRatio:  ratio,
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		s.Entries = append(s.Entries, SessionSummary{
			SessionID:  filepath.Base(e.path),
			Tracks:     e.tracks,
			SizeBytes:  e.sizeBytes,
			ModifiedAt: e.modTime,
		})
	}
	return s, nil
}

func (m *Manager) prune(ctx context.Context, keepDir string) error {
	entries, total, err := m.scan()
	if err != nil {
		return err
	}
	for len(entries) > 0 {
		freeOK, err := m.freeSpaceOK()
		if err != nil {
			return err
		}
		if total <= m.maxBytes && freeOK {
			return nil
		}
		oldest := entries[0]
		entries = entries[1:]
		if keepDir != "" && oldest.path == keepDir {
			continue
		}
		if err := os.RemoveAll(oldest.path); err != nil {
			return fmt.Errorf("capturecache: remove %q: %w", oldest.path, err)
		}
		m.logger.InfoContext(ctx, "pruned capture cache session",
			logging.String(logging.FieldSessionID, filepath.Base(oldest.path)),
			logging.Int64("entry_size_bytes", oldest.sizeBytes),
			logging.String(logging.FieldEventType, "cache_pruned"),
		)
		total -= oldest.sizeBytes
	}
	return nil
}

type cacheEntry struct {
	path      string
	sizeBytes int64
	tracks    int
	modTime   time.Time
}

func (m *Manager) scan() ([]cacheEntry, int64, error) {
	rootEntries, err := os.ReadDir(m.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("capturecache: list root: %w", err)
	}
	var (
		entries []cacheEntry
		total   int64
	)
	for _, dirEntry := range rootEntries {
		if !dirEntry.IsDir() {
			continue
		}
		path := filepath.Join(m.root, dirEntry.Name())
		entry, err := summarize(path)
		if err != nil {
			logging.WarnWithContext(m.logger, "skipping unreadable cache entry", "cache_entry_skipped",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect cache directory permissions or remove the entry"),
				logging.String(logging.FieldImpact, "entry is excluded from pruning"),
			)
			continue
		}
		total += entry.sizeBytes
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].modTime.Before(entries[j].modTime)
	})
	return entries, total, nil
}

func summarize(dir string) (cacheEntry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return cacheEntry{}, err
	}
	entry := cacheEntry{path: dir, modTime: info.ModTime()}
	files, err := os.ReadDir(dir)
	if err != nil {
		return cacheEntry{}, err
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		fi, err := f.Info()
		if err != nil {
			return cacheEntry{}, err
		}
		entry.sizeBytes += fi.Size()
		if strings.HasSuffix(f.Name(), entrySuffix) {
			entry.tracks++
		}
	}
	return entry, nil
}

func (m *Manager) freeSpaceOK() (bool, error) {
	total, free, err := m.statfs(m.root)
	if err != nil {
		return false, fmt.Errorf("capturecache: statfs: %w", err)
	}
	if total == 0 {
		return true, nil
	}
	return float64(free)/float64(total) >= freeSpaceFloor, nil
}

func (m *Manager) sessionDir(sessionID string) string {
	return filepath.Join(m.root, sanitize(sessionID))
}

func (m *Manager) entryPath(sessionID string, physical uint32) string {
	return filepath.Join(m.sessionDir(sessionID), fmt.Sprintf("%03d%s", physical, entrySuffix))
}

func sanitize(value string) string {
	value = strings.TrimSpace(value)
	replacer := strings.NewReplacer("/", "-", "\\", "-", " ", "-", "..", "-")
	value = strings.Trim(replacer.Replace(value), "-.")
	if value == "" {
		return "session"
	}
	return value
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
