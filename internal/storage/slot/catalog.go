package slot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/storage/codec"
	"github.com/yndnr/savekeep-go/internal/telemetry/logger"
)

// DefaultFileMode is the permission of slot files.
const DefaultFileMode os.FileMode = 0o644

// Config configures a Catalog.
type Config struct {
	// Dir is the save directory. It is created on first write.
	Dir string

	// Format selects the codec used for new writes. Files in the other
	// format are still listed and loadable.
	Format codec.Format

	// FileMode is the permission of written slot files.
	FileMode os.FileMode

	Logger logger.Logger
}

// Entry is one listed slot.
type Entry struct {
	Slot     domain.SlotIndex    `json:"slot"`
	Metadata domain.SaveMetadata `json:"metadata"`
	Path     string              `json:"path"`
	Format   codec.Format        `json:"format"`
	Size     int64               `json:"size"`
	ModTime  time.Time           `json:"mod_time"`
}

type cacheEntry struct {
	size    int64
	modTime time.Time
	md      domain.SaveMetadata
}

// Catalog discovers, reads, writes and deletes slot files.
type Catalog struct {
	dir      string
	primary  codec.Codec
	fileMode os.FileMode
	logger   logger.Logger
	rename   renameFunc

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewCatalog creates a catalog. It does not touch the file system.
func NewCatalog(cfg Config) (*Catalog, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("slot: dir is required")
	}
	primary, err := codec.New(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("slot: %w", err)
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = DefaultFileMode
	}

	return &Catalog{
		dir:      filepath.Clean(cfg.Dir),
		primary:  primary,
		fileMode: cfg.FileMode,
		logger:   logger.OrDefault(cfg.Logger).With("component", "slot_catalog"),
		rename:   os.Rename,
		cache:    make(map[string]cacheEntry),
	}, nil
}

// Dir returns the save directory.
func (c *Catalog) Dir() string { return c.dir }

// Codec returns the codec used for new writes.
func (c *Catalog) Codec() codec.Codec { return c.primary }

// Path returns the path a write to slot would produce.
func (c *Catalog) Path(slot domain.SlotIndex) string {
	return filepath.Join(c.dir, slot.FileName(c.primary.Extension()))
}

// EnsureDir creates the save directory if needed.
func (c *Catalog) EnsureDir() error {
	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return domain.ErrIO.WithDetails("create save dir").WithCause(err)
	}
	return nil
}

// Resolve returns the existing file for slot and the codec that reads it.
// When files in both formats exist the primary format wins.
func (c *Catalog) Resolve(slot domain.SlotIndex) (string, codec.Codec, error) {
	if err := slot.Validate(); err != nil {
		return "", nil, err
	}
	candidates, err := c.existing(slot)
	if err != nil {
		return "", nil, err
	}
	if len(candidates) == 0 {
		return "", nil, domain.ErrSlotNotFound.WithDetails(fmt.Sprintf("slot %d", slot))
	}
	best := candidates[0]
	return best.path, best.codec, nil
}

// Exists reports whether any file exists for slot.
func (c *Catalog) Exists(slot domain.SlotIndex) bool {
	_, _, err := c.Resolve(slot)
	return err == nil
}

// Read returns the raw bytes of a slot and its codec.
func (c *Catalog) Read(slot domain.SlotIndex) ([]byte, codec.Codec, error) {
	path, cd, err := c.Resolve(slot)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, domain.ErrSlotNotFound.WithDetails(fmt.Sprintf("slot %d", slot))
		}
		return nil, nil, domain.ErrIO.WithDetails("read slot").WithCause(err)
	}
	return data, cd, nil
}

// Write atomically replaces slot with data encoded by the primary codec.
func (c *Catalog) Write(slot domain.SlotIndex, data []byte) (string, error) {
	return c.WriteWith(slot, c.primary, data)
}

// WriteWith atomically replaces slot with data encoded by cd. Files of the
// same slot in other formats are removed after the rename, so the slot
// keeps exactly one file.
func (c *Catalog) WriteWith(slot domain.SlotIndex, cd codec.Codec, data []byte) (string, error) {
	if err := slot.Validate(); err != nil {
		return "", err
	}
	if err := c.EnsureDir(); err != nil {
		return "", err
	}

	path, err := writeAtomic(c.dir, slot.FileName(cd.Extension()), data, c.fileMode, c.rename)
	if err != nil {
		return "", domain.ErrIO.WithDetails(fmt.Sprintf("write slot %d", slot)).WithCause(err)
	}
	c.Invalidate(slot)

	for _, ext := range codec.Extensions() {
		if ext == cd.Extension() {
			continue
		}
		stale := filepath.Join(c.dir, slot.FileName(ext))
		if err := os.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("failed to remove stale slot file", "path", stale, "error", err)
		}
	}
	return path, nil
}

// Delete removes every file of slot.
func (c *Catalog) Delete(slot domain.SlotIndex) error {
	if err := slot.Validate(); err != nil {
		return err
	}
	candidates, err := c.existing(slot)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return domain.ErrSlotNotFound.WithDetails(fmt.Sprintf("slot %d", slot))
	}
	for _, cand := range candidates {
		if err := os.Remove(cand.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return domain.ErrIO.WithDetails("delete slot").WithCause(err)
		}
	}
	c.Invalidate(slot)
	c.logger.Info("slot deleted", "slot", int(slot))
	return nil
}

// List returns every slot sorted by index. Undecodable slots are listed with
// domain.CorruptedMetadata instead of being skipped. A missing save directory
// lists as empty.
func (c *Catalog) List() ([]Entry, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, domain.ErrIO.WithDetails("read save dir").WithCause(err)
	}

	bySlot := make(map[domain.SlotIndex][]candidate)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		slot, ext, ok := domain.ParseSlotFileName(e.Name())
		if !ok {
			continue
		}
		cd, ok := codec.ForExtension(ext)
		if !ok {
			continue
		}
		bySlot[slot] = append(bySlot[slot], candidate{path: filepath.Join(c.dir, e.Name()), codec: cd})
	}

	slots := make([]domain.SlotIndex, 0, len(bySlot))
	for s := range bySlot {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	out := make([]Entry, 0, len(slots))
	for _, s := range slots {
		cands := c.rank(bySlot[s])
		best := cands[0]
		st, err := os.Stat(best.path)
		if err != nil {
			// Removed between ReadDir and Stat.
			continue
		}
		out = append(out, Entry{
			Slot:     s,
			Metadata: c.metadata(s, best, st),
			Path:     best.path,
			Format:   best.codec.Format(),
			Size:     st.Size(),
			ModTime:  st.ModTime(),
		})
	}
	return out, nil
}

// Invalidate drops cached metadata for slot.
func (c *Catalog) Invalidate(slot domain.SlotIndex) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for path := range c.cache {
		if s, _, ok := domain.ParseSlotFileName(filepath.Base(path)); ok && s == slot {
			delete(c.cache, path)
		}
	}
}

// CleanupTemp removes temporary files left by interrupted writes.
func (c *Catalog) CleanupTemp() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, domain.ErrIO.WithDetails("read save dir").WithCause(err)
	}
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "save_") || !strings.HasSuffix(name, tempSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, domain.ErrIO.WithDetails("remove temp file").WithCause(err)
		}
		removed++
	}
	if removed > 0 {
		c.logger.Info("removed interrupted slot writes", "count", removed)
	}
	return removed, nil
}

func (c *Catalog) metadata(slot domain.SlotIndex, cand candidate, st os.FileInfo) domain.SaveMetadata {
	c.mu.Lock()
	cached, ok := c.cache[cand.path]
	c.mu.Unlock()
	if ok && cached.size == st.Size() && cached.modTime.Equal(st.ModTime()) {
		return cached.md
	}

	md := domain.CorruptedMetadata()
	data, err := os.ReadFile(cand.path)
	if err == nil {
		md, err = cand.codec.DecodeMetadata(data)
	}
	if err != nil {
		c.logger.Warn("slot is unreadable", "slot", int(slot), "path", cand.path, "error", err)
		md = domain.CorruptedMetadata()
	}

	c.mu.Lock()
	c.cache[cand.path] = cacheEntry{size: st.Size(), modTime: st.ModTime(), md: md}
	c.mu.Unlock()
	return md
}

type candidate struct {
	path  string
	codec codec.Codec
}

// existing returns the files present for slot, best first.
func (c *Catalog) existing(slot domain.SlotIndex) ([]candidate, error) {
	var out []candidate
	for _, ext := range codec.Extensions() {
		path := filepath.Join(c.dir, slot.FileName(ext))
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, domain.ErrIO.WithDetails("stat slot").WithCause(err)
		}
		cd, _ := codec.ForExtension(ext)
		out = append(out, candidate{path: path, codec: cd})
	}
	return c.rank(out), nil
}

// rank orders candidates with the primary format first.
func (c *Catalog) rank(cands []candidate) []candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].codec.Format() == c.primary.Format() && cands[j].codec.Format() != c.primary.Format()
	})
	return cands
}
