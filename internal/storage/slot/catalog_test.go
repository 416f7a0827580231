package slot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/storage/codec"
	"github.com/yndnr/savekeep-go/internal/telemetry/logger"
)

func newTestCatalog(t *testing.T, format codec.Format) *Catalog {
	t.Helper()
	c, err := NewCatalog(Config{
		Dir:    filepath.Join(t.TempDir(), "saves"),
		Format: format,
		Logger: logger.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

func encodeSample(t *testing.T, cd codec.Codec, name, scene string) []byte {
	t.Helper()
	s := domain.NewSnapshot()
	s.Stamp(name, "1.0.0", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	s.Scene.SceneID = scene
	data, err := cd.Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func TestNewCatalog_Validation(t *testing.T) {
	if _, err := NewCatalog(Config{Format: codec.FormatJSON}); err == nil {
		t.Error("expected error for empty dir")
	}
	if _, err := NewCatalog(Config{Dir: t.TempDir(), Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestCatalog_ListEmpty(t *testing.T) {
	c := newTestCatalog(t, codec.FormatJSON)

	// Directory does not exist yet.
	entries, err := c.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("len = %d, want 0", len(entries))
	}
}

func TestCatalog_ListSortedByIndex(t *testing.T) {
	c := newTestCatalog(t, codec.FormatJSON)

	for _, s := range []domain.SlotIndex{2, 0, 5} {
		if _, err := c.Write(s, encodeSample(t, c.Codec(), "slot", "Dorm")); err != nil {
			t.Fatalf("Write(%d): %v", s, err)
		}
	}

	entries, err := c.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var got []domain.SlotIndex
	for _, e := range entries {
		got = append(got, e.Slot)
	}
	want := []domain.SlotIndex{0, 2, 5}
	if len(got) != len(want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("slots = %v, want %v", got, want)
		}
	}
	if entries[0].Metadata.SceneID != "Dorm" || entries[0].Format != codec.FormatJSON {
		t.Errorf("entry[0] = %+v", entries[0])
	}
}

func TestCatalog_ListIsolatesCorruptedSlot(t *testing.T) {
	c := newTestCatalog(t, codec.FormatJSON)

	if _, err := c.Write(0, encodeSample(t, c.Codec(), "good", "Yard")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(c.Dir(), "save_1.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, err := c.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].Metadata.Name != "good" || entries[0].Metadata.Corrupted {
		t.Errorf("slot 0 = %+v", entries[0].Metadata)
	}
	if !entries[1].Metadata.Corrupted || entries[1].Metadata.Name != domain.CorruptedSaveName {
		t.Errorf("slot 1 = %+v, want corrupted sentinel", entries[1].Metadata)
	}
}

func TestCatalog_ListIgnoresForeignFiles(t *testing.T) {
	c := newTestCatalog(t, codec.FormatJSON)
	if err := c.EnsureDir(); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"notes.txt", "save_01.json", "save_x.json", "save_3.json.123.tmp", "save_4.xml"} {
		if err := os.WriteFile(filepath.Join(c.Dir(), name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := c.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %+v, want none", entries)
	}
}

func TestCatalog_ResolveAndRead(t *testing.T) {
	c := newTestCatalog(t, codec.FormatJSON)

	if _, _, err := c.Resolve(7); !errors.Is(err, domain.ErrSlotNotFound) {
		t.Errorf("Resolve missing = %v, want ErrSlotNotFound", err)
	}
	if _, _, err := c.Read(7); !errors.Is(err, domain.ErrSlotNotFound) {
		t.Errorf("Read missing = %v, want ErrSlotNotFound", err)
	}
	if _, _, err := c.Resolve(-1); !errors.Is(err, domain.ErrInvalidSlot) {
		t.Errorf("Resolve(-1) = %v, want ErrInvalidSlot", err)
	}

	data := encodeSample(t, c.Codec(), "a", "Dorm")
	path, err := c.Write(7, data)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if path != c.Path(7) {
		t.Errorf("path = %q, want %q", path, c.Path(7))
	}
	if !c.Exists(7) {
		t.Error("Exists = false after write")
	}

	got, cd, err := c.Read(7)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(data) || cd.Format() != codec.FormatJSON {
		t.Errorf("Read returned unexpected content or codec %s", cd.Format())
	}
}

func TestCatalog_OverwriteIsIdempotent(t *testing.T) {
	c := newTestCatalog(t, codec.FormatJSON)
	data := encodeSample(t, c.Codec(), "same", "Dorm")

	for i := 0; i < 2; i++ {
		if _, err := c.Write(1, data); err != nil {
			t.Fatalf("Write #%d: %v", i, err)
		}
	}
	got, err := os.ReadFile(c.Path(1))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(data) {
		t.Error("file content changed between identical writes")
	}
	entries, _ := c.List()
	if len(entries) != 1 {
		t.Errorf("len = %d, want 1", len(entries))
	}
}

func TestCatalog_FailedRenameKeepsPreviousFile(t *testing.T) {
	c := newTestCatalog(t, codec.FormatJSON)
	original := encodeSample(t, c.Codec(), "original", "Dorm")
	if _, err := c.Write(3, original); err != nil {
		t.Fatalf("Write: %v", err)
	}

	c.rename = func(string, string) error { return errors.New("power loss") }
	_, err := c.Write(3, encodeSample(t, c.Codec(), "replacement", "Yard"))
	if !errors.Is(err, domain.ErrIO) {
		t.Fatalf("Write err = %v, want ErrIO", err)
	}

	got, err := os.ReadFile(c.Path(3))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(original) {
		t.Error("previous save was modified by failed write")
	}
	files, _ := os.ReadDir(c.Dir())
	for _, f := range files {
		if strings.HasSuffix(f.Name(), tempSuffix) {
			t.Errorf("temp file %s left behind", f.Name())
		}
	}
}

func TestCatalog_CleanupTemp(t *testing.T) {
	c := newTestCatalog(t, codec.FormatJSON)
	if _, err := c.Write(0, encodeSample(t, c.Codec(), "a", "Dorm")); err != nil {
		t.Fatal(err)
	}
	leftover := filepath.Join(c.Dir(), "save_0.json.4821.tmp")
	if err := os.WriteFile(leftover, []byte("{\"version\""), 0o644); err != nil {
		t.Fatal(err)
	}

	entries, _ := c.List()
	if len(entries) != 1 || entries[0].Metadata.Corrupted {
		t.Fatalf("entries = %+v, want one intact slot", entries)
	}

	n, err := c.CleanupTemp()
	if err != nil {
		t.Fatalf("CleanupTemp: %v", err)
	}
	if n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Error("leftover temp file still exists")
	}
}

func TestCatalog_Delete(t *testing.T) {
	c := newTestCatalog(t, codec.FormatJSON)

	if err := c.Delete(4); !errors.Is(err, domain.ErrSlotNotFound) {
		t.Errorf("Delete missing = %v, want ErrSlotNotFound", err)
	}
	if _, err := c.Write(4, encodeSample(t, c.Codec(), "a", "Dorm")); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(4); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if c.Exists(4) {
		t.Error("slot still exists after delete")
	}
	if err := c.Delete(4); !errors.Is(err, domain.ErrSlotNotFound) {
		t.Errorf("second Delete = %v, want ErrSlotNotFound", err)
	}
}

func TestCatalog_FormatSwitchKeepsOneFile(t *testing.T) {
	c := newTestCatalog(t, codec.FormatJSON)
	if _, err := c.Write(2, encodeSample(t, c.Codec(), "json save", "Dorm")); err != nil {
		t.Fatal(err)
	}

	bin := codec.MustNew(codec.FormatBinary)
	if _, err := c.WriteWith(2, bin, encodeSample(t, bin, "binary save", "Yard")); err != nil {
		t.Fatalf("WriteWith: %v", err)
	}

	files, _ := os.ReadDir(c.Dir())
	if len(files) != 1 || files[0].Name() != "save_2.sav" {
		var names []string
		for _, f := range files {
			names = append(names, f.Name())
		}
		t.Fatalf("files = %v, want [save_2.sav]", names)
	}

	entries, err := c.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Format != codec.FormatBinary || entries[0].Metadata.Name != "binary save" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestCatalog_ResolvePrefersPrimaryFormat(t *testing.T) {
	c := newTestCatalog(t, codec.FormatBinary)
	if err := c.EnsureDir(); err != nil {
		t.Fatal(err)
	}
	js := codec.MustNew(codec.FormatJSON)
	bin := codec.MustNew(codec.FormatBinary)
	// Both files present, as after a copy from another install.
	if err := os.WriteFile(filepath.Join(c.Dir(), "save_0.json"), encodeSample(t, js, "json", "Dorm"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(c.Dir(), "save_0.sav"), encodeSample(t, bin, "bin", "Dorm"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, cd, err := c.Resolve(0)
	if err != nil {
		t.Fatal(err)
	}
	if cd.Format() != codec.FormatBinary {
		t.Errorf("format = %s, want binary", cd.Format())
	}
	entries, _ := c.List()
	if len(entries) != 1 || entries[0].Metadata.Name != "bin" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestCatalog_MetadataCacheInvalidatedOnWrite(t *testing.T) {
	c := newTestCatalog(t, codec.FormatJSON)
	if _, err := c.Write(0, encodeSample(t, c.Codec(), "first", "Dorm")); err != nil {
		t.Fatal(err)
	}
	if entries, _ := c.List(); entries[0].Metadata.Name != "first" {
		t.Fatalf("name = %q", entries[0].Metadata.Name)
	}
	if _, err := c.Write(0, encodeSample(t, c.Codec(), "second", "Dorm")); err != nil {
		t.Fatal(err)
	}
	if entries, _ := c.List(); entries[0].Metadata.Name != "second" {
		t.Errorf("name = %q, want second", entries[0].Metadata.Name)
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		ev   fsnotify.Event
		want EventKind
		ok   bool
	}{
		{"create", fsnotify.Event{Name: "/s/save_1.json", Op: fsnotify.Create}, EventWritten, true},
		{"write", fsnotify.Event{Name: "/s/save_1.sav", Op: fsnotify.Write}, EventWritten, true},
		{"remove", fsnotify.Event{Name: "/s/save_2.json", Op: fsnotify.Remove}, EventRemoved, true},
		{"rename", fsnotify.Event{Name: "/s/save_2.json", Op: fsnotify.Rename}, EventRemoved, true},
		{"chmod", fsnotify.Event{Name: "/s/save_2.json", Op: fsnotify.Chmod}, "", false},
		{"temp", fsnotify.Event{Name: "/s/save_1.json.9.tmp", Op: fsnotify.Create}, "", false},
		{"foreign", fsnotify.Event{Name: "/s/readme.md", Op: fsnotify.Write}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := translate(tt.ev)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got.Kind != tt.want {
				t.Errorf("kind = %s, want %s", got.Kind, tt.want)
			}
		})
	}
}

func TestWatcher_ReportsWrites(t *testing.T) {
	c := newTestCatalog(t, codec.FormatJSON)
	w, err := NewWatcher(c)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	events := make(chan Event, 16)
	w.OnChange(func(e Event) { events <- e })
	w.StartAsync()

	if _, err := c.Write(6, encodeSample(t, c.Codec(), "watched", "Dorm")); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Slot == 6 && e.Kind == EventWritten {
				return
			}
		case <-deadline:
			t.Fatal("no write event for slot 6")
		}
	}
}
