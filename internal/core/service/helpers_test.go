package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/storage/codec"
	"github.com/yndnr/savekeep-go/internal/storage/slot"
	"github.com/yndnr/savekeep-go/internal/telemetry/logger"
	"github.com/yndnr/savekeep-go/internal/telemetry/metric"
	"github.com/yndnr/savekeep-go/internal/world"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// recordingWorld logs collaborator calls on top of a sandbox world.
type recordingWorld struct {
	*world.World

	mu    sync.Mutex
	calls []string
}

func newRecordingWorld(w *world.World) *recordingWorld {
	return &recordingWorld{World: w}
}

func (r *recordingWorld) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *recordingWorld) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingWorld) ActorState() domain.ActorFragment {
	r.record("get:actor")
	return r.World.ActorState()
}

func (r *recordingWorld) ActiveScene() string {
	r.record("get:scene")
	return r.World.ActiveScene()
}

func (r *recordingWorld) CompanionStates() domain.CompanionFragment {
	r.record("get:companions")
	return r.World.CompanionStates()
}

func (r *recordingWorld) InventoryState() domain.InventoryFragment {
	r.record("get:inventory")
	return r.World.InventoryState()
}

func (r *recordingWorld) QuestState() domain.QuestFragment {
	r.record("get:quests")
	return r.World.QuestState()
}

func (r *recordingWorld) AllFlags() domain.FlagsFragment {
	r.record("get:flags")
	return r.World.AllFlags()
}

func (r *recordingWorld) AdversaryStates() domain.AdversaryFragment {
	r.record("get:adversaries")
	return r.World.AdversaryStates()
}

func (r *recordingWorld) BulletinState() domain.BulletinFragment {
	r.record("get:bulletins")
	return r.World.BulletinState()
}

func (r *recordingWorld) PuzzleStates() domain.PuzzleFragment {
	r.record("get:puzzles")
	return r.World.PuzzleStates()
}

func (r *recordingWorld) RequestTransition(sceneID string) <-chan error {
	r.record("transition:" + sceneID)
	return r.World.RequestTransition(sceneID)
}

func (r *recordingWorld) RestoreActor(f domain.ActorFragment) error {
	r.record("restore:actor")
	return r.World.RestoreActor(f)
}

func (r *recordingWorld) ReplaceFlags(f domain.FlagsFragment) error {
	r.record("restore:flags")
	return r.World.ReplaceFlags(f)
}

type testEnv struct {
	orch    *Orchestrator
	catalog *slot.Catalog
	metrics *metric.Registry
}

func newTestEnv(t *testing.T, collab Collaborators, format codec.Format, ex Executor) *testEnv {
	t.Helper()
	catalog, err := slot.NewCatalog(slot.Config{
		Dir:    t.TempDir(),
		Format: format,
		Logger: logger.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	reg := metric.NewRegistry("")
	orch, err := NewOrchestrator(Config{
		Catalog:       catalog,
		Collaborators: collab,
		Executor:      ex,
		GameVersion:   "0.9.0-test",
		Metrics:       reg,
		Logger:        logger.NewNop(),
		Now:           func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		orch.Close(ctx)
	})
	return &testEnv{orch: orch, catalog: catalog, metrics: reg}
}

func waitResult(t *testing.T, op *Operation) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := op.Wait(ctx)
	if err != nil {
		t.Fatalf("operation %s on slot %d did not finish: %v", op.Kind(), op.Slot(), err)
	}
	return r
}

// progressLog collects reported fractions.
type progressLog struct {
	mu     sync.Mutex
	values []float64
}

func (p *progressLog) sink(v float64) {
	p.mu.Lock()
	p.values = append(p.values, v)
	p.mu.Unlock()
}

func (p *progressLog) Values() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float64(nil), p.values...)
}
