package command

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/savekeep-go/internal/autosave"
	"github.com/yndnr/savekeep-go/internal/cli/output"
	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/core/service"
	"github.com/yndnr/savekeep-go/internal/storage/codec"
	"github.com/yndnr/savekeep-go/internal/telemetry/metric"
	"github.com/yndnr/savekeep-go/internal/world"
)

var errSelftestFailed = errors.New("selftest failed")

// tickInterval is the frame time of the simulated game loop.
const tickInterval = 5 * time.Millisecond

// SelftestCommand returns the selftest command.
func SelftestCommand() *cli.Command {
	return &cli.Command{
		Name:  "selftest",
		Usage: "Save a demo world to a slot, disturb it, and load it back",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "slot",
				Usage: "Slot to use",
				Value: 0,
			},
			&cli.BoolFlag{
				Name:  "overwrite",
				Usage: "Allow the test to replace an existing slot",
			},
			&cli.BoolFlag{
				Name:  "keep",
				Usage: "Keep the slots written by the test",
			},
			&cli.BoolFlag{
				Name:  "autosave",
				Usage: "Also exercise the autosave scheduler on the configured autosave slot",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Upper bound for each operation",
				Value: 30 * time.Second,
			},
		},
		Action: selftestRun,
	}
}

type stepRow struct {
	Step   string `json:"step" yaml:"step"`
	OK     bool   `json:"ok" yaml:"ok"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

type selftestView []stepRow

func (v selftestView) Table(bool) *output.Table {
	t := &output.Table{}
	t.SetHeaders("STEP", "RESULT", "DETAIL")
	for _, r := range v {
		result := "ok"
		if !r.OK {
			result = "FAIL"
		}
		t.AddRow(r.Step, result, output.Cell(r.Detail))
	}
	return t
}

func (v selftestView) failed() bool {
	for _, r := range v {
		if !r.OK {
			return true
		}
	}
	return false
}

type selftest struct {
	env       *Env
	world     *world.World
	orch      *service.Orchestrator
	timeout   time.Duration
	overwrite bool
	steps     selftestView
}

func (st *selftest) record(step string, ok bool, format string, args ...any) {
	st.steps = append(st.steps, stepRow{Step: step, OK: ok, Detail: fmt.Sprintf(format, args...)})
}

// progressBar returns a sink for table output and nil otherwise, so json
// and yaml stay machine readable.
func (st *selftest) progressBar(title string) (service.ProgressFunc, func()) {
	if st.env.Format != output.FormatTable {
		return nil, func() {}
	}
	bar := output.NewProgressBar(st.env.ErrOut, title)
	return bar.Report, bar.Finish
}

// run waits for op and records the outcome under step.
func (st *selftest) run(ctx context.Context, step string, op *service.Operation, finish func()) (service.Result, bool) {
	ctx, cancel := context.WithTimeout(ctx, st.timeout)
	defer cancel()
	r, err := op.Wait(ctx)
	finish()
	if err != nil {
		st.record(step, false, "%v", err)
		return r, false
	}
	if !r.Success {
		st.record(step, false, "%s", r.Message)
		return r, false
	}
	st.record(step, true, "%s in %s", r.Path, output.Cell(r.Duration))
	return r, true
}

func selftestRun(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}
	s := domain.SlotIndex(c.Int("slot"))
	if err := s.Validate(); err != nil {
		return err
	}
	if env.Catalog.Exists(s) && !c.Bool("overwrite") {
		return fmt.Errorf("slot %d already holds a save; pass --overwrite to replace it", s)
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	// Capture and apply run on a simulated game loop.
	loop := service.NewLoopExecutor()
	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				loop.Tick()
			}
		}
	}()

	w := world.Seed()
	collab := service.CollaboratorsFrom(w)
	orch, err := service.NewOrchestrator(service.Config{
		Catalog:         env.Catalog,
		Collaborators:   collab,
		Executor:        loop,
		GameVersion:     env.Config.Game.Version,
		DefaultSaveName: env.Config.Game.DefaultSaveName,
		Metrics:         metric.NewRegistry(env.Config.Metrics.Namespace),
		Logger:          env.Logger,
	})
	if err != nil {
		return err
	}
	defer orch.Close(context.Background())

	st := &selftest{env: env, world: w, orch: orch, timeout: c.Duration("timeout"), overwrite: c.Bool("overwrite")}
	written := []domain.SlotIndex{}

	before := service.NewAggregator(collab, env.Logger).Capture()
	st.record("seed", true, "scene %s, %d companions", before.Scene.SceneID, len(before.Companions))

	report, finish := st.progressBar("Saving ")
	op, err := orch.Save(s, report, service.WithName("Selftest"))
	if err != nil {
		return err
	}
	if _, ok := st.run(ctx, "save", op, finish); ok {
		written = append(written, s)
		st.loadBack(ctx, s, before)
	}

	if c.Bool("autosave") {
		if as, ok := st.autosave(ctx); ok {
			written = append(written, as)
		}
	}

	if !c.Bool("keep") {
		for _, ws := range written {
			if err := env.Catalog.Delete(ws); err != nil {
				st.record("cleanup", false, "slot %d: %v", ws, err)
			}
		}
	}

	if err := env.Print(st.steps); err != nil {
		return err
	}
	if st.steps.failed() {
		return errSelftestFailed
	}
	return nil
}

// loadBack disturbs the world, loads slot s and compares every fragment with
// the state captured before the save.
func (st *selftest) loadBack(ctx context.Context, s domain.SlotIndex, before *domain.Snapshot) {
	if err := <-st.world.RequestTransition("Yard"); err != nil {
		st.record("disturb", false, "%v", err)
		return
	}
	_ = st.world.RestoreSpawnPoint("gate")
	st.world.SetFlag("metMentor", false)
	st.world.AddCompanion("otto", domain.CompanionState{SceneID: "Yard", Following: true})
	st.record("disturb", true, "moved to Yard, cleared metMentor, otto follows")

	report, finish := st.progressBar("Loading")
	op, err := st.orch.Load(s, report)
	if err != nil {
		st.record("load", false, "%v", err)
		return
	}
	r, ok := st.run(ctx, "load", op, finish)
	for _, warning := range r.Warnings {
		st.record("load warning", true, "%s", warning)
	}
	if !ok {
		return
	}

	after := service.NewAggregator(service.CollaboratorsFrom(st.world), st.env.Logger).Capture()
	mismatched, err := diffFragments(st.env.Catalog.Codec(), before, after)
	if err != nil {
		st.record("verify", false, "%v", err)
		return
	}
	if len(mismatched) > 0 {
		st.record("verify", false, "fragments differ: %v", mismatched)
		return
	}
	st.record("verify", true, "all fragments match, transitions %v", st.world.Transitions())
}

// autosave requests two autosaves back to back. The first must start and
// the second must be throttled.
func (st *selftest) autosave(ctx context.Context) (domain.SlotIndex, bool) {
	cfg := st.env.Config.Autosave
	as := domain.SlotIndex(cfg.Slot)
	if st.env.Catalog.Exists(as) && !st.overwrite {
		st.record("autosave", false, "slot %d already holds a save", as)
		return as, false
	}
	sched := autosave.New(st.orch, autosave.Config{
		Slot:        as,
		MinInterval: cfg.MinInterval,
		Logger:      st.env.Logger,
	})

	outcome, op := sched.Request("selftest")
	if outcome != autosave.Started {
		st.record("autosave", false, "first request %s", outcome)
		return as, false
	}
	_, ok := st.run(ctx, "autosave", op, func() {})
	if again, _ := sched.Request("selftest"); again != autosave.Throttled {
		st.record("autosave throttle", false, "second request %s", again)
	} else {
		st.record("autosave throttle", true, "second request throttled")
	}
	return as, ok
}

// diffFragments lists the fragments whose captured state differs. Both
// sides pass through cd first so that encodings which do not distinguish
// nil from empty compare equal. Header fields are ignored.
func diffFragments(cd codec.Codec, a, b *domain.Snapshot) ([]string, error) {
	a, err := roundTrip(cd, a)
	if err != nil {
		return nil, err
	}
	b, err = roundTrip(cd, b)
	if err != nil {
		return nil, err
	}
	pairs := map[domain.Fragment][2]any{
		domain.FragmentActor:       {a.Actor, b.Actor},
		domain.FragmentScene:       {a.Scene, b.Scene},
		domain.FragmentCompanions:  {a.Companions, b.Companions},
		domain.FragmentInventory:   {a.Inventory, b.Inventory},
		domain.FragmentQuests:      {a.Quests, b.Quests},
		domain.FragmentFlags:       {a.Flags, b.Flags},
		domain.FragmentAdversaries: {a.Adversaries, b.Adversaries},
		domain.FragmentBulletins:   {a.Bulletins, b.Bulletins},
		domain.FragmentPuzzles:     {a.Puzzles, b.Puzzles},
	}
	var out []string
	for _, f := range domain.Fragments {
		p := pairs[f]
		if !reflect.DeepEqual(p[0], p[1]) {
			out = append(out, string(f))
		}
	}
	return out, nil
}

func roundTrip(cd codec.Codec, s *domain.Snapshot) (*domain.Snapshot, error) {
	data, err := cd.Encode(s)
	if err != nil {
		return nil, err
	}
	return cd.Decode(data)
}
