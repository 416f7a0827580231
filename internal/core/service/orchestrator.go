package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/storage/slot"
	"github.com/yndnr/savekeep-go/internal/telemetry/logger"
	"github.com/yndnr/savekeep-go/internal/telemetry/metric"
	"github.com/yndnr/savekeep-go/pkg/cmap"
)

// DefaultSaveName prefixes generated save names.
const DefaultSaveName = "Save"

// Config configures an Orchestrator.
type Config struct {
	Catalog       *slot.Catalog
	Collaborators Collaborators

	// Executor runs capture and apply steps. Defaults to InlineExecutor.
	Executor Executor

	// GameVersion is stamped into every snapshot.
	GameVersion string

	// DefaultSaveName is used when a save is started without a name.
	DefaultSaveName string

	Metrics *metric.Registry
	Logger  logger.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Option configures a single Save or Load call.
type Option func(*callOptions)

type callOptions struct {
	name       string
	onComplete func(Result)
}

// WithName sets the save name. Ignored by Load.
func WithName(name string) Option {
	return func(o *callOptions) { o.name = name }
}

// WithCompletion registers fn to receive the result. It runs on the worker
// goroutine.
func WithCompletion(fn func(Result)) Option {
	return func(o *callOptions) { o.onComplete = fn }
}

// Orchestrator sequences save and load operations. At most one operation
// runs per slot; a second request for a busy slot fails with
// domain.ErrSlotBusy instead of waiting.
type Orchestrator struct {
	catalog     *slot.Catalog
	scene       SceneController
	aggregator  *Aggregator
	director    *Director
	executor    Executor
	gameVersion string
	saveName    string
	metrics     *metric.Registry
	logger      logger.Logger
	now         func() time.Time

	inflight *cmap.Map[domain.SlotIndex, *Operation]
	wg       sync.WaitGroup
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("service: catalog is required")
	}
	if cfg.Executor == nil {
		cfg.Executor = InlineExecutor{}
	}
	if cfg.DefaultSaveName == "" {
		cfg.DefaultSaveName = DefaultSaveName
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metric.NewRegistry("")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := logger.OrDefault(cfg.Logger)

	return &Orchestrator{
		catalog:     cfg.Catalog,
		scene:       cfg.Collaborators.Scene,
		aggregator:  NewAggregator(cfg.Collaborators, log),
		director:    NewDirector(cfg.Collaborators, log),
		executor:    cfg.Executor,
		gameVersion: cfg.GameVersion,
		saveName:    cfg.DefaultSaveName,
		metrics:     cfg.Metrics,
		logger:      log.With("component", "orchestrator"),
		now:         cfg.Now,
		inflight:    cmap.New[domain.SlotIndex, *Operation](),
	}, nil
}

// InFlight reports whether an operation currently owns slot.
func (o *Orchestrator) InFlight(s domain.SlotIndex) bool {
	return o.inflight.Has(s)
}

// Save captures the live game state into slot. It returns once the
// operation is started; the handle reports the outcome.
func (o *Orchestrator) Save(s domain.SlotIndex, progress ProgressFunc, opts ...Option) (*Operation, error) {
	return o.start(KindSave, s, progress, opts)
}

// Load restores slot into the live game. A missing slot is reported
// through the handle's result as domain.ErrSlotNotFound.
func (o *Orchestrator) Load(s domain.SlotIndex, progress ProgressFunc, opts ...Option) (*Operation, error) {
	return o.start(KindLoad, s, progress, opts)
}

// Close waits for in-flight operations to finish or ctx to end.
func (o *Orchestrator) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) start(kind Kind, s domain.SlotIndex, progress ProgressFunc, opts []Option) (*Operation, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}

	op := newOperation(kind, s, o.now())
	if !o.inflight.SetIfAbsent(s, op) {
		o.metrics.ObserveOperation(string(kind), metric.ResultBusy, 0)
		o.logger.Debug("slot busy, rejecting operation", "slot", int(s), "kind", string(kind))
		return nil, domain.ErrSlotBusy.WithDetails(fmt.Sprintf("slot %d", s))
	}
	if co.onComplete != nil {
		op.OnComplete(co.onComplete)
	}

	ctx := logger.WithOperationID(logger.WithLogger(context.Background(), o.logger), op.ID())
	o.metrics.InFlight.Inc()
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		p := newProgress(progress)

		var r Result
		switch kind {
		case KindSave:
			r = o.runSave(ctx, op, p, co.name)
		case KindLoad:
			r = o.runLoad(ctx, op, p)
		}
		o.complete(ctx, op, r)
	}()
	return op, nil
}

func (o *Orchestrator) runSave(ctx context.Context, op *Operation, p *progress, name string) Result {
	log := logger.L(ctx)
	log.Info("save started", "slot", int(op.Slot()))

	// 1. Ensure the save directory exists.
	op.setPhase(PhaseAggregating)
	p.report(0)
	if err := o.catalog.EnsureDir(); err != nil {
		return failed(err)
	}
	p.report(0.1)

	// 2. Capture all fragments in one loop tick.
	var snap *domain.Snapshot
	total := float64(len(domain.Fragments))
	err := runOn(ctx, o.executor, func() {
		snap = o.aggregator.CaptureFunc(func(_ domain.Fragment, step int) {
			p.report(0.1 + 0.6*float64(step)/total)
		})
	})
	if err != nil {
		return failed(err)
	}

	// 3. Stamp metadata.
	if strings.TrimSpace(name) == "" {
		name = o.saveName + " " + o.now().Format("2006-01-02 15:04")
	}
	snap.Stamp(name, o.gameVersion, o.now())
	p.report(0.7)

	// 4. Encode.
	op.setPhase(PhaseEncoding)
	data, err := o.catalog.Codec().Encode(snap)
	if err != nil {
		return failed(err)
	}

	// 5. Write through a temp file and rename over the slot.
	op.setPhase(PhaseWriting)
	p.report(0.8)
	path, err := o.catalog.Write(op.Slot(), data)
	if err != nil {
		return failed(err)
	}
	o.metrics.SlotBytes.WithLabelValues(string(KindSave)).Set(float64(len(data)))
	p.report(1)

	return Result{
		Success: true,
		Message: fmt.Sprintf("saved %q to slot %d", name, op.Slot()),
		Path:    path,
	}
}

func (o *Orchestrator) runLoad(ctx context.Context, op *Operation, p *progress) Result {
	log := logger.L(ctx)
	log.Info("load started", "slot", int(op.Slot()))

	// 1. Verify the slot exists.
	op.setPhase(PhaseReading)
	p.report(0)
	path, _, err := o.catalog.Resolve(op.Slot())
	if err != nil {
		return failed(err)
	}
	p.report(0.1)

	// 2. Read and decode.
	data, cd, err := o.catalog.Read(op.Slot())
	if err != nil {
		return failed(err)
	}
	o.metrics.SlotBytes.WithLabelValues(string(KindLoad)).Set(float64(len(data)))
	op.setPhase(PhaseDecoding)
	snap, err := cd.Decode(data)
	if err != nil {
		return failed(err)
	}
	p.report(0.5)

	// 3. Switch scenes when the save was made elsewhere.
	op.setPhase(PhaseRestoring)
	if err := o.enterScene(ctx, snap.Scene.SceneID); err != nil {
		return failed(err)
	}
	p.report(0.8)

	// 4. Apply every fragment in one loop tick.
	var applyErr error
	total := float64(len(domain.Fragments))
	err = runOn(ctx, o.executor, func() {
		applyErr = o.director.ApplyFunc(snap, func(_ domain.Fragment, step int) {
			if step < len(domain.Fragments) {
				p.report(0.8 + 0.2*float64(step)/total)
			}
		})
	})
	if err != nil {
		return failed(err)
	}
	p.report(1)

	r := Result{
		Success: true,
		Message: fmt.Sprintf("loaded %q from slot %d", snap.SaveName, op.Slot()),
		Path:    path,
	}
	var perr *domain.PartialApplyError
	if errors.As(applyErr, &perr) {
		r.Warnings = perr.Warnings()
		r.Err = perr
		r.Message = domain.UserMessage(perr)
		for _, f := range perr.Fragments() {
			o.metrics.PartialFragments.WithLabelValues(string(f)).Inc()
		}
	}
	return r
}

// enterScene requests a transition to sceneID unless it is already active,
// and waits for the scene collaborator to report completion.
func (o *Orchestrator) enterScene(ctx context.Context, sceneID string) error {
	if o.scene == nil {
		return nil
	}

	var active string
	var wait <-chan error
	err := runOn(ctx, o.executor, func() {
		active = o.scene.ActiveScene()
		if active != sceneID {
			wait = o.scene.RequestTransition(sceneID)
		}
	})
	if err != nil {
		return err
	}
	if active == sceneID {
		return nil
	}

	logger.L(ctx).Info("switching scene before restore", "from", active, "to", sceneID)
	if wait == nil {
		return domain.ErrSceneTransition.WithDetails(fmt.Sprintf("scene %q: no completion signal", sceneID))
	}
	select {
	case err := <-wait:
		if err != nil {
			return domain.ErrSceneTransition.WithDetails(fmt.Sprintf("scene %q", sceneID)).WithCause(err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func failed(err error) Result {
	return Result{Success: false, Message: domain.UserMessage(err), Err: err}
}

func (o *Orchestrator) complete(ctx context.Context, op *Operation, r Result) {
	r.OperationID = op.ID()
	r.Slot = op.Slot()
	r.Kind = op.Kind()
	r.Duration = o.now().Sub(op.started)

	outcome := metric.ResultSuccess
	switch {
	case !r.Success:
		outcome = metric.ResultFailure
	case len(r.Warnings) > 0:
		outcome = metric.ResultPartial
	}
	o.metrics.ObserveOperation(string(op.Kind()), outcome, r.Duration.Seconds())
	o.metrics.InFlight.Dec()

	log := logger.L(ctx)
	if r.Success {
		log.Info(string(op.Kind())+" complete",
			"slot", int(op.Slot()),
			"duration", r.Duration,
			"warnings", len(r.Warnings),
		)
	} else {
		log.Error(string(op.Kind())+" failed",
			"slot", int(op.Slot()),
			"phase", string(op.Phase()),
			"error", r.Err,
		)
	}

	// The slot is free before Done closes.
	o.inflight.Delete(op.Slot())
	op.finish(r)
}
