package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/core/service"
	"github.com/yndnr/savekeep-go/internal/telemetry/logger"
)

// DefaultMinInterval is the shortest time between two autosaves.
const DefaultMinInterval = 30 * time.Second

// Saver starts a save. *service.Orchestrator implements it.
type Saver interface {
	Save(slot domain.SlotIndex, progress service.ProgressFunc, opts ...service.Option) (*service.Operation, error)
}

// Outcome says what a Request did.
type Outcome string

const (
	Started   Outcome = "started"
	Throttled Outcome = "throttled"
	Busy      Outcome = "busy"
	Failed    Outcome = "failed"
)

// Config configures a Scheduler.
type Config struct {
	Slot        domain.SlotIndex
	MinInterval time.Duration
	Logger      logger.Logger
}

// Scheduler starts saves to one slot, at most once per MinInterval.
type Scheduler struct {
	saver   Saver
	slot    domain.SlotIndex
	limiter *rate.Limiter
	logger  logger.Logger

	mu   sync.Mutex
	last *service.Operation
}

// New creates a Scheduler. The first request is allowed immediately.
func New(saver Saver, cfg Config) *Scheduler {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultMinInterval
	}
	return &Scheduler{
		saver:   saver,
		slot:    cfg.Slot,
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		logger:  logger.OrDefault(cfg.Logger).With("component", "autosave"),
	}
}

// Request starts an autosave unless one ran within MinInterval or the slot
// is busy. reason becomes part of the save name.
func (s *Scheduler) Request(reason string) (Outcome, *service.Operation) {
	// A save that never starts hands its token back. The cancel must use the
	// reservation's own time: rate only restores tokens not yet acted on.
	now := time.Now()
	r := s.limiter.ReserveN(now, 1)
	if r.DelayFrom(now) > 0 {
		r.CancelAt(now)
		s.logger.Debug("autosave throttled", "reason", reason)
		return Throttled, nil
	}

	name := "Autosave"
	if reason != "" {
		name += " (" + reason + ")"
	}
	op, err := s.saver.Save(s.slot, nil, service.WithName(name))
	switch {
	case errors.Is(err, domain.ErrSlotBusy):
		r.CancelAt(now)
		s.logger.Debug("autosave skipped, slot busy", "reason", reason, "slot", int(s.slot))
		return Busy, nil
	case err != nil:
		r.CancelAt(now)
		s.logger.Warn("autosave could not start", "reason", reason, "error", err)
		return Failed, nil
	}

	s.mu.Lock()
	s.last = op
	s.mu.Unlock()
	s.logger.Debug("autosave started", "reason", reason, "operation_id", op.ID())
	return Started, op
}

// Last returns the most recently started autosave, or nil.
func (s *Scheduler) Last() *service.Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Run requests an autosave every interval until ctx ends.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Request("timer")
		}
	}
}
