package service

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/savekeep-go/internal/core/domain"
)

// Kind distinguishes save from load operations.
type Kind string

const (
	KindSave Kind = "save"
	KindLoad Kind = "load"
)

// Phase is the step an operation is in. Phases only move forward.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseAggregating Phase = "aggregating"
	PhaseEncoding    Phase = "encoding"
	PhaseWriting     Phase = "writing"
	PhaseReading     Phase = "reading"
	PhaseDecoding    Phase = "decoding"
	PhaseRestoring   Phase = "restoring"
	PhaseComplete    Phase = "complete"
	PhaseFailed      Phase = "failed"
)

// Terminal reports whether p is Complete or Failed.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// ProgressFunc receives the completed fraction of an operation, in [0,1].
// Values strictly increase and a successful operation ends at exactly 1.
type ProgressFunc func(fraction float64)

// Result is the outcome of a finished operation.
type Result struct {
	OperationID string           `json:"operation_id"`
	Slot        domain.SlotIndex `json:"slot"`
	Kind        Kind             `json:"kind"`
	Success     bool             `json:"success"`
	Message     string           `json:"message"`
	Warnings    []string         `json:"warnings,omitempty"`
	Path        string           `json:"path,omitempty"`
	Duration    time.Duration    `json:"duration"`
	Err         error            `json:"-"`
}

// Operation is a handle to a running save or load.
type Operation struct {
	id      string
	kind    Kind
	slot    domain.SlotIndex
	started time.Time

	mu        sync.Mutex
	phase     Phase
	result    Result
	callbacks []func(Result)
	done      chan struct{}
}

func newOperation(kind Kind, slot domain.SlotIndex, now time.Time) *Operation {
	return &Operation{
		id:      ulid.Make().String(),
		kind:    kind,
		slot:    slot,
		started: now,
		phase:   PhaseIdle,
		done:    make(chan struct{}),
	}
}

// ID returns the operation's ULID.
func (o *Operation) ID() string { return o.id }

// Kind returns save or load.
func (o *Operation) Kind() Kind { return o.kind }

// Slot returns the slot the operation owns.
func (o *Operation) Slot() domain.SlotIndex { return o.slot }

// Phase returns the current phase.
func (o *Operation) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Done is closed when the operation completes or fails.
func (o *Operation) Done() <-chan struct{} { return o.done }

// Result returns the outcome and whether the operation has finished.
func (o *Operation) Result() (Result, bool) {
	select {
	case <-o.done:
		return o.result, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the operation finishes or ctx ends. Ending ctx does not
// stop the operation.
func (o *Operation) Wait(ctx context.Context) (Result, error) {
	select {
	case <-o.done:
		return o.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// OnComplete registers fn to receive the result. If the operation already
// finished, fn runs immediately on the calling goroutine.
func (o *Operation) OnComplete(fn func(Result)) {
	o.mu.Lock()
	if !o.phase.Terminal() {
		o.callbacks = append(o.callbacks, fn)
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()
	fn(o.result)
}

func (o *Operation) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

func (o *Operation) finish(r Result) {
	o.mu.Lock()
	if r.Success {
		o.phase = PhaseComplete
	} else {
		o.phase = PhaseFailed
	}
	o.result = r
	callbacks := o.callbacks
	o.callbacks = nil
	close(o.done)
	o.mu.Unlock()

	for _, fn := range callbacks {
		fn(r)
	}
}

// progress forwards strictly increasing fractions to fn.
type progress struct {
	fn   ProgressFunc
	last float64
}

func newProgress(fn ProgressFunc) *progress {
	return &progress{fn: fn, last: -1}
}

func (p *progress) report(v float64) {
	if v > 1 {
		v = 1
	}
	if v <= p.last {
		return
	}
	p.last = v
	if p.fn != nil {
		p.fn(v)
	}
}
