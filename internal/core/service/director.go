package service

import (
	"errors"
	"fmt"
	"sort"

	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/telemetry/logger"
)

// errUnavailable is recorded for fragments whose collaborator is missing.
var errUnavailable = errors.New("subsystem unavailable")

// Director writes a decoded Snapshot back into live collaborators.
//
// Apply is best effort: a failing fragment or keyed entry is recorded and
// the remaining fragments are still applied.
type Director struct {
	c      Collaborators
	logger logger.Logger
}

// NewDirector creates a Director.
func NewDirector(c Collaborators, log logger.Logger) *Director {
	return &Director{
		c:      c,
		logger: logger.OrDefault(log).With("component", "director"),
	}
}

// Apply restores every fragment. The active scene must already match the
// snapshot's scene. It returns a *domain.PartialApplyError listing what could
// not be applied, or nil.
func (d *Director) Apply(s *domain.Snapshot) error {
	return d.ApplyFunc(s, nil)
}

// ApplyFunc is Apply with a per-fragment callback. Fragments are applied in
// domain.Fragments order.
func (d *Director) ApplyFunc(s *domain.Snapshot, fn FragmentFunc) error {
	var failures []domain.FragmentFailure
	for i, f := range domain.Fragments {
		failures = append(failures, d.apply(s, f)...)
		if fn != nil {
			fn(f, i+1)
		}
	}
	if len(failures) == 0 {
		return nil
	}

	perr := &domain.PartialApplyError{Failures: failures}
	d.logger.Warn("snapshot partially applied",
		"fragments", fragmentNames(perr.Fragments()),
		"failures", len(failures),
	)
	return perr
}

func (d *Director) apply(s *domain.Snapshot, f domain.Fragment) []domain.FragmentFailure {
	whole := func(err error) []domain.FragmentFailure {
		if err == nil {
			return nil
		}
		return []domain.FragmentFailure{{Fragment: f, Err: err}}
	}

	switch f {
	case domain.FragmentActor:
		if d.c.Actor == nil {
			return whole(errUnavailable)
		}
		return whole(d.c.Actor.RestoreActor(s.Actor))

	case domain.FragmentScene:
		if d.c.Scene == nil {
			return whole(errUnavailable)
		}
		if active := d.c.Scene.ActiveScene(); active != s.Scene.SceneID {
			return whole(fmt.Errorf("active scene %q, snapshot scene %q", active, s.Scene.SceneID))
		}
		return whole(d.c.Scene.RestoreSpawnPoint(s.Scene.SpawnPoint))

	case domain.FragmentCompanions:
		if len(s.Companions) == 0 {
			return nil
		}
		if d.c.Companions == nil {
			return whole(errUnavailable)
		}
		return applyKeyed(f, s.Companions, d.c.Companions.RestoreCompanion)

	case domain.FragmentInventory:
		if d.c.Inventory == nil {
			return whole(errUnavailable)
		}
		return whole(d.c.Inventory.RestoreInventory(s.Inventory))

	case domain.FragmentQuests:
		if d.c.Quests == nil {
			return whole(errUnavailable)
		}
		return whole(d.c.Quests.RestoreQuests(s.Quests))

	case domain.FragmentFlags:
		if d.c.Flags == nil {
			return whole(errUnavailable)
		}
		flags := s.Flags
		if flags == nil {
			flags = domain.FlagsFragment{}
		}
		return whole(d.c.Flags.ReplaceFlags(flags))

	case domain.FragmentAdversaries:
		if len(s.Adversaries) == 0 {
			return nil
		}
		if d.c.Adversaries == nil {
			return whole(errUnavailable)
		}
		return applyKeyed(f, s.Adversaries, d.c.Adversaries.RestoreAdversary)

	case domain.FragmentBulletins:
		if d.c.Bulletins == nil {
			return whole(errUnavailable)
		}
		return whole(d.c.Bulletins.RestoreBulletins(s.Bulletins))

	case domain.FragmentPuzzles:
		if len(s.Puzzles) == 0 {
			return nil
		}
		if d.c.Puzzles == nil {
			return whole(errUnavailable)
		}
		return applyKeyed(f, s.Puzzles, d.c.Puzzles.RestorePuzzle)
	}
	return nil
}

// applyKeyed restores every entry of a keyed fragment in key order.
func applyKeyed[V any](f domain.Fragment, entries map[string]V, restore func(string, V) error) []domain.FragmentFailure {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var failures []domain.FragmentFailure
	for _, k := range keys {
		if err := restore(k, entries[k]); err != nil {
			failures = append(failures, domain.FragmentFailure{Fragment: f, Key: k, Err: err})
		}
	}
	return failures
}

func fragmentNames(fs []domain.Fragment) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = string(f)
	}
	return out
}
