package service

import (
	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/telemetry/logger"
)

// FragmentFunc is called after each fragment is captured or applied with the
// fragment and its 1-based position in domain.Fragments.
type FragmentFunc func(f domain.Fragment, step int)

// Aggregator reads the live state of every collaborator into a Snapshot.
//
// Getters must return values the caller owns. The Aggregator never mutates
// collaborators.
type Aggregator struct {
	c      Collaborators
	logger logger.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(c Collaborators, log logger.Logger) *Aggregator {
	return &Aggregator{
		c:      c,
		logger: logger.OrDefault(log).With("component", "aggregator"),
	}
}

// Capture returns a Snapshot with every fragment populated. A missing
// collaborator yields that fragment's empty value and a warning.
func (a *Aggregator) Capture() *domain.Snapshot {
	return a.CaptureFunc(nil)
}

// CaptureFunc is Capture with a per-fragment callback. Fragments are
// captured in domain.Fragments order.
func (a *Aggregator) CaptureFunc(fn FragmentFunc) *domain.Snapshot {
	s := domain.NewSnapshot()
	for i, f := range domain.Fragments {
		if !a.capture(s, f) {
			a.logger.Warn("collaborator unavailable, capturing empty fragment", "fragment", string(f))
		}
		if fn != nil {
			fn(f, i+1)
		}
	}
	return s
}

// capture fills one fragment and reports whether its collaborator exists.
func (a *Aggregator) capture(s *domain.Snapshot, f domain.Fragment) bool {
	switch f {
	case domain.FragmentActor:
		if a.c.Actor == nil {
			return false
		}
		s.Actor = a.c.Actor.ActorState()
	case domain.FragmentScene:
		if a.c.Scene == nil {
			return false
		}
		s.Scene = domain.SceneFragment{
			SceneID:    a.c.Scene.ActiveScene(),
			SpawnPoint: a.c.Scene.SpawnPoint(),
		}
	case domain.FragmentCompanions:
		if a.c.Companions == nil {
			return false
		}
		if v := a.c.Companions.CompanionStates(); v != nil {
			s.Companions = v
		}
	case domain.FragmentInventory:
		if a.c.Inventory == nil {
			return false
		}
		v := a.c.Inventory.InventoryState()
		if v.Items == nil {
			v.Items = map[string][]string{}
		}
		if v.Quantities == nil {
			v.Quantities = map[string]int{}
		}
		s.Inventory = v
	case domain.FragmentQuests:
		if a.c.Quests == nil {
			return false
		}
		v := a.c.Quests.QuestState()
		if v.Active == nil {
			v.Active = []string{}
		}
		if v.Completed == nil {
			v.Completed = []string{}
		}
		if v.Objectives == nil {
			v.Objectives = map[string][]string{}
		}
		s.Quests = v
	case domain.FragmentFlags:
		if a.c.Flags == nil {
			return false
		}
		if v := a.c.Flags.AllFlags(); v != nil {
			s.Flags = v
		}
	case domain.FragmentAdversaries:
		if a.c.Adversaries == nil {
			return false
		}
		if v := a.c.Adversaries.AdversaryStates(); v != nil {
			s.Adversaries = v
		}
	case domain.FragmentBulletins:
		if a.c.Bulletins == nil {
			return false
		}
		v := a.c.Bulletins.BulletinState()
		if v.Read == nil {
			v.Read = []string{}
		}
		s.Bulletins = v
	case domain.FragmentPuzzles:
		if a.c.Puzzles == nil {
			return false
		}
		if v := a.c.Puzzles.PuzzleStates(); v != nil {
			s.Puzzles = v
		}
	}
	return true
}
