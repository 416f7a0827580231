package world

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/yndnr/savekeep-go/internal/core/domain"
)

// World holds mutable game state behind a single mutex.
type World struct {
	mu sync.Mutex

	actor domain.ActorFragment

	scene           string
	spawnPoint      string
	knownScenes     map[string]bool
	failingScenes   map[string]error
	transitionDelay time.Duration
	transitions     []string

	companions  map[string]domain.CompanionState
	inventory   domain.InventoryFragment
	quests      domain.QuestFragment
	flags       map[string]bool
	adversaries map[string]domain.AdversaryState
	bulletins   []string
	puzzles     map[string]domain.PuzzleState
}

// New returns an empty world with no active scene.
func New() *World {
	return &World{
		knownScenes:   make(map[string]bool),
		failingScenes: make(map[string]error),
		companions:    make(map[string]domain.CompanionState),
		inventory: domain.InventoryFragment{
			Items:      make(map[string][]string),
			Quantities: make(map[string]int),
		},
		quests: domain.QuestFragment{
			Active:     []string{},
			Completed:  []string{},
			Objectives: make(map[string][]string),
		},
		flags:       make(map[string]bool),
		adversaries: make(map[string]domain.AdversaryState),
		bulletins:   []string{},
		puzzles:     make(map[string]domain.PuzzleState),
	}
}

// ============================================================================
// Test and demo controls
// ============================================================================

// SetActor replaces the actor state, including its maximums.
func (w *World) SetActor(a domain.ActorFragment) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.actor = a
}

// AddScenes registers scenes that transitions may target. With no scenes
// registered every transition succeeds.
func (w *World) AddScenes(ids ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range ids {
		w.knownScenes[id] = true
	}
}

// EnterScene switches scenes immediately, without a transition.
func (w *World) EnterScene(id, spawnPoint string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.scene = id
	w.spawnPoint = spawnPoint
}

// FailTransitionsTo makes transitions to id fail with err.
func (w *World) FailTransitionsTo(id string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failingScenes[id] = err
}

// SetTransitionDelay simulates scene loading time.
func (w *World) SetTransitionDelay(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.transitionDelay = d
}

// Transitions returns every scene requested so far, in order.
func (w *World) Transitions() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.transitions)
}

// SetFlag sets one world flag.
func (w *World) SetFlag(name string, v bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flags[name] = v
}

// AddCompanion registers a live companion.
func (w *World) AddCompanion(id string, s domain.CompanionState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.companions[id] = cloneCompanion(s)
}

// RemoveCompanion drops a companion, as when content changes between
// releases.
func (w *World) RemoveCompanion(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.companions, id)
}

// AddAdversary registers a live adversary.
func (w *World) AddAdversary(id string, s domain.AdversaryState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.adversaries[id] = s
}

// AddPuzzle registers a live puzzle.
func (w *World) AddPuzzle(id string, s domain.PuzzleState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.puzzles[id] = clonePuzzle(s)
}

// GiveItem adds an item to a category and bumps its quantity.
func (w *World) GiveItem(category, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !slices.Contains(w.inventory.Items[category], id) {
		w.inventory.Items[category] = append(w.inventory.Items[category], id)
	}
	w.inventory.Quantities[id]++
}

// StartQuest makes id the current quest.
func (w *World) StartQuest(id string, objectivesDone ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quests.CurrentQuestID = id
	if !slices.Contains(w.quests.Active, id) {
		w.quests.Active = append(w.quests.Active, id)
	}
	if len(objectivesDone) > 0 {
		w.quests.Objectives[id] = slices.Clone(objectivesDone)
	}
}

// ReadBulletin marks a bulletin item as read.
func (w *World) ReadBulletin(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !slices.Contains(w.bulletins, id) {
		w.bulletins = append(w.bulletins, id)
	}
}

// ============================================================================
// Actor
// ============================================================================

func (w *World) ActorState() domain.ActorFragment {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.actor
}

// RestoreActor applies name, position and raw health/mana. Values are
// clamped to [0, max] using the live maximums; saved maximums are ignored.
func (w *World) RestoreActor(f domain.ActorFragment) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.actor.Name = f.Name
	w.actor.Position = f.Position
	w.actor.Health = clamp(f.Health, w.actor.MaxHealth)
	w.actor.Mana = clamp(f.Mana, w.actor.MaxMana)
	return nil
}

func clamp(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// ============================================================================
// Scene
// ============================================================================

func (w *World) ActiveScene() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scene
}

func (w *World) SpawnPoint() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.spawnPoint
}

// RequestTransition loads sceneID on a separate goroutine.
func (w *World) RequestTransition(sceneID string) <-chan error {
	w.mu.Lock()
	w.transitions = append(w.transitions, sceneID)
	delay := w.transitionDelay
	failErr := w.failingScenes[sceneID]
	if failErr == nil && len(w.knownScenes) > 0 && !w.knownScenes[sceneID] {
		failErr = fmt.Errorf("unknown scene %q", sceneID)
	}
	w.mu.Unlock()

	ch := make(chan error, 1)
	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		if failErr != nil {
			ch <- failErr
			return
		}
		w.mu.Lock()
		w.scene = sceneID
		w.mu.Unlock()
		ch <- nil
	}()
	return ch
}

func (w *World) RestoreSpawnPoint(spawnPoint string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.spawnPoint = spawnPoint
	return nil
}

// ============================================================================
// Companions
// ============================================================================

func (w *World) CompanionStates() domain.CompanionFragment {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(domain.CompanionFragment, len(w.companions))
	for id, s := range w.companions {
		out[id] = cloneCompanion(s)
	}
	return out
}

func (w *World) RestoreCompanion(id string, s domain.CompanionState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.companions[id]; !ok {
		return fmt.Errorf("no live companion %q", id)
	}
	w.companions[id] = cloneCompanion(s)
	return nil
}

func cloneCompanion(s domain.CompanionState) domain.CompanionState {
	s.Dialogues = slices.Clone(s.Dialogues)
	s.Flags = maps.Clone(s.Flags)
	return s
}

// ============================================================================
// Inventory, quests, flags, bulletins
// ============================================================================

func (w *World) InventoryState() domain.InventoryFragment {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneInventory(w.inventory)
}

func (w *World) RestoreInventory(f domain.InventoryFragment) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inventory = cloneInventory(f)
	if w.inventory.Items == nil {
		w.inventory.Items = make(map[string][]string)
	}
	if w.inventory.Quantities == nil {
		w.inventory.Quantities = make(map[string]int)
	}
	return nil
}

func cloneInventory(f domain.InventoryFragment) domain.InventoryFragment {
	items := make(map[string][]string, len(f.Items))
	for k, v := range f.Items {
		items[k] = slices.Clone(v)
	}
	return domain.InventoryFragment{Items: items, Quantities: maps.Clone(f.Quantities)}
}

func (w *World) QuestState() domain.QuestFragment {
	w.mu.Lock()
	defer w.mu.Unlock()
	return cloneQuests(w.quests)
}

func (w *World) RestoreQuests(f domain.QuestFragment) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quests = cloneQuests(f)
	return nil
}

func cloneQuests(f domain.QuestFragment) domain.QuestFragment {
	obj := make(map[string][]string, len(f.Objectives))
	for k, v := range f.Objectives {
		obj[k] = slices.Clone(v)
	}
	active := slices.Clone(f.Active)
	if active == nil {
		active = []string{}
	}
	completed := slices.Clone(f.Completed)
	if completed == nil {
		completed = []string{}
	}
	return domain.QuestFragment{
		CurrentQuestID: f.CurrentQuestID,
		Active:         active,
		Completed:      completed,
		Objectives:     obj,
	}
}

func (w *World) AllFlags() domain.FlagsFragment {
	w.mu.Lock()
	defer w.mu.Unlock()
	return domain.FlagsFragment(maps.Clone(w.flags))
}

func (w *World) ReplaceFlags(f domain.FlagsFragment) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flags = maps.Clone(map[string]bool(f))
	if w.flags == nil {
		w.flags = make(map[string]bool)
	}
	return nil
}

func (w *World) BulletinState() domain.BulletinFragment {
	w.mu.Lock()
	defer w.mu.Unlock()
	return domain.BulletinFragment{Read: slices.Clone(w.bulletins)}
}

func (w *World) RestoreBulletins(f domain.BulletinFragment) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bulletins = slices.Clone(f.Read)
	if w.bulletins == nil {
		w.bulletins = []string{}
	}
	return nil
}

// ============================================================================
// Adversaries and puzzles
// ============================================================================

func (w *World) AdversaryStates() domain.AdversaryFragment {
	w.mu.Lock()
	defer w.mu.Unlock()
	return domain.AdversaryFragment(maps.Clone(w.adversaries))
}

func (w *World) RestoreAdversary(id string, s domain.AdversaryState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.adversaries[id]; !ok {
		return fmt.Errorf("no live adversary %q", id)
	}
	w.adversaries[id] = s
	return nil
}

func (w *World) PuzzleStates() domain.PuzzleFragment {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(domain.PuzzleFragment, len(w.puzzles))
	for id, s := range w.puzzles {
		out[id] = clonePuzzle(s)
	}
	return out
}

func (w *World) RestorePuzzle(id string, s domain.PuzzleState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.puzzles[id]; !ok {
		return fmt.Errorf("no live puzzle %q", id)
	}
	w.puzzles[id] = clonePuzzle(s)
	return nil
}

func clonePuzzle(s domain.PuzzleState) domain.PuzzleState {
	s.State = maps.Clone(s.State)
	s.SolvedSteps = slices.Clone(s.SolvedSteps)
	return s
}
