package domain

import "time"

// CurrentFormatVersion is the newest snapshot format this build reads and writes.
const CurrentFormatVersion = 1

// Fragment names one subsystem-owned portion of a Snapshot.
type Fragment string

const (
	FragmentActor       Fragment = "actor"
	FragmentScene       Fragment = "scene"
	FragmentCompanions  Fragment = "companions"
	FragmentInventory   Fragment = "inventory"
	FragmentQuests      Fragment = "quests"
	FragmentFlags       Fragment = "flags"
	FragmentAdversaries Fragment = "adversaries"
	FragmentBulletins   Fragment = "bulletins"
	FragmentPuzzles     Fragment = "puzzles"
)

// Fragments lists every fragment in capture (and apply) order.
// The order is stable so that captures diff cleanly between runs.
var Fragments = []Fragment{
	FragmentActor,
	FragmentScene,
	FragmentCompanions,
	FragmentInventory,
	FragmentQuests,
	FragmentFlags,
	FragmentAdversaries,
	FragmentBulletins,
	FragmentPuzzles,
}

// Snapshot is the full persisted game state of one slot.
//
// Field order is the on-disk field order of the text format.
type Snapshot struct {
	Version     int    `json:"version"`
	SaveName    string `json:"save_name"`
	CreatedAt   int64  `json:"created_at"` // Unix milliseconds
	GameVersion string `json:"game_version"`

	Actor       ActorFragment     `json:"actor"`
	Scene       SceneFragment     `json:"scene"`
	Companions  CompanionFragment `json:"companions"`
	Inventory   InventoryFragment `json:"inventory"`
	Quests      QuestFragment     `json:"quests"`
	Flags       FlagsFragment     `json:"flags"`
	Adversaries AdversaryFragment `json:"adversaries"`
	Bulletins   BulletinFragment  `json:"bulletins"`
	Puzzles     PuzzleFragment    `json:"puzzles"`
}

// Stamp sets the header fields written at save time.
func (s *Snapshot) Stamp(name, gameVersion string, at time.Time) {
	s.Version = CurrentFormatVersion
	s.SaveName = name
	s.CreatedAt = at.UnixMilli()
	s.GameVersion = gameVersion
}

// Metadata returns the listing projection of the snapshot.
func (s *Snapshot) Metadata() SaveMetadata {
	return SaveMetadata{
		Version:     s.Version,
		Name:        s.SaveName,
		CreatedAt:   s.CreatedAt,
		SceneID:     s.Scene.SceneID,
		GameVersion: s.GameVersion,
	}
}

// Vec3 is a world-space position.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ActorFragment is the player character state.
//
// Health and Mana are absolute values, never percentages. The Max fields are
// recorded for display only; restore writes the current values and leaves
// clamping to the owning subsystem.
type ActorFragment struct {
	Name      string  `json:"name"`
	Health    float64 `json:"health"`
	MaxHealth float64 `json:"max_health"`
	Mana      float64 `json:"mana"`
	MaxMana   float64 `json:"max_mana"`
	Position  Vec3    `json:"position"`
}

// SceneFragment records where the actor is.
type SceneFragment struct {
	SceneID    string `json:"scene_id"`
	SpawnPoint string `json:"spawn_point"`
}

// CompanionState is the persisted state of one companion NPC.
type CompanionState struct {
	Position     Vec3            `json:"position"`
	Active       bool            `json:"active"`
	Following    bool            `json:"following"`
	Interactable bool            `json:"interactable"`
	SceneID      string          `json:"scene_id"`
	Dialogues    []string        `json:"dialogues"`
	Flags        map[string]bool `json:"flags"`
}

// CompanionFragment maps companion id to its state.
type CompanionFragment map[string]CompanionState

// InventoryFragment holds item ids by category and stack quantities by item id.
type InventoryFragment struct {
	Items      map[string][]string `json:"items"`
	Quantities map[string]int      `json:"quantities"`
}

// QuestFragment is the quest log.
type QuestFragment struct {
	CurrentQuestID string              `json:"current_quest_id"`
	Active         []string            `json:"active"`
	Completed      []string            `json:"completed"`
	Objectives     map[string][]string `json:"objectives"`
}

// FlagsFragment holds arbitrary world-state flags.
type FlagsFragment map[string]bool

// AdversaryState is the persisted state of one enemy.
type AdversaryState struct {
	Position  Vec3    `json:"position"`
	Active    bool    `json:"active"`
	Defeated  bool    `json:"defeated"`
	Health    float64 `json:"health"`
	Archetype string  `json:"archetype"`
}

// AdversaryFragment maps adversary id to its state.
type AdversaryFragment map[string]AdversaryState

// BulletinFragment lists the bulletin items the player has read.
type BulletinFragment struct {
	Read []string `json:"read"`
}

// PuzzleState is the persisted state of one puzzle.
type PuzzleState struct {
	Completed   bool            `json:"completed"`
	Active      bool            `json:"active"`
	State       map[string]bool `json:"state"`
	SolvedSteps []string        `json:"solved_steps"`
}

// PuzzleFragment maps puzzle id to its state.
type PuzzleFragment map[string]PuzzleState

// NewSnapshot returns a Snapshot whose collection fields are empty but non-nil,
// so every fragment is present when encoded.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Version:     CurrentFormatVersion,
		Companions:  CompanionFragment{},
		Inventory:   InventoryFragment{Items: map[string][]string{}, Quantities: map[string]int{}},
		Quests:      QuestFragment{Active: []string{}, Completed: []string{}, Objectives: map[string][]string{}},
		Flags:       FlagsFragment{},
		Adversaries: AdversaryFragment{},
		Bulletins:   BulletinFragment{Read: []string{}},
		Puzzles:     PuzzleFragment{},
	}
}
