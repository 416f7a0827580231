package service

import "github.com/yndnr/savekeep-go/internal/core/domain"

// Actor is the player character subsystem.
type Actor interface {
	// ActorState returns name, raw health/mana values and position.
	ActorState() domain.ActorFragment

	// RestoreActor applies the fragment. Values above the actor's own
	// maximums are clamped by the implementation.
	RestoreActor(f domain.ActorFragment) error
}

// SceneController owns the active scene.
type SceneController interface {
	ActiveScene() string
	SpawnPoint() string

	// RequestTransition starts loading sceneID. The channel yields exactly one
	// value (nil on success) once the scene is active.
	RequestTransition(sceneID string) <-chan error

	// RestoreSpawnPoint records the spawn-point category of the active scene.
	RestoreSpawnPoint(spawnPoint string) error
}

// Companions is the NPC companion subsystem.
type Companions interface {
	CompanionStates() domain.CompanionFragment

	// RestoreCompanion fails when no live companion has the given id.
	RestoreCompanion(id string, state domain.CompanionState) error
}

// Inventory is the item subsystem.
type Inventory interface {
	InventoryState() domain.InventoryFragment
	RestoreInventory(f domain.InventoryFragment) error
}

// Quests is the quest log.
type Quests interface {
	QuestState() domain.QuestFragment
	RestoreQuests(f domain.QuestFragment) error
}

// Flags is the world-state flag store.
type Flags interface {
	AllFlags() domain.FlagsFragment

	// ReplaceFlags swaps the whole flag map.
	ReplaceFlags(f domain.FlagsFragment) error
}

// Adversaries is the enemy subsystem.
type Adversaries interface {
	AdversaryStates() domain.AdversaryFragment

	// RestoreAdversary fails when no live adversary has the given id.
	RestoreAdversary(id string, state domain.AdversaryState) error
}

// Bulletins is the news/bulletin board.
type Bulletins interface {
	BulletinState() domain.BulletinFragment
	RestoreBulletins(f domain.BulletinFragment) error
}

// Puzzles is the puzzle subsystem.
type Puzzles interface {
	PuzzleStates() domain.PuzzleFragment

	// RestorePuzzle fails when no live puzzle has the given id.
	RestorePuzzle(id string, state domain.PuzzleState) error
}

// Collaborators bundles the gameplay subsystems the pipeline reads from and
// writes to. A nil field means the subsystem is not available.
type Collaborators struct {
	Actor       Actor
	Scene       SceneController
	Companions  Companions
	Inventory   Inventory
	Quests      Quests
	Flags       Flags
	Adversaries Adversaries
	Bulletins   Bulletins
	Puzzles     Puzzles
}

// CollaboratorsFrom fills every field that v implements. It suits worlds
// where one object owns several subsystems.
func CollaboratorsFrom(v any) Collaborators {
	var c Collaborators
	c.Actor, _ = v.(Actor)
	c.Scene, _ = v.(SceneController)
	c.Companions, _ = v.(Companions)
	c.Inventory, _ = v.(Inventory)
	c.Quests, _ = v.(Quests)
	c.Flags, _ = v.(Flags)
	c.Adversaries, _ = v.(Adversaries)
	c.Bulletins, _ = v.(Bulletins)
	c.Puzzles, _ = v.(Puzzles)
	return c
}
