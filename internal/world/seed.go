package world

import "github.com/yndnr/savekeep-go/internal/core/domain"

// Seed returns a small demo world set in the dormitory.
func Seed() *World {
	w := New()
	w.AddScenes("Dorm", "Yard", "Library")
	w.EnterScene("Dorm", "bed")

	w.SetActor(domain.ActorFragment{
		Name:      "Ren",
		Health:    80,
		MaxHealth: 100,
		Mana:      25,
		MaxMana:   40,
		Position:  domain.Vec3{X: 1, Y: 2, Z: 0},
	})

	w.AddCompanion("mira", domain.CompanionState{
		Position:     domain.Vec3{X: 2, Y: 2, Z: 0},
		Active:       true,
		Following:    true,
		Interactable: true,
		SceneID:      "Dorm",
		Dialogues:    []string{"mira_intro"},
		Flags:        map[string]bool{"met": true},
	})
	w.AddCompanion("otto", domain.CompanionState{
		Position: domain.Vec3{X: -6, Y: 0, Z: 3},
		SceneID:  "Library",
		Flags:    map[string]bool{},
	})

	w.GiveItem("key", "dorm_key")
	w.GiveItem("consumable", "tea")
	w.GiveItem("consumable", "tea")

	w.StartQuest("exam", "find_notes")
	w.SetFlag("metMentor", true)
	w.SetFlag("doorLocked", false)

	w.AddAdversary("rat_01", domain.AdversaryState{
		Position:  domain.Vec3{X: 10, Y: 0, Z: -2},
		Active:    true,
		Health:    12,
		Archetype: "rat",
	})
	w.ReadBulletin("news_001")
	w.AddPuzzle("lockbox", domain.PuzzleState{
		Active:      true,
		State:       map[string]bool{"dial_a": true, "dial_b": false},
		SolvedSteps: []string{"find_code"},
	})
	return w
}
