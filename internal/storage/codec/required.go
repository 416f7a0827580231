package codec

import (
	"fmt"

	"github.com/yndnr/savekeep-go/internal/core/domain"
)

// requiredFields lists the top-level keys each format version must carry.
var requiredFields = map[int][]string{
	1: {
		"version",
		"save_name",
		"created_at",
		"game_version",
		string(domain.FragmentActor),
		string(domain.FragmentScene),
		string(domain.FragmentCompanions),
		string(domain.FragmentInventory),
		string(domain.FragmentQuests),
		string(domain.FragmentFlags),
		string(domain.FragmentAdversaries),
		string(domain.FragmentBulletins),
		string(domain.FragmentPuzzles),
	},
}

// checkVersion accepts versions in [1, CurrentFormatVersion].
func checkVersion(v int64) error {
	if v > domain.CurrentFormatVersion {
		return domain.ErrUnsupportedVersion.WithDetails(
			fmt.Sprintf("format version %d, newest supported %d", v, domain.CurrentFormatVersion))
	}
	if v < 1 {
		return domain.ErrDecode.WithDetails(fmt.Sprintf("invalid format version %d", v))
	}
	return nil
}

// fieldState is what a decoder found under a required key.
type fieldState int

const (
	fieldMissing fieldState = iota
	fieldNull
	fieldPresent
)

// checkRequired fails on the first required key that is absent or null. A
// null fragment would apply as "clear everything", so it is treated like a
// missing one.
func checkRequired(version int, lookup func(key string) fieldState) error {
	for _, key := range requiredFields[version] {
		switch lookup(key) {
		case fieldMissing:
			return domain.ErrDecode.WithDetails("missing required field " + key)
		case fieldNull:
			return domain.ErrDecode.WithDetails("required field " + key + " is null")
		}
	}
	return nil
}

// withEmptyFragments returns s, or a shallow copy of it whose nil map
// fragments are replaced by empty ones, so an encoded snapshot never
// carries a null fragment.
func withEmptyFragments(s *domain.Snapshot) *domain.Snapshot {
	if s.Companions != nil && s.Flags != nil && s.Adversaries != nil && s.Puzzles != nil {
		return s
	}
	c := *s
	if c.Companions == nil {
		c.Companions = domain.CompanionFragment{}
	}
	if c.Flags == nil {
		c.Flags = domain.FlagsFragment{}
	}
	if c.Adversaries == nil {
		c.Adversaries = domain.AdversaryFragment{}
	}
	if c.Puzzles == nil {
		c.Puzzles = domain.PuzzleFragment{}
	}
	return &c
}
