package domain

import "time"

// CorruptedSaveName is the listing name of a slot whose file cannot be decoded.
const CorruptedSaveName = "corrupted"

// SaveMetadata is the listing projection of a Snapshot.
//
// It is always read from the slot file itself and never stored separately.
type SaveMetadata struct {
	Version     int    `json:"version"`
	Name        string `json:"name"`
	CreatedAt   int64  `json:"created_at"`
	SceneID     string `json:"scene_id"`
	GameVersion string `json:"game_version"`
	Corrupted   bool   `json:"corrupted"`
}

// CorruptedMetadata is the sentinel reported for undecodable slots.
func CorruptedMetadata() SaveMetadata {
	return SaveMetadata{Name: CorruptedSaveName, CreatedAt: 0, Corrupted: true}
}

// Time returns the creation time.
func (m SaveMetadata) Time() time.Time {
	return time.UnixMilli(m.CreatedAt).UTC()
}
