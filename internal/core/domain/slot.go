package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const slotFilePrefix = "save_"

// SlotIndex addresses one save slot. Valid indexes are non-negative.
type SlotIndex int

// Validate rejects negative indexes.
func (s SlotIndex) Validate() error {
	if s < 0 {
		return ErrInvalidSlot.WithDetails(fmt.Sprintf("slot %d", s))
	}
	return nil
}

// FileName returns the slot file name for the given extension, e.g. save_3.json.
func (s SlotIndex) FileName(ext string) string {
	return slotFilePrefix + strconv.Itoa(int(s)) + "." + ext
}

// ParseSlotFileName splits a slot file name into index and extension.
// Padded indexes such as save_01.json are not slot files.
func ParseSlotFileName(name string) (SlotIndex, string, bool) {
	rest, ok := strings.CutPrefix(name, slotFilePrefix)
	if !ok {
		return 0, "", false
	}
	digits, ext, ok := strings.Cut(rest, ".")
	if !ok || digits == "" || ext == "" || strings.Contains(ext, ".") {
		return 0, "", false
	}
	if len(digits) > 1 && digits[0] == '0' {
		return 0, "", false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, "", false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, "", false
	}
	return SlotIndex(n), ext, true
}
