// Package autosave triggers rate-limited background saves to a dedicated
// slot.
package autosave
