package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DomainError is a pipeline error with a stable code.
//
// Codes have the form SK-<AREA>-<NNNN>. Two DomainErrors match under
// errors.Is when their codes are equal, so copies made with WithDetails or
// WithCause still match the sentinel they came from.
type DomainError struct {
	Code    string // Error code (e.g., "SK-SLOT-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true // Only check if it's a DomainError
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

var (
	// ErrSlotNotFound indicates no file exists for the slot index.
	ErrSlotNotFound = NewDomainError("SK-SLOT-4040", "save slot not found")

	// ErrSlotBusy indicates a save or load for the slot is already in flight.
	ErrSlotBusy = NewDomainError("SK-SLOT-4090", "save slot busy")

	// ErrInvalidSlot indicates a negative or otherwise unusable slot index.
	ErrInvalidSlot = NewDomainError("SK-SLOT-4000", "invalid save slot")
)

var (
	// ErrDecode indicates malformed slot data or a missing required field.
	ErrDecode = NewDomainError("SK-CODEC-4000", "snapshot decode failed")

	// ErrUnsupportedVersion indicates the slot was written by a newer format.
	ErrUnsupportedVersion = NewDomainError("SK-CODEC-4001", "unsupported snapshot version")

	// ErrEncode indicates the snapshot could not be serialized.
	ErrEncode = NewDomainError("SK-CODEC-5000", "snapshot encode failed")
)

var (
	// ErrIO indicates a directory or file system failure.
	ErrIO = NewDomainError("SK-IO-5000", "save storage failure")

	// ErrSceneTransition indicates the target scene failed to load during restore.
	ErrSceneTransition = NewDomainError("SK-SCENE-5020", "scene transition failed")

	// ErrPartialApply matches any *PartialApplyError.
	ErrPartialApply = NewDomainError("SK-RESTORE-2060", "snapshot partially applied")
)

// FragmentFailure describes one fragment (or one keyed entry of a fragment)
// that could not be written back into its subsystem.
type FragmentFailure struct {
	Fragment Fragment `json:"fragment"`
	Key      string   `json:"key,omitempty"`
	Err      error    `json:"-"`
}

func (f FragmentFailure) String() string {
	var b strings.Builder
	b.WriteString(string(f.Fragment))
	if f.Key != "" {
		b.WriteString("[" + f.Key + "]")
	}
	if f.Err != nil {
		b.WriteString(": " + f.Err.Error())
	}
	return b.String()
}

// PartialApplyError reports the fragments a restore could not apply.
// The remaining fragments were applied.
type PartialApplyError struct {
	Failures []FragmentFailure
}

func (e *PartialApplyError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.String())
	}
	return fmt.Sprintf("[%s] %s: %s", ErrPartialApply.Code, ErrPartialApply.Message, strings.Join(parts, "; "))
}

// Is matches ErrPartialApply.
func (e *PartialApplyError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == ErrPartialApply.Code
}

// Fragments returns the distinct fragments that failed, in failure order.
func (e *PartialApplyError) Fragments() []Fragment {
	seen := make(map[Fragment]struct{}, len(e.Failures))
	out := make([]Fragment, 0, len(e.Failures))
	for _, f := range e.Failures {
		if _, ok := seen[f.Fragment]; ok {
			continue
		}
		seen[f.Fragment] = struct{}{}
		out = append(out, f.Fragment)
	}
	return out
}

// Warnings renders each failure as a human-readable line.
func (e *PartialApplyError) Warnings() []string {
	out := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.String())
	}
	return out
}

// UserMessage maps an error to the message shown by save/load UI.
// Missing, corrupted and unwritable saves stay distinguishable.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotNotFound):
		return "no such save"
	case errors.Is(err, ErrDecode), errors.Is(err, ErrUnsupportedVersion):
		return "save is corrupted"
	case errors.Is(err, ErrEncode), errors.Is(err, ErrIO):
		return "save failed to write"
	case errors.Is(err, ErrSlotBusy):
		return "save slot is busy"
	case errors.Is(err, ErrSceneTransition):
		return "scene failed to load"
	case errors.Is(err, ErrPartialApply):
		return "save loaded with warnings"
	case errors.Is(err, ErrInvalidSlot):
		return "invalid save slot"
	default:
		return "unexpected error"
	}
}
