package codec

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/yndnr/savekeep-go/internal/core/domain"
)

// Format selects a slot encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatBinary Format = "binary"
)

// Codec encodes and decodes snapshots.
type Codec interface {
	// Format returns the format this codec implements.
	Format() Format

	// Extension returns the slot file extension without the dot.
	Extension() string

	// Encode serializes a snapshot. Failures match domain.ErrEncode.
	Encode(s *domain.Snapshot) ([]byte, error)

	// Decode parses a snapshot. Failures match domain.ErrDecode or
	// domain.ErrUnsupportedVersion.
	Decode(data []byte) (*domain.Snapshot, error)

	// DecodeMetadata reads only the listing projection.
	DecodeMetadata(data []byte) (domain.SaveMetadata, error)
}

// ParseFormat parses a configured format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatBinary:
		return FormatBinary, nil
	default:
		return "", fmt.Errorf("codec: unknown format %q", s)
	}
}

// New returns the codec for a format.
func New(f Format) (Codec, error) {
	switch f {
	case FormatJSON, "":
		return NewJSON(), nil
	case FormatBinary:
		return NewBinary(), nil
	default:
		return nil, fmt.Errorf("codec: unknown format %q", f)
	}
}

// MustNew is New for formats known at compile time.
func MustNew(f Format) Codec {
	c, err := New(f)
	if err != nil {
		panic(err)
	}
	return c
}

var byExtension = map[string]Codec{
	jsonExtension:   NewJSON(),
	binaryExtension: NewBinary(),
}

// ForExtension returns the codec owning a slot file extension.
func ForExtension(ext string) (Codec, bool) {
	c, ok := byExtension[strings.TrimPrefix(ext, ".")]
	return c, ok
}

// Extensions lists every known slot file extension, sorted.
func Extensions() []string {
	out := make([]string, 0, len(byExtension))
	for ext := range byExtension {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Detect picks a codec by sniffing the leading bytes.
func Detect(data []byte) (Codec, error) {
	if bytes.HasPrefix(data, binaryMagic) {
		return byExtension[binaryExtension], nil
	}
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return byExtension[jsonExtension], nil
	}
	return nil, domain.ErrDecode.WithDetails("unrecognized slot format")
}
