package codec

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yndnr/savekeep-go/internal/core/domain"
)

const (
	binaryExtension = "sav"
	checksumSize    = blake2b.Size256
	lenSize         = 4
)

var binaryMagic = []byte("SKSAVBIN")

// binaryHeader is readable without decoding the body.
type binaryHeader struct {
	Version     int    `json:"version"`
	SaveName    string `json:"save_name"`
	CreatedAt   int64  `json:"created_at"`
	GameVersion string `json:"game_version"`
	SceneID     string `json:"scene_id"`
}

// BinaryCodec is the packed slot encoding.
type BinaryCodec struct {
	marshal proto.MarshalOptions
}

// NewBinary returns a binary codec with deterministic body encoding.
func NewBinary() *BinaryCodec {
	return &BinaryCodec{marshal: proto.MarshalOptions{Deterministic: true}}
}

func (c *BinaryCodec) Format() Format    { return FormatBinary }
func (c *BinaryCodec) Extension() string { return binaryExtension }

// Encode builds the checksummed frame.
func (c *BinaryCodec) Encode(s *domain.Snapshot) ([]byte, error) {
	if s == nil {
		return nil, domain.ErrEncode.WithDetails("nil snapshot")
	}

	hdrJSON, err := json.Marshal(binaryHeader{
		Version:     s.Version,
		SaveName:    s.SaveName,
		CreatedAt:   s.CreatedAt,
		GameVersion: s.GameVersion,
		SceneID:     s.Scene.SceneID,
	})
	if err != nil {
		return nil, domain.ErrEncode.Wrap(fmt.Errorf("marshal header: %w", err))
	}

	body, err := c.marshalBody(s)
	if err != nil {
		return nil, err
	}

	return frame(hdrJSON, body), nil
}

// frame lays out magic, both length-prefixed chunks and the checksum.
func frame(hdrJSON, body []byte) []byte {
	out := make([]byte, 0, len(binaryMagic)+2*lenSize+len(hdrJSON)+len(body)+checksumSize)
	out = append(out, binaryMagic...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(hdrJSON)))
	out = append(out, hdrJSON...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(body)))
	out = append(out, body...)

	sum := blake2b.Sum256(out)
	return append(out, sum[:]...)
}

// Decode verifies the frame and rebuilds the snapshot.
func (c *BinaryCodec) Decode(data []byte) (*domain.Snapshot, error) {
	_, body, err := readFrame(data)
	if err != nil {
		return nil, err
	}

	var st structpb.Struct
	if err := proto.Unmarshal(body, &st); err != nil {
		return nil, domain.ErrDecode.Wrap(fmt.Errorf("unmarshal body: %w", err))
	}
	fields := make(map[string]json.RawMessage, len(st.GetFields()))
	for key, v := range st.GetFields() {
		text, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, domain.ErrDecode.WithDetails("body field " + key + " is not encoded json")
		}
		if !json.Valid([]byte(text.StringValue)) {
			return nil, domain.ErrDecode.WithDetails("body field " + key + " holds invalid json")
		}
		fields[key] = json.RawMessage(text.StringValue)
	}

	raw, ok := fields["version"]
	if !ok {
		return nil, domain.ErrDecode.WithDetails("missing required field version")
	}
	var version int64
	if err := json.Unmarshal(raw, &version); err != nil {
		return nil, domain.ErrDecode.WithDetails("version is not an integer")
	}
	if err := checkVersion(version); err != nil {
		return nil, err
	}
	if err := checkRequired(int(version), func(key string) fieldState {
		v, ok := fields[key]
		switch {
		case !ok:
			return fieldMissing
		case bytes.Equal(bytes.TrimSpace(v), []byte("null")):
			return fieldNull
		default:
			return fieldPresent
		}
	}); err != nil {
		return nil, err
	}

	plain, err := json.Marshal(fields)
	if err != nil {
		return nil, domain.ErrDecode.Wrap(fmt.Errorf("rebuild body: %w", err))
	}
	var s domain.Snapshot
	if err := json.Unmarshal(plain, &s); err != nil {
		return nil, domain.ErrDecode.Wrap(err)
	}
	return &s, nil
}

// marshalBody stores each top-level field as the json text of its value
// inside a protobuf Struct. The Struct keeps the body schema-free while the
// json text keeps integers exact, which a Struct number (a float64) would
// not.
func (c *BinaryCodec) marshalBody(s *domain.Snapshot) ([]byte, error) {
	plain, err := json.Marshal(withEmptyFragments(s))
	if err != nil {
		return nil, domain.ErrEncode.Wrap(fmt.Errorf("marshal snapshot: %w", err))
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(plain, &top); err != nil {
		return nil, domain.ErrEncode.Wrap(fmt.Errorf("split snapshot: %w", err))
	}
	st := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(top))}
	for key, raw := range top {
		st.Fields[key] = structpb.NewStringValue(string(raw))
	}
	body, err := c.marshal.Marshal(st)
	if err != nil {
		return nil, domain.ErrEncode.Wrap(fmt.Errorf("marshal body: %w", err))
	}
	return body, nil
}

// DecodeMetadata verifies the checksum and reads only the header.
func (c *BinaryCodec) DecodeMetadata(data []byte) (domain.SaveMetadata, error) {
	hdr, _, err := readFrame(data)
	if err != nil {
		return domain.SaveMetadata{}, err
	}
	return domain.SaveMetadata{
		Version:     hdr.Version,
		Name:        hdr.SaveName,
		CreatedAt:   hdr.CreatedAt,
		SceneID:     hdr.SceneID,
		GameVersion: hdr.GameVersion,
	}, nil
}

// readFrame validates magic, checksum, lengths and header version.
func readFrame(data []byte) (*binaryHeader, []byte, error) {
	if len(data) < len(binaryMagic)+2*lenSize+checksumSize {
		return nil, nil, domain.ErrDecode.WithDetails("frame too short")
	}
	if !bytes.HasPrefix(data, binaryMagic) {
		return nil, nil, domain.ErrDecode.WithDetails("invalid magic bytes")
	}

	payload := data[:len(data)-checksumSize]
	want := data[len(data)-checksumSize:]
	got := blake2b.Sum256(payload)
	if !bytes.Equal(got[:], want) {
		return nil, nil, domain.ErrDecode.WithDetails("checksum mismatch")
	}

	rest := payload[len(binaryMagic):]
	hdrJSON, rest, err := readChunk(rest, "header")
	if err != nil {
		return nil, nil, err
	}
	body, rest, err := readChunk(rest, "body")
	if err != nil {
		return nil, nil, err
	}
	if len(rest) != 0 {
		return nil, nil, domain.ErrDecode.WithDetails(fmt.Sprintf("%d trailing bytes", len(rest)))
	}

	var hdr binaryHeader
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return nil, nil, domain.ErrDecode.Wrap(fmt.Errorf("unmarshal header: %w", err))
	}
	if err := checkVersion(int64(hdr.Version)); err != nil {
		return nil, nil, err
	}
	return &hdr, body, nil
}

func readChunk(b []byte, what string) (chunk, rest []byte, err error) {
	if len(b) < lenSize {
		return nil, nil, domain.ErrDecode.WithDetails("truncated " + what + " length")
	}
	n := binary.BigEndian.Uint32(b[:lenSize])
	b = b[lenSize:]
	if uint64(n) > uint64(len(b)) {
		return nil, nil, domain.ErrDecode.WithDetails("truncated " + what)
	}
	return b[:n], b[n:], nil
}
