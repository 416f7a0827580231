package codec

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/yndnr/savekeep-go/internal/core/domain"
)

const jsonExtension = "json"

// JSONCodec is the default human-readable slot encoding.
type JSONCodec struct {
	indent string
}

// NewJSON returns a JSON codec that indents with two spaces.
func NewJSON() *JSONCodec {
	return &JSONCodec{indent: "  "}
}

func (c *JSONCodec) Format() Format    { return FormatJSON }
func (c *JSONCodec) Extension() string { return jsonExtension }

// Encode writes the snapshot with struct field order and sorted map keys,
// so two encodes of equal snapshots are byte-identical.
func (c *JSONCodec) Encode(s *domain.Snapshot) ([]byte, error) {
	if s == nil {
		return nil, domain.ErrEncode.WithDetails("nil snapshot")
	}
	data, err := json.MarshalIndent(withEmptyFragments(s), "", c.indent)
	if err != nil {
		return nil, domain.ErrEncode.Wrap(err)
	}
	return append(data, '\n'), nil
}

// Decode parses a snapshot. Unknown fields are ignored.
func (c *JSONCodec) Decode(data []byte) (*domain.Snapshot, error) {
	root, err := parseRoot(data)
	if err != nil {
		return nil, err
	}
	version := root.Get("version").Int()
	if err := checkRequired(int(version), gjsonLookup(root)); err != nil {
		return nil, err
	}

	var s domain.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, domain.ErrDecode.Wrap(err)
	}
	return &s, nil
}

// DecodeMetadata projects the listing fields without materializing the
// fragments.
func (c *JSONCodec) DecodeMetadata(data []byte) (domain.SaveMetadata, error) {
	root, err := parseRoot(data)
	if err != nil {
		return domain.SaveMetadata{}, err
	}
	version := root.Get("version").Int()
	if err := checkRequired(int(version), gjsonLookup(root)); err != nil {
		return domain.SaveMetadata{}, err
	}

	fields := gjson.GetManyBytes(data, "save_name", "created_at", "scene.scene_id", "game_version")
	return domain.SaveMetadata{
		Version:     int(version),
		Name:        fields[0].String(),
		CreatedAt:   fields[1].Int(),
		SceneID:     fields[2].String(),
		GameVersion: fields[3].String(),
	}, nil
}

func gjsonLookup(root gjson.Result) func(string) fieldState {
	return func(key string) fieldState {
		v := root.Get(key)
		switch {
		case !v.Exists():
			return fieldMissing
		case v.Type == gjson.Null:
			return fieldNull
		default:
			return fieldPresent
		}
	}
}

// parseRoot validates the document and its version header.
func parseRoot(data []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, domain.ErrDecode.WithDetails("invalid json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return gjson.Result{}, domain.ErrDecode.WithDetails("snapshot is not an object")
	}
	v := root.Get("version")
	if !v.Exists() {
		return gjson.Result{}, domain.ErrDecode.WithDetails("missing required field version")
	}
	if v.Type != gjson.Number {
		return gjson.Result{}, domain.ErrDecode.WithDetails("version is not a number")
	}
	if err := checkVersion(v.Int()); err != nil {
		return gjson.Result{}, err
	}
	return root, nil
}
