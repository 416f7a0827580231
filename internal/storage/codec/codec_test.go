package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yndnr/savekeep-go/internal/core/domain"
)

func sampleSnapshot() *domain.Snapshot {
	s := domain.NewSnapshot()
	s.Stamp("Before the exam", "1.2.0", time.Date(2026, 5, 4, 18, 30, 0, 0, time.UTC))
	s.Actor = domain.ActorFragment{
		Name:      "Ren",
		Health:    80,
		MaxHealth: 120,
		Mana:      33.5,
		MaxMana:   50,
		Position:  domain.Vec3{X: 1, Y: 2, Z: 0},
	}
	s.Scene = domain.SceneFragment{SceneID: "Dorm", SpawnPoint: "door"}
	s.Companions["mira"] = domain.CompanionState{
		Position:     domain.Vec3{X: -4.25, Y: 0, Z: 7},
		Active:       true,
		Following:    true,
		Interactable: false,
		SceneID:      "Dorm",
		Dialogues:    []string{"intro", "library"},
		Flags:        map[string]bool{"trusts_player": true, "angry": false},
	}
	s.Inventory.Items["key"] = []string{"dorm_key", "lab_key"}
	s.Inventory.Items["consumable"] = []string{"tea"}
	s.Inventory.Quantities["tea"] = 3
	s.Quests = domain.QuestFragment{
		CurrentQuestID: "exam",
		Active:         []string{"exam", "lost_cat"},
		Completed:      []string{"orientation"},
		Objectives:     map[string][]string{"exam": {"study", "sleep"}},
	}
	s.Flags["metMentor"] = true
	s.Flags["doorLocked"] = false
	s.Adversaries["rat_01"] = domain.AdversaryState{
		Position:  domain.Vec3{X: 10, Y: 0.5, Z: -3},
		Active:    true,
		Health:    12.75,
		Archetype: "rat",
	}
	s.Bulletins.Read = []string{"news_001", "news_004"}
	s.Puzzles["lockbox"] = domain.PuzzleState{
		Active:      true,
		State:       map[string]bool{"dial_a": true},
		SolvedSteps: []string{"find_code"},
	}
	return s
}

// boundarySnapshot holds values at the edges of what the encodings must
// carry exactly.
func boundarySnapshot() *domain.Snapshot {
	s := sampleSnapshot()
	s.CreatedAt = math.MaxInt64
	s.Inventory.Quantities["gold"] = math.MaxInt64
	s.Inventory.Quantities["debt"] = math.MinInt64
	s.Inventory.Quantities["exact"] = 1<<53 + 1
	s.Inventory.Items["empty"] = []string{}
	s.Actor.Health = 0
	s.Actor.Mana = -0.5
	s.Actor.Position = domain.Vec3{X: -1e300, Y: math.SmallestNonzeroFloat64, Z: 0.1}
	s.Companions["ghost"] = domain.CompanionState{Dialogues: nil, Flags: nil}
	s.Companions["quiet"] = domain.CompanionState{Dialogues: []string{}, Flags: map[string]bool{}}
	s.Quests.Completed = nil
	s.Puzzles["blank"] = domain.PuzzleState{SolvedSteps: nil, State: map[string]bool{}}
	return s
}

func allCodecs() []Codec {
	return []Codec{NewJSON(), NewBinary()}
}

func TestCodec_RoundTrip(t *testing.T) {
	for _, c := range allCodecs() {
		t.Run(string(c.Format()), func(t *testing.T) {
			for name, s := range map[string]*domain.Snapshot{
				"populated": sampleSnapshot(),
				"empty":     domain.NewSnapshot(),
				"boundary":  boundarySnapshot(),
			} {
				data, err := c.Encode(s)
				if err != nil {
					t.Fatalf("%s: Encode: %v", name, err)
				}
				got, err := c.Decode(data)
				if err != nil {
					t.Fatalf("%s: Decode: %v", name, err)
				}
				if !reflect.DeepEqual(got, s) {
					t.Errorf("%s: round trip mismatch\n got: %+v\nwant: %+v", name, got, s)
				}
			}
		})
	}
}

func TestCodec_EncodeIsStable(t *testing.T) {
	for _, c := range allCodecs() {
		a, err := c.Encode(sampleSnapshot())
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		b, err := c.Encode(sampleSnapshot())
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if !bytes.Equal(a, b) {
			t.Errorf("%s: two encodes of equal snapshots differ", c.Format())
		}
	}
}

func TestJSONCodec_FieldOrder(t *testing.T) {
	data, err := NewJSON().Encode(sampleSnapshot())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	text := string(data)
	order := []string{`"version"`, `"save_name"`, `"created_at"`, `"game_version"`,
		`"actor"`, `"scene"`, `"companions"`, `"inventory"`, `"quests"`,
		`"flags"`, `"adversaries"`, `"bulletins"`, `"puzzles"`}
	last := -1
	for _, key := range order {
		i := strings.Index(text, key)
		if i < 0 {
			t.Fatalf("missing key %s", key)
		}
		if i < last {
			t.Errorf("key %s out of order", key)
		}
		last = i
	}
}

func TestJSONCodec_IgnoresUnknownFields(t *testing.T) {
	data, _ := NewJSON().Encode(sampleSnapshot())

	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		t.Fatal(err)
	}
	tree["weather"] = map[string]any{"rain": true}
	tree["actor"].(map[string]any)["title"] = "prefect"
	patched, _ := json.Marshal(tree)

	got, err := NewJSON().Decode(patched)
	if err != nil {
		t.Fatalf("Decode with unknown fields: %v", err)
	}
	if got.Actor.Name != "Ren" || !got.Flags["metMentor"] {
		t.Errorf("decoded snapshot lost data: %+v", got)
	}
}

func TestJSONCodec_MissingRequiredFieldFailsClosed(t *testing.T) {
	for _, field := range []string{"flags", "puzzles", "actor", "save_name"} {
		t.Run(field, func(t *testing.T) {
			data, _ := NewJSON().Encode(sampleSnapshot())
			var tree map[string]any
			_ = json.Unmarshal(data, &tree)
			delete(tree, field)
			patched, _ := json.Marshal(tree)

			_, err := NewJSON().Decode(patched)
			if !errors.Is(err, domain.ErrDecode) {
				t.Fatalf("Decode err = %v, want ErrDecode", err)
			}
			if !strings.Contains(err.Error(), field) {
				t.Errorf("error %q should name the missing field", err)
			}
		})
	}
}

func TestCodec_NewerVersionRejected(t *testing.T) {
	for _, c := range allCodecs() {
		s := sampleSnapshot()
		s.Version = domain.CurrentFormatVersion + 1
		data, err := c.Encode(s)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if _, err := c.Decode(data); !errors.Is(err, domain.ErrUnsupportedVersion) {
			t.Errorf("%s: Decode err = %v, want ErrUnsupportedVersion", c.Format(), err)
		}
		if _, err := c.DecodeMetadata(data); !errors.Is(err, domain.ErrUnsupportedVersion) {
			t.Errorf("%s: DecodeMetadata err = %v, want ErrUnsupportedVersion", c.Format(), err)
		}
	}
}

func TestCodec_MalformedInput(t *testing.T) {
	inputs := map[string][]byte{
		"empty":       {},
		"garbage":     []byte("\x00\x01not a save"),
		"truncated":   []byte(`{"version": 1, "save_name": "x"`),
		"array":       []byte(`[1,2,3]`),
		"no version":  []byte(`{"save_name": "x"}`),
		"zero":        []byte(`{"version": 0}`),
		"str version": []byte(`{"version": "1"}`),
	}
	for name, in := range inputs {
		for _, c := range allCodecs() {
			if _, err := c.Decode(in); !errors.Is(err, domain.ErrDecode) {
				t.Errorf("%s/%s: Decode err = %v, want ErrDecode", c.Format(), name, err)
			}
		}
	}
}

func TestBinaryCodec_DetectsCorruption(t *testing.T) {
	data, err := NewBinary().Encode(sampleSnapshot())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	flipped := bytes.Clone(data)
	flipped[len(binaryMagic)+10] ^= 0xFF
	if _, err := NewBinary().Decode(flipped); !errors.Is(err, domain.ErrDecode) {
		t.Errorf("flipped body: err = %v, want ErrDecode", err)
	}

	if _, err := NewBinary().Decode(data[:len(data)-1]); !errors.Is(err, domain.ErrDecode) {
		t.Errorf("truncated: err = %v, want ErrDecode", err)
	}
}

func TestCodec_DecodeMetadata(t *testing.T) {
	for _, c := range allCodecs() {
		s := sampleSnapshot()
		data, _ := c.Encode(s)

		md, err := c.DecodeMetadata(data)
		if err != nil {
			t.Fatalf("%s: DecodeMetadata: %v", c.Format(), err)
		}
		if md != s.Metadata() {
			t.Errorf("%s: metadata = %+v, want %+v", c.Format(), md, s.Metadata())
		}
	}
}

func TestDetect(t *testing.T) {
	for _, c := range allCodecs() {
		data, _ := c.Encode(sampleSnapshot())
		got, err := Detect(data)
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
		if got.Format() != c.Format() {
			t.Errorf("Detect = %s, want %s", got.Format(), c.Format())
		}
	}
	if _, err := Detect([]byte("PK\x03\x04")); !errors.Is(err, domain.ErrDecode) {
		t.Errorf("Detect(zip) err = %v, want ErrDecode", err)
	}
}

func TestParseFormatAndExtensions(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"json", FormatJSON, false},
		{" Binary ", FormatBinary, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = (%q, %v)", tt.in, got, err)
		}
	}

	if c, ok := ForExtension(".sav"); !ok || c.Format() != FormatBinary {
		t.Error("ForExtension(.sav) should be the binary codec")
	}
	if _, ok := ForExtension("tmp"); ok {
		t.Error("tmp is not a slot extension")
	}
	if got := Extensions(); !reflect.DeepEqual(got, []string{"json", "sav"}) {
		t.Errorf("Extensions() = %v", got)
	}
}

func TestCodec_NilFragmentsEncodeAsEmpty(t *testing.T) {
	for _, c := range allCodecs() {
		s := sampleSnapshot()
		s.Flags = nil
		s.Puzzles = nil

		data, err := c.Encode(s)
		if err != nil {
			t.Fatalf("%s: Encode: %v", c.Format(), err)
		}
		got, err := c.Decode(data)
		if err != nil {
			t.Fatalf("%s: Decode: %v", c.Format(), err)
		}
		if got.Flags == nil || len(got.Flags) != 0 || got.Puzzles == nil {
			t.Errorf("%s: nil fragments should decode as empty, got flags=%v puzzles=%v",
				c.Format(), got.Flags, got.Puzzles)
		}
		if s.Flags != nil {
			t.Errorf("%s: Encode must not modify its argument", c.Format())
		}
	}
}

// jsonFields returns the top-level fields of the json encoding of s.
func jsonFields(t *testing.T, s *domain.Snapshot) map[string]json.RawMessage {
	t.Helper()
	data, err := NewJSON().Encode(s)
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	return fields
}

// binaryFrom frames fields the way BinaryCodec stores a body.
func binaryFrom(t *testing.T, fields map[string]json.RawMessage) []byte {
	t.Helper()
	st := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	for k, v := range fields {
		st.Fields[k] = structpb.NewStringValue(string(v))
	}
	body, err := proto.Marshal(st)
	if err != nil {
		t.Fatal(err)
	}
	return frame([]byte(`{"version":1}`), body)
}

func TestCodec_NullFragmentFailsClosed(t *testing.T) {
	keys := []string{"actor", "scene", "companions", "inventory", "quests",
		"flags", "adversaries", "bulletins", "puzzles", "save_name"}
	for _, key := range keys {
		t.Run(key, func(t *testing.T) {
			fields := jsonFields(t, sampleSnapshot())
			fields[key] = json.RawMessage("null")

			text, _ := json.Marshal(fields)
			inputs := map[Codec][]byte{
				NewJSON():   text,
				NewBinary(): binaryFrom(t, fields),
			}
			for c, data := range inputs {
				_, err := c.Decode(data)
				if !errors.Is(err, domain.ErrDecode) {
					t.Fatalf("%s: Decode err = %v, want ErrDecode", c.Format(), err)
				}
				if !strings.Contains(err.Error(), key) {
					t.Errorf("%s: error %q should name the field", c.Format(), err)
				}
			}
		})
	}

	fields := jsonFields(t, sampleSnapshot())
	text, _ := json.Marshal(fields)
	if _, err := NewJSON().DecodeMetadata(text); err != nil {
		t.Fatalf("DecodeMetadata of a valid document: %v", err)
	}
	fields["flags"] = json.RawMessage("null")
	text, _ = json.Marshal(fields)
	if _, err := NewJSON().DecodeMetadata(text); !errors.Is(err, domain.ErrDecode) {
		t.Errorf("DecodeMetadata err = %v, want ErrDecode", err)
	}
}

func TestBinaryCodec_RejectsNonTextBodyField(t *testing.T) {
	fields := jsonFields(t, sampleSnapshot())
	data := binaryFrom(t, fields)
	if _, err := NewBinary().Decode(data); err != nil {
		t.Fatalf("Decode of a well-formed body: %v", err)
	}

	st := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	for k, v := range fields {
		st.Fields[k] = structpb.NewStringValue(string(v))
	}
	st.Fields["version"] = structpb.NewNumberValue(1)
	body, _ := proto.Marshal(st)
	if _, err := NewBinary().Decode(frame([]byte(`{"version":1}`), body)); !errors.Is(err, domain.ErrDecode) {
		t.Errorf("numeric body field: err = %v, want ErrDecode", err)
	}
}
