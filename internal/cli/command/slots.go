package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/savekeep-go/internal/cli/output"
	"github.com/yndnr/savekeep-go/internal/core/domain"
	"github.com/yndnr/savekeep-go/internal/storage/codec"
	"github.com/yndnr/savekeep-go/internal/storage/slot"
)

// SlotsCommand returns the slots subcommand group.
func SlotsCommand() *cli.Command {
	return &cli.Command{
		Name:    "slots",
		Aliases: []string{"slot"},
		Usage:   "Save slot commands",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List save slots",
				Action:  slotsList,
			},
			{
				Name:      "inspect",
				Usage:     "Show the full contents of a slot",
				ArgsUsage: "SLOT",
				Action:    slotsInspect,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a slot",
				ArgsUsage: "SLOT",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Do not fail when the slot does not exist",
					},
				},
				Action: slotsDelete,
			},
			{
				Name:      "convert",
				Usage:     "Rewrite a slot in another file format",
				ArgsUsage: "SLOT",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "to",
						Usage:    "Target format: json, binary",
						Required: true,
					},
				},
				Action: slotsConvert,
			},
			{
				Name:   "clean",
				Usage:  "Remove temporary files left by interrupted writes",
				Action: slotsClean,
			},
		},
	}
}

type slotRow struct {
	Slot        int    `json:"slot" yaml:"slot"`
	Name        string `json:"name" yaml:"name"`
	Scene       string `json:"scene_id" yaml:"scene_id"`
	CreatedAt   string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	GameVersion string `json:"game_version" yaml:"game_version"`
	Corrupted   bool   `json:"corrupted" yaml:"corrupted"`
	Format      string `json:"format" yaml:"format"`
	Size        int64  `json:"size" yaml:"size"`
	Path        string `json:"path" yaml:"path"`
}

type slotListView []slotRow

func (v slotListView) Table(wide bool) *output.Table {
	t := &output.Table{}
	if wide {
		t.SetHeaders("SLOT", "NAME", "SCENE", "CREATED", "VERSION", "FORMAT", "SIZE", "PATH")
	} else {
		t.SetHeaders("SLOT", "NAME", "SCENE", "CREATED")
	}
	for _, r := range v {
		name := r.Name
		if r.Corrupted {
			name = "(" + domain.CorruptedSaveName + ")"
		}
		row := []string{output.Cell(r.Slot), output.Cell(name), output.Cell(r.Scene), output.Cell(r.CreatedAt)}
		if wide {
			row = append(row, output.Cell(r.GameVersion), r.Format, output.Bytes(r.Size), r.Path)
		}
		t.AddRow(row...)
	}
	return t
}

func newSlotRow(e slot.Entry) slotRow {
	r := slotRow{
		Slot:        int(e.Slot),
		Name:        e.Metadata.Name,
		Scene:       e.Metadata.SceneID,
		GameVersion: e.Metadata.GameVersion,
		Corrupted:   e.Metadata.Corrupted,
		Format:      string(e.Format),
		Size:        e.Size,
		Path:        e.Path,
	}
	if e.Metadata.CreatedAt > 0 {
		r.CreatedAt = e.Metadata.Time().Format(time.RFC3339)
	}
	return r
}

func slotsList(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}
	entries, err := env.Catalog.List()
	if err != nil {
		return err
	}
	view := make(slotListView, 0, len(entries))
	for _, e := range entries {
		view = append(view, newSlotRow(e))
	}
	return env.Print(view)
}

// inspectView carries the decoded snapshot as a generic document so json
// and yaml output share the on-disk field names.
type inspectView struct {
	Slot     int            `json:"slot" yaml:"slot"`
	Path     string         `json:"path" yaml:"path"`
	Format   string         `json:"format" yaml:"format"`
	Snapshot map[string]any `json:"snapshot" yaml:"snapshot"`

	snap *domain.Snapshot
}

func (v inspectView) Table(bool) *output.Table {
	s := v.snap
	t := &output.Table{}
	t.SetHeaders("FIELD", "VALUE")
	t.AddRow("slot", output.Cell(v.Slot))
	t.AddRow("path", v.Path)
	t.AddRow("format", v.Format)
	t.AddRow("name", output.Cell(s.SaveName))
	t.AddRow("created", output.Cell(s.Metadata().Time()))
	t.AddRow("game_version", output.Cell(s.GameVersion))
	t.AddRow("scene", output.Cell(s.Scene.SceneID))
	t.AddRow("spawn_point", output.Cell(s.Scene.SpawnPoint))
	t.AddRow("health", fmt.Sprintf("%.0f/%.0f", s.Actor.Health, s.Actor.MaxHealth))
	t.AddRow("companions", output.Cell(len(s.Companions)))
	items := 0
	for _, ids := range s.Inventory.Items {
		items += len(ids)
	}
	t.AddRow("items", output.Cell(items))
	t.AddRow("active_quests", output.Cell(len(s.Quests.Active)))
	t.AddRow("flags", output.Cell(len(s.Flags)))
	t.AddRow("adversaries", output.Cell(len(s.Adversaries)))
	t.AddRow("puzzles", output.Cell(len(s.Puzzles)))
	return t
}

func slotsInspect(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}
	s, err := slotArg(c)
	if err != nil {
		return err
	}
	path, cd, err := env.Catalog.Resolve(s)
	if err != nil {
		return err
	}
	data, _, err := env.Catalog.Read(s)
	if err != nil {
		return err
	}
	snap, err := cd.Decode(data)
	if err != nil {
		return err
	}
	doc, err := document(snap)
	if err != nil {
		return err
	}
	return env.Print(inspectView{
		Slot:     int(s),
		Path:     path,
		Format:   string(cd.Format()),
		Snapshot: doc,
		snap:     snap,
	})
}

// document turns a snapshot into the generic form of its json encoding.
func document(s *domain.Snapshot) (map[string]any, error) {
	data, err := codec.NewJSON().Encode(s)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func slotsDelete(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}
	s, err := slotArg(c)
	if err != nil {
		return err
	}
	err = env.Catalog.Delete(s)
	if errors.Is(err, domain.ErrSlotNotFound) && c.Bool("force") {
		err = nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "slot %d deleted\n", s)
	return nil
}

func slotsConvert(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}
	s, err := slotArg(c)
	if err != nil {
		return err
	}
	format, err := codec.ParseFormat(c.String("to"))
	if err != nil {
		return err
	}
	target, err := codec.New(format)
	if err != nil {
		return err
	}

	data, source, err := env.Catalog.Read(s)
	if err != nil {
		return err
	}
	if source.Format() == target.Format() {
		fmt.Fprintf(env.Out, "slot %d is already %s\n", s, format)
		return nil
	}
	snap, err := source.Decode(data)
	if err != nil {
		return err
	}
	encoded, err := target.Encode(snap)
	if err != nil {
		return err
	}
	path, err := env.Catalog.WriteWith(s, target, encoded)
	if err != nil {
		return err
	}
	env.Logger.Info("slot converted", "slot", int(s), "from", string(source.Format()), "to", string(format))
	fmt.Fprintf(env.Out, "slot %d converted to %s: %s\n", s, format, path)
	return nil
}

func slotsClean(c *cli.Context) error {
	env, err := GetEnv(c)
	if err != nil {
		return err
	}
	n, err := env.Catalog.CleanupTemp()
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "removed %d temporary file(s)\n", n)
	return nil
}
