package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yndnr/savekeep-go/internal/config"
	"github.com/yndnr/savekeep-go/internal/telemetry/logger"
)

// runApp runs savekeep-cli against dir and returns stdout and stderr.
func runApp(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	app := App()
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut

	argv := append([]string{"savekeep-cli", "--save-dir", dir, "--log-level", "error"}, args...)
	err := app.Run(argv)
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, errOut, err := runApp(t, dir, args...)
	if err != nil {
		t.Fatalf("%v: %v\nstdout:\n%s\nstderr:\n%s", args, err, out, errOut)
	}
	return out
}

func TestApp(t *testing.T) {
	app := App()
	if app.Name != "savekeep-cli" {
		t.Errorf("Name = %q, want %q", app.Name, "savekeep-cli")
	}

	commands := make(map[string]bool)
	for _, cmd := range app.Commands {
		commands[cmd.Name] = true
	}
	for _, name := range []string{"slots", "watch", "selftest", "version"} {
		if !commands[name] {
			t.Errorf("missing command: %s", name)
		}
	}

	flags := make(map[string]bool)
	for _, f := range app.Flags {
		flags[f.Names()[0]] = true
	}
	for _, name := range []string{"config", "save-dir", "format", "log-level", "output", "wide"} {
		if !flags[name] {
			t.Errorf("missing flag: %s", name)
		}
	}
}

func TestApp_RejectsUnknownOutput(t *testing.T) {
	if _, _, err := runApp(t, t.TempDir(), "-o", "xml", "slots", "list"); err == nil {
		t.Fatal("expected error for unknown output format")
	}
}

func TestSlotsList_Empty(t *testing.T) {
	out := mustRun(t, filepath.Join(t.TempDir(), "missing"), "slots", "list")
	if strings.TrimSpace(out) != "SLOT  NAME  SCENE  CREATED" {
		t.Errorf("unexpected output:\n%q", out)
	}
}

func TestSelftest_CleansUpByDefault(t *testing.T) {
	dir := t.TempDir()
	out, errOut, err := runApp(t, dir, "selftest", "--slot", "1")
	if err != nil {
		t.Fatalf("selftest: %v\n%s\n%s", err, out, errOut)
	}
	if !strings.Contains(out, "verify") {
		t.Errorf("missing verify step:\n%s", out)
	}
	if strings.Contains(out, "FAIL") {
		t.Errorf("selftest reported a failure:\n%s", out)
	}
	if !strings.Contains(errOut, "Saving") || !strings.Contains(errOut, "100%") {
		t.Errorf("expected progress bars on stderr, got:\n%s", errOut)
	}
	if _, err := os.Stat(filepath.Join(dir, "save_1.json")); !os.IsNotExist(err) {
		t.Errorf("slot file should be removed, stat err = %v", err)
	}
}

func TestSelftest_JSONSteps(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, dir, "-o", "json", "selftest", "--slot", "2", "--keep")

	var steps []stepRow
	if err := json.Unmarshal([]byte(out), &steps); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	want := []string{"seed", "save", "disturb", "load", "verify"}
	if len(steps) != len(want) {
		t.Fatalf("got %d steps, want %d: %+v", len(steps), len(want), steps)
	}
	for i, s := range steps {
		if s.Step != want[i] || !s.OK {
			t.Errorf("step %d = %+v, want %s ok", i, s, want[i])
		}
	}
	if !strings.Contains(steps[4].Detail, "Yard") || !strings.Contains(steps[4].Detail, "Dorm") {
		t.Errorf("verify should list the scene transitions: %q", steps[4].Detail)
	}

	var rows []slotRow
	if err := json.Unmarshal([]byte(mustRun(t, dir, "-o", "json", "slots", "list")), &rows); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(rows) != 1 || rows[0].Slot != 2 || rows[0].Name != "Selftest" || rows[0].Scene != "Dorm" {
		t.Errorf("list = %+v", rows)
	}
}

func TestSelftest_RefusesExistingSlot(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "-o", "json", "selftest", "--slot", "0", "--keep")

	if _, _, err := runApp(t, dir, "-o", "json", "selftest", "--slot", "0"); err == nil {
		t.Fatal("expected selftest to refuse an occupied slot")
	}
	mustRun(t, dir, "-o", "json", "selftest", "--slot", "0", "--overwrite")
}

func TestSelftest_AutosaveFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "savekeep.yaml")
	cfg := "storage:\n  format: binary\nautosave:\n  slot: 7\n  min_interval: 1h\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, dir, "--config", cfgPath, "-o", "json", "selftest", "--slot", "3", "--autosave", "--keep")
	var steps []stepRow
	if err := json.Unmarshal([]byte(out), &steps); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	seen := map[string]bool{}
	for _, s := range steps {
		if !s.OK {
			t.Errorf("step failed: %+v", s)
		}
		seen[s.Step] = true
	}
	if !seen["autosave"] || !seen["autosave throttle"] {
		t.Errorf("autosave steps missing: %+v", steps)
	}
	for _, name := range []string{"save_3.sav", "save_7.sav"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SAVEKEEP_STORAGE__FORMAT", "binary")

	mustRun(t, dir, "-o", "json", "selftest", "--slot", "4", "--keep")
	if _, err := os.Stat(filepath.Join(dir, "save_4.sav")); err != nil {
		t.Errorf("env should select binary: %v", err)
	}

	mustRun(t, dir, "--format", "json", "-o", "json", "selftest", "--slot", "5", "--keep")
	if _, err := os.Stat(filepath.Join(dir, "save_5.json")); err != nil {
		t.Errorf("flag should override env: %v", err)
	}
}

func TestSlots_InspectConvertDelete(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "-o", "json", "selftest", "--slot", "6", "--keep")

	table := mustRun(t, dir, "slots", "inspect", "6")
	for _, want := range []string{"Selftest", "Dorm", "80/100", "items"} {
		if !strings.Contains(table, want) {
			t.Errorf("inspect table missing %q:\n%s", want, table)
		}
	}

	var view struct {
		Slot     int            `json:"slot"`
		Format   string         `json:"format"`
		Snapshot map[string]any `json:"snapshot"`
	}
	if err := json.Unmarshal([]byte(mustRun(t, dir, "-o", "json", "slots", "inspect", "6")), &view); err != nil {
		t.Fatalf("decode inspect: %v", err)
	}
	if view.Format != "json" || view.Snapshot["save_name"] != "Selftest" {
		t.Errorf("inspect = %+v", view)
	}

	yamlOut := mustRun(t, dir, "-o", "yaml", "slots", "inspect", "6")
	if !strings.Contains(yamlOut, "save_name: Selftest") {
		t.Errorf("yaml inspect should use on-disk names:\n%s", yamlOut)
	}

	out := mustRun(t, dir, "slots", "convert", "6", "--to", "binary")
	if !strings.Contains(out, "save_6.sav") {
		t.Errorf("convert output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "save_6.json")); !os.IsNotExist(err) {
		t.Errorf("old json file should be gone, stat err = %v", err)
	}
	if out := mustRun(t, dir, "slots", "convert", "6", "--to", "binary"); !strings.Contains(out, "already") {
		t.Errorf("second convert = %q", out)
	}

	mustRun(t, dir, "slots", "delete", "6")
	if _, _, err := runApp(t, dir, "slots", "delete", "6"); err == nil {
		t.Error("deleting a missing slot should fail")
	}
	mustRun(t, dir, "slots", "delete", "--force", "6")
}

func TestSlots_BadSlotArgument(t *testing.T) {
	dir := t.TempDir()
	for _, args := range [][]string{
		{"slots", "inspect"},
		{"slots", "inspect", "abc"},
		{"slots", "inspect", "9"},
	} {
		if _, _, err := runApp(t, dir, args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestSlots_Clean(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "save_1.json.123.tmp"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	out := mustRun(t, dir, "slots", "clean")
	if !strings.Contains(out, "removed 1") {
		t.Errorf("clean output = %q", out)
	}
}

func TestWatch_StopsAfterDuration(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "watch", "--for", "100ms", "--metrics-addr", "127.0.0.1:0")
}

func TestVersion(t *testing.T) {
	out := mustRun(t, t.TempDir(), "-o", "json", "version")
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info["go_version"] == "" || info["version"] == "" {
		t.Errorf("version = %v", info)
	}
}

func TestReloadLogLevel(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.New(logger.Config{Level: "warn", Format: "json", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = logger.SetLevel("info") }()

	withLevel := func(level string) func() (*config.Config, error) {
		return func() (*config.Config, error) {
			cfg := config.Default()
			cfg.Log.Level = level
			return cfg, nil
		}
	}

	reloadLogLevel(withLevel("debug"), log)
	buf.Reset()
	log.Debug("after reload")
	if buf.Len() == 0 {
		t.Fatal("debug output should appear after reloading to debug")
	}

	tests := []struct {
		name string
		load func() (*config.Config, error)
	}{
		{"load error", func() (*config.Config, error) { return nil, errors.New("bad yaml") }},
		{"unknown level", withLevel("chatty")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reloadLogLevel(tt.load, log)
			buf.Reset()
			log.Debug("still debug")
			if buf.Len() == 0 {
				t.Error("a failed reload must keep the previous level")
			}
		})
	}
}
