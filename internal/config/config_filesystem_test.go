package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/treykane/cli-notation/internal/placement"
	"github.com/treykane/cli-notation/internal/score"
)

// writeConfigFile places raw JSON where Load looks for it.
func writeConfigFile(t *testing.T, home, body string) {
	t.Helper()
	dir := filepath.Join(home, configDirName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func readConfigFile(t *testing.T) map[string]json.RawMessage {
	t.Helper()
	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	return fields
}

func TestSaveWritesDurationsAsText(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := Default("~/scores")
	cfg.AutosaveDelay = Duration(1500 * time.Millisecond)
	cfg.IDTimeout = Duration(75 * time.Millisecond)
	if err := Save(cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	fields := readConfigFile(t)
	if got := string(fields["autosave_delay"]); got != `"1.5s"` {
		t.Fatalf("expected autosave_delay \"1.5s\", got %s", got)
	}
	if got := string(fields["id_timeout"]); got != `"75ms"` {
		t.Fatalf("expected id_timeout \"75ms\", got %s", got)
	}
}

func TestLoadReadsHandWrittenFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeConfigFile(t, home, `{
  "data_dir": "~/scores",
  "store": "sqlite",
  "autosave_delay": "750ms",
  "catalog_file": "~/symbols/dnr.yaml",
  "default_mode": "dnr",
  "keybindings": {"edit.undo": "ctrl+u"},
  "last_project": "raag-yaman"
}`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if time.Duration(cfg.AutosaveDelay) != 750*time.Millisecond {
		t.Fatalf("expected 750ms autosave, got %v", time.Duration(cfg.AutosaveDelay))
	}
	if want := filepath.Join(home, "symbols", "dnr.yaml"); cfg.CatalogFile != want {
		t.Fatalf("expected catalog file %q, got %q", want, cfg.CatalogFile)
	}
	if cfg.Keybindings["edit.undo"] != "ctrl+u" {
		t.Fatalf("expected undo override, got %v", cfg.Keybindings)
	}
	if cfg.LastProject != "raag-yaman" || cfg.DefaultMode != score.ModeDNR {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if time.Duration(cfg.IDTimeout) != DefaultIDTimeout || cfg.HTTPAddr != DefaultHTTPAddr {
		t.Fatalf("expected defaults for omitted fields, got %+v", cfg)
	}
}

func TestOverridesSurviveSaveAndLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	layout := placement.Layout{Lines: []float64{120, 180, 240}, Left: 40, Right: 800, Increment: 36, SymbolWidth: 24, Grid: 4}
	cfg := Default("~/scores")
	cfg.Layouts = map[score.Mode]placement.Layout{score.ModeGeneral: layout}
	cfg.Keybindings = map[string]string{"page.next": "ctrl+j", "app.quit": "ctrl+w"}
	cfg.LastProject = "chorale"
	if err := Save(cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	got := loaded.LayoutFor(score.ModeGeneral)
	if got.Grid != 4 || got.Increment != 36 || len(got.Lines) != 3 || got.Lines[2] != 240 {
		t.Fatalf("expected general layout override, got %+v", got)
	}
	if loaded.Keybindings["page.next"] != "ctrl+j" || loaded.Keybindings["app.quit"] != "ctrl+w" {
		t.Fatalf("unexpected keybindings %v", loaded.Keybindings)
	}
	if loaded.LastProject != "chorale" {
		t.Fatalf("expected last project chorale, got %q", loaded.LastProject)
	}

	loaded.LastProject = ""
	if err := Save(loaded); err != nil {
		t.Fatalf("save config: %v", err)
	}
	if _, ok := readConfigFile(t)["last_project"]; ok {
		t.Fatal("expected empty last_project to be omitted")
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{"data_dir":`, "parse config"},
		{"bad duration", `{"data_dir": "/tmp/scores", "autosave_delay": "soon"}`, "parse config"},
		{"missing data dir", `{"store": "file"}`, "invalid data_dir"},
		{"unknown store", `{"data_dir": "/tmp/scores", "store": "postgres"}`, "invalid store"},
		{"empty layout", `{"data_dir": "/tmp/scores", "layouts": {"dnr": {"lines": []}}}`, "invalid layout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home := t.TempDir()
			t.Setenv("HOME", home)
			writeConfigFile(t, home, tt.body)

			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSaveRejectsInvalidConfigWithoutWriting(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := Default("~/scores")
	cfg.DefaultMode = "tablature"
	if err := Save(cfg); err == nil {
		t.Fatal("expected invalid mode error")
	}
	exists, err := Exists()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("expected no config file after a rejected save")
	}
}

func TestExportDirFollowsDataDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := Save(Default("~/scores")); err != nil {
		t.Fatalf("save config: %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if want := filepath.Join(home, "scores", "exports"); cfg.ExportDir() != want {
		t.Fatalf("expected export dir %q, got %q", want, cfg.ExportDir())
	}
	dataDir, err := DefaultDataDir()
	if err != nil {
		t.Fatalf("default data dir: %v", err)
	}
	if want := filepath.Join(home, configDirName, "data"); dataDir != want {
		t.Fatalf("expected default data dir %q, got %q", want, dataDir)
	}
}
