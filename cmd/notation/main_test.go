package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/treykane/cli-notation/internal/config"
	"github.com/treykane/cli-notation/internal/score"
	"github.com/treykane/cli-notation/internal/store"
	"github.com/treykane/cli-notation/internal/store/filestore"
)

func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func runArgs(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(context.Background(), args, &out)
	return out.String(), err
}

func TestRunUnknownCommand(t *testing.T) {
	setupHome(t)
	if _, err := runArgs(t, "compose"); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestCommandsRequireInit(t *testing.T) {
	setupHome(t)
	for _, args := range [][]string{{"projects"}, {"export", "-project", "p"}, {"edit"}} {
		if _, err := runArgs(t, args...); !errors.Is(err, config.ErrNotConfigured) {
			t.Fatalf("%v: expected ErrNotConfigured, got %v", args, err)
		}
	}
}

func TestInitWritesConfig(t *testing.T) {
	home := setupHome(t)
	dataDir := filepath.Join(home, "scores")

	out, err := runArgs(t, "init", "-data-dir", dataDir, "-store", "sqlite", "-mode", "dnr")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, dataDir) {
		t.Fatalf("expected data dir in output, got %q", out)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DataDir != dataDir || cfg.Store != config.StoreSQLite || cfg.DefaultMode != score.ModeDNR {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestInitRejectsBadInput(t *testing.T) {
	setupHome(t)
	tests := []struct {
		name string
		args []string
	}{
		{name: "store", args: []string{"init", "-store", "postgres"}},
		{name: "mode", args: []string{"init", "-mode", "tab"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := runArgs(t, tc.args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
	if _, err := os.Stat(filepath.Join(os.Getenv("HOME"), ".cli-notation", "config.json")); !os.IsNotExist(err) {
		t.Fatalf("expected no config written, stat err %v", err)
	}
}

func TestInitDefaultsDataDirUnderHome(t *testing.T) {
	home := setupHome(t)
	if _, err := runArgs(t, "init"); err != nil {
		t.Fatalf("init: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !strings.HasPrefix(cfg.DataDir, home) {
		t.Fatalf("expected data dir under %s, got %s", home, cfg.DataDir)
	}
}

func seedProject(t *testing.T, dataDir, name string) string {
	t.Helper()
	st, err := filestore.New(dataDir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	p := store.NewProject("", name, score.ModeGeneral, score.DefaultMeta, "page-1")
	id, err := st.CreateProject(context.Background(), p)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return id
}

func TestProjectsListsStoredProjects(t *testing.T) {
	home := setupHome(t)
	dataDir := filepath.Join(home, "data")
	if _, err := runArgs(t, "init", "-data-dir", dataDir); err != nil {
		t.Fatalf("init: %v", err)
	}

	out, err := runArgs(t, "projects")
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	if strings.Count(strings.TrimSpace(out), "\n") != 0 {
		t.Fatalf("expected header only, got %q", out)
	}

	id := seedProject(t, dataDir, "Etude")
	out, err = runArgs(t, "projects")
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "Etude") {
		t.Fatalf("expected project row, got %q", out)
	}
}

func TestExportWritesMarkdown(t *testing.T) {
	home := setupHome(t)
	dataDir := filepath.Join(home, "data")
	if _, err := runArgs(t, "init", "-data-dir", dataDir); err != nil {
		t.Fatalf("init: %v", err)
	}
	id := seedProject(t, dataDir, "Etude")
	outDir := filepath.Join(home, "out")

	out, err := runArgs(t, "export", "-project", id, "-format", "md", "-out", outDir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	path := strings.TrimSpace(out)
	if filepath.Dir(path) != outDir {
		t.Fatalf("expected export in %s, got %s", outDir, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected exported file: %v", err)
	}
}

func TestExportNeedsProject(t *testing.T) {
	home := setupHome(t)
	if _, err := runArgs(t, "init", "-data-dir", filepath.Join(home, "data")); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := runArgs(t, "export"); err == nil || !strings.Contains(err.Error(), "-project") {
		t.Fatalf("expected missing project error, got %v", err)
	}
	if _, err := runArgs(t, "export", "-project", "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := runArgs(t, "export", "-format", "docx"); err == nil {
		t.Fatal("expected format error")
	}
}

func TestOpenProjectCreatesAndReopens(t *testing.T) {
	home := setupHome(t)
	if _, err := runArgs(t, "init", "-data-dir", filepath.Join(home, "data")); err != nil {
		t.Fatalf("init: %v", err)
	}
	e, err := openEnv()
	if err != nil {
		t.Fatalf("open env: %v", err)
	}
	defer e.close()
	ctx := context.Background()

	created, err := e.openProject(ctx, "", "Sketch")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || created.Name != "Sketch" || len(created.Pages) != 1 {
		t.Fatalf("unexpected project %+v", created)
	}
	e.rememberProject(created.ID)

	reopened, err := e.openProject(ctx, "", "")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.ID != created.ID {
		t.Fatalf("expected last project %s, got %s", created.ID, reopened.ID)
	}

	named, err := e.openProject(ctx, "chorale", "")
	if err != nil {
		t.Fatalf("create named: %v", err)
	}
	if named.ID != "chorale" || named.Name != "Untitled" {
		t.Fatalf("unexpected named project %+v", named)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.LastProject != created.ID {
		t.Fatalf("expected remembered project %s, got %q", created.ID, cfg.LastProject)
	}
}

func TestLogToFileRedirectsLoggers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	closeLog, err := logToFile(dir)
	if err != nil {
		t.Fatalf("log to file: %v", err)
	}
	mainLog.Warn("editor started", "project", "p1")
	closeLog()

	data, err := os.ReadFile(filepath.Join(dir, logFileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "component=main") || !strings.Contains(string(data), "editor started") {
		t.Fatalf("expected log line in file, got %q", data)
	}
}

func TestEditRejectsProjectIDOutsideDataDir(t *testing.T) {
	home := setupHome(t)
	if _, err := runArgs(t, "init", "-data-dir", filepath.Join(home, "data")); err != nil {
		t.Fatalf("init: %v", err)
	}
	e, err := openEnv()
	if err != nil {
		t.Fatalf("open env: %v", err)
	}
	defer e.close()

	if _, err := e.openProject(context.Background(), "../escape", ""); !errors.Is(err, store.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "data", "escape")); !os.IsNotExist(err) {
		t.Fatalf("expected no project written outside projects dir, stat err %v", err)
	}
}
