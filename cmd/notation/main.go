// Command notation is a terminal notation editor with an optional HTTP API.
//
//	notation init [-data-dir DIR] [-store file|sqlite] [-mode general|dnr]
//	notation [edit] [-project ID] [-name NAME] [-http]
//	notation serve [-project ID] [-name NAME] [-addr HOST:PORT]
//	notation projects
//	notation export -project ID [-format md|html|pdf] [-out DIR]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/treykane/cli-notation/internal/app"
	"github.com/treykane/cli-notation/internal/catalog"
	"github.com/treykane/cli-notation/internal/config"
	"github.com/treykane/cli-notation/internal/export"
	"github.com/treykane/cli-notation/internal/httpapi"
	"github.com/treykane/cli-notation/internal/idgen"
	"github.com/treykane/cli-notation/internal/logging"
	"github.com/treykane/cli-notation/internal/metrics"
	"github.com/treykane/cli-notation/internal/score"
	"github.com/treykane/cli-notation/internal/session"
	"github.com/treykane/cli-notation/internal/store"
	"github.com/treykane/cli-notation/internal/store/filestore"
	"github.com/treykane/cli-notation/internal/store/sqlstore"
)

var mainLog = logging.New("main")

const logFileName = "notation.log"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// run dispatches a subcommand. Without one, or with only flags, it edits.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	cmd := "edit"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "init":
		return runInit(args, stdout)
	case "edit":
		return runEdit(ctx, args)
	case "serve":
		return runServe(ctx, args, stdout)
	case "projects":
		return runProjects(ctx, args, stdout)
	case "export":
		return runExport(ctx, args, stdout)
	default:
		return fmt.Errorf("unknown command %q: want init, edit, serve, projects or export", cmd)
	}
}

func runInit(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "", "directory for projects and exports (default ~/.cli-notation/data)")
	storeKind := fs.String("store", config.StoreFile, "persistence backend: file or sqlite")
	modeName := fs.String("mode", string(score.ModeGeneral), "default notation mode: general or dnr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dir := *dataDir
	if dir == "" {
		var err error
		if dir, err = config.DefaultDataDir(); err != nil {
			return err
		}
	}
	mode, err := score.ParseMode(*modeName)
	if err != nil {
		return err
	}

	cfg := config.Default(dir)
	cfg.Store = *storeKind
	cfg.DefaultMode = mode
	if err := config.Save(cfg); err != nil {
		return err
	}
	cfg, err = config.Load()
	if err != nil {
		return err
	}
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s (data in %s, %s store)\n", path, cfg.DataDir, cfg.Store)
	return nil
}

// env is what every command but init needs: the loaded config, the open
// store, the catalog and the metrics registry.
type env struct {
	cfg      config.Config
	store    store.Store
	catalog  *catalog.Catalog
	registry *prometheus.Registry
	metrics  *metrics.Recorder
}

func openEnv() (*env, error) {
	cfg, err := config.Load()
	if errors.Is(err, config.ErrNotConfigured) {
		return nil, fmt.Errorf("%w: run `notation init` first", err)
	}
	if err != nil {
		return nil, err
	}
	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &env{
		cfg:      cfg,
		store:    st,
		catalog:  cat,
		registry: reg,
		metrics:  metrics.New(reg),
	}, nil
}

func openStore(cfg config.Config) (store.Store, error) {
	if cfg.Store == config.StoreSQLite {
		st, err := sqlstore.Open(cfg.DatabasePath(), sqlstore.WithMkdirAll())
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	st, err := filestore.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		mainLog.Warn("close store", "error", err)
	}
}

// openProject loads id, or the last edited project when id is empty. A
// project that does not exist yet is created, keeping an explicit id.
func (e *env) openProject(ctx context.Context, id, name string) (score.Project, error) {
	explicit := id != ""
	if !explicit {
		id = e.cfg.LastProject
	}
	if id != "" {
		p, err := e.store.LoadProject(ctx, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return score.Project{}, err
		}
		mainLog.Info("project not found, creating it", "project", id)
		if !explicit {
			id = ""
		}
	}

	if strings.TrimSpace(name) == "" {
		name = "Untitled"
	}
	p := store.NewProject(id, name, e.cfg.DefaultMode, e.cfg.Defaults, idgen.Prefixed(session.PageIDPrefix, idgen.Default)())
	newID, err := e.store.CreateProject(ctx, p)
	if err != nil {
		return score.Project{}, err
	}
	p.ID = newID
	return p, nil
}

func (e *env) openSession(ctx context.Context, p score.Project) (*session.Session, error) {
	return session.Open(ctx, e.store, p, session.Options{
		Layout:        e.cfg.LayoutFor(p.Mode),
		HistoryLimit:  e.cfg.HistoryLimit,
		AutosaveDelay: time.Duration(e.cfg.AutosaveDelay),
		IDTimeout:     time.Duration(e.cfg.IDTimeout),
		Catalog:       e.catalog,
		Metrics:       e.metrics,
	})
}

// rememberProject makes id the project reopened by a bare `notation`.
func (e *env) rememberProject(id string) {
	if e.cfg.LastProject == id {
		return
	}
	e.cfg.LastProject = id
	if err := config.Save(e.cfg); err != nil {
		mainLog.Warn("remember last project", "project", id, "error", err)
	}
}

func closeSession(sess *session.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), session.DefaultSaveTimeout)
	defer cancel()
	if err := sess.Close(ctx); err != nil {
		mainLog.Warn("close session", "error", err)
	}
}

func (e *env) server(sess *session.Session) *httpapi.Server {
	return httpapi.New(sess, httpapi.Options{
		Gatherer:  e.registry,
		ExportDir: e.cfg.ExportDir(),
	})
}

func runEdit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	projectID := fs.String("project", "", "project id (default: the last edited project)")
	name := fs.String("name", "", "name for a newly created project")
	withHTTP := fs.Bool("http", false, "also serve the HTTP API on the configured address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	p, err := e.openProject(ctx, *projectID, *name)
	if err != nil {
		return err
	}
	sess, err := e.openSession(ctx, p)
	if err != nil {
		return err
	}
	defer closeSession(sess)
	e.rememberProject(p.ID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if *withHTTP {
		go func() {
			if err := e.server(sess).ListenAndServe(ctx, e.cfg.HTTPAddr); err != nil {
				mainLog.Error("http api stopped", "addr", e.cfg.HTTPAddr, "error", err)
			}
		}()
	}

	closeLog, err := logToFile(e.cfg.DataDir)
	if err != nil {
		return err
	}
	defer closeLog()

	prog := tea.NewProgram(app.New(sess, e.cfg),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// logToFile sends log output to <dataDir>/notation.log while the terminal
// editor owns the screen.
func logToFile(dataDir string) (func(), error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dataDir, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logging.SetOutput(f)
	return func() {
		logging.SetOutput(nil)
		_ = f.Close()
	}, nil
}

func runServe(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	projectID := fs.String("project", "", "project id (default: the last edited project)")
	name := fs.String("name", "", "name for a newly created project")
	addr := fs.String("addr", "", "listen address (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	p, err := e.openProject(ctx, *projectID, *name)
	if err != nil {
		return err
	}
	sess, err := e.openSession(ctx, p)
	if err != nil {
		return err
	}
	defer closeSession(sess)
	e.rememberProject(p.ID)

	listen := *addr
	if listen == "" {
		listen = e.cfg.HTTPAddr
	}
	fmt.Fprintf(stdout, "Serving project %s (%s) on http://%s\n", p.Name, p.ID, listen)
	return e.server(sess).ListenAndServe(ctx, listen)
}

func runProjects(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("projects", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	projects, err := e.store.ListProjects(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMODE\tPAGES\tUPDATED")
	for _, p := range projects {
		marker := ""
		if p.ID == e.cfg.LastProject {
			marker = " *"
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%d\t%s\n", p.ID, marker, p.Name, p.Mode, p.Pages, p.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func runExport(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	projectID := fs.String("project", "", "project id (default: the last edited project)")
	formatName := fs.String("format", string(export.FormatMarkdown), "md, html or pdf")
	out := fs.String("out", "", "output directory (default <data_dir>/exports)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := export.ParseFormat(*formatName)
	if err != nil {
		return err
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	id := *projectID
	if id == "" {
		id = e.cfg.LastProject
	}
	if id == "" {
		return errors.New("no project given and none edited yet: pass -project")
	}
	p, err := e.store.LoadProject(ctx, id)
	if err != nil {
		return fmt.Errorf("load project %s: %w", id, err)
	}
	dir := *out
	if dir == "" {
		dir = e.cfg.ExportDir()
	}
	path, err := export.Write(ctx, p, dir, format)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, path)
	return nil
}
