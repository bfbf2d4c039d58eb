package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/journey/internal/editor"
	"github.com/mesh-intelligence/journey/internal/logging"
	"github.com/mesh-intelligence/journey/internal/paths"
	"github.com/mesh-intelligence/journey/internal/sqlite"
	"github.com/mesh-intelligence/journey/pkg/types"
)

// monitorFile keeps the monitor state between invocations.
const monitorFile = "monitor.json"

// workspace is an open journey: config, store, and a started session.
type workspace struct {
	cfg       types.Config
	configDir string
	store     *sqlite.Store
	session   *editor.Session
	logs      io.Closer
}

// resolve returns the effective config and the config directory.
func (a *app) resolve() (types.Config, string, error) {
	configDir, err := paths.ConfigDir(a.flags.configDir)
	if err != nil {
		return types.Config{}, "", system("resolve config dir: %w", err)
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return types.Config{}, "", err
	}
	dataDir, err := paths.DataDir(a.flags.dataDir, cfg.DataDir, configDir)
	if err != nil {
		return types.Config{}, "", system("resolve data dir: %w", err)
	}
	cfg.DataDir = dataDir
	if a.flags.logLevel != "" {
		cfg.Log.Level = a.flags.logLevel
	}
	return cfg, configDir, nil
}

// open loads the journey from the data directory and starts a session on it.
func (a *app) open(cmd *cobra.Command) (*workspace, error) {
	cfg, configDir, err := a.resolve()
	if err != nil {
		return nil, err
	}
	log, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	store := sqlite.NewStore(sqlite.WithLogger(log))
	if err := store.Attach(cfg.DataDir); err != nil {
		closer.Close()
		return nil, system("attach store: %w", err)
	}
	sess, err := editor.New(cfg, editor.WithStore(store), editor.WithLogger(log))
	if err != nil {
		store.Detach()
		closer.Close()
		return nil, err
	}
	if data, err := os.ReadFile(filepath.Join(cfg.DataDir, monitorFile)); err == nil {
		if err := sess.Monitor().ImportJSON(data); err != nil {
			log.Warn().Err(err).Msg("ignoring unreadable monitor state")
		}
	}
	if _, err := sess.Init(cmd.Context()); err != nil {
		sess.Destroy()
		store.Detach()
		closer.Close()
		return nil, system("start session: %w", err)
	}
	return &workspace{cfg: cfg, configDir: configDir, store: store, session: sess, logs: closer}, nil
}

// close optionally saves the journey, then persists the monitor state and
// releases everything open.
func (w *workspace) close(save bool) error {
	var errs []error
	if save {
		if _, err := w.session.Save(); err != nil {
			errs = append(errs, system("save journey: %w", err))
		}
	}
	if data, err := w.session.Monitor().ExportJSON(); err == nil {
		if err := os.WriteFile(filepath.Join(w.cfg.DataDir, monitorFile), data, 0o644); err != nil {
			errs = append(errs, system("write monitor state: %w", err))
		}
	}
	w.session.Destroy()
	if err := w.store.Detach(); err != nil {
		errs = append(errs, system("detach store: %w", err))
	}
	w.logs.Close()
	return errors.Join(errs...)
}

// run opens the workspace, calls fn, and closes it. The journey is saved
// only when save is set and fn succeeded.
func (a *app) run(cmd *cobra.Command, save bool, fn func(w *workspace) error) (err error) {
	w, err := a.open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.close(save && err == nil); err == nil {
			err = cerr
		}
	}()
	return fn(w)
}

func nodeArg(w *workspace, id string) (*types.Node, error) {
	n, ok := w.session.Canvas().GetNode(id)
	if !ok || n.IsHint() {
		return nil, fmt.Errorf("node %s: %w", id, types.ErrNodeNotFound)
	}
	return n, nil
}
