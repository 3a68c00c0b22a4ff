// Package localstate persists the timer engine between CLI invocations.
package localstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joescharf/pomo/internal/reconcile"
)

// FileName is the state file inside the state directory.
const FileName = "timer.yaml"

type stateFile struct {
	Version   int             `yaml:"version"`
	ServerURL string          `yaml:"server_url"`
	SavedAt   time.Time       `yaml:"saved_at"`
	Engine    reconcile.State `yaml:"engine"`
}

const currentVersion = 1

// Path returns the state file path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads the engine state saved for serverURL. It reports false when no
// usable state exists: the file is missing, from another version, or was
// written for a different server.
func Load(path, serverURL string) (reconcile.State, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return reconcile.State{}, false, nil
		}
		return reconcile.State{}, false, fmt.Errorf("read state file: %w", err)
	}

	var f stateFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return reconcile.State{}, false, fmt.Errorf("parse state yaml: %w", err)
	}
	if f.Version != currentVersion || f.ServerURL != serverURL {
		return reconcile.State{}, false, nil
	}
	return f.Engine, true, nil
}

// Save writes the engine state, replacing the file atomically.
func Save(path, serverURL string, st reconcile.State, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	serialized, err := yaml.Marshal(stateFile{
		Version:   currentVersion,
		ServerURL: serverURL,
		SavedAt:   now.UTC(),
		Engine:    st,
	})
	if err != nil {
		return fmt.Errorf("marshal state yaml: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, serialized, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Remove deletes the state file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}
