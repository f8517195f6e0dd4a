package durable

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// #region naming

// timestampLayout gives artifacts second resolution; two writes within the
// same second share a name and the later one wins.
const timestampLayout = "20060102150405"

func artifactName(ts string) string {
	return "refined_" + ts + ".json"
}

// #endregion naming

// #region local-dir

// LocalDir is the fallback target: a directory on local disk.
type LocalDir struct {
	dir string
}

// NewLocalDir returns a fallback rooted at dir. The directory is created
// on first write.
func NewLocalDir(dir string) *LocalDir {
	return &LocalDir{dir: dir}
}

// Dir returns the fallback directory.
func (l *LocalDir) Dir() string {
	return l.dir
}

// fallbackEnvelope is the on-disk shape of a fallback artifact.
type fallbackEnvelope struct {
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

// Write stores {"timestamp": ts, "data": payload} as name inside the
// directory. The file is written to a temp file and renamed into place.
func (l *LocalDir) Write(ts, name string, payload any) (string, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("create fallback dir: %w", err)
	}

	body, err := json.MarshalIndent(fallbackEnvelope{Timestamp: ts, Data: payload}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal fallback: %w", err)
	}

	tmp, err := os.CreateTemp(l.dir, ".refined-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp: %w", err)
	}

	path := filepath.Join(l.dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename fallback: %w", err)
	}
	return path, nil
}

// #endregion local-dir
