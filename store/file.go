package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// savedPlan is the on-disk form of one session's plan.
type savedPlan struct {
	Version    int       `json:"version"` // always 1
	SessionID  string    `json:"sessionId"`
	Boundaries []int     `json:"boundaries"`
	SavedAt    time.Time `json:"savedAt"`
}

// File keeps one JSON document per session in a directory.
type File struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewFile returns a store rooted at dir, creating it if needed.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, fmt.Errorf("plan store directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating plans dir: %w", err)
	}
	return &File{dir: dir, now: time.Now}, nil
}

// path maps a session ID to its file. IDs that would escape the directory are rejected.
func (f *File) path(sessionID string) (string, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || sessionID == "." || sessionID == ".." {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	path := filepath.Join(f.dir, sessionID+".json")

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving plan path: %w", err)
	}
	absDir, err := filepath.Abs(f.dir)
	if err != nil {
		return "", fmt.Errorf("resolving plans dir: %w", err)
	}
	if !strings.HasPrefix(absPath, absDir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid session id %q: path escapes plans directory", sessionID)
	}
	return path, nil
}

func (f *File) LoadPlan(_ context.Context, sessionID string) ([]int, error) {
	path, err := f.path(sessionID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading plan file: %w", err)
	}

	var saved savedPlan
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, fmt.Errorf("parsing plan file %s: %w", path, err)
	}
	if err := validPlan(saved.Boundaries); err != nil {
		return nil, fmt.Errorf("plan file %s: %w", path, err)
	}
	return clonePlan(saved.Boundaries), nil
}

// SavePlan writes the plan with an atomic rename so readers never see a partial file.
func (f *File) SavePlan(_ context.Context, sessionID string, plan []int) error {
	if err := validPlan(plan); err != nil {
		return err
	}
	path, err := f.path(sessionID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(savedPlan{
		Version:    1,
		SessionID:  sessionID,
		Boundaries: plan,
		SavedAt:    f.now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("writing plan file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming plan file: %w", err)
	}
	return nil
}

// Prune removes plan files not modified since cutoff. Age is the file ModTime,
// so a session that keeps saving is never pruned.
func (f *File) Prune(_ context.Context, cutoff time.Time, dryRun bool) (PruneResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var result PruneResult
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, fmt.Errorf("reading plans dir: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".json.tmp")) {
			continue
		}
		path := filepath.Join(f.dir, name)

		info, err := entry.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue // removed concurrently
			}
			result.Errors = append(result.Errors, fmt.Sprintf("stat %s: %v", path, err))
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if dryRun {
			result.Deleted++
			continue
		}
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			result.Errors = append(result.Errors, fmt.Sprintf("remove %s: %v", path, err))
			continue
		}
		result.Deleted++
	}
	return result, nil
}

func (f *File) Close() error { return nil }
