package profile

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Manager hands out per-session browser profile directories and sweeps
// the ones left behind by crashed or killed browsers
type Manager struct {
	root string
	mu   sync.Mutex
	cron *cron.Cron
}

// NewManager creates the profile root if it doesn't exist
func NewManager(root string) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}
	return &Manager{root: root}, nil
}

// Root returns the directory holding all profiles
func (m *Manager) Root() string {
	return m.root
}

// Create makes a fresh profile directory for sessionID
func (m *Manager) Create(sessionID string) (string, error) {
	dir := filepath.Join(m.root, sessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create user data directory: %w", err)
	}
	return dir, nil
}

// Remove deletes one profile directory
func (m *Manager) Remove(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove profile %s: %w", dir, err)
	}
	return nil
}

// Sweep removes profile directories not modified within maxAge, skipping
// keep (the live session's directory). It returns how many were removed.
func (m *Manager) Sweep(maxAge time.Duration, keep string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, fmt.Errorf("failed to read profile directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(m.root, entry.Name())
		if path == keep {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			log.Printf("⚠️ Failed to sweep profile %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}

	return removed, nil
}

// StartSweeper runs Sweep on the given cron schedule until Stop is called.
// keep is asked for the live profile at each run.
func (m *Manager) StartSweeper(schedule string, maxAge time.Duration, keep func() string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		n, err := m.Sweep(maxAge, keep())
		if err != nil {
			log.Printf("⚠️ Profile sweep failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("🧹 Swept %d stale browser profiles", n)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	m.mu.Lock()
	m.cron = c
	m.mu.Unlock()

	c.Start()
	return nil
}

// Stop halts the periodic sweeper, if any
func (m *Manager) Stop() {
	m.mu.Lock()
	c := m.cron
	m.cron = nil
	m.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
