package browser

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shehryarbajwa/smiles-flights/pkg/models"
)

// Profiles hands out and cleans up browser profile directories
type Profiles interface {
	Create(sessionID string) (string, error)
	Remove(dir string) error
}

// Session is the live browser owned by the Manager
type Session struct {
	ID        string
	StartedAt time.Time
	instance  *Instance
	profile   string
}

// Context returns the chromedp browser context; tabs are derived from it
func (s *Session) Context() context.Context {
	return s.instance.Ctx
}

// Alive reports whether the browser context is still usable
func (s *Session) Alive() bool {
	return s.instance != nil && s.instance.Ctx != nil && s.instance.Ctx.Err() == nil
}

// Manager owns at most one browser at a time
type Manager struct {
	launcher Launcher
	profiles Profiles
	mu       sync.Mutex
	current  *Session
	restarts int
}

// NewManager creates a session manager. profiles may be nil.
func NewManager(launcher Launcher, profiles Profiles) *Manager {
	return &Manager{
		launcher: launcher,
		profiles: profiles,
	}
}

// Ensure returns the live session, launching one if there is none
func (m *Manager) Ensure(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if m.current.Alive() {
			return m.current, nil
		}
		log.Printf("⚠️ Browser session %s is gone, launching a new one", m.current.ID[:8])
		m.teardownLocked()
	}

	return m.launchLocked(ctx)
}

// Restart unconditionally tears down the live session and launches a fresh one.
// Teardown errors are logged and ignored.
func (m *Manager) Restart(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked()
	m.restarts++
	return m.launchLocked(ctx)
}

// Shutdown tears down the live session, if any
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.teardownLocked()
}

// Status describes the live session
func (m *Manager) Status() (*models.BrowserSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil, false
	}

	status := models.StatusRunning
	if !m.current.Alive() {
		status = models.StatusStopped
	}
	return &models.BrowserSession{
		ID:          m.current.ID,
		Status:      status,
		Backend:     m.launcher.Name(),
		StartedAt:   m.current.StartedAt,
		Restarts:    m.restarts,
		ConnectURL:  m.current.instance.ConnectURL,
		ContainerID: m.current.instance.ContainerID,
		UserDataDir: m.current.profile,
	}, true
}

// ConnectURL returns the DevTools websocket URL of the live browser, if it has one
func (m *Manager) ConnectURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil || !m.current.Alive() {
		return ""
	}
	return m.current.instance.ConnectURL
}

// ProfileDir returns the profile of the live session
func (m *Manager) ProfileDir() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ""
	}
	return m.current.profile
}

func (m *Manager) launchLocked(ctx context.Context) (*Session, error) {
	sessionID := uuid.New().String()

	var profileDir string
	if m.profiles != nil {
		dir, err := m.profiles.Create(sessionID)
		if err != nil {
			return nil, err
		}
		profileDir = dir
	}

	log.Printf("⏳ Launching %s browser session %s", m.launcher.Name(), sessionID[:8])
	instance, err := m.launcher.Launch(ctx, sessionID, profileDir)
	if err != nil {
		m.removeProfile(profileDir)
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	m.current = &Session{
		ID:        sessionID,
		StartedAt: time.Now(),
		instance:  instance,
		profile:   profileDir,
	}
	log.Printf("✅ Browser session %s ready", sessionID[:8])
	return m.current, nil
}

func (m *Manager) teardownLocked() {
	if m.current == nil {
		return
	}
	session := m.current
	m.current = nil

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := session.instance.Close(ctx); err != nil {
		log.Printf("⚠️ Failed to close browser session %s: %v", session.ID[:8], err)
	}
	m.removeProfile(session.profile)
	log.Printf("🔌 Browser session %s closed", session.ID[:8])
}

func (m *Manager) removeProfile(dir string) {
	if m.profiles == nil || dir == "" {
		return
	}
	if err := m.profiles.Remove(dir); err != nil {
		log.Printf("⚠️ %v", err)
	}
}
