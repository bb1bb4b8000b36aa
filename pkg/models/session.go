package models

import "time"

// SessionStatus represents the current state of the browser session
type SessionStatus string

const (
	StatusRunning SessionStatus = "RUNNING"
	StatusStopped SessionStatus = "STOPPED"
)

// BrowserSession describes the live browser owned by the session manager
type BrowserSession struct {
	ID          string        `json:"id"`
	Status      SessionStatus `json:"status"`
	Backend     string        `json:"backend"`
	StartedAt   time.Time     `json:"startedAt"`
	Restarts    int           `json:"restarts"`
	ConnectURL  string        `json:"connectUrl,omitempty"`
	ContainerID string        `json:"-"`
	UserDataDir string        `json:"-"`
}
