package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Session is a saved login to a remote API
type Session struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	ServerURL string    `json:"server_url"`
}

// SessionManager handles session storage and retrieval
type SessionManager struct {
	sessionPath string
	now         func() time.Time
}

// NewSessionManager stores the session under ~/.prokill
func NewSessionManager() *SessionManager {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return NewSessionManagerAt(filepath.Join(homeDir, ".prokill", "session.json"))
}

// NewSessionManagerAt stores the session at path
func NewSessionManagerAt(path string) *SessionManager {
	return &SessionManager{sessionPath: path, now: time.Now}
}

// SaveSession saves a session to disk, readable only by the user
func (sm *SessionManager) SaveSession(session *Session) error {
	if err := os.MkdirAll(filepath.Dir(sm.sessionPath), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(sm.sessionPath, data, 0o600)
}

// LoadSession returns the saved session, or nil when none exists or it expired
func (sm *SessionManager) LoadSession() (*Session, error) {
	data, err := os.ReadFile(sm.sessionPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}

	if !session.ExpiresAt.IsZero() && sm.now().After(session.ExpiresAt) {
		_ = sm.ClearSession()
		return nil, nil
	}
	return &session, nil
}

// ClearSession removes the session file
func (sm *SessionManager) ClearSession() error {
	if err := os.Remove(sm.sessionPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// GetSessionPath returns the path to the session file
func (sm *SessionManager) GetSessionPath() string {
	return sm.sessionPath
}
