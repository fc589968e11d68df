package qbittorrent

import "sync"

// Session holds the SID cookie issued by /api/v2/auth/login.
type Session struct {
	mu  sync.Mutex
	sid string
}

// SID returns the current cookie value, or "" when not logged in.
func (s *Session) SID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sid
}

// Set stores a freshly issued cookie value.
func (s *Session) Set(sid string) {
	s.mu.Lock()
	s.sid = sid
	s.mu.Unlock()
}

// Invalidate drops the cookie so the next request logs in again. It only
// clears the cookie if it still equals stale, leaving a concurrent re-login
// untouched.
func (s *Session) Invalidate(stale string) {
	s.mu.Lock()
	if s.sid == stale {
		s.sid = ""
	}
	s.mu.Unlock()
}
