package bot

import "sync"

// SessionInfo describes one currently running session for the
// cross-session coordination notice.
type SessionInfo struct {
	ThreadID    string
	Description string
	WorkingDir  string
}

// SessionRegistry tracks which threads have a live run. Shared across all
// supervisor goroutines.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]SessionInfo
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]SessionInfo)}
}

// Register records a running session for a thread
func (r *SessionRegistry) Register(threadID, description, workingDir string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[threadID] = SessionInfo{
		ThreadID:    threadID,
		Description: description,
		WorkingDir:  workingDir,
	}
}

// Unregister removes a thread's session
func (r *SessionRegistry) Unregister(threadID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, threadID)
}

// Others returns a snapshot of all sessions except the given thread's
func (r *SessionRegistry) Others(threadID string) []SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SessionInfo
	for id, info := range r.sessions {
		if id != threadID {
			out = append(out, info)
		}
	}
	return out
}

// Count returns the number of registered sessions
func (r *SessionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
