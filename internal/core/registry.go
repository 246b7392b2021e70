package core

import "sync"

// Registry is the authoritative map of online usernames to sessions. Both
// index maps are mutated under the same mutex, so they can never disagree:
// users[name] == s exactly when conns[s] == name. The lock protects map
// metadata only; socket writes never happen while it is held.
type Registry struct {
	mu    sync.Mutex
	conns map[*Session]string
	users map[string]*Session
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[*Session]string),
		users: make(map[string]*Session),
	}
}

// Register binds username to the session. It fails with ErrNameTaken when
// the username is already bound to a live connection.
func (r *Registry) Register(s *Session, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.users[username]; taken {
		return ErrNameTaken
	}
	r.conns[s] = username
	r.users[username] = s
	return nil
}

// Unregister removes both index entries for the session and returns the
// freed username. A session that never registered (failed login) reports
// false.
func (r *Registry) Unregister(s *Session) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.conns[s]
	if !ok {
		return "", false
	}
	delete(r.conns, s)
	delete(r.users, username)
	return username, true
}

// Lookup returns the session currently bound to username.
func (r *Registry) Lookup(username string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.users[username]
	return s, ok
}

// Sessions returns a snapshot of all registered sessions for fan-out.
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]*Session, 0, len(r.conns))
	for s := range r.conns {
		sessions = append(sessions, s)
	}
	return sessions
}

// OnlineUsernames returns a snapshot of currently registered usernames.
func (r *Registry) OnlineUsernames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.users))
	for name := range r.users {
		names = append(names, name)
	}
	return names
}
