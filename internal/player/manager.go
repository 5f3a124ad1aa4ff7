package player

import "sync"

// Manager is the per-guild session registry. It is owned by the composition
// root; sessions are created lazily and live for the process lifetime.
type Manager struct {
	resolver StreamResolver
	dialer   SinkDialer
	opts     SessionOpts

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(res StreamResolver, dialer SinkDialer, opts SessionOpts) *Manager {
	return &Manager{
		resolver: res,
		dialer:   dialer,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Get(guildID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[guildID]; ok {
		return s
	}
	s := NewSession(guildID, m.resolver, m.dialer, m.opts)
	m.sessions[guildID] = s
	return s
}

// Peek returns the session if one exists, without creating it.
func (m *Manager) Peek(guildID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[guildID]
}
