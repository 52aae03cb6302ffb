package session

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog/log"
)

// Manager holds sessions in memory, identified by a signed cookie.
type Manager struct {
	name   string
	ttl    time.Duration
	cookie *securecookie.SecureCookie
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager. A random signing key is generated when hashKey is empty, which
// invalidates sessions across restarts.
func NewManager(cookieName string, hashKey []byte, ttl time.Duration) *Manager {
	if len(hashKey) == 0 {
		log.Info().Str("module", "session").Str("phase", "startup").
			Msg("Generating random session cookie key")
		hashKey = securecookie.GenerateRandomKey(64)
	}
	return &Manager{
		name:     cookieName,
		ttl:      ttl,
		cookie:   securecookie.New(hashKey, nil),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Load returns the session of the request, starting a new one and setting its cookie on w when
// the request carries none or an expired one.
func (m *Manager) Load(w http.ResponseWriter, req *http.Request) *Session {
	if c, err := req.Cookie(m.name); err == nil {
		var id string
		if err := m.cookie.Decode(m.name, c.Value, &id); err == nil {
			if s := m.lookup(id); s != nil {
				return s
			}
		} else {
			log.Debug().Str("module", "session").Err(err).Msg("Rejected session cookie")
		}
	}
	s := m.create()
	encoded, err := m.cookie.Encode(m.name, s.ID)
	if err != nil {
		log.Error().Str("module", "session").Err(err).Msg("Failed to encode session cookie")
		return s
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.name,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s
}

func (m *Manager) lookup(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	now := m.now()
	if s.idleSince(now) > m.ttl {
		delete(m.sessions, id)
		return nil
	}
	s.touch(now)
	return s
}

func (m *Manager) create() *Session {
	s := New(uuid.NewString())
	s.touch(m.now())
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Sweep discards sessions idle for longer than the TTL and returns how many were removed.
func (m *Manager) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.idleSince(now) > m.ttl {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run sweeps expired sessions every interval until shutdown is closed.
func (m *Manager) Run(interval time.Duration, shutdown <-chan bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-shutdown:
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				log.Debug().Str("module", "session").Int("count", n).Msg("Swept expired sessions")
			}
		}
	}
}
