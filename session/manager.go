package session

import (
	"sync"
	"time"
)

type subscriber struct {
	id uint64
	fn func(Event)
}

// Manager publishes session events and tracks the current user.
// The zero value is not usable; call NewManager.
type Manager struct {
	mu     sync.RWMutex
	user   *User
	subs   []subscriber
	nextID uint64
	now    func() time.Time
}

// NewManager returns a manager with no user and no subscribers.
func NewManager() *Manager {
	return &Manager{now: time.Now}
}

// Subscribe registers fn for every future event. Subscribers run
// synchronously on the publishing goroutine, in subscription order. The
// returned function removes the subscription and is safe to call twice.
func (m *Manager) Subscribe(fn func(Event)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish applies ev to the user state and notifies subscribers.
// EventLogout clears the user; EventLogin and EventUserLoaded store ev.User.
func (m *Manager) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = m.now()
	}

	m.mu.Lock()
	switch ev.Kind {
	case EventLogout:
		m.user = nil
	case EventLogin, EventUserLoaded:
		if ev.User != nil {
			m.user = ev.User.clone()
		}
	}
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

// SetUser replaces the current user without publishing. A nil user marks the
// session as anonymous.
func (m *Manager) SetUser(u *User) {
	m.mu.Lock()
	m.user = u.clone()
	m.mu.Unlock()
}

// User returns a copy of the current user, or nil.
func (m *Manager) User() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user.clone()
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user != nil
}

func (m *Manager) Roles() []string {
	if u := m.User(); u != nil {
		return u.Roles
	}
	return nil
}

func (m *Manager) IsStaff() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user.Staff()
}

func (m *Manager) IsAdmin() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user.Admin()
}

func (m *Manager) HasPermission(perm string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user.HasPermission(perm)
}
