package session

import (
	"sync"
	"testing"
)

func TestPublishLogoutClearsUser(t *testing.T) {
	m := NewManager()
	m.Publish(Event{Kind: EventLogin, User: &User{ID: 1, Name: "Ana", Roles: []string{"user"}}})
	if !m.IsAuthenticated() {
		t.Fatal("expected authenticated after login event")
	}

	m.Publish(Event{Kind: EventLogout, Reason: ReasonRefreshFailed})
	if m.IsAuthenticated() {
		t.Fatal("expected logout to clear the user")
	}
	if m.User() != nil {
		t.Fatal("User() should be nil after logout")
	}
}

func TestSubscribersRunInOrderAndUnsubscribe(t *testing.T) {
	m := NewManager()

	var got []string
	unsubA := m.Subscribe(func(ev Event) { got = append(got, "a:"+ev.Kind.String()) })
	m.Subscribe(func(ev Event) { got = append(got, "b:"+ev.Kind.String()) })

	m.Publish(Event{Kind: EventLogout})
	unsubA()
	unsubA()
	m.Publish(Event{Kind: EventLogin})

	want := []string{"a:logout", "b:logout", "b:login"}
	if len(got) != len(want) {
		t.Fatalf("events=%v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events=%v want %v", got, want)
		}
	}
}

func TestPublishStampsTime(t *testing.T) {
	m := NewManager()
	var ev Event
	m.Subscribe(func(e Event) { ev = e })
	m.Publish(Event{Kind: EventLogout})
	if ev.At.IsZero() {
		t.Fatal("expected At to be set")
	}
}

func TestUserIsCopied(t *testing.T) {
	m := NewManager()
	u := &User{ID: 2, Roles: []string{"user"}}
	m.SetUser(u)
	u.Roles[0] = "admin"

	if m.IsAdmin() {
		t.Fatal("manager must not share the caller's slices")
	}
	got := m.User()
	got.Roles = append(got.Roles, "staff")
	if m.IsStaff() {
		t.Fatal("returned user must be a copy")
	}
}

func TestRoleAndPermissionHelpers(t *testing.T) {
	cases := []struct {
		name  string
		user  *User
		staff bool
		admin bool
		perm  bool
	}{
		{name: "anonymous"},
		{name: "plain user", user: &User{Roles: []string{"user"}}},
		{name: "staff flag", user: &User{IsStaff: true, Permissions: []string{"api:add_livro"}}, staff: true, perm: true},
		{name: "staff role", user: &User{Roles: []string{"user", "staff"}}, staff: true},
		{name: "superuser", user: &User{IsSuperuser: true}, staff: true, admin: true, perm: true},
		{name: "wildcard", user: &User{Permissions: []string{"*"}}, perm: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager()
			m.SetUser(tc.user)
			if got := m.IsStaff(); got != tc.staff {
				t.Fatalf("IsStaff=%v want %v", got, tc.staff)
			}
			if got := m.IsAdmin(); got != tc.admin {
				t.Fatalf("IsAdmin=%v want %v", got, tc.admin)
			}
			if got := m.HasPermission("api:add_livro"); got != tc.perm {
				t.Fatalf("HasPermission=%v want %v", got, tc.perm)
			}
		})
	}
}

func TestConcurrentPublishAndRead(t *testing.T) {
	m := NewManager()
	m.Subscribe(func(Event) {})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				m.Publish(Event{Kind: EventLogin, User: &User{ID: int64(i)}})
			} else {
				m.Publish(Event{Kind: EventLogout})
			}
		}(i)
		go func() {
			defer wg.Done()
			_ = m.User()
			_ = m.HasPermission("x")
		}()
	}
	wg.Wait()
}
