package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"sheetbridge.dev/internal/host"
)

type fakeHost struct {
	mu     sync.Mutex
	status host.WorldStatus
	err    error
	actors map[string]*host.RawActor
	combat *host.CombatState
	users  []host.UserInfo
}

func (f *fakeHost) Status(ctx context.Context) (host.WorldStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.err
}

func (f *fakeHost) Users(ctx context.Context, cred host.Credential) ([]host.UserInfo, error) {
	return f.users, nil
}

func (f *fakeHost) Actors(ctx context.Context, cred host.Credential) ([]host.RawActor, error) {
	return nil, nil
}

func (f *fakeHost) Actor(ctx context.Context, cred host.Credential, id string) (*host.RawActor, error) {
	if a, ok := f.actors[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("no actor %s", id)
}

func (f *fakeHost) ChatLog(ctx context.Context, cred host.Credential, limit int) ([]host.ChatMessage, error) {
	return nil, nil
}

func (f *fakeHost) Combat(ctx context.Context, cred host.Credential) (*host.CombatState, error) {
	return f.combat, nil
}

type fakeSessions struct {
	mu           sync.Mutex
	revoked      int
	worldChanges []string
	cred         *host.Credential
}

func (f *fakeSessions) PrimaryCredential() (host.Credential, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cred == nil {
		return host.Credential{}, false
	}
	return *f.cred, true
}

func (f *fakeSessions) HasSessions() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cred != nil
}

func (f *fakeSessions) RevokeAll(reason string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked++
	return 1
}

func (f *fakeSessions) RevokeOnWorldChange(worldID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.worldChanges = append(f.worldChanges, worldID)
	return 1
}

func newTestLoop(h *fakeHost, s *fakeSessions, authed func() bool) *Loop {
	return NewLoop(h, s, authed, Cadence{}, "test", nil)
}

func TestStatusTickPublishesAtomically(t *testing.T) {
	h := &fakeHost{status: host.WorldStatus{Active: true, WorldID: "w1", WorldTitle: "Lost Citadel"}}
	s := &fakeSessions{}
	l := newTestLoop(h, s, func() bool { return false })

	l.statusTick(context.Background())

	snap := l.Snapshot()
	if snap.Step != StepLogin {
		t.Fatalf("step = %s, want login", snap.Step)
	}
	if snap.WorldID != "w1" || snap.WorldTitle != "Lost Citadel" {
		t.Fatalf("world identity not published: %+v", snap)
	}

	// A later tick must swap the whole snapshot, not mutate the old one.
	h.mu.Lock()
	h.status.WorldTitle = "New Title"
	h.mu.Unlock()
	l.statusTick(context.Background())
	if snap.WorldTitle != "Lost Citadel" {
		t.Fatalf("published snapshot mutated in place")
	}
	if l.Snapshot().WorldTitle != "New Title" {
		t.Fatalf("new snapshot not published")
	}
}

func TestStatusTickShutdownDetectedOnlyFromLiveStep(t *testing.T) {
	h := &fakeHost{status: host.WorldStatus{Active: false}}
	s := &fakeSessions{}
	l := newTestLoop(h, s, func() bool { return false })

	// Fresh setup at process start: silent.
	l.statusTick(context.Background())
	if snap := l.Snapshot(); snap.Step != StepSetup || snap.ShutdownDetected {
		t.Fatalf("fresh setup must be silent, got %+v", snap)
	}

	// Reach login, then the world disappears: shutdown signal raised.
	h.mu.Lock()
	h.status = host.WorldStatus{Active: true, WorldID: "w1", WorldTitle: "Lost Citadel"}
	h.mu.Unlock()
	l.statusTick(context.Background())
	if l.Snapshot().Step != StepLogin {
		t.Fatalf("expected login, got %s", l.Snapshot().Step)
	}

	h.mu.Lock()
	h.status = host.WorldStatus{Active: false}
	h.mu.Unlock()
	l.statusTick(context.Background())
	snap := l.Snapshot()
	if snap.Step != StepSetup || !snap.ShutdownDetected {
		t.Fatalf("expected shutdown detection, got %+v", snap)
	}
	s.mu.Lock()
	revoked := s.revoked
	s.mu.Unlock()
	if revoked == 0 {
		t.Fatalf("entering setup must revoke sessions")
	}
}

func TestStatusTickLoginConfirmationSequence(t *testing.T) {
	h := &fakeHost{status: host.WorldStatus{Active: true, WorldID: "w1", WorldTitle: "Reconnecting..."}}
	s := &fakeSessions{}
	var confirmed bool
	var mu sync.Mutex
	l := newTestLoop(h, s, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return confirmed
	})

	// World still booting.
	l.statusTick(context.Background())
	if got := l.Snapshot().Step; got != StepStartup {
		t.Fatalf("booting world: got %s, want startup", got)
	}

	// Real title, nobody logged in.
	h.mu.Lock()
	h.status.WorldTitle = "Lost Citadel"
	h.mu.Unlock()
	l.statusTick(context.Background())
	if got := l.Snapshot().Step; got != StepLogin {
		t.Fatalf("no session: got %s, want login", got)
	}

	// A login succeeded: session exists, host has not confirmed the channel.
	s.mu.Lock()
	s.cred = &host.Credential{Cookie: "hc", UserID: "u1"}
	s.mu.Unlock()
	l.statusTick(context.Background())
	if got := l.Snapshot().Step; got != StepAuthenticating {
		t.Fatalf("session without confirmation: got %s, want authenticating", got)
	}

	// Stays put while the host keeps it waiting.
	l.statusTick(context.Background())
	if got := l.Snapshot().Step; got != StepAuthenticating {
		t.Fatalf("unconfirmed poll must hold: got %s", got)
	}

	// Host confirms the channel.
	mu.Lock()
	confirmed = true
	mu.Unlock()
	l.statusTick(context.Background())
	if got := l.Snapshot().Step; got != StepDashboard {
		t.Fatalf("post-confirmation: got %s, want dashboard", got)
	}
}

func TestStatusTickErrorReadsAsInactive(t *testing.T) {
	h := &fakeHost{err: fmt.Errorf("connection refused")}
	s := &fakeSessions{}
	l := newTestLoop(h, s, func() bool { return true })

	l.statusTick(context.Background())
	if got := l.Snapshot().Step; got != StepSetup {
		t.Fatalf("failed poll should drive setup, got %s", got)
	}
}

func TestStatusTickWorldChangeRevokes(t *testing.T) {
	h := &fakeHost{status: host.WorldStatus{Active: true, WorldID: "w1", WorldTitle: "First"}}
	s := &fakeSessions{}
	l := newTestLoop(h, s, func() bool { return false })

	l.statusTick(context.Background())
	h.mu.Lock()
	h.status.WorldID = "w2"
	h.mu.Unlock()
	l.statusTick(context.Background())

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.worldChanges) != 1 || s.worldChanges[0] != "w2" {
		t.Fatalf("expected one world-change revocation for w2, got %v", s.worldChanges)
	}
}

func TestCombatTickDegradesUnresolvedCombatant(t *testing.T) {
	actor := &host.RawActor{ID: "a1", Name: "Vash", System: json.RawMessage(`{}`)}
	h := &fakeHost{
		status: host.WorldStatus{Active: true, WorldID: "w1", WorldTitle: "First"},
		actors: map[string]*host.RawActor{"a1": actor},
		combat: &host.CombatState{
			ID:      "c1",
			Round:   2,
			Started: true,
			Combatants: []host.Combatant{
				{ID: "cb1", ActorID: "a1"},
				{ID: "cb2", ActorID: "missing"},
			},
		},
	}
	cred := &host.Credential{Cookie: "x"}
	s := &fakeSessions{cred: cred}
	l := newTestLoop(h, s, func() bool { return true })

	l.combatTick(context.Background())

	snap := l.Snapshot()
	if snap.Combat == nil || len(snap.Combat.Combatants) != 2 {
		t.Fatalf("combat view missing: %+v", snap.Combat)
	}
	if snap.Combat.Combatants[0].Name != "Vash" || snap.Combat.Combatants[0].Unresolved {
		t.Fatalf("resolved combatant wrong: %+v", snap.Combat.Combatants[0])
	}
	if !snap.Combat.Combatants[1].Unresolved {
		t.Fatalf("missing actor must degrade to unresolved, not fail the tick")
	}
}
