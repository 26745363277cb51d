package reconcile

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"sheetbridge.dev/internal/host"
)

// hostAPI is the slice of the host client the loop polls through.
type hostAPI interface {
	Status(ctx context.Context) (host.WorldStatus, error)
	Users(ctx context.Context, cred host.Credential) ([]host.UserInfo, error)
	Actors(ctx context.Context, cred host.Credential) ([]host.RawActor, error)
	Actor(ctx context.Context, cred host.Credential, id string) (*host.RawActor, error)
	ChatLog(ctx context.Context, cred host.Credential, limit int) ([]host.ChatMessage, error)
	Combat(ctx context.Context, cred host.Credential) (*host.CombatState, error)
}

// SessionControl is what the loop needs from the session layer: a credential
// to poll with, and bulk revocation when the world goes away or changes.
type SessionControl interface {
	PrimaryCredential() (host.Credential, bool)
	HasSessions() bool
	RevokeAll(reason string) int
	RevokeOnWorldChange(worldID string) int
}

type Cadence struct {
	Status time.Duration
	Users  time.Duration
	Chat   time.Duration
	Combat time.Duration
}

func (c *Cadence) normalize() {
	if c.Status <= 0 {
		c.Status = time.Second
	}
	if c.Users <= 0 {
		c.Users = 3 * time.Second
	}
	if c.Chat <= 0 {
		c.Chat = 5 * time.Second
	}
	if c.Combat <= 0 {
		c.Combat = 3 * time.Second
	}
}

// Loop runs one scheduled task per concern on independent tickers, so a slow
// combat poll never blocks the cheap status poll. Poll errors are swallowed:
// a failed status tick reads as "host inactive" and drives the state machine
// to setup rather than surfacing transient network noise.
type Loop struct {
	client   hostAPI
	sessions SessionControl
	authed   func() bool
	cadence  Cadence
	version  string
	log      *log.Logger

	snap *holder

	// writeMu serializes snapshot builds across concerns; per-concern
	// TryLocks drop a tick outright if the previous one is still running.
	writeMu  sync.Mutex
	statusMu sync.Mutex
	usersMu  sync.Mutex
	chatMu   sync.Mutex
	combatMu sync.Mutex

	prev          Step
	dashboardSeen bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewLoop(client hostAPI, sessions SessionControl, authed func() bool, cadence Cadence, version string, logger *log.Logger) *Loop {
	cadence.normalize()
	if authed == nil {
		authed = func() bool { return false }
	}
	return &Loop{
		client:   client,
		sessions: sessions,
		authed:   authed,
		cadence:  cadence,
		version:  version,
		log:      logger,
		snap:     newHolder(),
		prev:     StepInit,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Snapshot returns the latest published snapshot. Mutations issued through
// the dispatcher do not write through here; the next poll picks them up, so
// brief staleness after a write is expected.
func (l *Loop) Snapshot() *Snapshot { return l.snap.get() }

func (l *Loop) Start(ctx context.Context) {
	go l.run(ctx)
}

func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)

	status := time.NewTicker(l.cadence.Status)
	users := time.NewTicker(l.cadence.Users)
	chat := time.NewTicker(l.cadence.Chat)
	combat := time.NewTicker(l.cadence.Combat)
	defer status.Stop()
	defer users.Stop()
	defer chat.Stop()
	defer combat.Stop()

	// Prime immediately rather than waiting out the first tick.
	l.statusTick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case <-status.C:
			l.statusTick(ctx)
		case <-users.C:
			go l.usersTick(ctx)
		case <-chat.C:
			go l.chatTick(ctx)
		case <-combat.C:
			go l.combatTick(ctx)
		}
	}
}

// statusTick drives the state machine. It is the only place Step changes.
func (l *Loop) statusTick(ctx context.Context) {
	if !l.statusMu.TryLock() {
		return
	}
	defer l.statusMu.Unlock()

	st, err := l.client.Status(ctx)
	hostActive := err == nil && st.Active
	authed := l.authed()
	// A session without channel confirmation is a login awaiting the host.
	pendingAuth := !authed && l.sessions.HasSessions()
	titleComplete := TitleComplete(st.WorldTitle)

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	cur := l.snap.get()
	next := ComputeStep(hostActive, authed, pendingAuth, titleComplete, l.prev)

	ns := *cur
	ns.Active = hostActive
	ns.AppVersion = l.version
	ns.UpdatedAt = time.Now()

	if hostActive {
		// World identity changing under active sessions invalidates them all.
		if st.WorldID != "" && cur.WorldID != "" && st.WorldID != cur.WorldID {
			if n := l.sessions.RevokeOnWorldChange(st.WorldID); n > 0 && l.log != nil {
				l.log.Printf("world changed %s -> %s, revoked %d session(s)", cur.WorldID, st.WorldID, n)
			}
		}
		ns.WorldID = st.WorldID
		ns.WorldTitle = st.WorldTitle
		ns.SystemID = st.SystemID
	}

	if next == StepSetup && l.prev != StepSetup {
		// A live world dropping away is a shutdown; a fresh setup is silent.
		ns.ShutdownDetected = isLive(l.prev)
		l.sessions.RevokeAll("host world not active")
		ns.WorldID = ""
		ns.WorldTitle = ""
		ns.SystemID = ""
		ns.Users = []host.UserInfo{}
		ns.ChatTail = nil
		ns.Combat = nil
		l.dashboardSeen = false
		if ns.ShutdownDetected && l.log != nil {
			l.log.Printf("shutdown detected (was %s)", l.prev)
		}
	}
	if next != StepSetup {
		ns.ShutdownDetected = false
	}

	if next == StepDashboard && !l.dashboardSeen {
		l.dashboardSeen = true
		ns.ActorSyncToken = fmt.Sprintf("sync-%d", time.Now().UnixNano())
		go l.refreshActors(ctx)
	}

	ns.Step = next
	l.prev = next
	l.snap.set(&ns)
}

// refreshActors is the one-shot warm-up issued on first entry to dashboard.
func (l *Loop) refreshActors(ctx context.Context) {
	cred, ok := l.sessions.PrimaryCredential()
	if !ok {
		return
	}
	if _, err := l.client.Actors(ctx, cred); err != nil && l.log != nil {
		l.log.Printf("actor warm-up: %v", err)
	}
}

func (l *Loop) usersTick(ctx context.Context) {
	if !l.usersMu.TryLock() {
		return
	}
	defer l.usersMu.Unlock()

	cred, ok := l.sessions.PrimaryCredential()
	if !ok {
		return
	}
	users, err := l.client.Users(ctx, cred)
	if err != nil {
		return
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	ns := *l.snap.get()
	ns.Users = users
	ns.UpdatedAt = time.Now()
	l.snap.set(&ns)
}

func (l *Loop) chatTick(ctx context.Context) {
	if !l.chatMu.TryLock() {
		return
	}
	defer l.chatMu.Unlock()

	cred, ok := l.sessions.PrimaryCredential()
	if !ok {
		return
	}
	msgs, err := l.client.ChatLog(ctx, cred, 50)
	if err != nil {
		return
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	ns := *l.snap.get()
	ns.ChatTail = msgs
	ns.UpdatedAt = time.Now()
	l.snap.set(&ns)
}

// combatTick fans out into per-combatant actor lookups; one failed lookup
// degrades that combatant to unresolved, never the whole cycle.
func (l *Loop) combatTick(ctx context.Context) {
	if !l.combatMu.TryLock() {
		return
	}
	defer l.combatMu.Unlock()

	cred, ok := l.sessions.PrimaryCredential()
	if !ok {
		return
	}
	cs, err := l.client.Combat(ctx, cred)
	if err != nil {
		return
	}

	var view *CombatView
	if cs != nil {
		view = &CombatView{ID: cs.ID, Round: cs.Round, Turn: cs.Turn, Started: cs.Started}
		for _, cb := range cs.Combatants {
			cv := CombatantView{
				ID:         cb.ID,
				ActorID:    cb.ActorID,
				Name:       cb.Name,
				Img:        cb.Img,
				Initiative: cb.Initiative,
				Defeated:   cb.Defeated,
				Hidden:     cb.Hidden,
			}
			if cv.Name == "" && cb.ActorID != "" {
				if actor, err := l.client.Actor(ctx, cred, cb.ActorID); err == nil {
					cv.Name = actor.Name
					if cv.Img == "" {
						cv.Img = actor.Img
					}
				} else {
					cv.Unresolved = true
				}
			}
			view.Combatants = append(view.Combatants, cv)
		}
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	ns := *l.snap.get()
	ns.Combat = view
	ns.UpdatedAt = time.Now()
	l.snap.set(&ns)
}
