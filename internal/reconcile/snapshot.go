package reconcile

import (
	"sync"
	"time"

	"sheetbridge.dev/internal/host"
)

// CombatantView is a combatant with its actor resolved, or flagged
// unresolved when that one lookup failed.
type CombatantView struct {
	ID         string  `json:"id"`
	ActorID    string  `json:"actorId"`
	Name       string  `json:"name"`
	Img        string  `json:"img,omitempty"`
	Initiative float64 `json:"initiative"`
	Defeated   bool    `json:"defeated"`
	Hidden     bool    `json:"hidden"`
	Unresolved bool    `json:"unresolved,omitempty"`
}

type CombatView struct {
	ID         string          `json:"id"`
	Round      int             `json:"round"`
	Turn       int             `json:"turn"`
	Started    bool            `json:"started"`
	Combatants []CombatantView `json:"combatants"`
}

// Snapshot is the process-wide host view. It is immutable once published;
// the loop builds a fresh copy per tick and swaps the pointer, so readers
// never observe fields from two different ticks.
type Snapshot struct {
	Step       Step            `json:"step"`
	WorldID    string          `json:"worldId"`
	WorldTitle string          `json:"worldTitle"`
	SystemID   string          `json:"systemId"`
	Active     bool            `json:"active"`
	Users      []host.UserInfo `json:"users"`

	ChatTail []host.ChatMessage `json:"chatTail,omitempty"`
	Combat   *CombatView        `json:"combat,omitempty"`

	ActorSyncToken string `json:"actorSyncToken,omitempty"`
	AppVersion     string `json:"appVersion,omitempty"`

	// ShutdownDetected distinguishes a live world dropping to setup from a
	// fresh setup observed at process start; callers use it to show a reload
	// countdown instead of an abrupt redirect.
	ShutdownDetected bool      `json:"shutdownDetected,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// holder is the single-writer/many-reader snapshot cell.
type holder struct {
	mu   sync.RWMutex
	snap *Snapshot
}

func newHolder() *holder {
	return &holder{snap: &Snapshot{Step: StepInit, Users: []host.UserInfo{}}}
}

func (h *holder) get() *Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap
}

func (h *holder) set(s *Snapshot) {
	h.mu.Lock()
	h.snap = s
	h.mu.Unlock()
}
