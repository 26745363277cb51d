// Package host talks to the external game server: typed views over its raw
// documents, an HTTP client for reads and the generic document-mutation
// protocol, and a websocket channel for session confirmation and push frames.
package host

import "encoding/json"

// Role levels as the host persists them. Assistant and above count as GM.
const (
	RoleNone      = 0
	RolePlayer    = 1
	RoleTrusted   = 2
	RoleAssistant = 3
	RoleGamemaster = 4
)

// Credential is the host-side authentication state a bridge session wraps:
// the host's session cookie plus the user it was established for.
type Credential struct {
	Cookie string `json:"cookie"`
	UserID string `json:"userId"`
}

type WorldStatus struct {
	Active     bool   `json:"active"`
	WorldID    string `json:"world"`
	WorldTitle string `json:"worldTitle"`
	SystemID   string `json:"system"`
	Version    string `json:"version"`
	Users      int    `json:"users"`
}

type UserInfo struct {
	ID            string `json:"_id"`
	Name          string `json:"name"`
	Role          int    `json:"role"`
	Active        bool   `json:"active"`
	Color         string `json:"color"`
	CharacterID   string `json:"character,omitempty"`
	CharacterName string `json:"characterName,omitempty"`
}

func (u UserInfo) IsGM() bool { return u.Role >= RoleAssistant }

// RawActor is the host's actor document as stored: the system block is
// ruleset-specific and left opaque for the adapters to interpret.
type RawActor struct {
	ID      string          `json:"_id"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Img     string          `json:"img"`
	System  json.RawMessage `json:"system"`
	Items   []RawItem       `json:"items"`
	Effects []RawEffect     `json:"effects"`
	Flags   json.RawMessage `json:"flags,omitempty"`
}

type RawItem struct {
	ID      string          `json:"_id"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Img     string          `json:"img"`
	System  json.RawMessage `json:"system"`
	Effects []RawEffect     `json:"effects,omitempty"`
	Sort    int             `json:"sort,omitempty"`
}

// RawEffect tolerates both naming generations the host has shipped: older
// documents carry label/icon, newer ones name/img.
type RawEffect struct {
	ID       string            `json:"_id"`
	Name     string            `json:"name,omitempty"`
	Label    string            `json:"label,omitempty"`
	Icon     string            `json:"icon,omitempty"`
	Img      string            `json:"img,omitempty"`
	Disabled bool              `json:"disabled"`
	Statuses []string          `json:"statuses,omitempty"`
	Flags    map[string]any    `json:"flags,omitempty"`
	Changes  []RawEffectChange `json:"changes,omitempty"`
}

func (e RawEffect) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Label
}

type RawEffectChange struct {
	Key   string `json:"key"`
	Mode  int    `json:"mode"`
	Value string `json:"value"`
}

// DocumentRef addresses a nested collection inside a host document tree.
// ParentType is "Actor" for top-level collections or "Actor.<actorId>.Item"
// when the collection hangs off one of the actor's items.
type DocumentRef struct {
	ParentType   string `json:"parentType"`
	ParentID     string `json:"parentId"`
	DocumentKind string `json:"documentKind"`
	DocumentID   string `json:"documentId,omitempty"`
}

type ModifyAction string

const (
	ActionCreate ModifyAction = "create"
	ActionUpdate ModifyAction = "update"
	ActionDelete ModifyAction = "delete"
)

// ModifyRequest is the generic mutation protocol the host accepts for
// sub-documents (items, active effects).
type ModifyRequest struct {
	Action ModifyAction    `json:"action"`
	Ref    DocumentRef     `json:"ref"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type ChatMessage struct {
	ID        string          `json:"_id"`
	User      string          `json:"user"`
	Speaker   string          `json:"speaker,omitempty"`
	Content   string          `json:"content"`
	Timestamp int64           `json:"timestamp"`
	Roll      json.RawMessage `json:"roll,omitempty"`
}

type Combatant struct {
	ID         string  `json:"_id"`
	ActorID    string  `json:"actorId"`
	Name       string  `json:"name"`
	Img        string  `json:"img,omitempty"`
	Initiative float64 `json:"initiative"`
	Defeated   bool    `json:"defeated"`
	Hidden     bool    `json:"hidden"`
}

type CombatState struct {
	ID         string      `json:"_id"`
	Round      int         `json:"round"`
	Turn       int         `json:"turn"`
	Started    bool        `json:"started"`
	Combatants []Combatant `json:"combatants"`
}

// OwnershipObserver and up can read a journal; owner level is required to
// modify it.
const (
	OwnershipNone     = 0
	OwnershipLimited  = 1
	OwnershipObserver = 2
	OwnershipOwner    = 3
)

type Journal struct {
	ID        string         `json:"_id"`
	Name      string         `json:"name"`
	Content   string         `json:"content"`
	Ownership map[string]int `json:"ownership,omitempty"`
}
