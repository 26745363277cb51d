package adapter

import (
	"strings"

	"sheetbridge.dev/internal/errs"
	"sheetbridge.dev/internal/host"
)

// Adapter is implemented once per supported ruleset.
//
// NormalizeActor must be total over anything that is recognizably an actor:
// missing optional fields become canonical defaults, never errors. It errors
// only when the payload has no id or name at all, which signals corrupt data
// upstream rather than a schema difference.
//
// ComputeRoll returns nil when the referenced ability or item cannot be
// resolved; callers treat nil as "no roll possible", not a failure.
type Adapter interface {
	SystemID() string
	NormalizeActor(raw *host.RawActor) (*ActorSheet, error)
	ComputeRoll(raw *host.RawActor, kind RollKind, key string, opts RollOptions) *RollSpec
}

// checkIdentity is the one normalization precondition shared by all adapters.
func checkIdentity(raw *host.RawActor) error {
	if raw == nil || raw.ID == "" || raw.Name == "" {
		return errs.E(errs.Validation, "payload is not an actor: missing id or name")
	}
	return nil
}

// Registry resolves a ruleset id to its adapter. Unregistered ids resolve to
// the generic adapter so unknown or future rulesets degrade instead of
// breaking the dashboard.
type Registry struct {
	byID     map[string]Adapter
	fallback Adapter
}

func NewRegistry() *Registry {
	r := &Registry{
		byID:     map[string]Adapter{},
		fallback: &GenericAdapter{},
	}
	r.Register(&ShadowdarkAdapter{})
	r.Register(&DnD5eAdapter{})
	return r
}

func (r *Registry) Register(a Adapter) {
	r.byID[strings.ToLower(a.SystemID())] = a
}

func (r *Registry) For(systemID string) Adapter {
	if a, ok := r.byID[strings.ToLower(strings.TrimSpace(systemID))]; ok {
		return a
	}
	return r.fallback
}

func (r *Registry) Known() []string {
	out := make([]string, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	return out
}
