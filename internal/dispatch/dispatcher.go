package dispatch

import (
	"context"
	"encoding/json"
	"log"

	"sheetbridge.dev/internal/errs"
	"sheetbridge.dev/internal/host"
)

// hostAPI is the slice of the host client the dispatcher needs; tests supply
// a fake.
type hostAPI interface {
	Actor(ctx context.Context, cred host.Credential, id string) (*host.RawActor, error)
	ModifyDocument(ctx context.Context, cred host.Credential, req host.ModifyRequest) (json.RawMessage, error)
}

type DocKind string

const (
	KindEffect DocKind = "effect"
	KindItem   DocKind = "item"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpToggle Op = "toggle"
)

// Dispatcher routes mutations into host-owned documents. The addressing for
// effects is recomputed from the actor's raw document on every call, since an
// effect can sit on the actor or on any of the actor's items and containment
// can change between calls.
type Dispatcher struct {
	host    hostAPI
	catalog *Catalog
	log     *log.Logger
}

func New(h hostAPI, catalog *Catalog, logger *log.Logger) *Dispatcher {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Dispatcher{host: h, catalog: catalog, log: logger}
}

func (d *Dispatcher) Catalog() *Catalog { return d.catalog }

type payload struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Mutate applies one create/update/delete/toggle to an actor's items or
// effects and returns the host's reply.
func (d *Dispatcher) Mutate(ctx context.Context, cred host.Credential, actorID string, kind DocKind, op Op, raw json.RawMessage) (json.RawMessage, error) {
	var p payload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, errs.Wrap(errs.Validation, "mutation payload", err)
		}
	}

	switch kind {
	case KindItem:
		return d.mutateItem(ctx, cred, actorID, op, p)
	case KindEffect:
		return d.mutateEffect(ctx, cred, actorID, op, p)
	default:
		return nil, errs.E(errs.Validation, "unknown document kind %q", kind)
	}
}

func (d *Dispatcher) mutateItem(ctx context.Context, cred host.Credential, actorID string, op Op, p payload) (json.RawMessage, error) {
	ref := host.DocumentRef{ParentType: "Actor", ParentID: actorID, DocumentKind: "Item"}
	switch op {
	case OpCreate:
		if len(p.Data) == 0 {
			return nil, errs.E(errs.Validation, "item create requires data")
		}
		return d.host.ModifyDocument(ctx, cred, host.ModifyRequest{Action: host.ActionCreate, Ref: ref, Data: p.Data})
	case OpUpdate:
		if p.ID == "" {
			return nil, errs.E(errs.Validation, "item update requires id")
		}
		if err := d.requireItem(ctx, cred, actorID, p.ID); err != nil {
			return nil, err
		}
		ref.DocumentID = p.ID
		return d.host.ModifyDocument(ctx, cred, host.ModifyRequest{Action: host.ActionUpdate, Ref: ref, Data: p.Data})
	case OpDelete:
		if p.ID == "" {
			return nil, errs.E(errs.Validation, "item delete requires id")
		}
		if err := d.requireItem(ctx, cred, actorID, p.ID); err != nil {
			return nil, err
		}
		ref.DocumentID = p.ID
		return d.host.ModifyDocument(ctx, cred, host.ModifyRequest{Action: host.ActionDelete, Ref: ref})
	default:
		return nil, errs.E(errs.Validation, "unsupported item op %q", op)
	}
}

func (d *Dispatcher) requireItem(ctx context.Context, cred host.Credential, actorID, itemID string) error {
	actor, err := d.host.Actor(ctx, cred, actorID)
	if err != nil {
		return err
	}
	for _, it := range actor.Items {
		if it.ID == itemID {
			return nil
		}
	}
	return errs.E(errs.NotFound, "item %s on actor %s", itemID, actorID)
}

func (d *Dispatcher) mutateEffect(ctx context.Context, cred host.Credential, actorID string, op Op, p payload) (json.RawMessage, error) {
	switch op {
	case OpCreate:
		if len(p.Data) == 0 {
			return nil, errs.E(errs.Validation, "effect create requires data")
		}
		ref := host.DocumentRef{ParentType: "Actor", ParentID: actorID, DocumentKind: "ActiveEffect"}
		return d.host.ModifyDocument(ctx, cred, host.ModifyRequest{Action: host.ActionCreate, Ref: ref, Data: p.Data})
	case OpUpdate, OpDelete:
		if p.ID == "" {
			return nil, errs.E(errs.Validation, "effect %s requires id", op)
		}
		actor, err := d.host.Actor(ctx, cred, actorID)
		if err != nil {
			return nil, err
		}
		ref, err := locateEffect(actor, p.ID)
		if err != nil {
			return nil, err
		}
		action := host.ActionUpdate
		if op == OpDelete {
			action = host.ActionDelete
		}
		return d.host.ModifyDocument(ctx, cred, host.ModifyRequest{Action: action, Ref: ref, Data: p.Data})
	case OpToggle:
		if p.ID == "" {
			return nil, errs.E(errs.Validation, "effect toggle requires id")
		}
		return d.Toggle(ctx, cred, actorID, p.ID)
	default:
		return nil, errs.E(errs.Validation, "unsupported effect op %q", op)
	}
}

// locateEffect finds where an effect lives: actor-level effects first, then
// every item's effect list. The first match wins; no match is a hard
// NotFound, never a silent no-op.
func locateEffect(actor *host.RawActor, effectID string) (host.DocumentRef, error) {
	for _, ef := range actor.Effects {
		if ef.ID == effectID {
			return host.DocumentRef{
				ParentType:   "Actor",
				ParentID:     actor.ID,
				DocumentKind: "ActiveEffect",
				DocumentID:   effectID,
			}, nil
		}
	}
	for _, it := range actor.Items {
		for _, ef := range it.Effects {
			if ef.ID == effectID {
				return host.DocumentRef{
					ParentType:   "Actor." + actor.ID + ".Item",
					ParentID:     it.ID,
					DocumentKind: "ActiveEffect",
					DocumentID:   effectID,
				}, nil
			}
		}
	}
	return host.DocumentRef{}, errs.E(errs.NotFound, "effect %s on actor %s", effectID, actor.ID)
}

// Toggle creates the predefined effect when absent and deletes it when
// present, so toggling twice from an absent state leaves no residue.
func (d *Dispatcher) Toggle(ctx context.Context, cred host.Credential, actorID, statusID string) (json.RawMessage, error) {
	entry, ok := d.catalog.Entry(statusID)
	if !ok {
		return nil, errs.E(errs.NotFound, "unknown predefined effect %q", statusID)
	}
	actor, err := d.host.Actor(ctx, cred, actorID)
	if err != nil {
		return nil, err
	}

	if existing := findCatalogEffect(actor, entry); existing != "" {
		ref, err := locateEffect(actor, existing)
		if err != nil {
			return nil, err
		}
		return d.host.ModifyDocument(ctx, cred, host.ModifyRequest{Action: host.ActionDelete, Ref: ref})
	}

	ref := host.DocumentRef{ParentType: "Actor", ParentID: actorID, DocumentKind: "ActiveEffect"}
	return d.host.ModifyDocument(ctx, cred, host.ModifyRequest{Action: host.ActionCreate, Ref: ref, Data: entry.Document()})
}

func findCatalogEffect(actor *host.RawActor, entry *CatalogEntry) string {
	for _, ef := range actor.Effects {
		if entry.Matches(ef) {
			return ef.ID
		}
	}
	for _, it := range actor.Items {
		for _, ef := range it.Effects {
			if entry.Matches(ef) {
				return ef.ID
			}
		}
	}
	return ""
}
