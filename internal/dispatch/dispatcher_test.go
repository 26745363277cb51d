package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"sheetbridge.dev/internal/errs"
	"sheetbridge.dev/internal/host"
)

// fakeHost records every ModifyDocument call and serves one actor; effects
// toggled on or off mutate the in-memory actor so paired toggles can be
// asserted end to end.
type fakeHost struct {
	actor *host.RawActor
	calls []host.ModifyRequest
}

func (f *fakeHost) Actor(ctx context.Context, cred host.Credential, id string) (*host.RawActor, error) {
	if f.actor == nil || f.actor.ID != id {
		return nil, errs.E(errs.NotFound, "actor %s", id)
	}
	cp := *f.actor
	return &cp, nil
}

func (f *fakeHost) ModifyDocument(ctx context.Context, cred host.Credential, req host.ModifyRequest) (json.RawMessage, error) {
	f.calls = append(f.calls, req)
	switch req.Action {
	case host.ActionCreate:
		if req.Ref.DocumentKind == "ActiveEffect" && req.Ref.ParentType == "Actor" {
			var ef host.RawEffect
			_ = json.Unmarshal(req.Data, &ef)
			ef.ID = "created-1"
			f.actor.Effects = append(f.actor.Effects, ef)
		}
	case host.ActionDelete:
		if req.Ref.ParentType == "Actor" {
			kept := f.actor.Effects[:0]
			for _, ef := range f.actor.Effects {
				if ef.ID != req.Ref.DocumentID {
					kept = append(kept, ef)
				}
			}
			f.actor.Effects = kept
		}
	}
	return json.RawMessage(`{}`), nil
}

func testActor() *host.RawActor {
	return &host.RawActor{
		ID:   "a1",
		Name: "Iria",
		Effects: []host.RawEffect{
			{ID: "e-actor", Name: "Blessed"},
		},
		Items: []host.RawItem{
			{
				ID:   "i1",
				Name: "Ring of Shadows",
				Effects: []host.RawEffect{
					{ID: "e-nested", Name: "Shadow Veil"},
				},
			},
		},
	}
}

func TestDeleteNestedEffectRoutesToItem(t *testing.T) {
	f := &fakeHost{actor: testActor()}
	d := New(f, nil, nil)

	payload, _ := json.Marshal(map[string]string{"id": "e-nested"})
	if _, err := d.Mutate(context.Background(), host.Credential{}, "a1", KindEffect, OpDelete, payload); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(f.calls) != 1 {
		t.Fatalf("expected 1 host write, got %d", len(f.calls))
	}
	ref := f.calls[0].Ref
	if ref.ParentType != "Actor.a1.Item" || ref.ParentID != "i1" {
		t.Fatalf("nested effect routed to %+v, want item parent", ref)
	}
	if ref.DocumentID != "e-nested" || ref.DocumentKind != "ActiveEffect" {
		t.Fatalf("wrong document addressing: %+v", ref)
	}
}

func TestDeleteActorEffectRoutesToActor(t *testing.T) {
	f := &fakeHost{actor: testActor()}
	d := New(f, nil, nil)

	payload, _ := json.Marshal(map[string]string{"id": "e-actor"})
	if _, err := d.Mutate(context.Background(), host.Credential{}, "a1", KindEffect, OpDelete, payload); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ref := f.calls[0].Ref
	if ref.ParentType != "Actor" || ref.ParentID != "a1" {
		t.Fatalf("actor effect routed to %+v", ref)
	}
}

func TestDeleteMissingEffectIsNotFoundWithNoWrite(t *testing.T) {
	f := &fakeHost{actor: testActor()}
	d := New(f, nil, nil)

	payload, _ := json.Marshal(map[string]string{"id": "ghost"})
	_, err := d.Mutate(context.Background(), host.Credential{}, "a1", KindEffect, OpDelete, payload)
	if !errs.Is(err, errs.NotFound) {
		t.Fatalf("want NotFound, got %v", err)
	}
	if len(f.calls) != 0 {
		t.Fatalf("missing effect must not write to the host; wrote %d", len(f.calls))
	}
}

func TestTogglePairLeavesNoResidue(t *testing.T) {
	actor := testActor()
	actor.Effects = nil
	f := &fakeHost{actor: actor}
	d := New(f, nil, nil)

	// Absent -> create.
	if _, err := d.Toggle(context.Background(), host.Credential{}, "a1", "poisoned"); err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if len(f.actor.Effects) != 1 {
		t.Fatalf("expected effect created, have %d", len(f.actor.Effects))
	}
	if f.calls[0].Action != host.ActionCreate {
		t.Fatalf("first toggle action = %s", f.calls[0].Action)
	}

	// Present -> delete; back to absent.
	if _, err := d.Toggle(context.Background(), host.Credential{}, "a1", "poisoned"); err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if len(f.actor.Effects) != 0 {
		t.Fatalf("toggle pair left residue: %+v", f.actor.Effects)
	}
	if f.calls[1].Action != host.ActionDelete {
		t.Fatalf("second toggle action = %s", f.calls[1].Action)
	}
}

func TestToggleUnknownStatus(t *testing.T) {
	f := &fakeHost{actor: testActor()}
	d := New(f, nil, nil)
	_, err := d.Toggle(context.Background(), host.Credential{}, "a1", "confused")
	if !errs.Is(err, errs.NotFound) {
		t.Fatalf("unknown catalog id must be NotFound, got %v", err)
	}
}

func TestCatalogMatchPrecedence(t *testing.T) {
	entry, ok := DefaultCatalog().Entry("poisoned")
	if !ok {
		t.Fatalf("catalog missing poisoned")
	}

	// A status-id flag decides alone, even when the label disagrees.
	byFlag := host.RawEffect{
		Name:  "Something Else",
		Flags: map[string]any{"core": map[string]any{"statusId": "poisoned"}},
	}
	if !entry.Matches(byFlag) {
		t.Fatalf("flag match failed")
	}
	wrongFlag := host.RawEffect{
		Name:     "Poisoned",
		Statuses: []string{"poisoned"},
		Flags:    map[string]any{"core": map[string]any{"statusId": "stunned"}},
	}
	if entry.Matches(wrongFlag) {
		t.Fatalf("a present flag must win over statuses and label")
	}

	// No flag: statuses membership.
	byStatus := host.RawEffect{Name: "Nameless", Statuses: []string{"poisoned"}}
	if !entry.Matches(byStatus) {
		t.Fatalf("statuses match failed")
	}

	// Neither: exact label match, case-insensitive.
	byLabel := host.RawEffect{Label: "poisoned"}
	if !entry.Matches(byLabel) {
		t.Fatalf("label match failed")
	}
	if entry.Matches(host.RawEffect{Name: "Poison Resistance"}) {
		t.Fatalf("partial labels must not match")
	}
}

func TestItemUpdateRequiresExistingItem(t *testing.T) {
	f := &fakeHost{actor: testActor()}
	d := New(f, nil, nil)

	payload, _ := json.Marshal(map[string]any{"id": "no-such", "data": map[string]any{"name": "x"}})
	_, err := d.Mutate(context.Background(), host.Credential{}, "a1", KindItem, OpUpdate, payload)
	if !errs.Is(err, errs.NotFound) {
		t.Fatalf("want NotFound, got %v", err)
	}
	if len(f.calls) != 0 {
		t.Fatalf("missing item must not write")
	}
}

func TestMutateValidation(t *testing.T) {
	f := &fakeHost{actor: testActor()}
	d := New(f, nil, nil)

	if _, err := d.Mutate(context.Background(), host.Credential{}, "a1", KindItem, OpCreate, nil); !errs.Is(err, errs.Validation) {
		t.Fatalf("create without data must fail validation, got %v", err)
	}
	if _, err := d.Mutate(context.Background(), host.Credential{}, "a1", "spell", OpCreate, nil); !errs.Is(err, errs.Validation) {
		t.Fatalf("unknown kind must fail validation, got %v", err)
	}
}
