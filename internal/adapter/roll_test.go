package adapter

import (
	"encoding/json"
	"testing"

	"sheetbridge.dev/internal/host"
)

func shadowdarkActor(t *testing.T) *host.RawActor {
	return &host.RawActor{
		ID:   "a1",
		Name: "Iria",
		System: rawSys(t, map[string]any{
			"abilities": map[string]any{
				"str": map[string]any{"base": 16, "bonus": 0},
			},
		}),
		Items: []host.RawItem{
			{
				ID:   "i1",
				Name: "Longsword",
				Type: "Weapon",
				System: rawSys(t, map[string]any{
					"bonuses": map[string]any{"attackBonus": 1},
				}),
			},
		},
	}
}

func TestComputeRollAdvantageModes(t *testing.T) {
	a := ShadowdarkAdapter{}
	actor := shadowdarkActor(t)

	cases := []struct {
		mode AdvantageMode
		want string
	}{
		{AdvNormal, "1d20 + 3"},
		{AdvAdvantage, "2d20kh1 + 3"},
		{AdvDisadvantage, "2d20kl1 + 3"},
	}
	for _, c := range cases {
		spec := a.ComputeRoll(actor, RollAbility, "str", RollOptions{Advantage: c.mode})
		if spec == nil {
			t.Fatalf("mode %s: nil spec", c.mode)
		}
		if spec.Formula != c.want {
			t.Fatalf("mode %s: formula %q, want %q", c.mode, spec.Formula, c.want)
		}
		if spec.Label != "STR Check" {
			t.Fatalf("mode %s: label %q", c.mode, spec.Label)
		}
	}
}

func TestComputeRollBonusStacking(t *testing.T) {
	a := ShadowdarkAdapter{}
	spec := a.ComputeRoll(shadowdarkActor(t), RollAbility, "str", RollOptions{
		AbilityBonus: 2,
		TalentBonus:  -1,
	})
	if spec == nil {
		t.Fatalf("nil spec")
	}
	if spec.Formula != "1d20 + 3 + 2 - 1" {
		t.Fatalf("formula %q", spec.Formula)
	}
}

func TestComputeRollItem(t *testing.T) {
	a := ShadowdarkAdapter{}
	spec := a.ComputeRoll(shadowdarkActor(t), RollItem, "i1", RollOptions{ItemBonus: 2})
	if spec == nil {
		t.Fatalf("nil spec")
	}
	if spec.Label != "Longsword" {
		t.Fatalf("label %q", spec.Label)
	}
	if spec.Formula != "1d20 + 1 + 2" {
		t.Fatalf("formula %q", spec.Formula)
	}
}

func TestComputeRollUnresolvedReturnsNil(t *testing.T) {
	a := ShadowdarkAdapter{}
	actor := shadowdarkActor(t)
	if spec := a.ComputeRoll(actor, RollAbility, "nope", RollOptions{}); spec != nil {
		t.Fatalf("unknown ability must yield nil, got %+v", spec)
	}
	if spec := a.ComputeRoll(actor, RollItem, "missing", RollOptions{}); spec != nil {
		t.Fatalf("unknown item must yield nil, got %+v", spec)
	}
	g := GenericAdapter{}
	empty := &host.RawActor{ID: "a2", Name: "Blank", System: json.RawMessage(`{}`)}
	if spec := g.ComputeRoll(empty, RollAbility, "str", RollOptions{}); spec != nil {
		t.Fatalf("generic with no abilities must yield nil, got %+v", spec)
	}
}

func TestBuildFormulaElidesZeroModifiers(t *testing.T) {
	if got := buildFormula(AdvNormal, 0, 0); got != "1d20" {
		t.Fatalf("got %q, want bare die", got)
	}
	if got := buildFormula(AdvAdvantage, 0, -2); got != "2d20kh1 - 2" {
		t.Fatalf("got %q", got)
	}
}
