package adapter

import (
	"fmt"
	"strings"
)

type RollKind string

const (
	RollAbility RollKind = "ability"
	RollItem    RollKind = "item"
)

type AdvantageMode string

const (
	AdvNormal       AdvantageMode = "normal"
	AdvAdvantage    AdvantageMode = "advantage"
	AdvDisadvantage AdvantageMode = "disadvantage"
)

// RollOptions carries caller overrides layered on top of whatever the sheet
// itself contributes.
type RollOptions struct {
	AbilityBonus int           `json:"abilityBonus"`
	ItemBonus    int           `json:"itemBonus"`
	TalentBonus  int           `json:"talentBonus"`
	Advantage    AdvantageMode `json:"advantageMode"`
}

type RollSpec struct {
	Formula string   `json:"formula"`
	Kind    RollKind `json:"kind"`
	Label   string   `json:"label"`
}

// baseDie renders the d20 term. Advantage rolls two and keeps the highest,
// disadvantage two keeping the lowest, normal one die.
func baseDie(mode AdvantageMode) string {
	switch mode {
	case AdvAdvantage:
		return "2d20kh1"
	case AdvDisadvantage:
		return "2d20kl1"
	default:
		return "1d20"
	}
}

// buildFormula assembles `<die> [+|- n]...` with zero modifiers elided.
func buildFormula(mode AdvantageMode, mods ...int) string {
	var b strings.Builder
	b.WriteString(baseDie(mode))
	for _, m := range mods {
		if m == 0 {
			continue
		}
		if m > 0 {
			fmt.Fprintf(&b, " + %d", m)
		} else {
			fmt.Fprintf(&b, " - %d", -m)
		}
	}
	return b.String()
}

// abilityMod is the standard score-to-modifier table: (score-10)/2 rounded
// down.
func abilityMod(score int) int {
	if score >= 10 {
		return (score - 10) / 2
	}
	return -((11 - score) / 2)
}
