package adapter

import (
	"strings"

	"sheetbridge.dev/internal/host"
)

// DnD5eAdapter covers the dnd5e ruleset, whose schema pre-computes ability
// modifiers and keeps class/race/background as sub-items with a mirror under
// system.details.
type DnD5eAdapter struct{}

func (DnD5eAdapter) SystemID() string { return "dnd5e" }

var dnd5eStats = []string{"str", "dex", "con", "int", "wis", "cha"}

func (a DnD5eAdapter) NormalizeActor(raw *host.RawActor) (*ActorSheet, error) {
	if err := checkIdentity(raw); err != nil {
		return nil, err
	}
	sys := parseSys(raw.System)
	sheet := newSheet(raw.ID, raw.Name, raw.Type, raw.Img)

	sheet.HP.Value = sys.intval("attributes.hp.value", 0)
	sheet.HP.Max = sys.intval("attributes.hp.max", sheet.HP.Value)
	sheet.AC = sys.intval("attributes.ac.value", 10)
	sheet.Level = sys.intval("details.level", 0)
	if sheet.Level == 0 {
		// Character levels live on class items; sum them.
		for _, it := range raw.Items {
			if strings.EqualFold(it.Type, "class") {
				sheet.Level += parseSys(it.System).intval("levels", 0)
			}
		}
	}

	for _, key := range dnd5eStats {
		val := sys.intval("abilities."+key+".value", 10)
		mod := sys.intval("abilities."+key+".mod", abilityMod(val))
		sheet.Stats[key] = Stat{Value: val, Mod: mod}
	}

	sheet.Details.Class = dnd5eNamed(sys, raw, "details.originalClass", "class")
	sheet.Details.Ancestry = dnd5eNamed(sys, raw, "details.race", "race")
	sheet.Details.Background = dnd5eNamed(sys, raw, "details.background", "background")
	sheet.Details.Alignment = sys.str("details.alignment", "")

	for _, coin := range []string{"pp", "gp", "ep", "sp", "cp"} {
		sheet.Coins[coin] = sys.intval("currency."+coin, 0)
	}

	for _, it := range raw.Items {
		sheet.Items = append(sheet.Items, genericItem(it))
	}
	for _, ef := range raw.Effects {
		sheet.Effects = append(sheet.Effects, sheetEffect(ef))
	}
	return sheet, nil
}

// dnd5eNamed prefers the explicit details string; when it is empty or a
// document reference, the same-typed sub-item's name is the fallback.
func dnd5eNamed(sys sysDoc, raw *host.RawActor, path, itemType string) string {
	if v := strings.TrimSpace(sys.str(path, "")); v != "" && !looksLikeRef(v) {
		return v
	}
	for _, it := range raw.Items {
		if strings.EqualFold(it.Type, itemType) {
			return it.Name
		}
	}
	return ""
}

func (a DnD5eAdapter) ComputeRoll(raw *host.RawActor, kind RollKind, key string, opts RollOptions) *RollSpec {
	if raw == nil {
		return nil
	}
	sys := parseSys(raw.System)
	switch kind {
	case RollAbility:
		k := strings.ToLower(strings.TrimSpace(key))
		if _, ok := sys.get("abilities." + k); !ok {
			return nil
		}
		val := sys.intval("abilities."+k+".value", 10)
		mod := sys.intval("abilities."+k+".mod", abilityMod(val))
		return &RollSpec{
			Formula: buildFormula(opts.Advantage, mod, opts.AbilityBonus, opts.TalentBonus),
			Kind:    RollAbility,
			Label:   strings.ToUpper(k) + " Check",
		}
	case RollItem:
		for _, it := range raw.Items {
			if it.ID != key {
				continue
			}
			isys := parseSys(it.System)
			itemBonus := isys.intval("attackBonus", 0)
			return &RollSpec{
				Formula: buildFormula(opts.Advantage, itemBonus, opts.AbilityBonus, opts.ItemBonus, opts.TalentBonus),
				Kind:    RollItem,
				Label:   it.Name,
			}
		}
		return nil
	default:
		return nil
	}
}
