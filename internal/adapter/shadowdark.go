package adapter

import (
	"strings"

	"sheetbridge.dev/internal/host"
)

// ShadowdarkAdapter covers the shadowdark ruleset. Class, ancestry and
// background can be recorded either as a system string or as a dedicated
// sub-item of the same type; the explicit system field wins and the item
// lookup is the fallback, so the canonical value is always unambiguous.
type ShadowdarkAdapter struct{}

func (ShadowdarkAdapter) SystemID() string { return "shadowdark" }

var shadowdarkStats = []string{"str", "dex", "con", "int", "wis", "cha"}

func (a ShadowdarkAdapter) NormalizeActor(raw *host.RawActor) (*ActorSheet, error) {
	if err := checkIdentity(raw); err != nil {
		return nil, err
	}
	sys := parseSys(raw.System)
	sheet := newSheet(raw.ID, raw.Name, raw.Type, raw.Img)

	sheet.HP.Value = sys.intval("attributes.hp.value", 0)
	sheet.HP.Max = sys.intval("attributes.hp.max", sheet.HP.Value)
	sheet.AC = sys.intval("attributes.ac.value", 10)
	sheet.Level = sys.intval("level.value", 0)

	for _, key := range shadowdarkStats {
		base := sys.intval("abilities."+key+".base", 10)
		bonus := sys.intval("abilities."+key+".bonus", 0)
		val := base + bonus
		sheet.Stats[key] = Stat{Value: val, Mod: abilityMod(val)}
	}

	sheet.Details.Class = resolveNamed(sys, raw, "class")
	sheet.Details.Ancestry = resolveNamed(sys, raw, "ancestry")
	sheet.Details.Background = resolveNamed(sys, raw, "background")
	sheet.Details.Title = sys.str("title", "")
	sheet.Details.Alignment = sys.str("alignment", "")
	sheet.Details.Deity = resolveNamed(sys, raw, "deity")

	sheet.Luck.Available = sys.boolean("luck.available", false)
	sheet.Luck.Remaining = sys.intval("luck.remaining", 0)

	for _, coin := range []string{"gp", "sp", "cp"} {
		sheet.Coins[coin] = sys.intval("coins."+coin, 0)
	}

	for _, it := range raw.Items {
		si := genericItem(it)
		isys := parseSys(it.System)
		si.Quantity = isys.intval("quantity", 1)
		si.Equipped = isys.boolean("equipped", false)
		sheet.Items = append(sheet.Items, si)
	}
	for _, ef := range raw.Effects {
		sheet.Effects = append(sheet.Effects, sheetEffect(ef))
	}

	if langs := stringSlice(sys, "languages"); len(langs) > 0 {
		sheet.Choices = map[string][]string{"languages": langs}
	}
	return sheet, nil
}

// resolveNamed applies the two-source precedence: the explicit system string
// first, then the name of a same-typed sub-item.
func resolveNamed(sys sysDoc, raw *host.RawActor, field string) string {
	if v := strings.TrimSpace(sys.str(field, "")); v != "" && !looksLikeRef(v) {
		return v
	}
	for _, it := range raw.Items {
		if strings.EqualFold(it.Type, field) {
			return it.Name
		}
	}
	return ""
}

// looksLikeRef filters document-reference strings ("Compendium.…", "Item.…")
// the host sometimes stores in place of a display name.
func looksLikeRef(v string) bool {
	return strings.HasPrefix(v, "Compendium.") || strings.HasPrefix(v, "Item.")
}

func stringSlice(sys sysDoc, path string) []string {
	v, ok := sys.get(path)
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (a ShadowdarkAdapter) ComputeRoll(raw *host.RawActor, kind RollKind, key string, opts RollOptions) *RollSpec {
	if raw == nil {
		return nil
	}
	sys := parseSys(raw.System)
	switch kind {
	case RollAbility:
		k := strings.ToLower(strings.TrimSpace(key))
		found := false
		for _, s := range shadowdarkStats {
			if s == k {
				found = true
				break
			}
		}
		if !found {
			return nil
		}
		val := sys.intval("abilities."+k+".base", 10) + sys.intval("abilities."+k+".bonus", 0)
		mod := abilityMod(val)
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
			itemBonus := isys.intval("bonuses.attackBonus", 0)
			if itemBonus == 0 {
				itemBonus = isys.intval("attackBonus", 0)
			}
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
