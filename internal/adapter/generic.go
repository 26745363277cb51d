package adapter

import (
	"strings"

	"sheetbridge.dev/internal/host"
)

// GenericAdapter is the structural best-effort fallback for rulesets without
// a dedicated adapter. It probes the common spellings of hp/ac/abilities and
// echoes the whole system block under Extra so a dashboard can still render
// something.
type GenericAdapter struct{}

func (GenericAdapter) SystemID() string { return "generic" }

var (
	genericHPPaths = []string{"attributes.hp.value", "hp.value", "health.value", "hp"}
	genericHPMax   = []string{"attributes.hp.max", "hp.max", "health.max"}
	genericACPaths = []string{"attributes.ac.value", "ac.value", "ac", "armor"}
)

func firstInt(sys sysDoc, paths []string, def int) int {
	for _, p := range paths {
		if _, ok := sys.get(p); ok {
			return sys.intval(p, def)
		}
	}
	return def
}

func (g GenericAdapter) NormalizeActor(raw *host.RawActor) (*ActorSheet, error) {
	if err := checkIdentity(raw); err != nil {
		return nil, err
	}
	sys := parseSys(raw.System)
	sheet := newSheet(raw.ID, raw.Name, raw.Type, raw.Img)

	sheet.HP.Value = firstInt(sys, genericHPPaths, 0)
	sheet.HP.Max = firstInt(sys, genericHPMax, sheet.HP.Value)
	sheet.AC = firstInt(sys, genericACPaths, 0)
	sheet.Level = firstInt(sys, []string{"level.value", "level", "details.level"}, 0)

	if abilities, ok := sys.get("abilities"); ok {
		if m, ok := abilities.(map[string]any); ok {
			for key := range m {
				k := strings.ToLower(key)
				val := sys.intval("abilities."+key+".value", 10)
				mod := sys.intval("abilities."+key+".mod", abilityMod(val))
				sheet.Stats[k] = Stat{Value: val, Mod: mod}
			}
		}
	}

	for _, it := range raw.Items {
		sheet.Items = append(sheet.Items, genericItem(it))
	}
	for _, ef := range raw.Effects {
		sheet.Effects = append(sheet.Effects, sheetEffect(ef))
	}

	if len(sys) > 0 {
		sheet.Extra = map[string]any{"attributes": map[string]any(sys)}
	}
	return sheet, nil
}

func (g GenericAdapter) ComputeRoll(raw *host.RawActor, kind RollKind, key string, opts RollOptions) *RollSpec {
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
			if it.ID == key {
				return &RollSpec{
					Formula: buildFormula(opts.Advantage, opts.AbilityBonus, opts.ItemBonus, opts.TalentBonus),
					Kind:    RollItem,
					Label:   it.Name,
				}
			}
		}
		return nil
	default:
		return nil
	}
}

func genericItem(it host.RawItem) SheetItem {
	sys := parseSys(it.System)
	return SheetItem{
		ID:       it.ID,
		Name:     it.Name,
		Type:     it.Type,
		Img:      it.Img,
		Quantity: sys.intval("quantity", 1),
		Equipped: sys.boolean("equipped", false),
		System:   sys,
	}
}

func sheetEffect(ef host.RawEffect) SheetEffect {
	icon := ef.Icon
	if icon == "" {
		icon = ef.Img
	}
	return SheetEffect{
		ID:       ef.ID,
		Name:     ef.DisplayName(),
		Icon:     icon,
		Disabled: ef.Disabled,
	}
}
