// Package dispatch routes sub-document mutations (items, active effects) to
// the correct nested collection on the host, and implements the predefined
// status-effect toggle on top of that.
package dispatch

import (
	"encoding/json"
	"strings"

	"sheetbridge.dev/internal/host"
)

// CatalogEntry is one toggleable status effect with a known icon, label and
// the single numeric change it applies.
type CatalogEntry struct {
	ID     string
	Label  string
	Icon   string
	Change *host.RawEffectChange
}

// Catalog is the predefined-effect set. Hosts persist only a subset of the
// markers that identify a status effect, so presence is matched on any of:
// a stored status-id flag, statuses membership, or an exact label/name,
// checked in that order.
type Catalog struct {
	entries []CatalogEntry
	byID    map[string]*CatalogEntry
}

func DefaultCatalog() *Catalog {
	return NewCatalog([]CatalogEntry{
		{ID: "blinded", Label: "Blinded", Icon: "icons/svg/blind.svg"},
		{ID: "deafened", Label: "Deafened", Icon: "icons/svg/deaf.svg"},
		{ID: "invisible", Label: "Invisible", Icon: "icons/svg/invisible.svg"},
		{ID: "paralyzed", Label: "Paralyzed", Icon: "icons/svg/paralysis.svg"},
		{ID: "poisoned", Label: "Poisoned", Icon: "icons/svg/poison.svg"},
		{ID: "prone", Label: "Prone", Icon: "icons/svg/falling.svg"},
		{ID: "restrained", Label: "Restrained", Icon: "icons/svg/net.svg"},
		{ID: "stunned", Label: "Stunned", Icon: "icons/svg/daze.svg"},
		{ID: "unconscious", Label: "Unconscious", Icon: "icons/svg/unconscious.svg"},
		{
			ID: "slowed", Label: "Slowed", Icon: "icons/svg/anchor.svg",
			Change: &host.RawEffectChange{Key: "system.attributes.speed.value", Mode: 2, Value: "-10"},
		},
		{
			ID: "acArmorMastery", Label: "Armor Mastery", Icon: "icons/svg/shield.svg",
			Change: &host.RawEffectChange{Key: "system.attributes.ac.value", Mode: 2, Value: "1"},
		},
	})
}

func NewCatalog(entries []CatalogEntry) *Catalog {
	c := &Catalog{entries: entries, byID: map[string]*CatalogEntry{}}
	for i := range c.entries {
		c.byID[c.entries[i].ID] = &c.entries[i]
	}
	return c
}

func (c *Catalog) Entry(id string) (*CatalogEntry, bool) {
	e, ok := c.byID[id]
	return e, ok
}

func (c *Catalog) Entries() []CatalogEntry { return c.entries }

// Matches reports whether an existing effect document represents this entry,
// applying the flag / statuses / label precedence.
func (e *CatalogEntry) Matches(ef host.RawEffect) bool {
	if id := statusIDFlag(ef); id != "" {
		return id == e.ID
	}
	for _, s := range ef.Statuses {
		if s == e.ID {
			return true
		}
	}
	return strings.EqualFold(ef.DisplayName(), e.Label)
}

func statusIDFlag(ef host.RawEffect) string {
	core, ok := ef.Flags["core"].(map[string]any)
	if !ok {
		return ""
	}
	id, _ := core["statusId"].(string)
	return id
}

// Document renders the effect document created when the entry is toggled on.
func (e *CatalogEntry) Document() json.RawMessage {
	doc := map[string]any{
		"name":     e.Label,
		"icon":     e.Icon,
		"statuses": []string{e.ID},
		"flags":    map[string]any{"core": map[string]any{"statusId": e.ID}},
	}
	if e.Change != nil {
		doc["changes"] = []host.RawEffectChange{*e.Change}
	}
	b, _ := json.Marshal(doc)
	return b
}
