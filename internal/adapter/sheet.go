// Package adapter normalizes the host's ruleset-specific actor documents into
// one canonical sheet shape and computes roll formulas from it. One adapter
// per supported ruleset; unknown rulesets fall back to the generic adapter.
package adapter

// ActorSheet is the canonical, ruleset-agnostic sheet. Every field is present
// with a defaulted value even when the ruleset payload omits it; ruleset
// extras land in Extra and are not stable across rulesets.
type ActorSheet struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Img  string `json:"img"`

	HP    HP              `json:"hp"`
	AC    int             `json:"ac"`
	Stats map[string]Stat `json:"stats"`

	Level   int     `json:"level"`
	Details Details `json:"details"`

	Luck  Luck           `json:"luck"`
	Coins map[string]int `json:"coins"`

	Items   []SheetItem   `json:"items"`
	Effects []SheetEffect `json:"effects"`

	Choices map[string][]string `json:"choices,omitempty"`
	Extra   map[string]any      `json:"extra,omitempty"`
}

type HP struct {
	Value int `json:"value"`
	Max   int `json:"max"`
}

type Stat struct {
	Value int `json:"value"`
	Mod   int `json:"mod"`
}

type Details struct {
	Class      string `json:"class"`
	Ancestry   string `json:"ancestry"`
	Background string `json:"background"`
	Title      string `json:"title,omitempty"`
	Alignment  string `json:"alignment,omitempty"`
	Deity      string `json:"deity,omitempty"`
}

type Luck struct {
	Available bool `json:"available"`
	Remaining int  `json:"remaining"`
}

type SheetItem struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Img      string         `json:"img"`
	Quantity int            `json:"quantity"`
	Equipped bool           `json:"equipped"`
	System   map[string]any `json:"system,omitempty"`
}

type SheetEffect struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	Disabled bool   `json:"disabled"`
}

func newSheet(id, name, typ, img string) *ActorSheet {
	return &ActorSheet{
		ID:      id,
		Name:    name,
		Type:    typ,
		Img:     img,
		Stats:   map[string]Stat{},
		Coins:   map[string]int{},
		Items:   []SheetItem{},
		Effects: []SheetEffect{},
	}
}
