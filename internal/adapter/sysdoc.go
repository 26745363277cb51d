package adapter

import (
	"encoding/json"
	"math"
	"strings"
)

// sysDoc is a defensive view over a ruleset system block. Every accessor
// takes a dotted path and a default; absent or differently-typed values yield
// the default, never an error, so adapters can probe heterogeneous schemas.
type sysDoc map[string]any

func parseSys(raw json.RawMessage) sysDoc {
	if len(raw) == 0 {
		return sysDoc{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return sysDoc{}
	}
	return m
}

func (d sysDoc) get(path string) (any, bool) {
	cur := any(map[string]any(d))
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (d sysDoc) str(path, def string) string {
	v, ok := d.get(path)
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func (d sysDoc) num(path string, def float64) float64 {
	v, ok := d.get(path)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case string:
		// Some rulesets persist numerics as strings.
		var f float64
		if err := json.Unmarshal([]byte(n), &f); err == nil {
			return f
		}
	}
	return def
}

func (d sysDoc) intval(path string, def int) int {
	f := d.num(path, math.NaN())
	if math.IsNaN(f) {
		return def
	}
	return int(f)
}

func (d sysDoc) boolean(path string, def bool) bool {
	v, ok := d.get(path)
	if !ok {
		return def
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}
