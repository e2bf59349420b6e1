package catalogs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ObjectPrefix qualifies ids of ordinary objects.
const ObjectPrefix = "(O)"

// IsQualified reports whether id carries a type prefix such as "(O)".
func IsQualified(id string) bool {
	if !strings.HasPrefix(id, "(") {
		return false
	}
	end := strings.IndexByte(id, ')')
	return end > 1 && end < len(id)-1
}

// Qualify adds the object prefix to bare ids.
func Qualify(id string) string {
	if IsQualified(id) {
		return id
	}
	return ObjectPrefix + id
}

// Lookup is the cheap direct path: a single map read by qualified id.
func (c *Catalogs) Lookup(id string) (ItemDef, error) {
	d, ok := c.Items.Defs[Qualify(id)]
	if !ok {
		return ItemDef{}, fmt.Errorf("%s: %w", id, ErrUnknownItem)
	}
	return d, nil
}

// ResolveQuery runs an item query. It scans the catalog for the KIND form and
// is considerably more expensive than Lookup.
//
// Supported forms:
//
//	<id>                            one item
//	KIND <kind>                     every item of a kind
//	IF_DEPTH <min> <depth> <id>     the item when depth >= min
//	IF_TILE <x> <y> <bx> <by> <id>  the item when the tile matches
func (c *Catalogs) ResolveQuery(query string) ([]ItemDef, error) {
	f := strings.Fields(query)
	if len(f) == 0 {
		return nil, fmt.Errorf("empty item query: %w", ErrUnknownItem)
	}
	switch strings.ToUpper(f[0]) {
	case "KIND":
		if len(f) != 2 {
			return nil, fmt.Errorf("item query %q: expected KIND <kind>", query)
		}
		var out []ItemDef
		for _, id := range c.Items.Palette {
			if d := c.Items.Defs[id]; strings.EqualFold(d.Kind, f[1]) {
				out = append(out, d)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("item query %q: %w", query, ErrUnknownItem)
		}
		return out, nil
	case "IF_DEPTH":
		if len(f) != 4 {
			return nil, fmt.Errorf("item query %q: expected IF_DEPTH <min> <depth> <id>", query)
		}
		min, err1 := strconv.Atoi(f[1])
		depth, err2 := strconv.Atoi(f[2])
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("item query %q: bad number", query)
		}
		if depth < min {
			return nil, nil
		}
		return c.one(f[3])
	case "IF_TILE":
		if len(f) != 6 {
			return nil, fmt.Errorf("item query %q: expected IF_TILE <x> <y> <bx> <by> <id>", query)
		}
		if f[1] != f[3] || f[2] != f[4] {
			return nil, nil
		}
		return c.one(f[5])
	default:
		if len(f) != 1 {
			return nil, fmt.Errorf("item query %q: unknown form", query)
		}
		return c.one(f[0])
	}
}

func (c *Catalogs) one(id string) ([]ItemDef, error) {
	d, err := c.Lookup(id)
	if err != nil {
		return nil, err
	}
	return []ItemDef{d}, nil
}

// FishIDs returns the ids of every item with fish data, sorted.
func (c *Catalogs) FishIDs() []string {
	var out []string
	for id, d := range c.Items.Defs {
		if d.IsFish() {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
