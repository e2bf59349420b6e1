package conditions

import "catchodds.dev/internal/sim/calendar"

// Caches memoizes parsing and projection for one session. Future results are
// anchored to the day they were computed for.
type Caches struct {
	resolvers    map[string]Resolver
	futures      map[string]*FutureResult
	futuresDay   int
	descriptions map[string]string
	queries      map[string][]Query
	logged       map[string]bool
}

func NewCaches() *Caches {
	c := &Caches{}
	c.Clear()
	return c
}

func (c *Caches) resolver(q Query) (Resolver, bool) {
	key := q.VerbName()
	if r, ok := c.resolvers[key]; ok {
		return r, true
	}
	r := resolverFor(q)
	c.resolvers[key] = r
	return r, false
}

func (c *Caches) queriesFor(raw string) []Query {
	if qs, ok := c.queries[raw]; ok {
		return qs
	}
	qs := Parse(raw)
	c.queries[raw] = qs
	return qs
}

func (c *Caches) future(text string, today calendar.Date) (*FutureResult, bool) {
	if c.futuresDay != today.TotalDays() {
		c.ClearFutures()
		c.futuresDay = today.TotalDays()
		return nil, false
	}
	r, ok := c.futures[text]
	return r, ok
}

func (c *Caches) storeFuture(text string, r *FutureResult) { c.futures[text] = r }

func (c *Caches) description(text string) (string, bool) {
	s, ok := c.descriptions[text]
	return s, ok
}

func (c *Caches) storeDescription(text, s string) { c.descriptions[text] = s }

// markLogged reports true the first time a key is seen.
func (c *Caches) markLogged(key string) bool {
	if c.logged[key] {
		return false
	}
	c.logged[key] = true
	return true
}

// ClearFutures drops projections, e.g. on day rollover.
func (c *Caches) ClearFutures() {
	c.futures = map[string]*FutureResult{}
	c.futuresDay = -1
}

// Clear resets every table, e.g. on session teardown.
func (c *Caches) Clear() {
	c.resolvers = map[string]Resolver{}
	c.descriptions = map[string]string{}
	c.queries = map[string][]Query{}
	c.logged = map[string]bool{}
	c.ClearFutures()
}

type CacheStats struct {
	Resolvers    int
	Futures      int
	Descriptions int
	Expressions  int
}

func (c *Caches) Stats() CacheStats {
	return CacheStats{
		Resolvers:    len(c.resolvers),
		Futures:      len(c.futures),
		Descriptions: len(c.descriptions),
		Expressions:  len(c.queries),
	}
}
