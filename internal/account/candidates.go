package account

// Candidates is an ordered set of account IDs. The first occurrence of an ID
// fixes its position; later duplicates and zero IDs are dropped.
type Candidates struct {
	ids  []ID
	seen map[ID]struct{}
}

// Add appends each id not already present.
func (c *Candidates) Add(ids ...ID) {
	if c.seen == nil {
		c.seen = make(map[ID]struct{})
	}
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, ok := c.seen[id]; ok {
			continue
		}
		c.seen[id] = struct{}{}
		c.ids = append(c.ids, id)
	}
}

// IDs returns the candidates in insertion order.
func (c *Candidates) IDs() []ID {
	return c.ids
}

// Len returns the number of candidates.
func (c *Candidates) Len() int {
	return len(c.ids)
}
