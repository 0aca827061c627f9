package index

import "qms/internal/storage"

// EnsureShortID returns the short id for a canonical id, assigning the next
// one for its prefix on first use. Assignment does not require the id to be
// indexed.
func (c *Cache) EnsureShortID(id string) (string, error) {
	return c.shortIDs.Ensure(id)
}

// EnsureShortIDs assigns short ids for ids in order, in one transaction.
func (c *Cache) EnsureShortIDs(ids []string) (map[string]string, error) {
	return c.shortIDs.EnsureAll(ids)
}

// ResolveShortID maps "PREFIX@N" to its canonical id.
func (c *Cache) ResolveShortID(ref string) (string, bool) {
	id, ok, err := c.shortIDs.Resolve(ref)
	if err != nil {
		c.logger.Debug("Short id lookup failed", "ref", ref, "error", err.Error())
		return "", false
	}
	return id, ok
}

// ShortID returns the short id already assigned to id.
func (c *Cache) ShortID(id string) (string, bool) {
	short, ok, err := c.shortIDs.Get(id)
	if err != nil {
		c.logger.Debug("Short id lookup failed", "id", id, "error", err.Error())
		return "", false
	}
	return short, ok
}

// ResolveRef returns the canonical id for ref when it is a known short id,
// and ref unchanged otherwise.
func (c *Cache) ResolveRef(ref string) string {
	if _, _, ok := storage.ParseShortID(ref); !ok {
		return ref
	}
	if id, ok := c.ResolveShortID(ref); ok {
		return id
	}
	return ref
}
