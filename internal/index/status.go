package index

import "time"

// Status describes the cache file and its last rebuild.
type Status struct {
	Path          string    `json:"path"`
	SizeBytes     int64     `json:"sizeBytes"`
	SchemaVersion int       `json:"schemaVersion"`
	Entities      int       `json:"entities"`
	Links         int       `json:"links"`
	ShortIDs      int       `json:"shortIds"`
	Files         int       `json:"files"`
	MaxMtime      time.Time `json:"maxMtime,omitempty"`
	LastRebuildID string    `json:"lastRebuildId,omitempty"`
	LastRebuildAt time.Time `json:"lastRebuildAt,omitempty"`
	Stale         bool      `json:"stale"`
}

// CacheStatus reports on the cache. Counts that cannot be read are zero.
func (c *Cache) CacheStatus() Status {
	st := Status{
		Path:      c.db.Path(),
		SizeBytes: c.db.Size(),
		Stale:     c.IsStale(),
	}

	if v, err := c.db.SchemaVersion(); err == nil {
		st.SchemaVersion = v
	}
	if n, err := c.entities.Count(""); err == nil {
		st.Entities = n
	}
	if n, err := c.links.Count(); err == nil {
		st.Links = n
	}
	if n, err := c.shortIDs.Count(); err == nil {
		st.ShortIDs = n
	}
	if snap, ok, err := c.db.Snapshot(); err == nil && ok {
		st.Files = snap.FileCount
		st.MaxMtime = snap.MaxMtime
		st.LastRebuildID = snap.RebuildID
		st.LastRebuildAt = snap.RebuiltAt
	}
	return st
}
