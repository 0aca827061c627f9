package index

import (
	"strings"

	"qms/internal/graph"
	"qms/internal/records"
	"qms/internal/sqlbuild"
	"qms/internal/storage"
)

// TraceStep is a record reached by a traversal.
type TraceStep struct {
	ID       string `json:"id"`
	LinkType string `json:"linkType"`
	Depth    int    `json:"depth"`
	// From is the record the edge was followed from.
	From string `json:"from"`
}

// LinksFrom returns every edge leaving id.
func (c *Cache) LinksFrom(id string) []storage.Link {
	links, err := c.links.From(id)
	if err != nil {
		c.logger.Debug("Link query failed", "id", id, "error", err.Error())
		return nil
	}
	return links
}

// LinksTo returns every edge arriving at id.
func (c *Cache) LinksTo(id string) []storage.Link {
	links, err := c.links.To(id)
	if err != nil {
		c.logger.Debug("Link query failed", "id", id, "error", err.Error())
		return nil
	}
	return links
}

// LinksFromOfType returns the targets of id's outgoing edges of one type.
func (c *Cache) LinksFromOfType(id, linkType string) []string {
	ids, err := c.links.FromOfType(id, linkType)
	if err != nil {
		c.logger.Debug("Link query failed", "id", id, "type", linkType, "error", err.Error())
		return nil
	}
	return ids
}

// LinksToOfType returns the sources of id's incoming edges of one type.
func (c *Cache) LinksToOfType(id, linkType string) []string {
	ids, err := c.links.ToOfType(id, linkType)
	if err != nil {
		c.logger.Debug("Link query failed", "id", id, "type", linkType, "error", err.Error())
		return nil
	}
	return ids
}

// DanglingLinks returns edges whose target is not an indexed record.
func (c *Cache) DanglingLinks() []storage.Link {
	links, err := c.links.Dangling()
	if err != nil {
		c.logger.Debug("Dangling link query failed", "error", err.Error())
		return nil
	}
	return links
}

// TraceFrom follows outgoing edges breadth-first from id.
func (c *Cache) TraceFrom(id string, maxDepth int) []TraceStep {
	return toSteps(graph.Walk(id, maxDepth, func(n string) []graph.Step[string] {
		links := c.LinksFrom(n)
		steps := make([]graph.Step[string], len(links))
		for i, l := range links {
			steps[i] = graph.Step[string]{To: l.TargetID, Via: l.LinkType}
		}
		return steps
	}))
}

// TraceTo follows incoming edges breadth-first back from id.
func (c *Cache) TraceTo(id string, maxDepth int) []TraceStep {
	return toSteps(graph.Walk(id, maxDepth, func(n string) []graph.Step[string] {
		links := c.LinksTo(n)
		steps := make([]graph.Step[string], len(links))
		for i, l := range links {
			steps[i] = graph.Step[string]{To: l.SourceID, Via: l.LinkType}
		}
		return steps
	}))
}

// ExpandBOM walks "contains" edges down from an assembly.
func (c *Cache) ExpandBOM(assemblyID string, maxDepth int) []TraceStep {
	return toSteps(graph.Walk(assemblyID, maxDepth, func(n string) []graph.Step[string] {
		children := c.LinksFromOfType(n, records.LinkContains)
		steps := make([]graph.Step[string], len(children))
		for i, child := range children {
			steps[i] = graph.Step[string]{To: child, Via: records.LinkContains}
		}
		return steps
	}))
}

func toSteps(visits []graph.Visit[string]) []TraceStep {
	steps := make([]TraceStep, len(visits))
	for i, v := range visits {
		steps[i] = TraceStep{ID: v.Node, LinkType: v.Via, Depth: v.Depth, From: v.From}
	}
	return steps
}

// FindOrphans returns records with no edges in either direction, optionally
// restricted to one prefix.
func (c *Cache) FindOrphans(prefix string) []storage.Entity {
	q, args := sqlbuild.From("entities e", storage.EntityColumns).
		Where("NOT EXISTS (SELECT 1 FROM links l WHERE l.source_id = e.id)").
		Where("NOT EXISTS (SELECT 1 FROM links l WHERE l.target_id = e.id)").
		Eq("e.prefix", strings.ToUpper(prefix)).
		OrderBy("e.id", false).
		Build()
	return c.queryEntities(q, args)
}

func (c *Cache) queryEntities(q string, args []any) []storage.Entity {
	rows, err := c.db.Query(q, args...)
	if err != nil {
		c.logger.Debug("Entity query failed", "query", q, "error", err.Error())
		return nil
	}
	out, err := storage.ScanEntities(rows)
	if err != nil {
		c.logger.Debug("Entity query failed", "query", q, "error", err.Error())
		return nil
	}
	return out
}
