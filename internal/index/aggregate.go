package index

import (
	"database/sql"

	"qms/internal/records"
	"qms/internal/sqlbuild"
)

// TypeStatusCount is the number of records of one prefix in one status.
type TypeStatusCount struct {
	Prefix string `json:"prefix"`
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// CountsByType groups every record by prefix and status.
func (c *Cache) CountsByType() []TypeStatusCount {
	q, args := sqlbuild.From("entities", "prefix", "status", "COUNT(*)").
		GroupBy("prefix", "status").
		OrderBy("prefix", false).
		OrderBy("status", false).
		Build()

	var out []TypeStatusCount
	ok := c.scanRows(q, args, func(rows *sql.Rows) error {
		var t TypeStatusCount
		if err := rows.Scan(&t.Prefix, &t.Status, &t.Count); err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	if !ok {
		return nil
	}
	return out
}

// RiskGroup summarizes the risks sharing one level or status.
type RiskGroup struct {
	Key    string  `json:"key"`
	Count  int     `json:"count"`
	AvgRPN float64 `json:"avgRpn"`
	MaxRPN int     `json:"maxRpn"`
}

// RiskDistribution summarizes risk priority numbers.
type RiskDistribution struct {
	Total    int         `json:"total"`
	ByLevel  []RiskGroup `json:"byLevel"`
	ByStatus []RiskGroup `json:"byStatus"`
}

const riskLevelOrder = "CASE r.risk_level WHEN 'critical' THEN 0 WHEN 'high' THEN 1 " +
	"WHEN 'medium' THEN 2 WHEN 'low' THEN 3 ELSE 4 END"

// RiskDistribution groups risks by level (most severe first) and by status.
func (c *Cache) RiskDistribution() RiskDistribution {
	var d RiskDistribution
	d.ByLevel = c.riskGroups("r.risk_level", riskLevelOrder)
	d.ByStatus = c.riskGroups("e.status", "e.status")
	for _, g := range d.ByLevel {
		d.Total += g.Count
	}
	return d
}

func (c *Cache) riskGroups(key, order string) []RiskGroup {
	q, args := sqlbuild.From("entities e",
		key, "COUNT(*)", "COALESCE(AVG(r.rpn), 0)", "COALESCE(MAX(r.rpn), 0)").
		Join("JOIN " + records.RiskKind.Table + " r ON r.id = e.id").
		GroupBy(key).
		OrderBy(order, false).
		Build()

	var out []RiskGroup
	ok := c.scanRows(q, args, func(rows *sql.Rows) error {
		var g RiskGroup
		var k sql.NullString
		if err := rows.Scan(&k, &g.Count, &g.AvgRPN, &g.MaxRPN); err != nil {
			return err
		}
		g.Key = k.String
		out = append(out, g)
		return nil
	})
	if !ok {
		return nil
	}
	return out
}

// Coverage is the share of requirements verified by at least one record.
type Coverage struct {
	Total        int      `json:"total"`
	WithTests    int      `json:"withTests"`
	WithoutTests int      `json:"withoutTests"`
	Percent      float64  `json:"percent"`
	Uncovered    []string `json:"uncovered,omitempty"`
}

// RequirementCoverage counts requirements that are the target of a
// "verifies" edge. With no requirements the percentage is 0.
func (c *Cache) RequirementCoverage() Coverage {
	q, args := sqlbuild.From("entities e", "e.id",
		"EXISTS (SELECT 1 FROM links l WHERE l.target_id = e.id AND l.link_type = ?)").
		Eq("e.prefix", records.RequirementKind.Prefix).
		OrderBy("e.id", false).
		Build()
	args = append([]any{records.LinkVerifies}, args...)

	var cov Coverage
	ok := c.scanRows(q, args, func(rows *sql.Rows) error {
		var id string
		var verified bool
		if err := rows.Scan(&id, &verified); err != nil {
			return err
		}
		cov.Total++
		if verified {
			cov.WithTests++
		} else {
			cov.Uncovered = append(cov.Uncovered, id)
		}
		return nil
	})
	if !ok {
		return Coverage{}
	}
	cov.WithoutTests = cov.Total - cov.WithTests
	if cov.Total > 0 {
		cov.Percent = float64(cov.WithTests) * 100 / float64(cov.Total)
	}
	return cov
}

// SupplierQuotes rolls up the quotes received from one supplier.
type SupplierQuotes struct {
	SupplierID      string  `json:"supplierId"`
	SupplierName    string  `json:"supplierName,omitempty"`
	Quotes          int     `json:"quotes"`
	TotalValue      float64 `json:"totalValue"`
	AvgLeadTimeDays float64 `json:"avgLeadTimeDays"`
}

// QuoteRollup groups quotes by supplier, largest total value first.
func (c *Cache) QuoteRollup() []SupplierQuotes {
	q, args := sqlbuild.From(records.QuoteKind.Table+" q",
		"q.supplier_id", "COALESCE(s.title, '')", "COUNT(*)",
		"COALESCE(SUM(q.total_value), 0)", "COALESCE(AVG(q.lead_time_days), 0)").
		Join("LEFT JOIN entities s ON s.id = q.supplier_id").
		GroupBy("q.supplier_id").
		OrderBy("SUM(q.total_value)", true).
		OrderBy("q.supplier_id", false).
		Build()

	var out []SupplierQuotes
	ok := c.scanRows(q, args, func(rows *sql.Rows) error {
		var s SupplierQuotes
		if err := rows.Scan(&s.SupplierID, &s.SupplierName, &s.Quotes, &s.TotalValue, &s.AvgLeadTimeDays); err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if !ok {
		return nil
	}
	return out
}

// scanRows runs q and hands each row to fn. It reports false, after logging,
// if the query or any row fails.
func (c *Cache) scanRows(q string, args []any, fn func(*sql.Rows) error) bool {
	rows, err := c.db.Query(q, args...)
	if err != nil {
		c.logger.Debug("Aggregate query failed", "query", q, "error", err.Error())
		return false
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			c.logger.Debug("Aggregate scan failed", "query", q, "error", err.Error())
			return false
		}
	}
	if err := rows.Err(); err != nil {
		c.logger.Debug("Aggregate query failed", "query", q, "error", err.Error())
		return false
	}
	return true
}
