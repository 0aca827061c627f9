package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequirementCoverage(t *testing.T) {
	root := newProject(t)
	writeDoc(t, root, "requirements/inputs", "REQ-1", "")
	writeDoc(t, root, "requirements/inputs", "REQ-2", "")
	writeDoc(t, root, "requirements/outputs", "REQ-3", "")
	writeDoc(t, root, "verification/protocols", "TEST-A", "links:\n  verifies: REQ-1\n")
	writeDoc(t, root, "verification/protocols", "TEST-B", "")
	c := openCache(t, root, Options{})

	cov := c.RequirementCoverage()
	assert.Equal(t, 3, cov.Total)
	assert.Equal(t, 1, cov.WithTests)
	assert.Equal(t, 2, cov.WithoutTests)
	assert.InDelta(t, 33.33, cov.Percent, 0.01)
	assert.Equal(t, []string{"REQ-2", "REQ-3"}, cov.Uncovered)
}

func TestRequirementCoverageEmpty(t *testing.T) {
	c := openCache(t, newProject(t), Options{})
	cov := c.RequirementCoverage()
	assert.Equal(t, 0, cov.Total)
	assert.Equal(t, 0.0, cov.Percent)
}

func TestCountsByType(t *testing.T) {
	c := setupRisks(t)

	got := c.CountsByType()
	assert.Equal(t, []TypeStatusCount{
		{Prefix: "CTRL", Status: "draft", Count: 2},
		{Prefix: "REQ", Status: "draft", Count: 1},
		{Prefix: "RISK", Status: "draft", Count: 3},
	}, got)
}

func TestRiskDistribution(t *testing.T) {
	c := setupRisks(t)

	d := c.RiskDistribution()
	assert.Equal(t, 3, d.Total)

	// RISK-1 rpn 225 critical, RISK-3 rpn 72 stated high, RISK-2 rpn 24 low.
	require.Len(t, d.ByLevel, 3)
	assert.Equal(t, RiskGroup{Key: "critical", Count: 1, AvgRPN: 225, MaxRPN: 225}, d.ByLevel[0])
	assert.Equal(t, RiskGroup{Key: "high", Count: 1, AvgRPN: 72, MaxRPN: 72}, d.ByLevel[1])
	assert.Equal(t, RiskGroup{Key: "low", Count: 1, AvgRPN: 24, MaxRPN: 24}, d.ByLevel[2])

	require.Len(t, d.ByStatus, 1)
	assert.Equal(t, "draft", d.ByStatus[0].Key)
	assert.Equal(t, 3, d.ByStatus[0].Count)
	assert.InDelta(t, 107, d.ByStatus[0].AvgRPN, 0.001)
	assert.Equal(t, 225, d.ByStatus[0].MaxRPN)
}

func TestQuoteRollup(t *testing.T) {
	root := newProject(t)
	writeDoc(t, root, "procurement/suppliers", "SUP-1", "short_name: Acme\n")
	writeDoc(t, root, "procurement/quotes", "QUOT-1", "supplier: SUP-1\ncomponent: CMP-1\nunit_price: 2.5\nquantity: 100\nlead_time_days: 10\n")
	writeDoc(t, root, "procurement/quotes", "QUOT-2", "supplier: SUP-1\ncomponent: CMP-2\nunit_price: 40\nlead_time_days: 30\n")
	writeDoc(t, root, "procurement/quotes", "QUOT-3", "supplier: SUP-9\ncomponent: CMP-1\nunit_price: 1\nquantity: 1000\nlead_time_days: 5\n")
	c := openCache(t, root, Options{})

	got := c.QuoteRollup()
	require.Len(t, got, 2)
	// Largest total first; SUP-9 has no supplier record.
	assert.Equal(t, SupplierQuotes{
		SupplierID: "SUP-9", Quotes: 1, TotalValue: 1000, AvgLeadTimeDays: 5,
	}, got[0])
	assert.Equal(t, SupplierQuotes{
		SupplierID: "SUP-1", SupplierName: "Title of SUP-1",
		Quotes: 2, TotalValue: 290, AvgLeadTimeDays: 20,
	}, got[1])
}
