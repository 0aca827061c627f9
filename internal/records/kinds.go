package records

import (
	"strings"
	"time"
)

// Link types produced from kind-specific reference fields.
const (
	LinkVerifies    = "verifies"
	LinkResultOf    = "result_of"
	LinkSuppliedBy  = "supplied_by"
	LinkContains    = "contains"
	LinkQuotedBy    = "quoted_by"
	LinkQuotes      = "quotes"
	LinkControls    = "controls"
	LinkInstructs   = "instructs"
	LinkAffects     = "affects"
	LinkAddresses   = "addresses"
	LinkFeatureOf   = "feature_of"
	LinkMates       = "mates"
	LinkContributor = "contributor"
)

var (
	RequirementKind = register(&Kind{
		Prefix: "REQ", Name: "requirement", Table: "requirements",
		Dirs: []string{"requirements/inputs", "requirements/outputs"},
		Columns: []Column{
			{Name: "req_type", Filter: true},
			{Name: "level", Filter: true},
			{Name: "text"},
			{Name: "rationale"},
		},
		newDoc: func() Document { return &Requirement{} },
	})
	RiskKind = register(&Kind{
		Prefix: "RISK", Name: "risk", Table: "risks",
		Dirs: []string{"risks/design", "risks/process"},
		Columns: []Column{
			{Name: "risk_type", Filter: true},
			{Name: "failure_mode"},
			{Name: "severity", Type: Integer},
			{Name: "occurrence", Type: Integer},
			{Name: "detection", Type: Integer},
			{Name: "rpn", Type: Integer},
			{Name: "risk_level", Filter: true},
		},
		newDoc: func() Document { return &Risk{} },
	})
	TestKind = register(&Kind{
		Prefix: "TEST", Name: "test", Table: "tests",
		Dirs: []string{"verification/protocols", "validation/protocols"},
		Columns: []Column{
			{Name: "test_type", Filter: true},
			{Name: "test_level", Filter: true},
			{Name: "method", Filter: true},
			{Name: "estimated_duration"},
		},
		newDoc: func() Document { return &Test{} },
	})
	ResultKind = register(&Kind{
		Prefix: "RSLT", Name: "result", Table: "results",
		Dirs: []string{"verification/results", "validation/results"},
		Columns: []Column{
			{Name: "test_id", Filter: true, Exact: true},
			{Name: "verdict", Filter: true},
			{Name: "executed_by"},
			{Name: "executed_date"},
		},
		newDoc: func() Document { return &Result{} },
	})
	ComponentKind = register(&Kind{
		Prefix: "CMP", Name: "component", Table: "components",
		Dirs: []string{"bom/components"},
		Columns: []Column{
			{Name: "part_number", Filter: true, Exact: true},
			{Name: "revision"},
			{Name: "make_buy", Filter: true},
			{Name: "material"},
			{Name: "unit_cost", Type: Real},
			{Name: "mass_kg", Type: Real},
			{Name: "supplier_id", Filter: true, Exact: true},
		},
		newDoc: func() Document { return &Component{} },
	})
	AssemblyKind = register(&Kind{
		Prefix: "ASM", Name: "assembly", Table: "assemblies",
		Dirs: []string{"bom/assemblies"},
		Columns: []Column{
			{Name: "part_number", Filter: true, Exact: true},
			{Name: "revision"},
			{Name: "bom_count", Type: Integer},
		},
		newDoc: func() Document { return &Assembly{} },
	})
	SupplierKind = register(&Kind{
		Prefix: "SUP", Name: "supplier", Table: "suppliers",
		Dirs: []string{"procurement/suppliers"},
		Columns: []Column{
			{Name: "short_name", Filter: true},
			{Name: "contact_email"},
			{Name: "website"},
			{Name: "capabilities"},
		},
		newDoc: func() Document { return &Supplier{} },
	})
	QuoteKind = register(&Kind{
		Prefix: "QUOT", Name: "quote", Table: "quotes",
		Dirs: []string{"procurement/quotes"},
		Columns: []Column{
			{Name: "supplier_id", Filter: true, Exact: true},
			{Name: "component_id", Filter: true, Exact: true},
			{Name: "unit_price", Type: Real},
			{Name: "quantity", Type: Integer},
			{Name: "currency", Filter: true},
			{Name: "lead_time_days", Type: Integer},
			{Name: "quote_status", Filter: true},
			{Name: "total_value", Type: Real},
		},
		newDoc: func() Document { return &Quote{} },
	})
	ProcessKind = register(&Kind{
		Prefix: "PROC", Name: "process", Table: "processes",
		Dirs: []string{"manufacturing/processes"},
		Columns: []Column{
			{Name: "process_type", Filter: true},
			{Name: "operation_number"},
			{Name: "equipment"},
			{Name: "cycle_time_minutes", Type: Real},
		},
		newDoc: func() Document { return &Process{} },
	})
	ControlKind = register(&Kind{
		Prefix: "CTRL", Name: "control", Table: "controls",
		Dirs: []string{"manufacturing/controls"},
		Columns: []Column{
			{Name: "control_type", Filter: true},
			{Name: "process_id", Filter: true, Exact: true},
			{Name: "characteristic"},
			{Name: "critical", Type: Bool, Filter: true},
		},
		newDoc: func() Document { return &Control{} },
	})
	WorkInstructionKind = register(&Kind{
		Prefix: "WORK", Name: "work instruction", Table: "work_instructions",
		Dirs: []string{"manufacturing/work_instructions"},
		Columns: []Column{
			{Name: "process_id", Filter: true, Exact: true},
			{Name: "document_number"},
			{Name: "step_count", Type: Integer},
		},
		newDoc: func() Document { return &WorkInstruction{} },
	})
	NCRKind = register(&Kind{
		Prefix: "NCR", Name: "ncr", Table: "ncrs",
		Dirs: []string{"manufacturing/ncrs"},
		Columns: []Column{
			{Name: "ncr_type", Filter: true},
			{Name: "ncr_severity", Filter: true},
			{Name: "ncr_status", Filter: true},
			{Name: "disposition", Filter: true},
			{Name: "component_id", Filter: true, Exact: true},
		},
		newDoc: func() Document { return &NCR{} },
	})
	CAPAKind = register(&Kind{
		Prefix: "CAPA", Name: "capa", Table: "capas",
		Dirs: []string{"manufacturing/capas"},
		Columns: []Column{
			{Name: "capa_type", Filter: true},
			{Name: "capa_status", Filter: true},
			{Name: "due_date"},
		},
		newDoc: func() Document { return &CAPA{} },
	})
	FeatureKind = register(&Kind{
		Prefix: "FEAT", Name: "feature", Table: "features",
		Dirs: []string{"tolerances/features"},
		Columns: []Column{
			{Name: "component_id", Filter: true, Exact: true},
			{Name: "feature_type", Filter: true},
			{Name: "nominal", Type: Real},
			{Name: "plus_tol", Type: Real},
			{Name: "minus_tol", Type: Real},
		},
		newDoc: func() Document { return &Feature{} },
	})
	MateKind = register(&Kind{
		Prefix: "MATE", Name: "mate", Table: "mates",
		Dirs: []string{"tolerances/mates"},
		Columns: []Column{
			{Name: "feature_a", Filter: true, Exact: true},
			{Name: "feature_b", Filter: true, Exact: true},
			{Name: "mate_type", Filter: true},
		},
		newDoc: func() Document { return &Mate{} },
	})
	StackupKind = register(&Kind{
		Prefix: "TOL", Name: "stackup", Table: "stackups",
		Dirs: []string{"tolerances/stackups"},
		Columns: []Column{
			{Name: "target_name"},
			{Name: "target_nominal", Type: Real},
			{Name: "target_upper", Type: Real},
			{Name: "target_lower", Type: Real},
			{Name: "contributor_count", Type: Integer},
			{Name: "disposition", Filter: true},
		},
		newDoc: func() Document { return &Stackup{} },
	})
)

// Requirement is an input (customer/regulatory) or output (design) requirement.
type Requirement struct {
	Header    `yaml:",inline"`
	Type      string `yaml:"type" validate:"omitempty,oneof=input output"`
	Level     string `yaml:"level"`
	Text      string `yaml:"text"`
	Rationale string `yaml:"rationale"`
}

func (r *Requirement) Subtype() string { return r.Type }
func (r *Requirement) References() []Reference { return nil }
func (r *Requirement) Values() []any {
	return []any{r.Type, r.Level, r.Text, r.Rationale}
}

// Risk is an FMEA line. RPN and level are derived when omitted.
type Risk struct {
	Header      `yaml:",inline"`
	Type        string `yaml:"type" validate:"omitempty,oneof=design process"`
	FailureMode string `yaml:"failure_mode"`
	Severity    int    `yaml:"severity" validate:"gte=0,lte=10"`
	Occurrence  int    `yaml:"occurrence" validate:"gte=0,lte=10"`
	Detection   int    `yaml:"detection" validate:"gte=0,lte=10"`
	RPN         int    `yaml:"rpn" validate:"gte=0,lte=1000"`
	Level       string `yaml:"risk_level" validate:"omitempty,oneof=low medium high critical"`
}

// EffectiveRPN returns the stated RPN or severity x occurrence x detection.
func (r *Risk) EffectiveRPN() int {
	if r.RPN > 0 {
		return r.RPN
	}
	return r.Severity * r.Occurrence * r.Detection
}

// EffectiveLevel returns the stated level or one derived from the RPN.
func (r *Risk) EffectiveLevel() string {
	if r.Level != "" {
		return r.Level
	}
	return RiskLevelFor(r.EffectiveRPN())
}

// RiskLevelFor maps an RPN onto low/medium/high/critical.
func RiskLevelFor(rpn int) string {
	switch {
	case rpn <= 50:
		return "low"
	case rpn <= 100:
		return "medium"
	case rpn <= 200:
		return "high"
	default:
		return "critical"
	}
}

func (r *Risk) Subtype() string { return r.Type }
func (r *Risk) References() []Reference { return nil }
func (r *Risk) Values() []any {
	return []any{r.Type, r.FailureMode, r.Severity, r.Occurrence, r.Detection,
		r.EffectiveRPN(), r.EffectiveLevel()}
}

// Test is a verification or validation protocol.
type Test struct {
	Header            `yaml:",inline"`
	Type              string `yaml:"type" validate:"omitempty,oneof=verification validation"`
	Level             string `yaml:"test_level"`
	Method            string `yaml:"method" validate:"omitempty,oneof=inspection analysis demonstration test"`
	EstimatedDuration string `yaml:"estimated_duration"`
}

func (t *Test) Subtype() string { return t.Type }
func (t *Test) References() []Reference { return nil }
func (t *Test) Values() []any {
	return []any{t.Type, t.Level, t.Method, t.EstimatedDuration}
}

// Result records one execution of a test.
type Result struct {
	Header       `yaml:",inline"`
	TestID       string    `yaml:"test" validate:"required"`
	Verdict      string    `yaml:"verdict" validate:"omitempty,oneof=pass fail conditional incomplete not_applicable"`
	ExecutedBy   string    `yaml:"executed_by"`
	ExecutedDate time.Time `yaml:"executed_date"`
}

func (r *Result) Subtype() string { return r.Verdict }
func (r *Result) References() []Reference {
	return []Reference{{Target: r.TestID, Type: LinkResultOf}}
}
func (r *Result) Values() []any {
	return []any{r.TestID, r.Verdict, r.ExecutedBy, formatDate(r.ExecutedDate)}
}

// Component is a purchased or manufactured part.
type Component struct {
	Header     `yaml:",inline"`
	PartNumber string  `yaml:"part_number"`
	Revision   string  `yaml:"revision"`
	MakeBuy    string  `yaml:"make_buy" validate:"omitempty,oneof=make buy"`
	Material   string  `yaml:"material"`
	UnitCost   float64 `yaml:"unit_cost" validate:"gte=0"`
	MassKg     float64 `yaml:"mass_kg" validate:"gte=0"`
	Supplier   string  `yaml:"supplier"`
}

func (c *Component) Subtype() string { return c.MakeBuy }
func (c *Component) References() []Reference {
	return []Reference{{Target: c.Supplier, Type: LinkSuppliedBy}}
}
func (c *Component) Values() []any {
	return []any{c.PartNumber, c.Revision, c.MakeBuy, c.Material, c.UnitCost, c.MassKg, c.Supplier}
}

// BOMItem is one line of an assembly's bill of materials.
type BOMItem struct {
	Component string `yaml:"component" validate:"required"`
	Quantity  int    `yaml:"quantity" validate:"gte=0"`
}

// Assembly groups components (and sub-assemblies) through its BOM.
type Assembly struct {
	Header     `yaml:",inline"`
	PartNumber string    `yaml:"part_number"`
	Revision   string    `yaml:"revision"`
	BOM        []BOMItem `yaml:"bom" validate:"dive"`
}

func (a *Assembly) Subtype() string { return "" }
func (a *Assembly) References() []Reference {
	refs := make([]Reference, 0, len(a.BOM))
	for _, item := range a.BOM {
		refs = append(refs, Reference{Target: item.Component, Type: LinkContains})
	}
	return refs
}
func (a *Assembly) Values() []any {
	return []any{a.PartNumber, a.Revision, len(a.BOM)}
}

// Supplier is an approved vendor.
type Supplier struct {
	Header       `yaml:",inline"`
	ShortName    string   `yaml:"short_name"`
	ContactEmail string   `yaml:"contact_email" validate:"omitempty,email"`
	Website      string   `yaml:"website" validate:"omitempty,url"`
	Capabilities []string `yaml:"capabilities"`
}

func (s *Supplier) Subtype() string { return "" }
func (s *Supplier) References() []Reference { return nil }
func (s *Supplier) Values() []any {
	return []any{s.ShortName, s.ContactEmail, s.Website, strings.Join(s.Capabilities, ",")}
}

// Quote is a supplier's price for a component.
type Quote struct {
	Header       `yaml:",inline"`
	Supplier     string  `yaml:"supplier" validate:"required"`
	Component    string  `yaml:"component"`
	UnitPrice    float64 `yaml:"unit_price" validate:"gte=0"`
	Quantity     int     `yaml:"quantity" validate:"gte=0"`
	Currency     string  `yaml:"currency"`
	LeadTimeDays int     `yaml:"lead_time_days" validate:"gte=0"`
	QuoteStatus  string  `yaml:"quote_status" validate:"omitempty,oneof=pending received accepted rejected expired"`
}

// TotalValue is unit price times quantity; a missing quantity counts as one.
func (q *Quote) TotalValue() float64 {
	qty := q.Quantity
	if qty == 0 {
		qty = 1
	}
	return q.UnitPrice * float64(qty)
}

func (q *Quote) Subtype() string { return q.QuoteStatus }
func (q *Quote) References() []Reference {
	return []Reference{
		{Target: q.Supplier, Type: LinkQuotedBy},
		{Target: q.Component, Type: LinkQuotes},
	}
}
func (q *Quote) Values() []any {
	return []any{q.Supplier, q.Component, q.UnitPrice, q.Quantity, q.Currency,
		q.LeadTimeDays, q.QuoteStatus, q.TotalValue()}
}

// Process is a manufacturing operation.
type Process struct {
	Header           `yaml:",inline"`
	Type             string  `yaml:"type"`
	OperationNumber  string  `yaml:"operation_number"`
	Equipment        string  `yaml:"equipment"`
	CycleTimeMinutes float64 `yaml:"cycle_time_minutes" validate:"gte=0"`
}

func (p *Process) Subtype() string { return p.Type }
func (p *Process) References() []Reference { return nil }
func (p *Process) Values() []any {
	return []any{p.Type, p.OperationNumber, p.Equipment, p.CycleTimeMinutes}
}

// Control is a process control plan entry.
type Control struct {
	Header         `yaml:",inline"`
	Type           string `yaml:"type"`
	Process        string `yaml:"process"`
	Characteristic string `yaml:"characteristic"`
	Critical       bool   `yaml:"critical"`
}

func (c *Control) Subtype() string { return c.Type }
func (c *Control) References() []Reference {
	return []Reference{{Target: c.Process, Type: LinkControls}}
}
func (c *Control) Values() []any {
	return []any{c.Type, c.Process, c.Characteristic, c.Critical}
}

// WorkInstruction documents how an operator performs a process.
type WorkInstruction struct {
	Header         `yaml:",inline"`
	Process        string   `yaml:"process"`
	DocumentNumber string   `yaml:"document_number"`
	Steps          []string `yaml:"steps"`
}

func (w *WorkInstruction) Subtype() string { return "" }
func (w *WorkInstruction) References() []Reference {
	return []Reference{{Target: w.Process, Type: LinkInstructs}}
}
func (w *WorkInstruction) Values() []any {
	return []any{w.Process, w.DocumentNumber, len(w.Steps)}
}

// NCR is a non-conformance report.
type NCR struct {
	Header      `yaml:",inline"`
	Type        string `yaml:"ncr_type" validate:"omitempty,oneof=internal supplier customer"`
	Severity    string `yaml:"severity" validate:"omitempty,oneof=minor major critical"`
	NCRStatus   string `yaml:"ncr_status"`
	Disposition string `yaml:"disposition"`
	Component   string `yaml:"component"`
}

func (n *NCR) Subtype() string { return n.Type }
func (n *NCR) References() []Reference {
	return []Reference{{Target: n.Component, Type: LinkAffects}}
}
func (n *NCR) Values() []any {
	return []any{n.Type, n.Severity, n.NCRStatus, n.Disposition, n.Component}
}

// CAPA is a corrective or preventive action.
type CAPA struct {
	Header     `yaml:",inline"`
	Type       string    `yaml:"capa_type" validate:"omitempty,oneof=corrective preventive"`
	CAPAStatus string    `yaml:"capa_status"`
	NCRs       []string  `yaml:"ncrs"`
	DueDate    time.Time `yaml:"due_date"`
}

func (c *CAPA) Subtype() string { return c.Type }
func (c *CAPA) References() []Reference {
	refs := make([]Reference, 0, len(c.NCRs))
	for _, id := range c.NCRs {
		refs = append(refs, Reference{Target: id, Type: LinkAddresses})
	}
	return refs
}
func (c *CAPA) Values() []any {
	return []any{c.Type, c.CAPAStatus, formatDate(c.DueDate)}
}

// Feature is a toleranced geometric feature of a component.
type Feature struct {
	Header    `yaml:",inline"`
	Component string  `yaml:"component" validate:"required"`
	Type      string  `yaml:"feature_type"`
	Nominal   float64 `yaml:"nominal"`
	PlusTol   float64 `yaml:"plus_tol" validate:"gte=0"`
	MinusTol  float64 `yaml:"minus_tol" validate:"gte=0"`
}

func (f *Feature) Subtype() string { return f.Type }
func (f *Feature) References() []Reference {
	return []Reference{{Target: f.Component, Type: LinkFeatureOf}}
}
func (f *Feature) Values() []any {
	return []any{f.Component, f.Type, f.Nominal, f.PlusTol, f.MinusTol}
}

// Mate pairs two features.
type Mate struct {
	Header   `yaml:",inline"`
	FeatureA string `yaml:"feature_a" validate:"required"`
	FeatureB string `yaml:"feature_b" validate:"required"`
	Type     string `yaml:"mate_type" validate:"omitempty,oneof=clearance transition interference"`
}

func (m *Mate) Subtype() string { return m.Type }
func (m *Mate) References() []Reference {
	return []Reference{
		{Target: m.FeatureA, Type: LinkMates},
		{Target: m.FeatureB, Type: LinkMates},
	}
}
func (m *Mate) Values() []any {
	return []any{m.FeatureA, m.FeatureB, m.Type}
}

// Contributor is one feature in a tolerance stack.
type Contributor struct {
	Feature   string `yaml:"feature" validate:"required"`
	Direction string `yaml:"direction" validate:"omitempty,oneof=positive negative"`
}

// Stackup is a tolerance stack-up analysis.
type Stackup struct {
	Header        `yaml:",inline"`
	TargetName    string        `yaml:"target_name"`
	TargetNominal float64       `yaml:"target_nominal"`
	TargetUpper   float64       `yaml:"target_upper"`
	TargetLower   float64       `yaml:"target_lower"`
	Contributors  []Contributor `yaml:"contributors" validate:"dive"`
	Disposition   string        `yaml:"disposition"`
}

func (s *Stackup) Subtype() string { return s.Disposition }
func (s *Stackup) References() []Reference {
	refs := make([]Reference, 0, len(s.Contributors))
	for _, c := range s.Contributors {
		refs = append(refs, Reference{Target: c.Feature, Type: LinkContributor})
	}
	return refs
}
func (s *Stackup) Values() []any {
	return []any{s.TargetName, s.TargetNominal, s.TargetUpper, s.TargetLower,
		len(s.Contributors), s.Disposition}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
