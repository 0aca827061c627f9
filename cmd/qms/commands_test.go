package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"qms/internal/errors"
	"qms/internal/paths"
)

// runCLI executes the root command with args after resetting flag state.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	formatFlag, jsonFlag, projectFlag = "human", false, "."
	verbosityFlag, quietFlag, noRebuildFlag = 0, false, false
	traceReverse, traceDepth, bomDepth = false, 0, 0
	listStatus, listFilters, listSort, listDesc, listLimit = nil, nil, "", false, 0
	initForce = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(args, "-q"))
	err := rootCmd.Execute()
	return out.String(), err
}

func writeProjectDoc(t *testing.T, root, dir, id, body string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(dir), id+".qms.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	doc := "id: " + id + "\ntitle: Title of " + id + "\nstatus: draft\nauthor: Dana Ruiz\n" +
		"created: 2024-03-01T10:00:00Z\n" + body
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
}

func initProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	out, err := runCLI(t, "init", "-C", root)
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if !strings.Contains(out, "Initialized qms project") {
		t.Fatalf("unexpected init output: %q", out)
	}
	return root
}

func TestInitIsIdempotent(t *testing.T) {
	root := initProject(t)

	if _, err := os.Stat(paths.ConfigPath(root)); err != nil {
		t.Errorf("config not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "requirements", "inputs")); err != nil {
		t.Errorf("kind directory not created: %v", err)
	}

	out, err := runCLI(t, "init", "-C", root)
	if err != nil {
		t.Fatalf("second init failed: %v", err)
	}
	if !strings.Contains(out, "already initialized") {
		t.Errorf("second init output = %q", out)
	}
}

func TestListCoverageAndTraceByShortID(t *testing.T) {
	root := initProject(t)
	writeProjectDoc(t, root, "requirements/inputs", "REQ-001", "")
	writeProjectDoc(t, root, "requirements/inputs", "REQ-002", "")
	writeProjectDoc(t, root, "verification/protocols", "TEST-001", "links:\n  verifies: REQ-001\n")

	out, err := runCLI(t, "list", "requirement", "-C", root, "--json")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var list ListResponse
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("list output is not JSON: %v\n%s", err, out)
	}
	if len(list.Rows) != 2 || list.Rows[0].ID != "REQ-001" {
		t.Fatalf("rows = %+v", list.Rows)
	}
	if list.ShortIDs["REQ-001"] != "REQ@1" || list.ShortIDs["REQ-002"] != "REQ@2" {
		t.Errorf("short ids = %v", list.ShortIDs)
	}

	out, err = runCLI(t, "coverage", "-C", root, "--format", "json")
	if err != nil {
		t.Fatalf("coverage failed: %v", err)
	}
	var cov struct {
		Total     int      `json:"total"`
		Percent   float64  `json:"percent"`
		Uncovered []string `json:"uncovered"`
	}
	if err := json.Unmarshal([]byte(out), &cov); err != nil {
		t.Fatalf("coverage output is not JSON: %v\n%s", err, out)
	}
	if cov.Total != 2 || cov.Percent != 50 || len(cov.Uncovered) != 1 || cov.Uncovered[0] != "REQ-002" {
		t.Errorf("coverage = %+v", cov)
	}

	out, err = runCLI(t, "trace", "REQ@1", "--to", "-C", root, "--json")
	if err != nil {
		t.Fatalf("trace failed: %v", err)
	}
	var trace TraceResponse
	if err := json.Unmarshal([]byte(out), &trace); err != nil {
		t.Fatalf("trace output is not JSON: %v\n%s", err, out)
	}
	if trace.Root != "REQ-001" || len(trace.Steps) != 1 || trace.Steps[0].ID != "TEST-001" {
		t.Errorf("trace = %+v", trace)
	}
}

func TestListRejectsUnknownKind(t *testing.T) {
	root := initProject(t)
	_, err := runCLI(t, "list", "widget", "-C", root)
	if err == nil || !strings.Contains(err.Error(), `unknown record kind "widget"`) {
		t.Errorf("err = %v", err)
	}
}

func TestCommandOutsideProject(t *testing.T) {
	_, err := runCLI(t, "stats", "-C", t.TempDir())
	if errors.CodeOf(err) != errors.ProjectNotFound {
		t.Errorf("err = %v, want PROJECT_NOT_FOUND", err)
	}
}

func TestParseFilters(t *testing.T) {
	filters, err := parseFilters([]string{"risk_level=high", " level = system "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filters) != 2 || filters[0].Column != "risk_level" || filters[0].Value != "high" ||
		filters[1].Column != "level" || filters[1].Value != "system" {
		t.Errorf("filters = %+v", filters)
	}

	for _, bad := range []string{"level", "=high"} {
		if _, err := parseFilters([]string{bad}); err == nil {
			t.Errorf("parseFilters(%q) should fail", bad)
		}
	}
}
