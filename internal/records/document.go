package records

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"qms/internal/errors"
)

// DocumentSuffix is the naming convention for indexed documents.
const DocumentSuffix = ".qms.yaml"

// Statuses are the lifecycle states a document may declare.
var Statuses = []string{"draft", "review", "approved", "released", "obsolete"}

// Header holds the fields every document carries.
type Header struct {
	ID       string            `yaml:"id" validate:"required,entityid"`
	Title    string            `yaml:"title" validate:"required"`
	Status   string            `yaml:"status" validate:"required,oneof=draft review approved released obsolete"`
	Author   string            `yaml:"author" validate:"required"`
	Created  time.Time         `yaml:"created" validate:"required"`
	Priority string            `yaml:"priority,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Category string            `yaml:"category,omitempty"`
	Tags     []string          `yaml:"tags,omitempty"`
	Links    map[string]IDList `yaml:"links,omitempty"`
}

// Head returns the common header; kinds embedding Header inherit it.
func (h *Header) Head() *Header { return h }

// Reference is one outgoing typed edge declared by a document.
type Reference struct {
	Target string
	Type   string
}

// Document is a decoded, validated record of some kind.
type Document interface {
	Head() *Header
	// Subtype is the free-form subtype copied into the generic row.
	Subtype() string
	// Values are aligned with the kind's Columns.
	Values() []any
	// References returns edges from kind-specific fields (not the links map).
	References() []Reference
}

// IDList accepts either a single id or a sequence of ids.
type IDList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *IDList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" || strings.TrimSpace(n.Value) == "" {
			*l = nil
			return nil
		}
		*l = IDList{strings.TrimSpace(n.Value)}
		return nil
	case yaml.SequenceNode:
		var ids []string
		if err := n.Decode(&ids); err != nil {
			return err
		}
		out := make(IDList, 0, len(ids))
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
		*l = out
		return nil
	}
	return fmt.Errorf("line %d: expected an id or a list of ids", n.Line)
}

// Links flattens the header links map and the document's kind-specific
// references into one list. Order is deterministic: links map by type name,
// then kind references in declaration order.
func Links(doc Document) []Reference {
	h := doc.Head()
	types := make([]string, 0, len(h.Links))
	for t := range h.Links {
		types = append(types, t)
	}
	sort.Strings(types)

	var refs []Reference
	for _, t := range types {
		for _, target := range h.Links[t] {
			refs = append(refs, Reference{Target: target, Type: t})
		}
	}
	for _, r := range doc.References() {
		if r.Target != "" {
			refs = append(refs, r)
		}
	}
	return refs
}

var (
	validate  *validator.Validate
	entityIDs = regexp.MustCompile(`^[A-Za-z]+-[0-9A-Za-z_]+$`)
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("entityid", func(fl validator.FieldLevel) bool {
		return entityIDs.MatchString(fl.Field().String())
	})
}

// IsPrefix reports whether s is a well-formed type prefix: one or more ASCII
// letters. Canonical ids and short ids share this grammar.
func IsPrefix(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('A' <= c && c <= 'Z' || 'a' <= c && c <= 'z') {
			return false
		}
	}
	return true
}

// PrefixOf derives the type prefix from a canonical id ("REQ-01H..." -> "REQ").
func PrefixOf(id string) (string, error) {
	prefix, _, found := strings.Cut(id, "-")
	if !found || prefix == "" {
		return "", errors.Wrap(errors.InvalidID, fmt.Sprintf("id %q has no type prefix", id), nil)
	}
	if !IsPrefix(prefix) {
		return "", errors.Wrap(errors.InvalidID,
			fmt.Sprintf("id %q has prefix %q; prefixes are ASCII letters only", id, prefix), nil)
	}
	return strings.ToUpper(prefix), nil
}

// Decode parses and validates one document of the given kind.
func Decode(kind *Kind, data []byte) (Document, error) {
	doc := kind.newDoc()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", kind.Name, err)
	}

	prefix, err := PrefixOf(doc.Head().ID)
	if err != nil {
		return nil, err
	}
	if prefix != kind.Prefix {
		return nil, fmt.Errorf("id %s has prefix %s, expected %s for a %s",
			doc.Head().ID, prefix, kind.Prefix, kind.Name)
	}
	return doc, nil
}

// ParseFile reads and decodes the document at path.
func ParseFile(kind *Kind, path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Decode(kind, data)
	if err != nil {
		return nil, errors.Wrap(errors.ParseFailed, path, err).WithFix(errors.FixAction{
			Type:        errors.EditFile,
			Path:        path,
			Description: "Fix the document header or YAML syntax",
		})
	}
	return doc, nil
}
