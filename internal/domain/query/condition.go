package query

import (
	"fmt"

	"github.com/kailas-cloud/taxdex/internal/domain"
)

// Engine-side operator keys written into the filter tree.
const (
	OpGT  = "gt"
	OpGTE = "gte"
	OpLT  = "lt"
	OpLTE = "lte"
	OpNE  = "ne"
)

// StatValue is the implicit summary when a comparison names none.
const StatValue = "value"

// opSets maps a query operator to the engine operator keys it sets.
var opSets = map[string][]string{
	">":  {OpGT},
	">=": {OpGTE},
	"<":  {OpLT},
	"<=": {OpLTE},
	"=":  {OpGTE, OpLTE},
	"!=": {OpNE, OpGTE, OpLTE},
}

var negations = map[string]string{
	">":  "<=",
	"<=": ">",
	">=": "<",
	"<":  ">=",
	"=":  "!=",
	"!=": "=",
}

// operators in match order: two-character forms first.
var operators = []string{">=", "<=", "==", "!=", ">", "<", "="}

// OperatorSet returns the engine operator keys for a query operator.
func OperatorSet(op string) ([]string, bool) {
	keys, ok := opSets[op]
	return keys, ok
}

// Negate returns the complementary query operator.
func Negate(op string) string {
	if n, ok := negations[op]; ok {
		return n
	}
	return op
}

// summaries is the set of accepted summary functions.
var summaries = map[string]bool{
	"value": true, "min": true, "max": true, "mean": true, "median": true,
	"mode": true, "count": true, "length": true, "range": true,
	"from": true, "to": true,
}

// IsSummary reports whether name is an accepted summary function.
func IsSummary(name string) bool { return summaries[name] }

// Condition is one parsed comparison, after synonym resolution and negation.
type Condition struct {
	Field    string
	Stat     string
	Operator string
	Value    string
	Negated  bool
	Property bool
}

// TaxScope selects how a taxon predicate matches records.
type TaxScope string

// Taxon predicate scopes.
const (
	// TaxTree matches the taxon and everything with it in its lineage.
	TaxTree TaxScope = "tax_tree"
	TaxName TaxScope = "tax_name"
	TaxEq   TaxScope = "tax_eq"
)

// TaxPredicate is a tree/name/eq predicate and its raw argument.
type TaxPredicate struct {
	Scope TaxScope
	Value string
}

// Taxonomic holds at most one scope predicate plus independent rank and depth predicates.
type Taxonomic struct {
	Predicate *TaxPredicate
	Rank      string
	Depth     *int
}

// IsEmpty reports whether no taxonomic predicate was given.
func (t Taxonomic) IsEmpty() bool {
	return t.Predicate == nil && t.Rank == "" && t.Depth == nil
}

// Ops maps engine operator keys to raw values.
type Ops map[string]string

// FilterTree is the compiled condition set: numeric/date fields keyed
// stat -> field -> ops, keyword fields keyed stat -> field -> values.
type FilterTree struct {
	Ranges   map[string]map[string]Ops
	Keywords map[string]map[string][]string
}

func newFilterTree() FilterTree {
	return FilterTree{
		Ranges:   make(map[string]map[string]Ops),
		Keywords: make(map[string]map[string][]string),
	}
}

// IsEmpty reports whether the tree holds no conditions.
func (t FilterTree) IsEmpty() bool {
	return len(t.Ranges) == 0 && len(t.Keywords) == 0
}

// Fields returns every field referenced by the tree.
func (t FilterTree) Fields() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(f string) {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for _, byField := range t.Ranges {
		for f := range byField {
			add(f)
		}
	}
	for _, byField := range t.Keywords {
		for f := range byField {
			add(f)
		}
	}
	return out
}

func (t FilterTree) setOp(stat, field, op, value string) {
	byField, ok := t.Ranges[stat]
	if !ok {
		byField = make(map[string]Ops)
		t.Ranges[stat] = byField
	}
	ops, ok := byField[field]
	if !ok {
		ops = make(Ops)
		byField[field] = ops
	}
	ops[op] = value
}

func (t FilterTree) appendValue(stat, field, value string) {
	byField, ok := t.Keywords[stat]
	if !ok {
		byField = make(map[string][]string)
		t.Keywords[stat] = byField
	}
	byField[field] = append(byField[field], value)
}

// Compiled is the result of compiling one query string.
type Compiled struct {
	Taxon       Taxonomic
	Fields      []string
	Identifiers []string
	MultiTerms  []string
	Conditions  []Condition
	Attributes  FilterTree
	Properties  FilterTree
}

// IsMultiTerm reports whether the query selected batch identifier lookup.
func (c *Compiled) IsMultiTerm() bool { return len(c.MultiTerms) > 0 }

// ValidationError reports a term the compiler rejected.
type ValidationError struct {
	Term   string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s in term %q", e.Reason, e.Term)
}

// Unwrap exposes both the invalid-query sentinel and the specific cause.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{domain.ErrInvalidQuery}
	}
	return []error{domain.ErrInvalidQuery, e.Err}
}

func invalid(term, reason string, cause error) error {
	return &ValidationError{Term: term, Reason: reason, Err: cause}
}
