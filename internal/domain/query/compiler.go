package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kailas-cloud/taxdex/internal/domain"
	"github.com/kailas-cloud/taxdex/internal/domain/schema"
)

// CategoryFile is the record category whose query values are case-folded.
const CategoryFile = "file"

var (
	andSplitter  = regexp.MustCompile(`(?i)\s+and\s+`)
	taxPattern   = regexp.MustCompile(`(?i)^(tax_tree|tax_name|tax_eq|tax_rank|tax_depth)\s*\((.*)\)$`)
	statPattern  = regexp.MustCompile(`^([A-Za-z_]+)\s*\(\s*(.+?)\s*\)$`)
	operatorRune = "<>=!"
)

// Lookup resolves field names against a schema snapshot.
type Lookup interface {
	Lookup(name string) (schema.Attribute, bool)
}

// Compiler turns query strings into Compiled condition sets.
type Compiler struct {
	category    string
	attributes  Lookup
	identifiers Lookup
}

// NewCompiler creates a compiler bound to one category's schemas.
// identifiers may be nil when the category declares no identifier schema.
func NewCompiler(category string, attributes, identifiers Lookup) *Compiler {
	return &Compiler{category: category, attributes: attributes, identifiers: identifiers}
}

// Compile parses q. Newline-separated input selects multi-term mode and is
// not parsed further.
func (c *Compiler) Compile(q string) (*Compiled, error) {
	out := &Compiled{
		Attributes: newFilterTree(),
		Properties: newFilterTree(),
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return out, nil
	}

	if strings.Contains(q, "\n") {
		for _, line := range strings.Split(q, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				out.MultiTerms = append(out.MultiTerms, line)
			}
		}
		return out, nil
	}

	terms := c.expandLogFields(splitTerms(q))

	for _, term := range terms {
		if err := c.compileTerm(out, term); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func splitTerms(q string) []string {
	parts := andSplitter.Split(q, -1)
	terms := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			terms = append(terms, p)
		}
	}
	return terms
}

// expandLogFields appends "field>0" for bare log-scaled fields that no
// comparison in the query references.
func (c *Compiler) expandLogFields(terms []string) []string {
	compared := make(map[string]bool)
	var bare []schema.Attribute
	for _, term := range terms {
		if taxPattern.MatchString(term) {
			continue
		}
		lhs, _, _, ok := splitComparison(term)
		if !ok {
			if a, found := c.attribute(term); found {
				bare = append(bare, a)
			}
			continue
		}
		_, field := splitStat(strings.TrimPrefix(lhs, "!"))
		if a, found := c.attribute(field); found {
			compared[a.Name()] = true
		}
	}
	for _, a := range bare {
		if a.IsLogScaled() && !compared[a.Name()] {
			terms = append(terms, a.Name()+">0")
			compared[a.Name()] = true
		}
	}
	return terms
}

func (c *Compiler) compileTerm(out *Compiled, term string) error {
	if m := taxPattern.FindStringSubmatch(term); m != nil {
		return compileTaxon(out, term, strings.ToLower(m[1]), strings.TrimSpace(m[2]))
	}

	lhs, op, rhs, ok := splitComparison(term)
	if !ok {
		if strings.ContainsAny(term, operatorRune) && !strings.HasPrefix(term, "!") {
			return invalid(term, "malformed comparison", nil)
		}
		if a, found := c.attribute(term); found {
			out.Fields = appendUnique(out.Fields, a.Name())
			return nil
		}
		out.Identifiers = append(out.Identifiers, term)
		return nil
	}
	if lhs == "" || rhs == "" {
		return invalid(term, "malformed comparison", nil)
	}

	negated := false
	if strings.HasPrefix(lhs, "!") {
		negated = true
		lhs = strings.TrimSpace(lhs[1:])
	}
	if op == "==" {
		op = "="
	}
	if negated {
		op = Negate(op)
	}
	if strings.HasPrefix(rhs, "!") {
		rhs = strings.TrimSpace(rhs[1:])
		op = Negate(op)
		negated = !negated
		if rhs == "" {
			return invalid(term, "malformed comparison", nil)
		}
	}

	stat, fieldName := splitStat(lhs)
	if stat != "" && !IsSummary(stat) {
		return invalid(term, fmt.Sprintf("unknown summary function %q", stat), domain.ErrUnknownSummary)
	}
	if stat == "" {
		stat = StatValue
	}

	attr, property, found := c.resolve(fieldName)
	if !found {
		return invalid(term, fmt.Sprintf("unknown field %q", fieldName), domain.ErrUnknownField)
	}
	if attr.Type() == schema.Date {
		stat = dateStat(stat)
	}
	if c.category == CategoryFile {
		rhs = strings.ToLower(rhs)
	}

	cond := Condition{
		Field:    attr.Name(),
		Stat:     stat,
		Operator: op,
		Value:    rhs,
		Negated:  negated,
		Property: property,
	}
	tree := out.Attributes
	if property {
		tree = out.Properties
	}
	if err := writeCondition(tree, attr, cond, term); err != nil {
		return err
	}
	out.Conditions = append(out.Conditions, cond)
	return nil
}

func compileTaxon(out *Compiled, term, name, value string) error {
	if value == "" {
		return invalid(term, "empty taxon predicate", nil)
	}
	switch name {
	case "tax_rank":
		if out.Taxon.Rank == "" {
			out.Taxon.Rank = strings.ToLower(value)
		}
	case "tax_depth":
		if out.Taxon.Depth != nil {
			return nil
		}
		depth, err := strconv.Atoi(value)
		if err != nil || depth < 0 {
			return invalid(term, fmt.Sprintf("invalid depth %q", value), nil)
		}
		out.Taxon.Depth = &depth
	default:
		if out.Taxon.Predicate == nil {
			out.Taxon.Predicate = &TaxPredicate{Scope: TaxScope(name), Value: value}
		}
	}
	return nil
}

func writeCondition(tree FilterTree, attr schema.Attribute, cond Condition, term string) error {
	keys, ok := OperatorSet(cond.Operator)
	if !ok {
		return invalid(term, fmt.Sprintf("unknown operator %q", cond.Operator), nil)
	}

	switch {
	case attr.Type().IsKeyword():
		switch cond.Operator {
		case "=":
			tree.appendValue(cond.Stat, cond.Field, cond.Value)
		case "!=":
			tree.appendValue(cond.Stat, cond.Field, "!"+cond.Value)
		default:
			if attr.Type() != schema.OrderedKeyword {
				return invalid(term, fmt.Sprintf("operator %q needs an ordered field", cond.Operator), nil)
			}
			for _, v := range strings.Split(cond.Value, ",") {
				if v = strings.TrimSpace(v); v != "" {
					tree.appendValue(cond.Stat, cond.Field, cond.Operator+v)
				}
			}
		}
	case attr.Type() == schema.Geo:
		return invalid(term, "comparisons are not supported on geo fields", nil)
	default:
		if attr.Type().IsNumeric() || isCountStat(cond.Stat) {
			if _, err := strconv.ParseFloat(cond.Value, 64); err != nil {
				return invalid(term, fmt.Sprintf("invalid numeric value %q", cond.Value), nil)
			}
		}
		for _, k := range keys {
			tree.setOp(cond.Stat, cond.Field, k, cond.Value)
		}
	}
	return nil
}

func isCountStat(stat string) bool {
	return stat == "count" || stat == "length"
}

// splitComparison finds the first operator in term. A leading "!" belongs to
// the field, not the operator.
func splitComparison(term string) (lhs, op, rhs string, ok bool) {
	start := 0
	if strings.HasPrefix(term, "!") {
		start = 1
	}
	idx := strings.IndexAny(term[start:], operatorRune)
	if idx < 0 {
		return "", "", "", false
	}
	idx += start
	rest := term[idx:]
	for _, candidate := range operators {
		if strings.HasPrefix(rest, candidate) {
			return strings.TrimSpace(term[:idx]), candidate, strings.TrimSpace(rest[len(candidate):]), true
		}
	}
	return "", "", "", false
}

func splitStat(lhs string) (stat, field string) {
	if m := statPattern.FindStringSubmatch(lhs); m != nil {
		return strings.ToLower(m[1]), m[2]
	}
	return "", lhs
}

func dateStat(stat string) string {
	switch stat {
	case "min":
		return "from"
	case "max":
		return "to"
	}
	return stat
}

func (c *Compiler) attribute(name string) (schema.Attribute, bool) {
	if c.attributes == nil {
		return schema.Attribute{}, false
	}
	return c.attributes.Lookup(name)
}

func (c *Compiler) resolve(name string) (schema.Attribute, bool, bool) {
	if a, ok := c.attribute(name); ok {
		return a, false, true
	}
	if c.identifiers != nil {
		if a, ok := c.identifiers.Lookup(name); ok {
			return a, true, true
		}
	}
	return schema.Attribute{}, false, false
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
