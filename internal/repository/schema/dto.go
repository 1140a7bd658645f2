package schema

import (
	"encoding/json"
	"fmt"

	domschema "github.com/kailas-cloud/taxdex/internal/domain/schema"
)

// stringList accepts either a single string or a list of strings.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*l = nil
			return nil
		}
		*l = stringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or list of strings: %w", err)
	}
	*l = many
	return nil
}

type binsRow struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
	Scale string  `json:"scale"`
}

type constraintRow struct {
	Enum stringList `json:"enum"`
}

// attributeRow is the stored form of one declared attribute.
type attributeRow struct {
	Group       string         `json:"group"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Summary     stringList     `json:"summary"`
	ReturnType  string         `json:"return_type"`
	Synonyms    stringList     `json:"synonyms"`
	Constraint  *constraintRow `json:"constraint"`
	Bins        *binsRow       `json:"bins"`
	DisplayName string         `json:"display_name"`
	Description string         `json:"description"`
}

// rowFromSource re-decodes a hit source into an attributeRow.
func rowFromSource(source map[string]any) (attributeRow, error) {
	var row attributeRow
	data, err := json.Marshal(source)
	if err != nil {
		return row, fmt.Errorf("marshal source: %w", err)
	}
	if err := json.Unmarshal(data, &row); err != nil {
		return row, fmt.Errorf("unmarshal attribute: %w", err)
	}
	return row, nil
}

// toAttribute converts a stored row into a domain attribute.
func (r attributeRow) toAttribute() domschema.Attribute {
	spec := domschema.Spec{
		Group:       r.Group,
		Name:        r.Name,
		Type:        r.Type,
		Summary:     r.Summary,
		ReturnType:  r.ReturnType,
		Synonyms:    r.Synonyms,
		DisplayName: r.DisplayName,
		Description: r.Description,
	}
	if r.Constraint != nil {
		spec.Enum = r.Constraint.Enum
	}
	if r.Bins != nil {
		spec.Bins = &domschema.Bins{
			Min:   r.Bins.Min,
			Max:   r.Bins.Max,
			Count: r.Bins.Count,
			Scale: r.Bins.Scale,
		}
	}
	return domschema.NewAttribute(spec)
}
