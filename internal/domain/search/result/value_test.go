package result

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/kailas-cloud/taxdex/internal/domain/schema"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		t    schema.ProcessedType
		raw  any
		want Value
	}{
		{"float", schema.Float, float64(1.5), Float(1.5)},
		{"float from string", schema.Float, "2.25", Float(2.25)},
		{"integer", schema.Integer, float64(42), Integer(42)},
		{"json number", schema.Integer, json.Number("7"), Integer(7)},
		{"keyword", schema.Keyword, "XY", Keyword("XY")},
		{"ordered keyword", schema.OrderedKeyword, "chromosome", Keyword("chromosome")},
		{"keyword list", schema.Keyword, []any{"a", "b"}, KeywordList{"a", "b"}},
		{"date", schema.Date, "2020-01-01T00:00:00Z", Date("2020-01-01")},
		{"date with millis", schema.Date, "2020-01-01T00:00:00.000+00:00", Date("2020-01-01")},
		{"date keeps time", schema.Date, "2020-01-01T10:00:00Z", Date("2020-01-01T10:00:00Z")},
		{"geo string", schema.Geo, "51.5, -0.12", Geo{Lat: 51.5, Lon: -0.12}},
		{"geo object", schema.Geo, map[string]any{"lat": float64(1), "lon": float64(2)}, Geo{Lat: 1, Lon: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.t, tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		t    schema.ProcessedType
		raw  any
	}{
		{"nil", schema.Float, nil},
		{"bad number", schema.Float, "abc"},
		{"bool as integer", schema.Integer, true},
		{"date not string", schema.Date, float64(1)},
		{"geo without comma", schema.Geo, "51.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.t, tt.raw); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValueAny(t *testing.T) {
	if (Geo{Lat: 1.5, Lon: -2}).Any() != "1.5,-2" {
		t.Errorf("Geo.Any() = %v", Geo{Lat: 1.5, Lon: -2}.Any())
	}
	if Integer(3).Any() != int64(3) {
		t.Error("Integer.Any() should be int64")
	}
}
