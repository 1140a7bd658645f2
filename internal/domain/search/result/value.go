package result

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kailas-cloud/taxdex/internal/domain/schema"
)

// Value is a decoded attribute value. It is one of Float, Integer, Keyword,
// KeywordList, Date or Geo.
type Value interface {
	isValue()
	// Any returns the plain Go representation.
	Any() any
}

// Float is a floating-point value.
type Float float64

// Integer is an integral value.
type Integer int64

// Keyword is a single term.
type Keyword string

// KeywordList is a multi-valued term.
type KeywordList []string

// Date is a calendar date or timestamp, midnight times stripped.
type Date string

// Geo is a coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (Float) isValue()       {}
func (Integer) isValue()     {}
func (Keyword) isValue()     {}
func (KeywordList) isValue() {}
func (Date) isValue()        {}
func (Geo) isValue()         {}

// Any returns v as float64.
func (v Float) Any() any { return float64(v) }

// Any returns v as int64.
func (v Integer) Any() any { return int64(v) }

// Any returns v as string.
func (v Keyword) Any() any { return string(v) }

// Any returns v as []string.
func (v KeywordList) Any() any { return []string(v) }

// Any returns v as string.
func (v Date) Any() any { return string(v) }

// Any returns v as "lat,lon".
func (v Geo) Any() any {
	return strconv.FormatFloat(v.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(v.Lon, 'f', -1, 64)
}

var midnight = regexp.MustCompile(`T00:00:00(\.0+)?(Z|[+-]00:?00)?$`)

// StripMidnight removes a trailing midnight time from a date string.
func StripMidnight(s string) string {
	return midnight.ReplaceAllString(s, "")
}

// Decode converts a raw engine value into the variant for t.
func Decode(t schema.ProcessedType, raw any) (Value, error) {
	if raw == nil {
		return nil, fmt.Errorf("no value")
	}
	switch t {
	case schema.Float:
		f, err := toFloat(raw)
		if err != nil {
			return nil, err
		}
		return Float(f), nil
	case schema.Integer:
		f, err := toFloat(raw)
		if err != nil {
			return nil, err
		}
		return Integer(int64(f)), nil
	case schema.Date:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("date value %v is not a string", raw)
		}
		return Date(StripMidnight(s)), nil
	case schema.Geo:
		return toGeo(raw)
	default:
		return toKeyword(raw)
	}
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("value %v (%T) is not numeric", raw, raw)
}

func toKeyword(raw any) (Value, error) {
	switch v := raw.(type) {
	case string:
		return Keyword(v), nil
	case []string:
		return KeywordList(v), nil
	case []any:
		list := make(KeywordList, 0, len(v))
		for _, item := range v {
			list = append(list, fmt.Sprint(item))
		}
		return list, nil
	}
	return Keyword(fmt.Sprint(raw)), nil
}

func toGeo(raw any) (Value, error) {
	switch v := raw.(type) {
	case string:
		lat, lon, ok := strings.Cut(v, ",")
		if !ok {
			return nil, fmt.Errorf("geo value %q is not lat,lon", v)
		}
		la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		if err != nil {
			return nil, err
		}
		lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
		if err != nil {
			return nil, err
		}
		return Geo{Lat: la, Lon: lo}, nil
	case map[string]any:
		la, err := toFloat(v["lat"])
		if err != nil {
			return nil, err
		}
		lo, err := toFloat(v["lon"])
		if err != nil {
			return nil, err
		}
		return Geo{Lat: la, Lon: lo}, nil
	}
	return nil, fmt.Errorf("geo value %v (%T) is not supported", raw, raw)
}
