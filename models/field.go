package models

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// FieldKind is the shape of a single extracted field.
type FieldKind int

const (
	FieldNull FieldKind = iota
	FieldSingle
	FieldList
	FieldError
)

// FieldValue is the result of evaluating one selector. It serialises as
// null, a string, a list of strings, or {"error": "..."}.
type FieldValue struct {
	Kind   FieldKind
	Values []string
	Err    string
}

// NullField is the result of a selector with no matches.
func NullField() FieldValue { return FieldValue{Kind: FieldNull} }

// ErrorField wraps a per-field failure.
func ErrorField(err error) FieldValue {
	return FieldValue{Kind: FieldError, Err: err.Error()}
}

// FieldFromMatches builds a value from trimmed matches in document order.
func FieldFromMatches(matches []string) FieldValue {
	switch len(matches) {
	case 0:
		return NullField()
	case 1:
		return FieldValue{Kind: FieldSingle, Values: matches}
	default:
		return FieldValue{Kind: FieldList, Values: matches}
	}
}

// String returns the single value, or "" for other kinds.
func (f FieldValue) String() string {
	if f.Kind == FieldSingle && len(f.Values) == 1 {
		return f.Values[0]
	}
	return ""
}

type fieldError struct {
	Error string `json:"error"`
}

func (f FieldValue) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case FieldNull:
		return []byte("null"), nil
	case FieldSingle:
		return json.Marshal(f.String())
	case FieldList:
		return json.Marshal(f.Values)
	case FieldError:
		return json.Marshal(fieldError{Error: f.Err})
	default:
		return nil, fmt.Errorf("unknown field kind %d", f.Kind)
	}
}

func (f *FieldValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*f = NullField()
	case string:
		*f = FieldValue{Kind: FieldSingle, Values: []string{v}}
	case []any:
		values := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("field list item is %T, want string", item)
			}
			values = append(values, s)
		}
		*f = FieldValue{Kind: FieldList, Values: values}
	case map[string]any:
		msg, _ := v["error"].(string)
		*f = FieldValue{Kind: FieldError, Err: msg}
	default:
		return fmt.Errorf("unexpected field value %T", raw)
	}
	return nil
}

// ExtractedData maps field names to results in request order.
type ExtractedData = orderedmap.OrderedMap[string, FieldValue]

// NewExtractedData returns an empty ExtractedData sized for n fields.
func NewExtractedData(n int) *ExtractedData {
	return orderedmap.New[string, FieldValue](n)
}
