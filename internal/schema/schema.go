// Package schema declares the input shape of every tool and performs the
// structural half of request validation: required fields, types and
// enumerations. It turns loosely typed arguments into typed requests and
// leaves business rules to the order package.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"trademcp/internal/domain"
)

// Kind is the JSON type of a field.
type Kind string

const (
	String  Kind = "string"
	Number  Kind = "number"
	Integer Kind = "integer"
	Boolean Kind = "boolean"
	Array   Kind = "array"
)

// Field describes one tool argument.
type Field struct {
	Name        string
	Kind        Kind
	Required    bool
	Description string
	Enum        []string
	Default     any
	// Items describes the members of an array of objects.
	Items []Field
	// MinItems and MaxItems bound an array's length when non-zero.
	MinItems int
	MaxItems int
}

// Tool is the declared shape of one callable tool.
type Tool struct {
	Name        string
	Description string
	Fields      []Field
	ReadOnly    bool
	Destructive bool

	decode func(Args) (any, error)
}

// Args holds structurally checked arguments: strings, decimal.Decimal for
// numbers, int for integers, bool, and []Args for arrays of objects.
// Defaults have been applied and absent optional fields are missing.
type Args map[string]any

// Parse structurally validates raw against the tool's fields and decodes
// the result into the tool's typed request.
func (t *Tool) Parse(raw map[string]any) (any, error) {
	args, err := check(t.Fields, raw, "")
	if err != nil {
		return nil, err
	}
	return t.decode(args)
}

// check validates raw against fields. prefix qualifies field names of
// nested objects in error messages.
func check(fields []Field, raw map[string]any, prefix string) (Args, error) {
	known := make(map[string]Field, len(fields))
	for _, f := range fields {
		known[f.Name] = f
	}
	var unknown []string
	for name := range raw {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &domain.SchemaError{Field: prefix + unknown[0], Reason: "unknown field"}
	}

	out := make(Args, len(fields))
	for _, f := range fields {
		name := prefix + f.Name
		v, present := raw[f.Name]
		if !present || v == nil {
			if f.Required {
				return nil, &domain.SchemaError{Field: name, Reason: "is required"}
			}
			if f.Default != nil {
				out[f.Name] = f.Default
			}
			continue
		}
		nv, err := coerce(f, v, name)
		if err != nil {
			return nil, err
		}
		out[f.Name] = nv
	}
	return out, nil
}

func coerce(f Field, v any, name string) (any, error) {
	switch f.Kind {
	case String:
		s, ok := v.(string)
		if !ok {
			return nil, typeErr(name, f.Kind, v)
		}
		s = strings.TrimSpace(s)
		if len(f.Enum) == 0 {
			return s, nil
		}
		s = strings.ToLower(s)
		for _, e := range f.Enum {
			if s == e {
				return s, nil
			}
		}
		return nil, &domain.SchemaError{Field: name, Reason: fmt.Sprintf("must be one of %s, got %q", strings.Join(f.Enum, ", "), s)}
	case Number:
		d, ok := toDecimal(v)
		if !ok {
			return nil, typeErr(name, f.Kind, v)
		}
		return d, nil
	case Integer:
		d, ok := toDecimal(v)
		if !ok || !d.Equal(d.Truncate(0)) || d.Abs().GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
			return nil, typeErr(name, f.Kind, v)
		}
		return int(d.IntPart()), nil
	case Boolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			if p, err := strconv.ParseBool(b); err == nil {
				return p, nil
			}
		}
		return nil, typeErr(name, f.Kind, v)
	case Array:
		items, ok := v.([]any)
		if !ok {
			if m, isMaps := v.([]map[string]any); isMaps {
				items = make([]any, len(m))
				for i := range m {
					items[i] = m[i]
				}
			} else {
				return nil, typeErr(name, f.Kind, v)
			}
		}
		if len(items) < f.MinItems {
			return nil, &domain.SchemaError{Field: name, Reason: fmt.Sprintf("must contain at least %d items, got %d", f.MinItems, len(items))}
		}
		if f.MaxItems > 0 && len(items) > f.MaxItems {
			return nil, &domain.SchemaError{Field: name, Reason: fmt.Sprintf("must contain at most %d items, got %d", f.MaxItems, len(items))}
		}
		out := make([]Args, 0, len(items))
		for i, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, typeErr(fmt.Sprintf("%s[%d]", name, i), "object", item)
			}
			a, err := check(f.Items, obj, fmt.Sprintf("%s[%d].", name, i))
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
		return out, nil
	}
	return nil, fmt.Errorf("field %s has unsupported kind %q", name, f.Kind)
}

// toDecimal accepts the numeric shapes JSON decoders and agents produce:
// float64, json.Number, Go integers and numeric strings.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	}
	return decimal.Zero, false
}

func typeErr(name string, want Kind, got any) *domain.SchemaError {
	return &domain.SchemaError{Field: name, Reason: fmt.Sprintf("must be a %s, got %T", want, got)}
}

// ---- typed accessors used by decoders ----

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Args) Decimal(name string) *decimal.Decimal {
	d, ok := a[name].(decimal.Decimal)
	if !ok {
		return nil
	}
	return &d
}

func (a Args) Int(name string) int {
	n, _ := a[name].(int)
	return n
}

func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

func (a Args) Objects(name string) []Args {
	o, _ := a[name].([]Args)
	return o
}

// Symbols splits a comma-separated symbol list, upper-casing each entry and
// dropping blanks.
func (a Args) Symbols(name string) []string {
	var out []string
	for _, s := range strings.Split(a.String(name), ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
