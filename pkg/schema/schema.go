// Package schema compiles declarative schema documents into runtime
// validators for agent output.
//
// The supported vocabulary is a deliberate subset: object (properties,
// required, additionalProperties:false), array (items), string (minLength,
// maxLength, pattern, enum), number/integer (minimum, maximum), boolean,
// null, and union types expressed as a list under "type". An empty or
// absent schema accepts any value unchecked.
//
// Compilation is a pure recursive pass over the document; the resulting
// Validator holds no mutable state and is safe for concurrent use.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
)

// checkFunc validates one value at the given field path.
type checkFunc func(value any, path string) ValidationErrors

// Validator applies a compiled schema to parsed output values.
type Validator struct {
	check checkFunc
}

// Compile converts a declarative schema document into a Validator. It
// returns an error for malformed documents (unknown type keyword,
// non-object properties, invalid pattern); a nil or empty document
// compiles to an accept-all validator.
func Compile(doc map[string]any) (*Validator, error) {
	check, err := compile(doc)
	if err != nil {
		return nil, err
	}
	return &Validator{check: check}, nil
}

// Validate applies the compiled schema. It returns a structured list of
// (field path, reason) failures, or nil when the value conforms.
func (v *Validator) Validate(value any) ValidationErrors {
	return v.check(value, "")
}

func compile(doc map[string]any) (checkFunc, error) {
	// Empty schema is the explicit escape hatch: accept anything.
	if len(doc) == 0 {
		return acceptAll, nil
	}

	// An enum of literals takes precedence over generic typing.
	if raw, ok := doc["enum"]; ok {
		return compileEnum(raw)
	}

	switch typ := doc["type"].(type) {
	case nil:
		// No type constraint: accept anything. Nested keywords without a
		// type are meaningless in this subset.
		return acceptAll, nil
	case string:
		return compileTyped(typ, doc)
	case []any:
		return compileUnion(typ, doc)
	default:
		return nil, fmt.Errorf("schema: \"type\" must be a string or list of strings, got %T", typ)
	}
}

func acceptAll(any, string) ValidationErrors { return nil }

func compileTyped(typ string, doc map[string]any) (checkFunc, error) {
	switch typ {
	case "object":
		return compileObject(doc)
	case "array":
		return compileArray(doc)
	case "string":
		return compileString(doc)
	case "number":
		return compileNumber(doc, false)
	case "integer":
		return compileNumber(doc, true)
	case "boolean":
		return func(v any, path string) ValidationErrors {
			if _, ok := v.(bool); !ok {
				return ValidationErrors{{Path: path, Reason: expected("boolean", v)}}
			}
			return nil
		}, nil
	case "null":
		return func(v any, path string) ValidationErrors {
			if v != nil {
				return ValidationErrors{{Path: path, Reason: expected("null", v)}}
			}
			return nil
		}, nil
	default:
		return nil, fmt.Errorf("schema: unsupported type %q", typ)
	}
}

// compileUnion builds one checker per alternative type. A value passes if
// any alternative accepts it.
func compileUnion(alts []any, doc map[string]any) (checkFunc, error) {
	if len(alts) == 0 {
		return nil, fmt.Errorf("schema: union type list must not be empty")
	}

	names := make([]string, 0, len(alts))
	checks := make([]checkFunc, 0, len(alts))
	for _, alt := range alts {
		name, ok := alt.(string)
		if !ok {
			return nil, fmt.Errorf("schema: union type entries must be strings, got %T", alt)
		}
		check, err := compileTyped(name, doc)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		checks = append(checks, check)
	}

	return func(v any, path string) ValidationErrors {
		for _, check := range checks {
			if check(v, path) == nil {
				return nil
			}
		}
		return ValidationErrors{{
			Path:   path,
			Reason: fmt.Sprintf("expected one of %v, got %s", names, typeName(v)),
		}}
	}, nil
}

func compileEnum(raw any) (checkFunc, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("schema: \"enum\" must be a list, got %T", raw)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("schema: \"enum\" must not be empty")
	}
	literals := make([]string, len(list))
	for i, entry := range list {
		s, ok := entry.(string)
		if !ok {
			return nil, fmt.Errorf("schema: \"enum\" entries must be string literals, got %T", entry)
		}
		literals[i] = s
	}

	return func(v any, path string) ValidationErrors {
		s, ok := v.(string)
		if ok {
			for _, lit := range literals {
				if s == lit {
					return nil
				}
			}
		}
		return ValidationErrors{{
			Path:   path,
			Reason: fmt.Sprintf("expected one of %q, got %v", literals, v),
		}}
	}, nil
}

func compileObject(doc map[string]any) (checkFunc, error) {
	propChecks := map[string]checkFunc{}
	if raw, ok := doc["properties"]; ok {
		props, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("schema: \"properties\" must be an object, got %T", raw)
		}
		for name, sub := range props {
			subDoc, ok := sub.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("schema: property %q must be an object, got %T", name, sub)
			}
			check, err := compile(subDoc)
			if err != nil {
				return nil, err
			}
			propChecks[name] = check
		}
	}

	var required []string
	if raw, ok := doc["required"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("schema: \"required\" must be a list, got %T", raw)
		}
		for _, entry := range list {
			name, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("schema: \"required\" entries must be strings, got %T", entry)
			}
			required = append(required, name)
		}
	}

	// Unknown properties pass through unvalidated unless the schema
	// explicitly disallows them.
	rejectUnknown := false
	if ap, ok := doc["additionalProperties"].(bool); ok && !ap {
		rejectUnknown = true
	}

	return func(v any, path string) ValidationErrors {
		obj, ok := v.(map[string]any)
		if !ok {
			return ValidationErrors{{Path: path, Reason: expected("object", v)}}
		}

		var errs ValidationErrors
		for _, name := range required {
			if _, present := obj[name]; !present {
				errs = append(errs, FieldError{
					Path:   joinPath(path, name),
					Reason: "required property is missing",
				})
			}
		}
		for name, val := range obj {
			check, declared := propChecks[name]
			if !declared {
				if rejectUnknown {
					errs = append(errs, FieldError{
						Path:   joinPath(path, name),
						Reason: "unknown property is not allowed",
					})
				}
				continue
			}
			errs = append(errs, check(val, joinPath(path, name))...)
		}
		return errs
	}, nil
}

func compileArray(doc map[string]any) (checkFunc, error) {
	// Elements are accepted unchecked when no item schema is given.
	itemCheck := checkFunc(acceptAll)
	if raw, ok := doc["items"]; ok {
		itemDoc, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("schema: \"items\" must be an object, got %T", raw)
		}
		check, err := compile(itemDoc)
		if err != nil {
			return nil, err
		}
		itemCheck = check
	}

	return func(v any, path string) ValidationErrors {
		arr, ok := v.([]any)
		if !ok {
			return ValidationErrors{{Path: path, Reason: expected("array", v)}}
		}
		var errs ValidationErrors
		for i, item := range arr {
			errs = append(errs, itemCheck(item, indexPath(path, i))...)
		}
		return errs
	}, nil
}

func compileString(doc map[string]any) (checkFunc, error) {
	minLen, hasMin, err := intBound(doc, "minLength")
	if err != nil {
		return nil, err
	}
	maxLen, hasMax, err := intBound(doc, "maxLength")
	if err != nil {
		return nil, err
	}

	var pattern *regexp.Regexp
	if raw, ok := doc["pattern"]; ok {
		expr, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("schema: \"pattern\" must be a string, got %T", raw)
		}
		pattern, err = regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("schema: invalid pattern %q: %w", expr, err)
		}
	}

	return func(v any, path string) ValidationErrors {
		s, ok := v.(string)
		if !ok {
			return ValidationErrors{{Path: path, Reason: expected("string", v)}}
		}
		var errs ValidationErrors
		if hasMin && len(s) < minLen {
			errs = append(errs, FieldError{Path: path,
				Reason: fmt.Sprintf("length %d is below minimum %d", len(s), minLen)})
		}
		if hasMax && len(s) > maxLen {
			errs = append(errs, FieldError{Path: path,
				Reason: fmt.Sprintf("length %d exceeds maximum %d", len(s), maxLen)})
		}
		if pattern != nil && !pattern.MatchString(s) {
			errs = append(errs, FieldError{Path: path,
				Reason: fmt.Sprintf("value does not match pattern %q", pattern)})
		}
		return errs
	}, nil
}

func compileNumber(doc map[string]any, wholeOnly bool) (checkFunc, error) {
	min, hasMin, err := floatBound(doc, "minimum")
	if err != nil {
		return nil, err
	}
	max, hasMax, err := floatBound(doc, "maximum")
	if err != nil {
		return nil, err
	}

	wantType := "number"
	if wholeOnly {
		wantType = "integer"
	}

	return func(v any, path string) ValidationErrors {
		f, ok := asFloat(v)
		if !ok {
			return ValidationErrors{{Path: path, Reason: expected(wantType, v)}}
		}
		var errs ValidationErrors
		if wholeOnly && f != math.Trunc(f) {
			errs = append(errs, FieldError{Path: path,
				Reason: fmt.Sprintf("expected a whole number, got %v", f)})
		}
		if hasMin && f < min {
			errs = append(errs, FieldError{Path: path,
				Reason: fmt.Sprintf("value %v is below minimum %v", f, min)})
		}
		if hasMax && f > max {
			errs = append(errs, FieldError{Path: path,
				Reason: fmt.Sprintf("value %v exceeds maximum %v", f, max)})
		}
		return errs
	}, nil
}

// intBound reads an integer-valued keyword like minLength.
func intBound(doc map[string]any, key string) (int, bool, error) {
	f, has, err := floatBound(doc, key)
	if err != nil || !has {
		return 0, has, err
	}
	if f != math.Trunc(f) {
		return 0, false, fmt.Errorf("schema: %q must be an integer, got %v", key, f)
	}
	return int(f), true, nil
}

// floatBound reads a numeric keyword like minimum.
func floatBound(doc map[string]any, key string) (float64, bool, error) {
	raw, ok := doc[key]
	if !ok {
		return 0, false, nil
	}
	f, ok := asFloat(raw)
	if !ok {
		return 0, false, fmt.Errorf("schema: %q must be a number, got %T", key, raw)
	}
	return f, true, nil
}

// asFloat normalizes the numeric representations produced by JSON decoding
// and by hand-built Go documents.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func expected(want string, got any) string {
	return fmt.Sprintf("expected type %q, got %s", want, typeName(got))
}

// typeName reports the schema-vocabulary name for a decoded JSON value.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64, float32, int, int64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
