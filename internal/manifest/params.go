package manifest

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"hivekeeper/internal/apperr"
	"hivekeeper/internal/env"
)

// ParameterSet maps parameter names to coerced values (int, bool or string).
type ParameterSet map[string]interface{}

var boolValues = map[string]bool{
	"true": true, "yes": true, "1": true, "on": true,
	"false": false, "no": false, "0": false, "off": false,
}

func typeNoun(typ string) string {
	switch typ {
	case TypeInt:
		return "integer"
	case TypeBool:
		return "boolean"
	default:
		return typ
	}
}

func coerce(typ, raw string) (interface{}, bool) {
	switch typ {
	case TypeInt:
		n, err := strconv.ParseInt(raw, 10, 0)
		if err != nil {
			return nil, false
		}
		return int(n), true
	case TypeBool:
		b, ok := boolValues[strings.ToLower(raw)]
		return b, ok
	case TypeString:
		return raw, true
	default:
		return nil, false
	}
}

// coerceDefault normalizes a default decoded by any manifest format.
func coerceDefault(typ string, v interface{}) (interface{}, bool) {
	switch val := v.(type) {
	case string:
		return coerce(typ, val)
	case bool:
		if typ == TypeBool {
			return val, true
		}
	case int:
		if typ == TypeInt {
			return val, true
		}
	case int64:
		if typ == TypeInt {
			return int(val), true
		}
	case uint64:
		if typ == TypeInt && val <= math.MaxInt {
			return int(val), true
		}
	case float64:
		if typ == TypeInt && val == math.Trunc(val) {
			return int(val), true
		}
	case json.Number:
		return coerce(typ, val.String())
	}
	if typ == TypeString {
		return fmt.Sprint(v), true
	}
	return nil, false
}

/**
 * Validate raw name=value tokens against a parameter schema
 * @param {[]Parameter} schema - Ordered parameter declarations
 * @param {[]string} args - Raw tokens from the command line
 * @returns {(ParameterSet, error)} Coerced values or the first ValidationError
 * @description
 * - Tokens are checked left to right and the first bad one is reported
 * - A repeated name keeps its last value
 * - Then missing required parameters are reported in schema order
 * - Unspecified optional parameters receive their default; a default that
 *   doesn't coerce is an error, never skipped
 */
func Validate(schema []Parameter, args []string) (ParameterSet, error) {
	decl := make(map[string]Parameter, len(schema))
	for _, p := range schema {
		decl[p.Name] = p
	}

	set := make(ParameterSet, len(schema))
	for _, tok := range args {
		name, raw, ok := strings.Cut(tok, "=")
		if !ok || name == "" {
			return nil, apperr.NewValidation(tok, "Bad parameter '%s' (expected name=value)", tok)
		}
		p, known := decl[name]
		if !known {
			return nil, apperr.NewValidation(name, "Unknown parameter '%s'", name)
		}
		v, ok := coerce(p.Type, raw)
		if !ok {
			return nil, apperr.NewValidation(name, "Bad value for %s=%s (must be %s)", name, raw, typeNoun(p.Type))
		}
		set[name] = v
	}

	for _, p := range schema {
		if _, given := set[p.Name]; given {
			continue
		}
		if p.Default != nil {
			v, ok := coerceDefault(p.Type, p.Default)
			if !ok {
				return nil, apperr.NewValidation(p.Name, "default of '%s' must be %s", p.Name, typeNoun(p.Type))
			}
			set[p.Name] = v
			continue
		}
		if p.Required {
			return nil, apperr.NewValidation(p.Name, "'%s' is missing", p.Name)
		}
	}
	return set, nil
}

// Int returns an int parameter.
func (ps ParameterSet) Int(name string) (int, bool) {
	v, ok := ps[name].(int)
	return v, ok
}

func (ps ParameterSet) Bool(name string) (bool, bool) {
	v, ok := ps[name].(bool)
	return v, ok
}

// String formats any parameter as it would appear on a command line.
func (ps ParameterSet) String(name string) string {
	v, ok := ps[name]
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}

// Names returns the parameter names in sorted order.
func (ps ParameterSet) Names() []string {
	names := make([]string, 0, len(ps))
	for name := range ps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

/**
 * Environment passed to a decoy child
 * @returns {([]string, error)} KEY=VALUE entries
 * @description
 * - HIVEKEEPER_PARAMS carries the whole set as JSON
 * - HIVEKEEPER_PARAM_<NAME> carries each value as text
 */
func (ps ParameterSet) Env() ([]string, error) {
	data, err := json.Marshal(map[string]interface{}(ps))
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	out := []string{env.ParamsEnv + "=" + string(data)}
	for _, name := range ps.Names() {
		out = append(out, env.ParamPrefix+strings.ToUpper(name)+"="+ps.String(name))
	}
	return out, nil
}

// DecodeParams parses the JSON carried in HIVEKEEPER_PARAMS.
func DecodeParams(data string) (ParameterSet, error) {
	set := ParameterSet{}
	if strings.TrimSpace(data) == "" {
		return set, nil
	}
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	for k, v := range raw {
		if n, ok := v.(json.Number); ok {
			if i, err := n.Int64(); err == nil {
				set[k] = int(i)
				continue
			}
		}
		set[k] = v
	}
	return set, nil
}
