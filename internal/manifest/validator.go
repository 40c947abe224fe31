package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"hivekeeper/internal/apperr"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema/manifest.schema.json
var schemaBytes []byte

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
	printer        = message.NewPrinter(language.English)
)

// SchemaIssue is one schema violation found in a manifest document.
type SchemaIssue struct {
	Path    string
	Message string
}

func (i SchemaIssue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

func getSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaBytes))
		if err != nil {
			compileErr = fmt.Errorf("unmarshal schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("manifest.schema.json", doc); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("manifest.schema.json")
		if compileErr != nil {
			compileErr = fmt.Errorf("compile schema: %w", compileErr)
		}
	})
	return compiledSchema, compileErr
}

/**
 * Check a decoded manifest document against the embedded schema
 * @param {interface{}} doc - Generic document decoded from YAML/JSON/TOML
 * @returns {([]SchemaIssue, error)} Issues found, error only on internal failure
 * @description
 * - The document is normalized and round-tripped through JSON so every
 *   source format is validated the same way
 */
func checkSchema(doc interface{}) ([]SchemaIssue, error) {
	schema, err := getSchema()
	if err != nil {
		return nil, err
	}
	jsonData, err := json.Marshal(normalize(doc))
	if err != nil {
		return nil, fmt.Errorf("convert manifest to JSON: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("prepare manifest for validation: %w", err)
	}
	err = schema.Validate(inst)
	if err == nil {
		return nil, nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, fmt.Errorf("unexpected validation error: %w", err)
	}
	var issues []SchemaIssue
	collectIssues(ve, &issues)
	if len(issues) == 0 {
		issues = append(issues, SchemaIssue{Message: ve.Error()})
	}
	return issues, nil
}

func collectIssues(ve *jsonschema.ValidationError, issues *[]SchemaIssue) {
	if len(ve.Causes) == 0 {
		if ve.ErrorKind == nil {
			return
		}
		path := ""
		if len(ve.InstanceLocation) > 0 {
			path = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*issues = append(*issues, SchemaIssue{
			Path:    path,
			Message: ve.ErrorKind.LocalizedString(printer),
		})
		return
	}
	for _, cause := range ve.Causes {
		collectIssues(cause, issues)
	}
}

/**
 * Check the parameter declarations the schema can't express
 * @param {[]Parameter} params - Declarations, defaults are normalized in place
 * @returns {error} ValidationError for a repeated name or a default that
 *   doesn't coerce to its declared type
 */
func checkParameters(params []Parameter) error {
	seen := make(map[string]bool, len(params))
	for i, p := range params {
		if seen[p.Name] {
			return apperr.NewValidation("manifest", "duplicate parameter '%s'", p.Name)
		}
		seen[p.Name] = true
		if p.Default == nil {
			continue
		}
		v, ok := coerceDefault(p.Type, p.Default)
		if !ok {
			return apperr.NewValidation("manifest", "default of '%s' must be %s", p.Name, typeNoun(p.Type))
		}
		params[i].Default = v
	}
	return nil
}

// normalize converts decoder specific containers into JSON compatible ones.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, item := range val {
			m[k] = normalize(item)
		}
		return m
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(val))
		for k, item := range val {
			m[fmt.Sprint(k)] = normalize(item)
		}
		return m
	case []map[string]interface{}:
		a := make([]interface{}, len(val))
		for i, item := range val {
			a[i] = normalize(item)
		}
		return a
	case []interface{}:
		a := make([]interface{}, len(val))
		for i, item := range val {
			a[i] = normalize(item)
		}
		return a
	default:
		return val
	}
}
