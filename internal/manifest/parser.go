package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"hivekeeper/internal/apperr"

	"github.com/BurntSushi/toml"
	"go.yaml.in/yaml/v3"
)

// FileNames lists the accepted manifest file names in lookup order.
var FileNames = []string{"service.yaml", "service.yml", "service.json", "service.toml"}

var ErrNoManifest = errors.New("no service manifest found")

type format int

const (
	formatYAML format = iota
	formatJSON
	formatTOML
)

func formatOf(filename string) (format, error) {
	switch strings.ToLower(path.Ext(filename)) {
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".json":
		return formatJSON, nil
	case ".toml":
		return formatTOML, nil
	default:
		return 0, fmt.Errorf("unsupported manifest format %q", filename)
	}
}

func decode(f format, data []byte, out interface{}) error {
	switch f {
	case formatJSON:
		return json.Unmarshal(data, out)
	case formatTOML:
		return toml.Unmarshal(data, out)
	default:
		return yaml.Unmarshal(data, out)
	}
}

/**
 * Parse manifest bytes
 * @param {[]byte} data - Raw manifest content
 * @param {string} filename - File name, its extension selects the format
 * @returns {(*Manifest, error)} Parsed manifest or a ValidationError
 * @description
 * - Decodes into a generic document and checks it against the schema first
 * - Then decodes the typed manifest and checks what the schema can't express:
 *   duplicate parameter names and defaults that don't match their type
 */
func Parse(data []byte, filename string) (*Manifest, error) {
	f, err := formatOf(filename)
	if err != nil {
		return nil, apperr.NewValidation("manifest", "%v", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperr.NewValidation("manifest", "manifest %s is empty", filename)
	}

	var doc interface{}
	if f == formatTOML {
		m := map[string]interface{}{}
		err = toml.Unmarshal(data, &m)
		doc = m
	} else {
		err = decode(f, data, &doc)
	}
	if err != nil {
		return nil, apperr.NewValidation("manifest", "malformed manifest %s: %v", filename, err)
	}

	issues, err := checkSchema(doc)
	if err != nil {
		return nil, err
	}
	if len(issues) > 0 {
		parts := make([]string, 0, len(issues))
		for _, issue := range issues {
			parts = append(parts, issue.String())
		}
		return nil, apperr.NewValidation("manifest", "invalid manifest %s: %s", filename, strings.Join(parts, "; "))
	}

	var m Manifest
	if err := decode(f, data, &m); err != nil {
		return nil, apperr.NewValidation("manifest", "malformed manifest %s: %v", filename, err)
	}
	m.Protocol = strings.ToUpper(m.Protocol)

	if err := checkParameters(m.Parameters); err != nil {
		return nil, err
	}
	return &m, nil
}

/**
 * Locate and parse the manifest at the root of a package
 * @param {fs.FS} fsys - Package contents
 * @returns {(*Manifest, string, error)} Manifest and the file name it was read from
 */
func Load(fsys fs.FS) (*Manifest, string, error) {
	name, data, err := Find(fsys)
	if err != nil {
		return nil, "", err
	}
	m, err := Parse(data, name)
	if err != nil {
		return nil, name, err
	}
	return m, name, nil
}

// Find returns the first manifest file present at the root of fsys.
func Find(fsys fs.FS) (string, []byte, error) {
	for _, name := range FileNames {
		data, err := fs.ReadFile(fsys, name)
		if err == nil {
			return name, data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("read %s: %w", name, err)
		}
	}
	return "", nil, ErrNoManifest
}
