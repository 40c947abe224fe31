package manifest

// Parameter types accepted in a manifest
const (
	TypeInt    = "int"
	TypeBool   = "bool"
	TypeString = "string"
)

/**
 * Service manifest, immutable once loaded
 * @property {string} name - Unique service name, also the install directory name
 * @property {int} port - Port advertised by the service
 * @property {string} protocol - TCP or UDP
 * @property {[]Parameter} parameters - Ordered parameter schema
 * @property {[]string} alerts - Alert tags raised by the service
 * @property {Entrypoint} entrypoint - How to start the decoy process
 */
type Manifest struct {
	Name             string      `yaml:"name" json:"name" toml:"name"`
	Label            string      `yaml:"label,omitempty" json:"label,omitempty" toml:"label,omitempty"`
	Description      string      `yaml:"description,omitempty" json:"description,omitempty" toml:"description,omitempty"`
	Version          string      `yaml:"version,omitempty" json:"version,omitempty" toml:"version,omitempty"`
	MinKeeperVersion string      `yaml:"min_keeper_version,omitempty" json:"min_keeper_version,omitempty" toml:"min_keeper_version,omitempty"`
	Port             int         `yaml:"port" json:"port" toml:"port"`
	Protocol         string      `yaml:"protocol" json:"protocol" toml:"protocol"`
	Parameters       []Parameter `yaml:"parameters,omitempty" json:"parameters,omitempty" toml:"parameters,omitempty"`
	Alerts           []string    `yaml:"alerts,omitempty" json:"alerts,omitempty" toml:"alerts,omitempty"`
	Entrypoint       Entrypoint  `yaml:"entrypoint" json:"entrypoint" toml:"entrypoint"`
}

// Parameter declares one typed startup parameter.
type Parameter struct {
	Name        string      `yaml:"name" json:"name" toml:"name"`
	Type        string      `yaml:"type" json:"type" toml:"type"`
	Required    bool        `yaml:"required,omitempty" json:"required,omitempty" toml:"required,omitempty"`
	Default     interface{} `yaml:"default,omitempty" json:"default,omitempty" toml:"default,omitempty"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty" toml:"description,omitempty"`
}

/**
 * Entrypoint descriptor
 * @property {string} command - Program to execute, a text/template
 * @property {[]string} args - Arguments, each a text/template
 * @property {map[string]string} env - Extra environment for the child
 * @description
 * - Templates see {{.Self}}, {{.Dir}}, {{.Name}}, {{.Port}} and {{.Params.<name>}}
 */
type Entrypoint struct {
	Command string            `yaml:"command" json:"command" toml:"command"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty" toml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty" toml:"env,omitempty"`
}

// DisplayName returns the label when set, otherwise the name.
func (m *Manifest) DisplayName() string {
	if m.Label != "" {
		return m.Label
	}
	return m.Name
}

// Parameter looks up a declared parameter by name.
func (m *Manifest) Parameter(name string) (Parameter, bool) {
	for _, p := range m.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}
