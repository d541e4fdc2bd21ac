// Package spec holds the command table the CLI is built from.
package spec

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed commands.yaml commands.schema.json
var embeddedFS embed.FS

// Spec is the command table the CLI is built from.
type Spec struct {
	Version     int       `yaml:"version"`
	App         AppSpec   `yaml:"app"`
	GlobalFlags []Flag    `yaml:"global_flags"`
	Commands    []Command `yaml:"commands"`
}

// AppSpec configures the top-level CLI app.
type AppSpec struct {
	Name    string `yaml:"name"`
	Summary string `yaml:"summary"`
}

// Flag describes a CLI flag.
type Flag struct {
	Name        string   `yaml:"name"`
	Aliases     []string `yaml:"aliases"`
	Type        string   `yaml:"type"`
	Required    bool     `yaml:"required"`
	Default     any      `yaml:"default"`
	Enum        []string `yaml:"enum"`
	Repeatable  bool     `yaml:"repeatable"`
	Description string   `yaml:"description"`
	Env         string   `yaml:"env"`
	Hidden      bool     `yaml:"hidden"`
}

// Arg describes a positional argument.
type Arg struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Required    bool   `yaml:"required"`
	Variadic    bool   `yaml:"variadic"`
	Description string `yaml:"description"`
}

// Constraint describes argument/flag validation rules.
type Constraint struct {
	Type   string   `yaml:"type"`
	Fields []string `yaml:"fields"`
}

// JSONSpec declares JSON output capability.
type JSONSpec struct {
	Supported bool `yaml:"supported"`
	Stream    bool `yaml:"stream"`
}

// Command describes a CLI command and its subcommands.
type Command struct {
	Name        string       `yaml:"name"`
	ID          string       `yaml:"id"`
	Summary     string       `yaml:"summary"`
	Description string       `yaml:"description"`
	Aliases     []string     `yaml:"aliases"`
	Flags       []Flag       `yaml:"flags"`
	Args        []Arg        `yaml:"args"`
	Constraints []Constraint `yaml:"constraints"`
	// Session commands open the panel store and host before the handler runs.
	Session     bool         `yaml:"session"`
	JSON        *JSONSpec    `yaml:"json"`
	Hidden      bool         `yaml:"hidden"`
	Subcommands []Command    `yaml:"subcommands"`
}

// LoadDefault loads the embedded command table and validates it.
func LoadDefault() (*Spec, error) {
	data, err := embeddedFS.ReadFile("commands.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded spec: %w", err)
	}
	return Parse(data)
}

// Parse decodes a command table, checks it against the embedded JSON schema
// and then checks what the schema cannot express.
func Parse(data []byte) (*Spec, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	doc := &Spec{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse spec yaml: %w", err)
	}
	if err := doc.check(); err != nil {
		return nil, err
	}
	return doc, nil
}

var commandSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	raw, err := embeddedFS.ReadFile("commands.schema.json")
	if err != nil {
		return nil, fmt.Errorf("read embedded schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse schema json: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("commands.schema.json", doc); err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return c.Compile("commands.schema.json")
})

// Validate checks YAML against the embedded JSON schema.
func Validate(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("spec is empty")
	}
	schema, err := commandSchema()
	if err != nil {
		return err
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse spec yaml: %w", err)
	}
	// Round-trip through JSON so the validator sees float64 numbers and
	// string-keyed maps only.
	payload, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("serialize spec: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("parse spec json: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("spec schema validation: %w", err)
	}
	return nil
}

func (s *Spec) check() error {
	ids := map[string]bool{}
	if err := checkFlagNames("global", s.GlobalFlags, nil); err != nil {
		return err
	}
	global := map[string]bool{}
	for _, f := range s.GlobalFlags {
		global[f.Name] = true
	}
	var walk func(cmds []Command) error
	walk = func(cmds []Command) error {
		names := map[string]bool{}
		for _, cmd := range cmds {
			for _, n := range append([]string{cmd.Name}, cmd.Aliases...) {
				if names[n] {
					return fmt.Errorf("spec: command name %q used twice", n)
				}
				names[n] = true
			}
			if ids[cmd.ID] {
				return fmt.Errorf("spec: command id %q used twice", cmd.ID)
			}
			ids[cmd.ID] = true
			if err := checkFlagNames(cmd.ID, cmd.Flags, global); err != nil {
				return err
			}
			if err := checkConstraintFields(cmd); err != nil {
				return err
			}
			if err := walk(cmd.Subcommands); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(s.Commands)
}

func checkFlagNames(owner string, flags []Flag, reserved map[string]bool) error {
	seen := map[string]bool{}
	for _, f := range flags {
		for _, n := range append([]string{f.Name}, f.Aliases...) {
			if seen[n] || reserved[n] {
				return fmt.Errorf("spec: %s: flag %q used twice", owner, n)
			}
			seen[n] = true
		}
	}
	return nil
}

func checkConstraintFields(cmd Command) error {
	known := map[string]bool{}
	for _, f := range cmd.Flags {
		known[f.Name] = true
	}
	for _, a := range cmd.Args {
		known[a.Name] = true
	}
	for _, c := range cmd.Constraints {
		for _, field := range c.Fields {
			if !known[field] {
				return fmt.Errorf("spec: %s: constraint field %q is not a flag or argument", cmd.ID, field)
			}
		}
	}
	return nil
}

// AllCommands returns every command, parents before their subcommands.
func (s *Spec) AllCommands() []Command {
	if s == nil {
		return nil
	}
	var out []Command
	var walk func(cmds []Command)
	walk = func(cmds []Command) {
		for _, cmd := range cmds {
			out = append(out, cmd)
			walk(cmd.Subcommands)
		}
	}
	walk(s.Commands)
	return out
}

// FindByID returns a copy of the command with the matching ID.
func (s *Spec) FindByID(id string) *Command {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	for _, cmd := range s.AllCommands() {
		if cmd.ID == id {
			return &cmd
		}
	}
	return nil
}
