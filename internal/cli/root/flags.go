package root

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/regenrek/panelctx/internal/cli/spec"
)

func buildFlags(flags []spec.Flag) ([]cli.Flag, error) {
	out := make([]cli.Flag, 0, len(flags))
	for _, flag := range flags {
		built, err := buildFlag(flag)
		if err != nil {
			return nil, err
		}
		out = append(out, built)
	}
	return out, nil
}

func buildFlag(flag spec.Flag) (cli.Flag, error) {
	name := strings.TrimSpace(flag.Name)
	if name == "" {
		return nil, fmt.Errorf("flag name is required")
	}
	var sources cli.ValueSourceChain
	if env := strings.TrimSpace(flag.Env); env != "" {
		sources = cli.EnvVars(env)
	}
	switch strings.TrimSpace(flag.Type) {
	case "bool":
		v, _ := flag.Default.(bool)
		return &cli.BoolFlag{Name: name, Aliases: flag.Aliases, Usage: flag.Description, Required: flag.Required, Hidden: flag.Hidden, Sources: sources, Value: v}, nil
	case "string", "path", "enum":
		v, _ := flag.Default.(string)
		fl := &cli.StringFlag{Name: name, Aliases: flag.Aliases, Usage: flag.Description, Required: flag.Required, Hidden: flag.Hidden, Sources: sources, Value: v}
		if len(flag.Enum) > 0 {
			fl.Validator = func(val string) error { return checkEnum(flag.Enum, val) }
		}
		return fl, nil
	case "int":
		return &cli.IntFlag{Name: name, Aliases: flag.Aliases, Usage: flag.Description, Required: flag.Required, Hidden: flag.Hidden, Sources: sources, Value: intDefault(flag.Default)}, nil
	case "duration":
		return &cli.DurationFlag{Name: name, Aliases: flag.Aliases, Usage: flag.Description, Required: flag.Required, Hidden: flag.Hidden, Sources: sources, Value: durationDefault(flag.Default)}, nil
	case "string_list":
		fl := &cli.StringSliceFlag{Name: name, Aliases: flag.Aliases, Usage: flag.Description, Required: flag.Required, Hidden: flag.Hidden, Sources: sources, Value: stringSliceDefault(flag.Default)}
		if len(flag.Enum) > 0 {
			fl.Validator = func(vals []string) error {
				for _, val := range vals {
					if err := checkEnum(flag.Enum, val); err != nil {
						return err
					}
				}
				return nil
			}
		}
		return fl, nil
	default:
		return nil, fmt.Errorf("unsupported flag type %q for %s", flag.Type, name)
	}
}

func checkEnum(allowed []string, val string) error {
	if slices.Contains(allowed, val) {
		return nil
	}
	return fmt.Errorf("invalid value %q (allowed: %s)", val, strings.Join(allowed, ", "))
}

// YAML decodes whole numbers as int; JSON-sourced specs carry float64.
func intDefault(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func durationDefault(value any) time.Duration {
	if s, ok := value.(string); ok {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return 0
}

func stringSliceDefault(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func buildArguments(args []spec.Arg) []cli.Argument {
	out := make([]cli.Argument, 0, len(args))
	for _, arg := range args {
		name := strings.TrimSpace(arg.Name)
		if !arg.Variadic {
			out = append(out, &cli.StringArg{Name: name})
			continue
		}
		lo := 0
		if arg.Required {
			lo = 1
		}
		out = append(out, &cli.StringArgs{Name: name, Min: lo, Max: -1})
	}
	return out
}
