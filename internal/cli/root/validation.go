package root

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/regenrek/panelctx/internal/cli/spec"
)

func validateArgs(cmdSpec spec.Command, cmd *cli.Command) error {
	for _, argSpec := range cmdSpec.Args {
		if argSpec.Required && !argPresent(argSpec, cmd) {
			return fmt.Errorf("missing argument %q", argSpec.Name)
		}
	}
	return nil
}

func argPresent(arg spec.Arg, cmd *cli.Command) bool {
	if !arg.Variadic {
		return strings.TrimSpace(cmd.StringArg(arg.Name)) != ""
	}
	for _, value := range cmd.StringArgs(arg.Name) {
		if strings.TrimSpace(value) != "" {
			return true
		}
	}
	return false
}

func validateConstraints(cmdSpec spec.Command, cmd *cli.Command) error {
	for _, c := range cmdSpec.Constraints {
		if err := checkConstraint(c, cmdSpec, cmd); err != nil {
			return err
		}
	}
	return nil
}

func checkConstraint(c spec.Constraint, cmdSpec spec.Command, cmd *cli.Command) error {
	if len(c.Fields) == 0 {
		return nil
	}
	present := make([]bool, len(c.Fields))
	count := 0
	for i, field := range c.Fields {
		present[i] = fieldPresent(strings.TrimSpace(field), cmdSpec, cmd)
		if present[i] {
			count++
		}
	}
	fields := strings.Join(c.Fields, ", ")
	switch strings.TrimSpace(c.Type) {
	case "exactly_one":
		if count != 1 {
			return fmt.Errorf("exactly one of %s is required", fields)
		}
	case "at_least_one":
		if count == 0 {
			return fmt.Errorf("at least one of %s is required", fields)
		}
	case "excludes":
		if count > 1 {
			return fmt.Errorf("only one of %s may be set", fields)
		}
	case "requires":
		if present[0] && count != len(c.Fields) {
			return fmt.Errorf("%s requires %s", c.Fields[0], strings.Join(c.Fields[1:], ", "))
		}
	}
	return nil
}

func fieldPresent(field string, cmdSpec spec.Command, cmd *cli.Command) bool {
	if field == "" {
		return false
	}
	for _, arg := range cmdSpec.Args {
		if arg.Name == field {
			return argPresent(arg, cmd)
		}
	}
	return cmd.IsSet(field)
}
