package logging

import "strings"

type Mode uint8

const (
	ModeCLI Mode = iota + 1
	// ModeWatch is the long-running "watch" command.
	ModeWatch
)

// ModeFromArgs picks ModeWatch when the first non-flag argument is "watch".
func ModeFromArgs(args []string) Mode {
	for _, arg := range args[min(1, len(args)):] {
		arg = strings.TrimSpace(arg)
		if arg == "" || strings.HasPrefix(arg, "-") {
			continue
		}
		if strings.EqualFold(arg, "watch") {
			return ModeWatch
		}
		return ModeCLI
	}
	return ModeCLI
}

func (m Mode) String() string {
	if m == ModeWatch {
		return "watch"
	}
	return "cli"
}
