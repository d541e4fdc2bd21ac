package limits

import "fmt"

const (
	// PanelNameMaxRunes bounds a panel name after trimming.
	PanelNameMaxRunes = 64
	// PanelCommandsMax bounds the command list of a single panel.
	PanelCommandsMax = 64
	// CommandMaxBytes bounds a single stored command line.
	CommandMaxBytes = 16 * 1024
	// SendChunkBytes bounds a single literal send to the host.
	SendChunkBytes = 4 * 1024
	// StoreMaxBytes bounds the store file read on load.
	StoreMaxBytes int64 = 8 * 1024 * 1024
	// PayloadInspectLimit bounds the bytes inspected when logging payloads.
	PayloadInspectLimit = 4096
)

// LimitError reports a value that exceeds a configured bound.
type LimitError struct {
	What  string
	Got   int
	Limit int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s %d exceeds max %d", e.What, e.Got, e.Limit)
}

// CheckCommands validates the size of a command list.
func CheckCommands(cmds []string) error {
	if len(cmds) > PanelCommandsMax {
		return &LimitError{What: "command count", Got: len(cmds), Limit: PanelCommandsMax}
	}
	for _, cmd := range cmds {
		if len(cmd) > CommandMaxBytes {
			return &LimitError{What: "command bytes", Got: len(cmd), Limit: CommandMaxBytes}
		}
	}
	return nil
}

// Chunks splits s into pieces of at most SendChunkBytes without splitting a
// UTF-8 sequence.
func Chunks(s string) []string {
	if len(s) <= SendChunkBytes {
		return []string{s}
	}
	var out []string
	for len(s) > SendChunkBytes {
		cut := SendChunkBytes
		for cut > 0 && !runeStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = SendChunkBytes
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

func runeStart(b byte) bool {
	return b&0xC0 != 0x80
}
