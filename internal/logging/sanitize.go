package logging

import (
	"regexp"
	"strings"
)

type redaction struct {
	re   *regexp.Regexp
	repl string
}

var redactions = []redaction{
	{regexp.MustCompile(`(?i)(--(?:token|access-token|api-key|apikey|secret|password|passwd|authorization|auth|cookie|session|client-secret|bearer))(=|\s+)(\S+)`), "$1$2<redacted>"},
	{regexp.MustCompile(`(?i)\b([A-Z0-9_]*?(?:TOKEN|SECRET|PASSWORD|PASS|API_KEY|APIKEY|AUTH|AUTHORIZATION|BEARER|COOKIE|SESSION|CLIENT_SECRET)[A-Z0-9_]*)=([^\s]+)`), "$1=<redacted>"},
	{regexp.MustCompile(`(?i)\bAuthorization:\s*Bearer\s+[^\s"'` + "`" + `]+`), "Authorization: Bearer <redacted>"},
	{regexp.MustCompile(`(?i)\bAuthorization[:=]\s*[^\s"'` + "`" + `]+`), "Authorization:<redacted>"},
	{regexp.MustCompile(`(?i)\bBearer\s+[^\s]+`), "Bearer <redacted>"},
	{regexp.MustCompile(`(?i)(https?://[^:/\s]+:)[^@\s]+@`), "$1<redacted>@"},
}

// SanitizeCommand redacts common credential shapes in a command line.
func SanitizeCommand(value string) string {
	out := strings.TrimSpace(value)
	for _, r := range redactions {
		out = r.re.ReplaceAllString(out, r.repl)
	}
	return out
}
