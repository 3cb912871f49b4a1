package approval

import "regexp"

// denylistPatterns match bash invocations that are rejected regardless of
// policy: network clients that can exfiltrate data or fetch remote
// payloads, shell-escape utilities reachable from pagers/editors,
// privilege-escalation tools, and interactive editors that could leave
// the runtime's non-interactive bash executor hung waiting on a tty.
var denylistPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(curl|wget|nc|ncat|netcat|telnet)\b`),
	regexp.MustCompile(`(?i)\b(sudo|su|doas)\b`),
	regexp.MustCompile(`(?i)\b(vim|vi|nano|emacs|less|more|man)\b`),
	regexp.MustCompile(`(?i):\(\)\s*\{.*:\|:.*\}`), // fork bomb
	regexp.MustCompile(`(?i)\bssh\b`),
}

// DenylistCheck reports whether a raw bash command string is rejected by
// the static security denylist. This check runs before approval and is
// not overridable per-session (§4.2).
func DenylistCheck(rawCommand string) (denied bool, reason string) {
	for _, re := range denylistPatterns {
		if re.MatchString(rawCommand) {
			return true, "command matches a disallowed pattern and is rejected for security reasons"
		}
	}
	return false, ""
}
