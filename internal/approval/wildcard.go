package approval

import "strings"

// matchBashPattern checks a command against a preapproval pattern of the
// form "git commit *", "git *", "ls", or "*", per §3.5's "equality or
// shell-glob" rule.
func matchBashPattern(pattern string, cmd BashCommand) bool {
	parts := strings.Split(pattern, " ")
	if len(parts) == 0 {
		return false
	}

	if parts[0] == "*" && len(parts) == 1 {
		return true
	}
	if parts[0] != "*" && parts[0] != cmd.Name {
		return false
	}
	if len(parts) == 1 {
		return cmd.Name == parts[0] && len(cmd.Args) == 0
	}

	if parts[len(parts)-1] == "*" {
		for i := 1; i < len(parts)-1; i++ {
			argIndex := i - 1
			if argIndex >= len(cmd.Args) {
				return false
			}
			if parts[i] != "*" && parts[i] != cmd.Args[argIndex] {
				return false
			}
		}
		return true
	}

	if len(parts)-1 != len(cmd.Args) {
		return false
	}
	for i := 1; i < len(parts); i++ {
		if parts[i] != cmd.Args[i-1] {
			return false
		}
	}
	return true
}

// BuildPattern derives the broadest preapproval pattern implied by a
// command, e.g. "git commit -m x" -> "git commit *". Used when the
// runtime records an "always allow" approval decision as an
// ApprovalRecorded event.
func BuildPattern(cmd BashCommand) string {
	if cmd.Subcommand != "" {
		return cmd.Name + " " + cmd.Subcommand + " *"
	}
	return cmd.Name + " *"
}
