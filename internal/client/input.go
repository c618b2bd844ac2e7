package client

import "strings"

// handleTabCompletion extends a partially typed command to the longest
// prefix shared by the matching commands.
func (a *App) handleTabCompletion() {
	value := a.input.Value()
	if value == "" || !strings.HasPrefix(value, commandPrefix) {
		return
	}
	if a.input.Position() != len([]rune(value)) {
		return
	}
	if strings.ContainsAny(value, " \t") {
		return
	}

	matches := make([]string, 0, len(a.commands))
	for _, cmd := range a.commands {
		if strings.HasPrefix(cmd.trigger, value) {
			matches = append(matches, cmd.trigger)
		}
	}
	if len(matches) == 0 {
		return
	}

	prefix := longestCommonPrefix(matches)
	if len(prefix) <= len(value) {
		return
	}
	a.input.SetValue(prefix)
	a.input.CursorEnd()
}

func longestCommonPrefix(values []string) string {
	if len(values) == 0 {
		return ""
	}
	prefix := values[0]
	for _, s := range values[1:] {
		for !strings.HasPrefix(s, prefix) {
			if prefix == "" {
				return ""
			}
			prefix = prefix[:len(prefix)-1]
		}
	}
	return prefix
}
