package sentiment

import "strings"

// Inject splices the summary line into a rendered prompt, immediately
// before the last line beginning with "User:" so it sits next to the
// turn it describes. Prompts without that marker get the summary
// prepended. An empty summary is a no-op.
func Inject(prompt, summary string) string {
	if summary == "" {
		return prompt
	}

	if idx := lastUserLine(prompt); idx >= 0 {
		return prompt[:idx] + summary + "\n" + prompt[idx:]
	}
	return summary + "\n\n" + prompt
}

func lastUserLine(prompt string) int {
	if idx := strings.LastIndex(prompt, "\nUser:"); idx >= 0 {
		return idx + 1
	}
	if strings.HasPrefix(prompt, "User:") {
		return 0
	}
	return -1
}
