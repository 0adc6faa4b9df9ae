package mail

import (
	"regexp"
	"strings"
)

var (
	bracketRe = regexp.MustCompile(`^\[[^\]]+\](.+)$`)
	unsafeRe  = regexp.MustCompile(`[^0-9a-zA-Z.]`)
	dashRunRe = regexp.MustCompile(`--+`)
)

// SlugifySubject turns a mail subject into a branch-safe slug:
// reply markers and a leading bracketed tag ([PATCH], [PATCH v2], ...)
// are stripped, everything outside [0-9a-zA-Z.] becomes a dash, and
// dash runs collapse.
func SlugifySubject(subject string) string {
	s := strings.TrimSpace(subject)

	for {
		trimmed := strings.TrimSpace(s)

		if lower := strings.ToLower(trimmed); strings.HasPrefix(lower, "re:") {
			s = trimmed[3:]
			continue
		}

		if strings.HasPrefix(trimmed, ":") {
			s = trimmed[1:]
			continue
		}

		s = trimmed
		break
	}

	if strings.HasPrefix(s, "[") {
		if m := bracketRe.FindStringSubmatch(s); m != nil {
			s = strings.TrimSpace(m[1])
		}
	}

	s = unsafeRe.ReplaceAllString(s, "-")
	s = dashRunRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	return s
}
