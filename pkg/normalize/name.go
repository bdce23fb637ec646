package normalize

import "strings"

// ParsedName is a display name split into its parts
type ParsedName struct {
	Name           string
	Category       string
	Specialization string
}

func splitTrim(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseName splits "Name, category, specialization..." by position. An empty
// category is taken from the first rubric and the remaining rubrics fill the
// specialization when it is still empty.
func ParseName(display, rubrics string) ParsedName {
	var p ParsedName
	parts := splitTrim(display)
	if len(parts) > 0 {
		p.Name = parts[0]
	}
	if len(parts) > 1 {
		p.Category = parts[1]
	}
	if len(parts) > 2 {
		p.Specialization = strings.Join(parts[2:], ", ")
	}

	if p.Category == "" {
		rs := splitTrim(rubrics)
		if len(rs) > 0 {
			p.Category = rs[0]
		}
		if p.Specialization == "" && len(rs) > 1 {
			p.Specialization = strings.Join(rs[1:], ", ")
		}
	}
	return p
}
