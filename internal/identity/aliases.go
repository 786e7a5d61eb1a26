package identity

import (
	"regexp"
	"strings"
)

var (
	emailAliasRe = regexp.MustCompile(`^([\w.]+)@([\w.-]+)$`)
	angleBlockRe = regexp.MustCompile(`<[^>]*>`)
	nonLetterRe  = regexp.MustCompile(`[^a-zA-Z]`)
)

// nameParts is the normalized decomposition of an alias string.
type nameParts struct {
	First   string
	Initial string
	Last    string
}

func (p nameParts) key() string {
	return p.First + "|" + p.Last
}

// parseAlias decomposes a normalized alias string into name parts. It
// understands internal address forms (first.last@domain and
// first.m.last@domain), "Last, First [Initial]" directory forms, and plain
// "First Last". Anything else, including single-character aliases, simply
// fails the decomposition; it is still a valid alias.
func parseAlias(alias string, domains *DomainSet) (nameParts, bool) {
	alias = strings.ToLower(strings.TrimSpace(alias))

	if m := emailAliasRe.FindStringSubmatch(alias); m != nil {
		local, domain := m[1], m[2]
		if !domains.Matches(domain) || strings.Contains(local, "..") {
			return nameParts{}, false
		}
		parts := strings.Split(local, ".")
		switch len(parts) {
		case 2:
			if parts[0] != "" && parts[1] != "" {
				return nameParts{First: parts[0], Last: parts[1]}, true
			}
		case 3:
			if parts[0] != "" && len(parts[1]) == 1 && parts[2] != "" {
				return nameParts{First: parts[0], Initial: parts[1], Last: parts[2]}, true
			}
		}
		return nameParts{}, false
	}

	cleaned := strings.TrimSpace(angleBlockRe.ReplaceAllString(alias, ""))

	if idx := strings.Index(cleaned, ","); idx >= 0 {
		last := nonLetterRe.ReplaceAllString(cleaned[:idx], "")
		rest := strings.Fields(cleaned[idx+1:])
		if last == "" || len(rest) == 0 {
			return nameParts{}, false
		}
		first := nonLetterRe.ReplaceAllString(rest[0], "")
		initial := ""
		if len(rest) > 1 {
			initial = nonLetterRe.ReplaceAllString(rest[1], "")
		}
		if first == "" || last == "" {
			return nameParts{}, false
		}
		return nameParts{First: first, Initial: initial, Last: last}, true
	}

	if fields := strings.Fields(cleaned); len(fields) == 2 {
		first := nonLetterRe.ReplaceAllString(fields[0], "")
		last := nonLetterRe.ReplaceAllString(fields[1], "")
		if first != "" && last != "" {
			return nameParts{First: first, Last: last}, true
		}
	}

	return nameParts{}, false
}

// generateAliases produces the well-established internal address variants
// for a name: first.last@domain, flast@domain and, when an initial is
// known, first.i.last@domain and i..last@domain.
func generateAliases(p nameParts, domain string) []string {
	if p.First == "" || p.Last == "" {
		return nil
	}
	aliases := []string{
		p.First + "." + p.Last + "@" + domain,
		p.First[:1] + p.Last + "@" + domain,
	}
	if p.Initial != "" {
		aliases = append(aliases,
			p.First+"."+p.Initial+"."+p.Last+"@"+domain,
			p.Initial+".."+p.Last+"@"+domain)
	}
	return aliases
}
