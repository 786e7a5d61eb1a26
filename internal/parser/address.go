package parser

import (
	"net/mail"
	"regexp"
	"strings"
)

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,6}`)

// AddressList extracts the individual identity strings from a recipient
// header value. RFC-style lists parse with net/mail; the X-To/X-cc variants
// use the Outlook directory format ("Last, First <EXCHANGE/PATH>") which
// net/mail rejects, so those fall back to a bracket-aware split.
func AddressList(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	if list, err := mail.ParseAddressList(value); err == nil && len(list) > 0 {
		out := make([]string, 0, len(list))
		for _, a := range list {
			out = append(out, strings.ToLower(a.Address))
		}
		return out
	}

	if matches := emailRe.FindAllString(value, -1); len(matches) > 0 {
		out := make([]string, 0, len(matches))
		for _, m := range matches {
			out = append(out, strings.ToLower(m))
		}
		return out
	}

	return displayNameList(value)
}

// FirstAddress extracts the first identity string from a header value, or
// the trimmed value itself when nothing more structured can be found.
func FirstAddress(value string) string {
	if list := AddressList(value); len(list) > 0 {
		return list[0]
	}
	return strings.ToLower(strings.TrimSpace(value))
}

// displayNameList splits an X-header value into display names. Entries end
// with an angle-bracketed exchange path, so the list splits on ">".
func displayNameList(value string) []string {
	var out []string
	for _, chunk := range strings.Split(value, ">") {
		chunk = strings.TrimSpace(chunk)
		chunk = strings.TrimPrefix(chunk, ",")
		if idx := strings.Index(chunk, "<"); idx >= 0 {
			chunk = chunk[:idx]
		}
		chunk = strings.Trim(chunk, " \t'\"")
		if chunk == "" {
			continue
		}
		out = append(out, strings.ToLower(chunk))
	}
	return out
}
