package codec

import "strings"

// BuildInfoRequest concatenates info command names into the request payload:
// "name\n" per line, or an empty payload to mean "return everything".
func BuildInfoRequest(names ...string) []byte {
	if len(names) == 0 {
		return nil
	}
	var b strings.Builder
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// ParseInfoReply parses an info reply payload into ordered (name, value)
// pairs, invoking cb for each. It tolerates both '\t' and '=' separators and
// normalizes to '\t' semantics: a tab wins when present, so a name that
// itself contains '=' (such as "jobs:module=scan;...") survives intact, and
// '=' is used only on a line with no tab. It fails closed on a malformed line
// that has neither separator rather than treating it as an empty value.
func ParseInfoReply(payload []byte, cb func(name, value string)) error {
	text := strings.TrimRight(string(payload), "\n")
	if text == "" {
		return nil
	}
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			continue
		}
		sep := strings.IndexByte(line, '\t')
		if sep < 0 {
			sep = strings.IndexByte(line, '=')
		}
		if sep < 0 {
			return &Error{Kind: Truncated, Msg: "malformed info line: " + line}
		}
		name := line[:sep]
		value := line[sep+1:]
		cb(name, value)
	}
	return nil
}
