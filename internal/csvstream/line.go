// Package csvstream reads court extract CSV files incrementally: it tokenizes
// lines, maps them onto the header, and filters rows that carry no data.
package csvstream

import "strings"

// DefaultSeparator is the field separator used when none is configured.
const DefaultSeparator = ','

// ParseLine tokenizes one CSV line into fields.
//
// A field that starts with a double quote (after optional whitespace) is
// quoted: separators and newlines inside it are literal and "" decodes to a
// single quote. Text following the closing quote is appended literally.
// Unquoted fields are trimmed. An unterminated quote consumes the rest of the
// line as literal content. ParseLine never fails.
func ParseLine(line string, sep rune) []string {
	fields, _ := scanLine(line, sep)
	return fields
}

// endsInsideQuote reports whether line leaves a quoted field open, meaning the
// record continues on the next physical line.
func endsInsideQuote(line string, sep rune) bool {
	_, open := scanLine(line, sep)
	return open
}

func scanLine(line string, sep rune) ([]string, bool) {
	if sep == 0 {
		sep = DefaultSeparator
	}

	var (
		fields   []string
		cur      strings.Builder
		inQuotes bool
		quoted   bool
		closedAt = -1
	)

	finish := func() {
		s := cur.String()
		switch {
		case !quoted:
			s = strings.TrimSpace(s)
		case closedAt >= 0:
			s = s[:closedAt] + strings.TrimSpace(s[closedAt:])
		}
		fields = append(fields, s)
		cur.Reset()
		quoted = false
		closedAt = -1
	}

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case inQuotes:
			if r != '"' {
				cur.WriteRune(r)
				continue
			}
			if i+1 < len(runes) && runes[i+1] == '"' {
				cur.WriteRune('"')
				i++
				continue
			}
			inQuotes = false
			closedAt = cur.Len()
		case r == '"' && !quoted && strings.TrimSpace(cur.String()) == "":
			cur.Reset()
			inQuotes = true
			quoted = true
		case r == sep:
			finish()
		default:
			cur.WriteRune(r)
		}
	}
	finish()

	return fields, inQuotes
}

// FormatLine serializes fields so that ParseLine returns them unchanged.
func FormatLine(fields []string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		if needsQuoting(f) {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(f, `"`, `""`))
			b.WriteByte('"')
			continue
		}
		b.WriteString(f)
	}
	return b.String()
}

func needsQuoting(f string) bool {
	if f == "" {
		return false
	}
	if strings.ContainsAny(f, ",\"\n\r") {
		return true
	}
	return strings.TrimSpace(f) != f
}
