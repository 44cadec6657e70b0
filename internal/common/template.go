package common

import "strings"

// ExpandTemplate substitutes {variable} placeholders in a template with
// values from vars. Unknown variables render as empty strings rather than
// failing, so user templates degrade instead of aborting a document.
func ExpandTemplate(template string, vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(template))

	for {
		start := strings.IndexByte(template, '{')
		if start < 0 {
			b.WriteString(template)
			break
		}
		end := strings.IndexByte(template[start:], '}')
		if end < 0 {
			b.WriteString(template)
			break
		}
		end += start

		b.WriteString(template[:start])
		name := template[start+1 : end]
		b.WriteString(vars[name])
		template = template[end+1:]
	}

	return b.String()
}
