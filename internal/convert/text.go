// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import "strings"

// paragraphs turns recognized plain text into Markdown paragraphs: blank
// lines separate paragraphs, wrapped lines inside one are joined.
func paragraphs(text string) string {
	var out []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, " "))
			cur = cur[:0]
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return strings.Join(out, "\n\n")
}
