// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"golang.org/x/net/html"
)

// Element is one partition result returned by the Unstructured API.
type Element struct {
	Type     string          `json:"type"`
	Text     string          `json:"text"`
	Metadata ElementMetadata `json:"metadata"`
}

// ElementMetadata carries the fields of element metadata the converter reads.
type ElementMetadata struct {
	PageNumber int    `json:"page_number,omitempty"`
	TextAsHTML string `json:"text_as_html,omitempty"`
}

// elementsToHTML lays elements out as an HTML fragment. Consecutive list
// items share one <ul>; tables keep the HTML the partitioner inferred.
func elementsToHTML(elems []Element) string {
	var b strings.Builder
	inList := false
	closeList := func() {
		if inList {
			b.WriteString("</ul>\n")
			inList = false
		}
	}

	for _, e := range elems {
		text := strings.TrimSpace(e.Text)
		switch e.Type {
		case "ListItem":
			if text == "" {
				continue
			}
			if !inList {
				b.WriteString("<ul>\n")
				inList = true
			}
			b.WriteString("<li>" + html.EscapeString(text) + "</li>\n")
			continue
		}

		closeList()
		switch e.Type {
		case "Title":
			if text != "" {
				b.WriteString("<h1>" + html.EscapeString(text) + "</h1>\n")
			}
		case "Table":
			if e.Metadata.TextAsHTML != "" {
				b.WriteString(e.Metadata.TextAsHTML + "\n")
			} else if text != "" {
				b.WriteString("<p>" + html.EscapeString(text) + "</p>\n")
			}
		case "PageBreak", "Header", "Footer", "Image":
		default:
			if text != "" {
				b.WriteString("<p>" + html.EscapeString(text) + "</p>\n")
			}
		}
	}
	closeList()
	return b.String()
}

// elementsToMarkdown renders partition elements as Markdown.
func elementsToMarkdown(conv *md.Converter, elems []Element) (string, error) {
	return htmlToMarkdown(conv, elementsToHTML(elems))
}
