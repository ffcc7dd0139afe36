// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

// dataImage matches inline base64 images, which MuPDF embeds for every
// figure and which would dominate the output size.
var dataImage = regexp.MustCompile(`!\[[^\]]*\]\(data:image/[^)]+\)`)

// newMarkdownConverter returns an HTML-to-Markdown converter with GitHub
// flavored tables and strikethrough. Converters are not shared between
// engine instances.
func newMarkdownConverter() *md.Converter {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return conv
}

// htmlToMarkdown converts an HTML fragment and drops inline images.
func htmlToMarkdown(conv *md.Converter, html string) (string, error) {
	text, err := conv.ConvertString(html)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stripDataImages(text)), nil
}

func stripDataImages(s string) string {
	return dataImage.ReplaceAllString(s, "")
}
