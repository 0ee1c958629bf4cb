package render

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	log "github.com/sirupsen/logrus"
)

var contentPolicy = bluemonday.UGCPolicy()

// SanitizeContent strips anything the CMS editor should not be able to inject
// into a page.
func SanitizeContent(content string) string {
	return contentPolicy.Sanitize(content)
}

// Excerpt returns the first paragraph of content as plain text, cut to words.
// A hand-written excerpt wins over the content.
func Excerpt(manual, content string, words int) string {
	if text := strings.TrimSpace(html.UnescapeString(bluemonday.StrictPolicy().Sanitize(manual))); text != "" {
		return truncateWords(text, words)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(SanitizeContent(content)))
	if err != nil {
		log.Warnf("⚠️ Failed to parse item content for excerpt: %v", err)
		return ""
	}

	var text string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text = strings.TrimSpace(s.Text())
		return text == ""
	})
	if text == "" {
		text = strings.TrimSpace(doc.Text())
	}
	return truncateWords(text, words)
}

func truncateWords(text string, n int) string {
	fields := strings.Fields(text)
	if n <= 0 || len(fields) <= n {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:n], " ") + "…"
}
