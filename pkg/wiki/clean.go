package wiki

import (
	"regexp"
	"strings"
)

var (
	headingLine   = regexp.MustCompile(`(?m)^[ \t]*=+[^=\n]+=+[ \t]*$`)
	manyNewlines  = regexp.MustCompile(`\n{3,}`)
	spaceRuns     = regexp.MustCompile(`[ \t]+`)
	nonSlugRunes  = regexp.MustCompile(`[^a-z0-9]+`)
	maxSlugLength = 100
)

// CleanText removes "== Section ==" headings and squeezes whitespace.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = headingLine.ReplaceAllString(text, "")
	text = spaceRuns.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	text = strings.Join(lines, "\n")

	text = manyNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// SanitizeFilename turns an article title into a lowercase file stem.
func SanitizeFilename(title string) string {
	slug := nonSlugRunes.ReplaceAllString(strings.ToLower(title), "_")
	slug = strings.Trim(slug, "_")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "_")
	}
	if slug == "" {
		return "article"
	}
	return slug
}
