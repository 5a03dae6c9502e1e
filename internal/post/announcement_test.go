package post

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeHTMLContent_RewritesRedirectImageURL(t *testing.T) {
	content := `<img src="https://piazza.com/redirect/image?prefix=abc%2Fdef.png&other=1">`
	out := sanitizeHTMLContent(content)
	assert.Contains(t, out, "https://cdn-uploads.piazza.com/abc/def.png")
}

func TestSanitizeHTMLContent_ReplacesIframe(t *testing.T) {
	content := `before <iframe src="https://embed.example.com/x"></iframe> after`
	out := sanitizeHTMLContent(content)
	assert.NotContains(t, out, "<iframe")
	assert.Contains(t, out, "view on forum")
}

func TestSanitizeHTMLContent_UnescapesEntities(t *testing.T) {
	out := sanitizeHTMLContent("Midterm &amp; final")
	assert.Contains(t, out, "Midterm & final")
}

func TestBuildTextBody_TruncatesOnWordBoundary(t *testing.T) {
	long := strings.Repeat("word ", 200)
	body := buildTextBody(AnnouncementPost{CourseID: "c1", CourseName: "CS 101", PostID: "p1", Subject: "S", HTMLContent: long})
	// Extract the content line (between Subject and the "View the full" line).
	lines := strings.Split(body, "\n")
	var contentLine string
	for _, l := range lines {
		if strings.HasPrefix(l, "word") {
			contentLine = l
			break
		}
	}
	assert.True(t, len(contentLine) <= 504, "truncated content must be near the 500-char boundary, got %d", len(contentLine))
	assert.True(t, strings.HasSuffix(contentLine, "..."))
	assert.False(t, strings.HasSuffix(strings.TrimSuffix(contentLine, "..."), " "))
}

func TestRenderAnnouncement_ProducesBothBodies(t *testing.T) {
	text, html := RenderAnnouncement(AnnouncementPost{
		CourseID: "c1", CourseName: "CS 101", PostID: "p1", PostNumber: 3,
		Subject: "Midterm &amp; Final", HTMLContent: "<p>Details here</p>",
	})
	assert.Contains(t, text, "Midterm & Final")
	assert.Contains(t, html, "Details here")
	assert.Contains(t, html, "piazza.com/class/c1/post/p1")
}
