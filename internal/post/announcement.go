package post

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/dfroberg/coursepilot/internal/textproc"
)

// AnnouncementPost carries the data a newly-created announcement-flagged
// post needs to render an email.
type AnnouncementPost struct {
	CourseID    string
	CourseName  string
	PostID      string
	PostNumber  int
	Subject     string
	HTMLContent string
}

var (
	imgTag       = regexp.MustCompile(`(?i)<img[^>]*>`)
	imgSrcPrefix = regexp.MustCompile(`prefix=([^&"'>\s]+)`)
	imgSrcAttr   = regexp.MustCompile(`src=["'][^"']*["']`)
	iframeTag    = regexp.MustCompile(`(?is)<iframe[^>]*>.*?</iframe>`)
)

// RenderAnnouncement builds the plaintext and HTML alternative bodies for a
// new-announcement email.
func RenderAnnouncement(a AnnouncementPost) (textBody, htmlBody string) {
	return buildTextBody(a), buildHTMLBody(a)
}

// sanitizeHTMLContent unescapes entities, rewrites Piazza image-redirect
// URLs to direct CDN URLs, and replaces inline iframes with a
// view-on-forum placeholder.
func sanitizeHTMLContent(content string) string {
	content = html.UnescapeString(content)

	content = imgTag.ReplaceAllStringFunc(content, func(tag string) string {
		m := imgSrcPrefix.FindStringSubmatch(tag)
		if m == nil {
			return tag
		}
		prefix, err := url.QueryUnescape(m[1])
		if err != nil {
			return tag
		}
		cdnURL := "https://cdn-uploads.piazza.com/" + prefix
		return imgSrcAttr.ReplaceAllString(tag, fmt.Sprintf(`src="%s"`, cdnURL))
	})

	content = iframeTag.ReplaceAllString(content,
		`<span style="color: #666; font-style: italic;">[Embedded content - view on forum]</span>`)

	return content
}

func buildTextBody(a AnnouncementPost) string {
	postURL := fmt.Sprintf("https://piazza.com/class/%s/post/%s", a.CourseID, a.PostID)

	plain := textproc.Clean(html.UnescapeString(a.HTMLContent))
	plain = strings.Join(strings.Fields(plain), " ")

	const maxLength = 500
	if len(plain) > maxLength {
		truncated := plain[:maxLength]
		if idx := strings.LastIndex(truncated, " "); idx > 0 {
			truncated = truncated[:idx]
		}
		plain = truncated + "..."
	}

	return fmt.Sprintf(
		"Hello,\n\nA new course announcement has been posted in %s.\n\nSubject: %s\n\n%s\nView the full announcement here: %s\n\nHappy learning!\n- The Course Pilot Team",
		a.CourseName, html.UnescapeString(a.Subject), plain, postURL,
	)
}

func buildHTMLBody(a AnnouncementPost) string {
	postURL := fmt.Sprintf("https://piazza.com/class/%s/post/%s", a.CourseID, a.PostID)
	subject := html.UnescapeString(a.Subject)
	content := sanitizeHTMLContent(a.HTMLContent)

	return fmt.Sprintf(`<html>
<head>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333333; max-width: 800px; margin: 0 auto; padding: 20px; }
.announcement-content { background-color: #ffffff; padding: 20px; border-left: 4px solid #1a73e8; margin: 20px 0; }
.cta-button { display: inline-block; background-color: #1a73e8; color: white !important; padding: 12px 24px; text-decoration: none; border-radius: 5px; margin-top: 20px; }
a { color: #1a73e8; text-decoration: none; }
</style>
</head>
<body>
<p>Hello,</p>
<p>A new announcement has been posted in <strong>%s</strong>:</p>
<div class="announcement-content">
<h3 style="margin-top: 0;">%s</h3>
%s
</div>
<a href="%s" class="cta-button">View Full Announcement</a>
<p style="margin-top: 30px;">Happy learning!<br>- The Course Pilot Team</p>
</body>
</html>`, html.EscapeString(a.CourseName), html.EscapeString(subject), content, postURL)
}
