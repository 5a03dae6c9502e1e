package notifier

import (
	"fmt"
	"html"

	"github.com/dfroberg/coursepilot/internal/types"
	"github.com/dfroberg/coursepilot/internal/types/interfaces"
)

// renderNotification builds the plaintext and HTML alternative bodies for a
// standing-query match email.
func renderNotification(sq types.StandingQuery, hit interfaces.VectorHit, postURL string) (textBody, htmlBody string) {
	title := hit.Title
	if title == "" {
		title = "a forum post"
	}

	text := fmt.Sprintf(
		"A new relevant post was just found for your question \"%s\" in %s.\n\n"+
			"GP-TA found this relevant post for you, titled \"%s\". Check it out here: %s",
		sq.Query, sq.CourseDisplayName, title, postURL,
	)

	htmlOut := fmt.Sprintf(`<html>
<head>
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333333; max-width: 800px; margin: 0 auto; padding: 20px; }
.match-content { background-color: #ffffff; padding: 20px; border-left: 4px solid #1a73e8; margin: 20px 0; }
.cta-button { display: inline-block; background-color: #1a73e8; color: white !important; padding: 12px 24px; text-decoration: none; border-radius: 5px; margin-top: 20px; }
a { color: #1a73e8; text-decoration: none; }
</style>
</head>
<body>
<p>Hello,</p>
<p>A new post relevant to your standing question <strong>&ldquo;%s&rdquo;</strong> was just found in <strong>%s</strong>:</p>
<div class="match-content">
<h3 style="margin-top: 0;">%s</h3>
</div>
<a href="%s" class="cta-button">View Post</a>
<p style="margin-top: 30px;">Happy learning!<br>- The Course Pilot Team</p>
</body>
</html>`, html.EscapeString(sq.Query), html.EscapeString(sq.CourseDisplayName), html.EscapeString(title), postURL)

	return text, htmlOut
}
