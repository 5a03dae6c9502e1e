// Package utils holds small input-hygiene helpers shared across components
// that touch forum-sourced or user-submitted text: HTML sanitization before
// it is re-rendered in an email or citation, and log-injection defense
// before untrusted strings are written to structured log fields.
package utils

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var xssPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)<iframe[^>]*>.*?</iframe>`),
	regexp.MustCompile(`(?i)<object[^>]*>.*?</object>`),
	regexp.MustCompile(`(?i)<embed[^>]*>.*?</embed>`),
	regexp.MustCompile(`(?i)<embed[^>]*>`),
	regexp.MustCompile(`(?i)<form[^>]*>.*?</form>`),
	regexp.MustCompile(`(?i)<input[^>]*>`),
	regexp.MustCompile(`(?i)<button[^>]*>.*?</button>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)onload\s*=`),
	regexp.MustCompile(`(?i)onerror\s*=`),
	regexp.MustCompile(`(?i)onclick\s*=`),
	regexp.MustCompile(`(?i)onmouseover\s*=`),
	regexp.MustCompile(`(?i)onfocus\s*=`),
	regexp.MustCompile(`(?i)onblur\s*=`),
}

// SanitizeHTML escapes forum-sourced HTML that trips any known XSS pattern;
// content that matches nothing is passed through unescaped so legitimate
// markup (used by the announcement email renderer) survives.
func SanitizeHTML(input string) string {
	if input == "" {
		return ""
	}
	if len(input) > 10000 {
		input = input[:10000]
	}
	for _, pattern := range xssPatterns {
		if pattern.MatchString(input) {
			return html.EscapeString(input)
		}
	}
	return input
}

// EscapeHTML always HTML-escapes, regardless of whether input looks benign.
func EscapeHTML(input string) string {
	if input == "" {
		return ""
	}
	return html.EscapeString(input)
}

// ValidateInput rejects a raw student query containing control characters,
// invalid UTF-8, or an XSS pattern; otherwise returns it trimmed.
func ValidateInput(input string) (string, bool) {
	if input == "" {
		return "", true
	}
	for _, r := range input {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return "", false
		}
	}
	if !utf8.ValidString(input) {
		return "", false
	}
	for _, pattern := range xssPatterns {
		if pattern.MatchString(input) {
			return "", false
		}
	}
	return strings.TrimSpace(input), true
}

// IsValidURL checks a URL is http(s), bounded in length, and free of known
// XSS patterns before it is embedded in a citation or email.
func IsValidURL(url string) bool {
	if url == "" || len(url) > 2048 {
		return false
	}
	lower := strings.ToLower(url)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return false
	}
	for _, pattern := range xssPatterns {
		if pattern.MatchString(url) {
			return false
		}
	}
	return true
}

// IsValidImageURL additionally requires a recognized image extension.
func IsValidImageURL(url string) bool {
	if !IsValidURL(url) {
		return false
	}
	lower := strings.ToLower(url)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".bmp", ".ico"} {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}

// CleanMarkdown strips any XSS pattern out of markdown-ish text (a model's
// answer body) without escaping the rest.
func CleanMarkdown(input string) string {
	if input == "" {
		return ""
	}
	cleaned := input
	for _, pattern := range xssPatterns {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}
	return cleaned
}

// SanitizeForDisplay cleans then escapes text for rendering outside a
// trusted markdown renderer.
func SanitizeForDisplay(input string) string {
	if input == "" {
		return ""
	}
	return html.EscapeString(CleanMarkdown(input))
}

// SanitizeForLog strips newlines, tabs, and other control characters from a
// string before it is written to a structured log field, so a student's raw
// query can't forge adjacent log lines.
func SanitizeForLog(input string) string {
	if input == "" {
		return ""
	}
	sanitized := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(input)

	var b strings.Builder
	for _, r := range sanitized {
		if r >= 32 || r == ' ' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SanitizeForLogArray applies SanitizeForLog across a slice.
func SanitizeForLogArray(input []string) []string {
	if len(input) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(input))
	for _, item := range input {
		out = append(out, SanitizeForLog(item))
	}
	return out
}
