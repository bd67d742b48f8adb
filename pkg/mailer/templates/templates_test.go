package templates

import (
	"strings"
	"testing"
)

func TestRenderVerifyEmail(t *testing.T) {
	t.Parallel()

	data := struct {
		Username string
		Link     string
	}{Username: "Ada", Link: "https://accounts.example.com/verify-email?token=abc123"}

	text, html, err := Render(VerifyEmail, data)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if !strings.Contains(text, "Ada") || !strings.Contains(text, data.Link) {
		t.Fatalf("text body missing variables:\n%s", text)
	}
	if !strings.Contains(html, data.Link) {
		t.Fatalf("html body missing link:\n%s", html)
	}
}

func TestRenderEscapesHTML(t *testing.T) {
	t.Parallel()

	data := struct {
		Username string
		Link     string
	}{Username: "A<script>", Link: "https://x/verify?token=abc"}

	_, html, err := Render(VerifyEmail, data)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Fatalf("html body must escape user-controlled values:\n%s", html)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	t.Parallel()

	if _, _, err := Render("no_such_template", nil); err == nil {
		t.Fatalf("expected error for missing template")
	}
}
