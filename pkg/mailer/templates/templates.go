package templates

import (
	"bytes"
	"embed"
	"fmt"
	htmpl "html/template"
	texttpl "text/template"
)

//go:embed *.tmpl
var files embed.FS

// Template names carried in email event payloads.
const (
	VerifyEmail = "verify_email"
)

// Both sets are parsed once at init so malformed templates fail the
// process immediately instead of the first send.
var (
	textSet = texttpl.Must(texttpl.ParseFS(files, "*.text.tmpl"))
	htmlSet = htmpl.Must(htmpl.ParseFS(files, "*.html.tmpl"))
)

// Render produces the text and html bodies for the named template. The
// embedded set pairs <name>.text.tmpl with <name>.html.tmpl.
func Render(name string, data any) (text, html string, err error) {
	var tb bytes.Buffer
	if err := textSet.ExecuteTemplate(&tb, name+".text.tmpl", data); err != nil {
		return "", "", fmt.Errorf("render %s text: %w", name, err)
	}
	var hb bytes.Buffer
	if err := htmlSet.ExecuteTemplate(&hb, name+".html.tmpl", data); err != nil {
		return "", "", fmt.Errorf("render %s html: %w", name, err)
	}
	return tb.String(), hb.String(), nil
}
