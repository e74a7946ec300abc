package service

import (
	"bytes"
	"html/template"
	"strings"
)

var letterEmailTemplate = template.Must(template.New("letter").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Georgia, serif; color: #1f2933; max-width: 680px; margin: 0 auto;">
<div style="border-bottom: 2px solid #1e3a8a; padding: 16px 0;">
<h2 style="margin: 0; color: #1e3a8a;">Legal Letter from Talk-To-My-Lawyer</h2>
</div>
{{- if .Message}}
<div style="background: #f3f4f6; padding: 12px 16px; margin: 16px 0; border-left: 4px solid #1e3a8a;">
<p style="margin: 0 0 4px 0;"><strong>Message from sender:</strong></p>
<p style="margin: 0;">{{.Message}}</p>
</div>
{{- end}}
<div style="padding: 16px 0;">
{{- range .Paragraphs}}
<p style="line-height: 1.6;">{{.}}</p>
{{- end}}
</div>
<div style="border-top: 1px solid #d1d5db; padding-top: 12px; font-size: 12px; color: #6b7280;">
<p>This letter was prepared through Talk-To-My-Lawyer and reviewed by a licensed attorney.</p>
</div>
</body>
</html>
`))

type letterEmailData struct {
	Message    string
	Paragraphs []string
}

// renderLetterEmail builds the HTML body. Every user supplied string is
// escaped by the template.
func renderLetterEmail(content, message string) (string, error) {
	data := letterEmailData{Message: strings.TrimSpace(message)}
	for _, block := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			data.Paragraphs = append(data.Paragraphs, block)
		}
	}

	var buf bytes.Buffer
	if err := letterEmailTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
