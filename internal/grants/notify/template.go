package notify

import (
	"bytes"
	"text/template"
)

const defaultTemplateText = `[{{ .Kind }}] etudiant {{ .BeneficiaryID }}{{ if .GrantID }} (grant {{ .GrantID }}){{ end }}{{ if .Detail }}: {{ .Detail }}{{ end }} - {{ .OccurredAt.Format "2006-01-02 15:04" }}`

// Template renders a lifecycle event to message text.
type Template struct {
	tpl *template.Template
}

// DefaultTemplate returns the built-in message template.
func DefaultTemplate() *Template {
	return &Template{tpl: template.Must(template.New("grant").Parse(defaultTemplateText))}
}

// ParseTemplate parses a custom message template.
func ParseTemplate(text string) (*Template, error) {
	tpl, err := template.New("grant").Parse(text)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: tpl}, nil
}

// Render renders the event.
func (t *Template) Render(event Event) (string, error) {
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, event); err != nil {
		return "", err
	}
	return buf.String(), nil
}
