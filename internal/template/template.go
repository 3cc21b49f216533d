package template

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/siterescue/leadloop/internal/config"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

// Message kinds, one per template pair.
const (
	Initial   = "initial"
	FollowUp1 = "followup_1"
	FollowUp2 = "followup_2"
	FollowUp3 = "followup_3"
)

// FollowUpKind returns the template name for follow-up k (1..3).
func FollowUpKind(k int) (string, error) {
	switch k {
	case 1:
		return FollowUp1, nil
	case 2:
		return FollowUp2, nil
	case 3:
		return FollowUp3, nil
	}
	return "", fmt.Errorf("no template for follow-up %d", k)
}

// Subject templates live here; bodies are embedded files.
var subjects = map[string]string{
	Initial:   "Quick question about {{.business_name}}",
	FollowUp1: "Re: Quick question about {{.business_name}}",
	FollowUp2: "Last follow-up - {{.business_name}}",
	FollowUp3: "Final note - {{.business_name}}",
}

// Email represents a rendered email ready to send
type Email struct {
	Subject string
	Body    string
}

// Engine handles email template rendering
type Engine struct {
	subjects map[string]*template.Template
	bodies   map[string]*template.Template
}

// NewEngine parses the embedded template pairs.
func NewEngine() (*Engine, error) {
	e := &Engine{
		subjects: make(map[string]*template.Template),
		bodies:   make(map[string]*template.Template),
	}

	for name, subj := range subjects {
		st, err := template.New(name + "_subject").Parse(subj)
		if err != nil {
			return nil, fmt.Errorf("failed to parse subject template %s: %w", name, err)
		}
		e.subjects[name] = st

		content, err := embeddedTemplates.ReadFile("templates/" + name + ".tmpl")
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded template %s: %w", name, err)
		}
		bt, err := template.New(name).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		e.bodies[name] = bt
	}

	return e, nil
}

// Values builds the full placeholder set available to every template.
func Values(businessName, hook, niche, city string, id config.Identity) map[string]string {
	if niche == "" {
		niche = "local businesses"
	}
	if city == "" {
		city = id.City
	}
	return map[string]string{
		"business_name": businessName,
		"niche":         niche,
		"city":          city,
		"ai_hook":       hook,
		"your_name":     id.Name,
		"your_phone":    id.Phone,
		"your_website":  id.Website,
		"your_city":     id.City,
	}
}

// Render generates the email for the given kind.
func (e *Engine) Render(kind string, values map[string]string) (*Email, error) {
	st, ok := e.subjects[kind]
	if !ok {
		return nil, fmt.Errorf("unknown template: %s", kind)
	}
	bt := e.bodies[kind]

	var subj, body bytes.Buffer
	if err := st.Execute(&subj, values); err != nil {
		return nil, fmt.Errorf("failed to render subject: %w", err)
	}
	if err := bt.Execute(&body, values); err != nil {
		return nil, fmt.Errorf("failed to render body: %w", err)
	}

	return &Email{Subject: subj.String(), Body: body.String()}, nil
}

// AvailableKinds returns the list of template kinds.
func (e *Engine) AvailableKinds() []string {
	kinds := make([]string, 0, len(e.bodies))
	for name := range e.bodies {
		kinds = append(kinds, name)
	}
	return kinds
}
