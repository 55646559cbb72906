package incident

import (
	"fmt"
	"strings"
	"text/template"
)

var systemPromptTemplate = template.Must(template.New("system").Parse(
	`You are a professional incident communications specialist for {{.Organization}}.`))

var draftPromptTemplate = template.Must(template.New("draft").Parse(`
You are a professional incident communications specialist for {{.Organization}}. Generate a clear, concise status update for a service incident.

Based on the incident data provided, write a professional status update that:
1. Clearly explains what happened without technical jargon
2. States current impact to users
3. Describes what actions the {{.Organization}} team is taking
4. Provides an estimated timeline if available
5. Maintains a professional, reassuring tone appropriate for {{.Organization}}'s customers

Keep the update under 300 words and avoid revealing sensitive technical details. Use markdown formatting for better readability (headers, bold text, lists, etc.).

Sign off as "{{.Organization}} Incident Communications Team".

Incident Data:
{{.IncidentData}}

Generate a status update:


Tone: Write in a {{.Style}} tone.`))

type promptData struct {
	Organization string
	IncidentData string
	Style        string
}

// SystemPrompt renders the system message for organization
func SystemPrompt(organization string) (string, error) {
	var b strings.Builder
	if err := systemPromptTemplate.Execute(&b, promptData{Organization: organization}); err != nil {
		return "", fmt.Errorf("failed to render system prompt: %w", err)
	}
	return b.String(), nil
}

// DraftPrompt renders the user message around already-redacted incident data
func DraftPrompt(organization, redactedIncident string, tone Tone) (string, error) {
	var b strings.Builder
	err := draftPromptTemplate.Execute(&b, promptData{
		Organization: organization,
		IncidentData: redactedIncident,
		Style:        tone.Config().Style,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render draft prompt: %w", err)
	}
	return b.String(), nil
}
