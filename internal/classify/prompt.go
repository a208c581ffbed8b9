// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"bytes"
	"text/template"
)

// classificationPromptTmpl asks for exactly one label from the taxonomy.
// The answer is still validated by exact match; the wording only makes a
// match likely.
var classificationPromptTmpl = template.Must(template.New("classification").Parse(`Classify the following research paper into exactly one of these categories:
{{range .Labels}}- {{.}}
{{end}}
Respond with the category name only, copied exactly as written above. Do not add any other text.

Text: {{.Excerpt}}

Category:`))

// renderPrompt executes the classification prompt template.
func renderPrompt(labels []string, excerpt string) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Labels  []string
		Excerpt string
	}{Labels: labels, Excerpt: excerpt}
	if err := classificationPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
