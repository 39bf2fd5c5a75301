package summarizer

import (
	"bytes"
	"encoding/json"
	"text/template"
)

var promptTemplate = template.Must(template.New("summarize").Parse(`Summarize the following content in a few sentences. Then choose every matching category from root_categories and, for each chosen root, guess a list of sub-category names.
Answer with JSON only, in exactly this format:

{"summary": "...", "labels": [{"root": "...", "sub": ["...", "..."]}]}

root_categories = {{.Roots}}

[Input]
Title: {{.Title}}
Body: {{.Body}}
`))

// BuildPrompt renders the summarization prompt. roots is embedded as a JSON
// array so the model sees the exact category names.
func BuildPrompt(title, body string, roots []string) (string, error) {
	if roots == nil {
		roots = []string{}
	}
	rootsJSON, err := json.Marshal(roots)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = promptTemplate.Execute(&buf, struct {
		Roots string
		Title string
		Body  string
	}{string(rootsJSON), title, body})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
