package llm

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// DefaultChatTemplate renders the ChatML convention used by Qwen-family
// models: every turn is wrapped in <|im_start|>role ... <|im_end|> and the
// prompt ends with an open assistant turn.
const DefaultChatTemplate = `{{range .Messages}}<|im_start|>{{.Role}}
{{.Content}}<|im_end|>
{{end}}{{if .AddGenerationPrompt}}<|im_start|>assistant
{{end}}`

var errNoChatTemplate = errors.New("no chat template configured")

// TemplateFormatter renders messages through a Go text/template. The
// template sees .Messages ([]Message) and .AddGenerationPrompt (always true).
type TemplateFormatter struct {
	tmpl *template.Template
	err  error
}

// NewTemplateFormatter parses src. Parse problems are not returned here:
// they surface from every FormatPrompt call so callers take their fallback
// path, the same as for a model that ships without a template. An empty src
// behaves the same way.
func NewTemplateFormatter(src string) *TemplateFormatter {
	if strings.TrimSpace(src) == "" {
		return &TemplateFormatter{err: errNoChatTemplate}
	}
	t, err := template.New("chat").Option("missingkey=error").Parse(src)
	if err != nil {
		return &TemplateFormatter{err: fmt.Errorf("parse chat template: %w", err)}
	}
	return &TemplateFormatter{tmpl: t}
}

// Err returns the parse error, if any.
func (f *TemplateFormatter) Err() error { return f.err }

// FormatPrompt implements PromptFormatter.
func (f *TemplateFormatter) FormatPrompt(messages []Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if len(messages) == 0 {
		return "", errors.New("format prompt: no messages")
	}
	var b strings.Builder
	data := struct {
		Messages            []Message
		AddGenerationPrompt bool
	}{messages, true}
	if err := f.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render chat template: %w", err)
	}
	return b.String(), nil
}
