package session

import (
	"strings"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"chatstream/internal/llm"
)

// msgNoMessage is reported when the message field is absent or empty.
const msgNoMessage = "No message provided"

// ManualPrompt is the fixed ChatML prompt used when the primary formatter
// fails. It follows the same role delimiters as llm.DefaultChatTemplate.
func ManualPrompt(message string) string {
	return "<|im_start|>user\n" + message + "<|im_end|>\n<|im_start|>assistant\n"
}

// Validator turns a raw request body into a model-ready prompt.
type Validator struct {
	formatter llm.PromptFormatter
}

// NewValidator returns a Validator delegating templating to f (may be nil,
// which always takes the manual fallback).
func NewValidator(f llm.PromptFormatter) *Validator {
	return &Validator{formatter: f}
}

type chatBody struct {
	Message *string `json:"message"`
}

// Validate extracts the user message from body. Malformed JSON, a
// non-string message, or a missing/blank message fail with InvalidRequest.
func (v *Validator) Validate(body []byte) (string, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", ErrInvalidRequest(msgNoMessage)
	}
	var req chatBody
	if err := json.Unmarshal(body, &req); err != nil {
		return "", ErrInvalidRequest("invalid JSON body")
	}
	if req.Message == nil || strings.TrimSpace(*req.Message) == "" {
		return "", ErrInvalidRequest(msgNoMessage)
	}
	return *req.Message, nil
}

// Prompt formats message with the primary formatter, falling back to
// ManualPrompt when it fails. The fallback is logged and counted, never
// surfaced to the client. log is the session's logger.
func (v *Validator) Prompt(message string, log zerolog.Logger) (prompt string, fallback bool) {
	if v.formatter != nil {
		p, err := v.formatter.FormatPrompt([]llm.Message{{Role: "user", Content: message}})
		if err == nil {
			return p, false
		}
		log.Warn().Err(err).Msg("chat template failed, falling back to manual format")
	}
	templateFallbacks.Inc()
	return ManualPrompt(message), true
}
