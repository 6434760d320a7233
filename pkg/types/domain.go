package types

// Message is one chat turn handed to the prompt formatter.
type Message struct {
	// Role of the speaker (system, user, assistant).
	// example: user
	Role string `json:"role" example:"user"`
	// Text of the turn.
	// example: hello
	Content string `json:"content" example:"hello"`
}
