package llm

// ChatRequest is the body accepted by the chat endpoint.
//
// History is optional on the wire and decodes to an empty conversation when
// absent or null.
type ChatRequest struct {
	Message string       `json:"message"`           // The new user message
	History Conversation `json:"history,omitempty"` // Prior turns, oldest first
}
