package llm

// ChatResponse is the body returned by the chat endpoint.
type ChatResponse struct {
	Reply string `json:"reply"`
}
