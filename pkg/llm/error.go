// Package llm provides the wire and conversation types shared by the chat
// endpoint, the completion invoker and the transport client.
package llm

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}
