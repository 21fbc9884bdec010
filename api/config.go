package api

// Config is the HTTP server configuration.
type Config struct {
	// Address to listen on (e.g., ":8000")
	ListenAddr string

	// DisableMCP turns off the /mcp endpoint.
	DisableMCP bool
}
