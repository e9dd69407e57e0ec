package server

// BenchmarkToolServer defines the interface for the MCP server that exposes
// the benchmark to MCP clients.
type BenchmarkToolServer interface {
	// Initialize registers the tools.
	Initialize() error

	// Start serves MCP requests until the transport closes.
	Start() error

	// Stop gracefully shuts down the MCP server.
	Stop() error
}
