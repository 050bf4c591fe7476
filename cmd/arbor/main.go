// Command arbor runs the ticket backlog coordinator as a REPL, an HTTP API or an MCP
// server.
package main

func main() {
	Execute()
}
