// Command mcp-guard serves MCP tools behind a request-admission gate.
package main

import "github.com/Sentinel-Gate/mcp-guard/cmd/mcp-guard/cmd"

func main() {
	cmd.Execute()
}
