// Package protocol defines the JSON-RPC 2.0 envelope and the subset of the
// Model Context Protocol served by blockscout-mcp: lifecycle, tools,
// progress and logging notifications.
package protocol
