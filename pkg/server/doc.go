// Package server exposes the explorer tools to clients.
//
// It provides three ingress paths over one tools.Registry:
//
//   - Server: the MCP request dispatcher. It implements transport.Handler
//     and is served over stdio by the transport package or over HTTP by
//     HTTPHandler.
//   - HTTPHandler: the MCP streamable HTTP transport with Mcp-Session-Id
//     sessions and Server-Sent Events for progress notifications.
//   - REST: a stateless GET façade at /v1/{tool} for agents without an MCP
//     client.
//
// The ingress channel is recorded on the request context so the response
// size guard can apply the matching policy: MCP calls are never allowed
// past the limit, REST calls are when they send
// X-Blockscout-Allow-Large-Response: true.
//
// # Creating a Server
//
//	registry := tools.NewRegistry(metrics)
//	_ = toolbox.Register(registry)
//
//	srv := server.New(registry,
//	    server.WithName("blockscout-mcp"),
//	    server.WithVersion(version),
//	    server.WithInstructions(tools.ServerInstructions(version)),
//	)
//
//	// stdio
//	t := transport.NewStdioTransport(os.Stdin, os.Stdout, srv)
//	err := t.Start(ctx)
//
//	// HTTP: MCP at /mcp plus the REST façade
//	router := server.NewRouter(srv, server.RouterOptions{EnableREST: true})
//	err = http.ListenAndServe(":8000", router)
package server
