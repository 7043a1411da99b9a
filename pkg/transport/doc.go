// Package transport moves JSON-RPC messages between MCP clients and a
// Handler.
//
// A transport owns framing and connection lifecycle only. Every inbound
// message is passed to Handler.HandleMessage together with the Session it
// arrived on; the session is how the handler pushes notifications such as
// progress back to the client while a request is still running.
//
// # Stdio
//
// StdioTransport reads newline delimited messages from an io.Reader and
// writes responses and notifications to an io.Writer. Requests are handled
// concurrently so that notifications/cancelled can reach a request that is
// still in flight. Stop waits for outstanding requests to finish writing.
//
//	t := transport.NewStdioTransport(os.Stdin, os.Stdout, handler)
//	if err := t.Start(ctx); err != nil {
//	    return err
//	}
//
// The streamable HTTP transport is served by the server package, which
// also owns session state.
package transport
