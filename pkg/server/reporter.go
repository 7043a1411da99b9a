package server

import (
	"context"

	"github.com/ajitpratap0/blockscout-mcp-go/pkg/logging"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/protocol"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/transport"
)

// mcpReporter forwards tool progress to the client of one tools/call.
// Progress is only sent when the client supplied a progress token;
// informational messages follow the session's logging/setLevel threshold.
type mcpReporter struct {
	server  *Server
	session transport.Session
	token   interface{}
}

func (r *mcpReporter) Progress(ctx context.Context, progress, total float64, message string) {
	if r.token == nil {
		return
	}
	err := r.session.Notify(ctx, protocol.MethodProgress, &protocol.ProgressParams{
		ProgressToken: r.token,
		Progress:      progress,
		Total:         total,
		Message:       message,
	})
	if err != nil {
		r.server.logger.Debug("dropped progress notification", logging.ErrorField(err))
	}
}

func (r *mcpReporter) Info(ctx context.Context, message string) {
	r.server.logger.WithContext(ctx).Debug(message, logging.String("session", r.session.ID()))
	if !r.server.logEnabled(r.session.ID(), protocol.LogLevelInfo) {
		return
	}
	err := r.session.Notify(ctx, protocol.MethodLogMessage, &protocol.LogMessageParams{
		Level:  protocol.LogLevelInfo,
		Logger: r.server.name,
		Data:   message,
	})
	if err != nil {
		r.server.logger.Debug("dropped log notification", logging.ErrorField(err))
	}
}
