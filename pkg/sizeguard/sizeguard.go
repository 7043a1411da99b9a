// Package sizeguard refuses responses too large to hand to an LLM context
// window. Policy differs by ingress channel: MCP callers can never bypass
// the limit, REST callers can with an explicit header.
package sizeguard

import (
	"context"
	"strings"

	mcperrors "github.com/ajitpratap0/blockscout-mcp-go/pkg/errors"
)

// OverrideHeader lets REST callers accept oversized responses
const OverrideHeader = "X-Blockscout-Allow-Large-Response"

// DefaultLimit is the response size limit in characters
const DefaultLimit = 100000

// Channel is the ingress path a request arrived through
type Channel int

const (
	ChannelMCP Channel = iota
	ChannelREST
)

func (c Channel) String() string {
	if c == ChannelREST {
		return "rest"
	}
	return "mcp"
}

const (
	mcpHint  = "Narrow the query: add filters, request a smaller page or a more specific endpoint."
	restHint = "Narrow the query, or set the " + OverrideHeader + ": true header to receive it anyway."
)

// Guard enforces a response size limit
type Guard struct {
	Limit int
}

// New returns a Guard, falling back to DefaultLimit for non-positive limits
func New(limit int) Guard {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return Guard{Limit: limit}
}

// Check decides whether a response of size characters may be returned.
// override is the raw override header value; it is only honoured on the
// REST channel and only when it equals "true" ignoring case.
func (g Guard) Check(size int, ch Channel, override string) error {
	if size <= g.Limit {
		return nil
	}
	if ch == ChannelREST {
		if strings.EqualFold(strings.TrimSpace(override), "true") {
			return nil
		}
		return mcperrors.ResponseTooLarge(size, g.Limit, restHint)
	}
	return mcperrors.ResponseTooLarge(size, g.Limit, mcpHint)
}

// IsResponseTooLarge reports whether err is a size guard denial
func IsResponseTooLarge(err error) bool {
	return mcperrors.IsCode(err, mcperrors.CodeResponseTooLarge)
}

type ingressKey struct{}

type ingress struct {
	channel  Channel
	override string
}

// WithChannel records the ingress channel, and for REST the override
// header value, on ctx
func WithChannel(ctx context.Context, ch Channel, override string) context.Context {
	return context.WithValue(ctx, ingressKey{}, ingress{channel: ch, override: override})
}

// ChannelFromContext returns the recorded channel. Requests without one
// are treated as MCP, the stricter policy.
func ChannelFromContext(ctx context.Context) (Channel, string) {
	if in, ok := ctx.Value(ingressKey{}).(ingress); ok {
		return in.channel, in.override
	}
	return ChannelMCP, ""
}

// CheckContext applies Check using the channel recorded on ctx
func (g Guard) CheckContext(ctx context.Context, size int) error {
	ch, override := ChannelFromContext(ctx)
	return g.Check(size, ch, override)
}
