package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/blockscout-mcp-go/pkg/logging"
	"github.com/ajitpratap0/blockscout-mcp-go/pkg/protocol"
)

// StdioSessionID identifies the single session of a stdio transport
const StdioSessionID = "stdio"

// maxMessageSize bounds a single inbound line
const maxMessageSize = 10 << 20

// StdioTransport serves newline delimited JSON-RPC over a reader/writer
// pair, normally stdin and stdout
type StdioTransport struct {
	reader    io.Reader
	rawWriter *bufio.Writer
	handler   Handler
	logger    logging.Logger

	mutex        sync.Mutex // protects rawWriter, errorHandler and closed
	errorHandler ErrorHandler
	closed       bool

	inflight sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewStdioTransport creates a stdio transport. Nil reader or writer fall
// back to os.Stdin and os.Stdout.
func NewStdioTransport(reader io.Reader, writer io.Writer, handler Handler) *StdioTransport {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &StdioTransport{
		reader:    reader,
		rawWriter: bufio.NewWriter(writer),
		handler:   handler,
		logger:    logging.L().WithFields(logging.String("transport", "stdio")),
		done:      make(chan struct{}),
	}
}

// SetLogger replaces the transport logger
func (t *StdioTransport) SetLogger(logger logging.Logger) {
	t.logger = logger
}

// SetErrorHandler sets the handler for transport errors
func (t *StdioTransport) SetErrorHandler(handler ErrorHandler) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.errorHandler = handler
}

// ID implements Session
func (t *StdioTransport) ID() string { return StdioSessionID }

// Notify implements Session
func (t *StdioTransport) Notify(_ context.Context, method string, params interface{}) error {
	data, err := EncodeNotification(method, params)
	if err != nil {
		return err
	}
	return t.Send(data)
}

// Start reads messages until EOF, ctx cancellation or Stop
func (t *StdioTransport) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	scanner := bufio.NewScanner(t.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	scannerDone := make(chan struct{})

	g.Go(func() error {
		defer close(scannerDone)
		for scanner.Scan() {
			select {
			case <-gctx.Done():
				return nil
			case <-t.done:
				return nil
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			// the scanner reuses its buffer
			data := make([]byte, len(line))
			copy(data, line)

			if isHandshake(data) {
				t.processMessage(gctx, data)
				continue
			}

			t.inflight.Add(1)
			go func() {
				defer t.inflight.Done()
				t.processMessage(gctx, data)
			}()
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("stdio read: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-t.done:
		case <-scannerDone:
			return nil
		}
		// unblock Scan
		if closer, ok := t.reader.(io.Closer); ok {
			_ = closer.Close()
		}
		return nil
	})

	err := g.Wait()
	t.inflight.Wait()
	return err
}

// Stop halts reading, waits for in-flight requests and flushes output
func (t *StdioTransport) Stop(ctx context.Context) error {
	var flushErr error
	t.stopOnce.Do(func() {
		close(t.done)

		waited := make(chan struct{})
		go func() {
			t.inflight.Wait()
			close(waited)
		}()
		select {
		case <-waited:
		case <-ctx.Done():
		}

		t.mutex.Lock()
		t.closed = true
		flushErr = t.rawWriter.Flush()
		t.errorHandler = nil
		t.mutex.Unlock()
	})
	if flushErr != nil {
		return fmt.Errorf("stdio flush on stop: %w", flushErr)
	}
	return nil
}

// Send writes one message followed by a newline
func (t *StdioTransport) Send(data []byte) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.closed {
		return ErrTransportClosed
	}
	if _, err := t.rawWriter.Write(data); err != nil {
		return fmt.Errorf("stdio write: %w", err)
	}
	if err := t.rawWriter.WriteByte('\n'); err != nil {
		return fmt.Errorf("stdio write: %w", err)
	}
	if err := t.rawWriter.Flush(); err != nil {
		return fmt.Errorf("stdio flush: %w", err)
	}
	return nil
}

// isHandshake reports whether data belongs to the initialize handshake.
// Those messages run inline so requests pipelined behind them see an
// initialized session.
func isHandshake(data []byte) bool {
	var head struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return false
	}
	return head.Method == protocol.MethodInitialize || head.Method == protocol.MethodInitialized
}

func (t *StdioTransport) processMessage(ctx context.Context, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in message processing",
				logging.Any("panic", r), logging.String("stack", string(debug.Stack())))
			t.handleError(fmt.Errorf("panic processing message: %v", r))
		}
	}()

	resp := t.handler.HandleMessage(ctx, t, data)
	if resp == nil {
		return
	}
	if err := t.Send(resp); err != nil {
		t.handleError(fmt.Errorf("error sending response: %w", err))
	}
}

func (t *StdioTransport) handleError(err error) {
	t.mutex.Lock()
	handler := t.errorHandler
	t.mutex.Unlock()

	if handler != nil {
		handler(err)
		return
	}
	t.logger.Warn("stdio transport error", logging.ErrorField(err))
}
