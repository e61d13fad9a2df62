package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hongyan1215/money/internal/amqp"
	"github.com/hongyan1215/money/internal/bot"
	"github.com/hongyan1215/money/internal/intent"
	applog "github.com/hongyan1215/money/internal/log"
)

// EventPublisher hands an inbound event to the queue for asynchronous
// processing.
type EventPublisher interface {
	PublishInboundEvent(ctx context.Context, msg *amqp.InboundEventMessage) error
}

// Server accepts webhook events from the chat gateway. With an event
// publisher configured it enqueues and returns 202; without one it
// parses and dispatches inline and returns the reply, which keeps local
// development free of a broker.
type Server struct {
	http.Server

	events     EventPublisher
	parser     intent.Parser
	dispatcher *bot.Dispatcher

	limiter      *rateLimiter
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware. events may be nil (inline mode);
// parser and dispatcher are only consulted in inline mode.
func NewServer(addr string, logger *applog.Logger, events EventPublisher, parser intent.Parser, dispatcher *bot.Dispatcher) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:           addr,
			Handler:        applog.Middleware(logger)(mux),
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 16,
		},
		events:     events,
		parser:     parser,
		dispatcher: dispatcher,
		limiter:    newRateLimiter(),
	}

	mux.HandleFunc("POST /webhook", s.withRateLimit(s.handleWebhook))
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	return s
}

// Shutdown stops the server and its cleanup goroutines exactly once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
