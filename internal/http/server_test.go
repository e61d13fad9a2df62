package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hongyan1215/money/internal/amqp"
	"github.com/hongyan1215/money/internal/bot"
	"github.com/hongyan1215/money/internal/core"
	applog "github.com/hongyan1215/money/internal/log"
	"github.com/hongyan1215/money/internal/services"
	"github.com/hongyan1215/money/internal/storage"
)

type fakeEventPublisher struct {
	events []*amqp.InboundEventMessage
	err    error
}

func (f *fakeEventPublisher) PublishInboundEvent(_ context.Context, msg *amqp.InboundEventMessage) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, msg)
	return nil
}

type stubParser struct {
	intent core.Intent
	err    error
}

func (p *stubParser) ParseText(_ context.Context, _ string) (core.Intent, error) {
	return p.intent, p.err
}

func (p *stubParser) ParseReceipt(_ context.Context, _ []byte) (core.Intent, error) {
	return p.intent, p.err
}

func newTestDispatcher(t *testing.T) *bot.Dispatcher {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "money.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return bot.NewDispatcher(
		services.NewLedgerService(repo, nil),
		services.NewMatcherService(repo),
		services.NewMutationService(repo),
		services.NewEraserService(repo),
		services.NewStatsService(repo),
		services.NewBudgetService(repo),
	)
}

func newTestServer(t *testing.T, events EventPublisher, parser *stubParser) *Server {
	t.Helper()
	logger := applog.New(applog.DefaultConfig())
	srv := NewServer(":0", logger, events, parser, newTestDispatcher(t))
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func postWebhook(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhook_QueueMode(t *testing.T) {
	events := &fakeEventPublisher{}
	srv := newTestServer(t, events, &stubParser{})

	rec := postWebhook(t, srv, `{"owner":"u1","event_id":"evt-1","text":"lunch 150"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202; body %s", rec.Code, rec.Body.String())
	}

	var resp webhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "queued" || resp.EventID != "evt-1" {
		t.Errorf("response = %+v", resp)
	}
	if len(events.events) != 1 || events.events[0].Text != "lunch 150" {
		t.Errorf("published events = %+v", events.events)
	}
}

func TestWebhook_QueueUnavailable(t *testing.T) {
	events := &fakeEventPublisher{err: errors.New("broker down")}
	srv := newTestServer(t, events, &stubParser{})

	rec := postWebhook(t, srv, `{"owner":"u1","text":"lunch 150"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestWebhook_InlineMode(t *testing.T) {
	parser := &stubParser{intent: core.RecordIntent{Entries: []core.EntryDraft{{
		Item: "lunch", Amount: 150, Category: core.Food, Kind: core.Expense,
	}}}}
	srv := newTestServer(t, nil, parser)

	rec := postWebhook(t, srv, `{"owner":"u1","event_id":"evt-1","text":"lunch 150"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	var resp webhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp.Reply, "lunch") {
		t.Errorf("reply = %q, want record confirmation", resp.Reply)
	}
}

func TestWebhook_InlineParseFailure(t *testing.T) {
	parser := &stubParser{err: errors.New("model unavailable")}
	srv := newTestServer(t, nil, parser)

	rec := postWebhook(t, srv, `{"owner":"u1","text":"???"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestWebhook_Validation(t *testing.T) {
	srv := newTestServer(t, &fakeEventPublisher{}, &stubParser{})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", "not json", http.StatusBadRequest},
		{"missing owner", `{"text":"hi"}`, http.StatusBadRequest},
		{"missing text and image", `{"owner":"u1"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postWebhook(t, srv, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestWebhook_GeneratesEventID(t *testing.T) {
	events := &fakeEventPublisher{}
	srv := newTestServer(t, events, &stubParser{})

	rec := postWebhook(t, srv, `{"owner":"u1","text":"lunch 150"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var resp webhookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.EventID == "" {
		t.Error("server did not assign an event id")
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, &fakeEventPublisher{}, &stubParser{})

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < requestsPerMinute; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d denied inside the window", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request over the cap was allowed")
	}
	// A different client has its own window.
	if !rl.allow("10.0.0.2") {
		t.Error("independent client denied")
	}
}

func TestRateLimit_Returns429(t *testing.T) {
	events := &fakeEventPublisher{}
	srv := newTestServer(t, events, &stubParser{})

	var last int
	for i := 0; i < requestsPerMinute+1; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook",
			bytes.NewBufferString(fmt.Sprintf(`{"owner":"u1","event_id":"evt-%d","text":"hi"}`, i)))
		req.RemoteAddr = "10.0.0.9:1234"
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("final status = %d, want 429", last)
	}
}
