package notifier

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/qgenlab/qgen/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleSummary() model.RunSummary {
	return model.RunSummary{
		Mode:      "chain",
		Subject:   "biology",
		Topic:     "Cells",
		Subtopic:  "Cell membrane",
		Model:     "gpt-4o-mini",
		Requested: 6,
		Generated: 6,
		Usage:     model.Usage{TotalTokens: 4200},
		Duration:  95 * time.Second,
	}
}

func newTestNotifier(url string, client *http.Client) *SlackNotifier {
	n := NewSlackNotifier(url, client, discardLogger())
	n.retryDelay = 10 * time.Millisecond
	return n
}

func TestSlackNotifier_Success(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := newTestNotifier(srv.URL, srv.Client())
	if err := n.Notify(sampleSummary()); err != nil {
		t.Fatalf("Notify() = %v, want nil", err)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	header := payload.Blocks[0]
	if header.Text.Text != "✅ Biology: Cell membrane" {
		t.Errorf("header text = %q", header.Text.Text)
	}
	if got := payload.Blocks[1].Fields[0].Text; got != "*Mode:*\nChain" {
		t.Errorf("mode field = %q", got)
	}
	if got := payload.Blocks[2].Fields[0].Text; got != "*Generated:*\n6 of 6 (0 failed)" {
		t.Errorf("generated field = %q", got)
	}
	if got := payload.Blocks[2].Fields[1].Text; got != "*Tokens:*\n4200 in 1m35s" {
		t.Errorf("tokens field = %q", got)
	}
}

func TestSlackNotifier_ServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := newTestNotifier(srv.URL, srv.Client())
	if err := n.Notify(sampleSummary()); err == nil {
		t.Error("expected error when slack keeps failing, got nil")
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 HTTP calls (initial + retry), got %d", c)
	}
}

func TestSlackNotifier_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := newTestNotifier(srv.URL, srv.Client())
	if err := n.Notify(sampleSummary()); err == nil {
		t.Error("expected error on 400, got nil")
	}
	if c := calls.Load(); c != 1 {
		t.Errorf("expected 1 HTTP call, got %d", c)
	}
}

func TestSlackNotifier_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := calls.Add(1)
		if c == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
		} else {
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	n := newTestNotifier(srv.URL, srv.Client())
	if err := n.Notify(sampleSummary()); err != nil {
		t.Fatalf("expected nil after retry, got %v", err)
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 HTTP calls (initial + retry), got %d", c)
	}
}

func TestSlackNotifier_PayloadFormat(t *testing.T) {
	s := sampleSummary()
	s.Generated = 4
	s.Failed = 2
	s.Errors = []string{"Apply #1: bad shape", "Apply #2: no JSON"}
	s.OutputPath = "data/biology/results/run1/output.json"

	payload := buildPayload(s)

	if len(payload.Blocks) != 6 {
		t.Fatalf("expected 6 blocks, got %d", len(payload.Blocks))
	}
	if !strings.HasPrefix(payload.Blocks[0].Text.Text, "⚠️") {
		t.Errorf("partial run should be flagged, header = %q", payload.Blocks[0].Text.Text)
	}
	if payload.Blocks[3].Type != "section" || !strings.Contains(payload.Blocks[3].Text.Text, "Apply #2: no JSON") {
		t.Errorf("block[3] should list failures: %+v", payload.Blocks[3])
	}
	if payload.Blocks[4].Type != "context" || len(payload.Blocks[4].Elements) != 1 {
		t.Errorf("block[4] should be the output path context")
	}
	if payload.Blocks[5].Type != "divider" {
		t.Errorf("block[5] type = %q, want divider", payload.Blocks[5].Type)
	}
}

func TestSendTestMessage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := SendTestMessage(newTestNotifier(srv.URL, srv.Client())); err != nil {
		t.Fatalf("SendTestMessage() = %v", err)
	}
	if c := calls.Load(); c != 1 {
		t.Errorf("expected 1 HTTP call, got %d", c)
	}
}
