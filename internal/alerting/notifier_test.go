package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"flipwatch/internal/detect"
	"flipwatch/internal/market"
)

func sampleAlert() Alert {
	p := market.Period{Year: 2025, Month: time.March}
	return Alert{
		ID:        AlertID("94110", p, TierHot),
		RegionID:  "94110",
		Period:    p,
		Tier:      TierHot,
		Composite: 82.4,
		Status:    detect.StatusImproved,
		Reason:    "velocity leads with 33.1 of 82.4 points under balanced",
		Step:      2,
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if !strings.Contains(received["text"], "94110") || !strings.Contains(received["text"], "HOT") {
		t.Fatalf("message should carry region and tier: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), sampleAlert()); err == nil {
		t.Fatal("ok=false should error")
	}
}

func TestTelegramNotifierHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), sampleAlert()); err == nil {
		t.Fatal("HTTP 502 should error")
	}
}

func TestLogNotifierCarriesAlertFields(t *testing.T) {
	var buf strings.Builder
	logger := zerolog.New(&buf)

	notifier := NewLogNotifier(logger)
	if err := notifier.Notify(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("log notify should succeed: %v", err)
	}

	line := buf.String()
	for _, want := range []string{"94110", "HOT", "2025-03", "flip alert"} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line should contain %q: %s", want, line)
		}
	}
}

type flakyNotifier struct {
	err   error
	calls int
}

func (f *flakyNotifier) Notify(context.Context, Alert) error {
	f.calls++
	return f.err
}

func TestFanoutDeliversToAllChannels(t *testing.T) {
	broken := &flakyNotifier{err: errors.New("channel down")}
	healthy := &flakyNotifier{}

	fan := NewFanout(broken, healthy)
	err := fan.Notify(context.Background(), sampleAlert())
	if err == nil {
		t.Fatal("broken channel error should surface")
	}
	if broken.calls != 1 || healthy.calls != 1 {
		t.Fatalf("every channel should be attempted: broken=%d healthy=%d", broken.calls, healthy.calls)
	}

	if err := NewFanout(healthy, healthy).Notify(context.Background(), sampleAlert()); err != nil {
		t.Fatalf("all-healthy fanout should succeed: %v", err)
	}
}
