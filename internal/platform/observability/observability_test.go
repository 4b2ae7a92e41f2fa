package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/biccshop/checkout/internal/platform/auth"
	"github.com/biccshop/checkout/internal/platform/requestctx"
)

func TestParseCloudTraceContext(t *testing.T) {
	sc, ok := parseCloudTraceContext("105445aa7843bc8bf206b12000100000/1;o=1")
	if !ok {
		t.Fatalf("expected header to parse")
	}
	if sc.TraceID().String() != "105445aa7843bc8bf206b12000100000" || !sc.IsSampled() || !sc.IsRemote() {
		t.Fatalf("unexpected span context %#v", sc)
	}
	if got := formatCloudTraceContext(sc); got != "105445aa7843bc8bf206b12000100000/1;o=1" {
		t.Fatalf("unexpected round trip %q", got)
	}
	for _, header := range []string{"", "abc/1", "105445aa7843bc8bf206b12000100000", "105445aa7843bc8bf206b12000100000/zz;o=1"} {
		if _, ok := parseCloudTraceContext(header); ok {
			t.Fatalf("expected %q to be rejected", header)
		}
	}
}

func TestRequestLoggerRecordsCheckoutFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router := chi.NewRouter()
	router.Use(InjectLoggerMiddleware(zap.New(core)), RequestLoggerMiddleware(), RecoveryMiddleware(nil))
	router.With(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), &auth.Identity{UID: "cust-1"})))
		})
	}, RecordCustomer).Get("/checkout/sessions/{sessionID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/checkout/sessions/s-42", nil))

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one completion log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["customer_id"] != "cust-1" || fields["checkout_session_id"] != "s-42" || fields["route"] != "/checkout/sessions/{sessionID}" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if entries[0].Level != zapcore.WarnLevel || fields["status"] != int64(http.StatusNotFound) {
		t.Fatalf("expected 404 logged at warn, got %v %v", entries[0].Level, fields["status"])
	}
}

func TestRecoveryMiddlewareWritesEnvelope(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/checkout/sessions", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatalf("expected panic to be logged")
	}
}

func TestEventLoggerPrefersRequestLogger(t *testing.T) {
	baseCore, baseLogs := observer.New(zapcore.InfoLevel)
	reqCore, reqLogs := observer.New(zapcore.InfoLevel)
	log := EventLogger(zap.New(baseCore))

	log(context.Background(), "checkout_session_started", map[string]any{"sessionId": "s-1"})
	ctx := requestctx.WithLogger(context.Background(), zap.New(reqCore))
	log(ctx, "checkout_submission_failed", map[string]any{"sessionId": "s-1", "error": "down"})

	if baseLogs.Len() != 1 || baseLogs.All()[0].ContextMap()["sessionId"] != "s-1" {
		t.Fatalf("expected base logger to receive the first event, got %v", baseLogs.All())
	}
	entries := reqLogs.All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel || entries[0].ContextMap()["event"] != "checkout_submission_failed" {
		t.Fatalf("expected failed event at warn on request logger, got %v", entries)
	}
}
