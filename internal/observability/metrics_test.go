package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/ttcp/internal/protocol"
	"github.com/danmuck/ttcp/internal/protocol/frame"
	"github.com/danmuck/ttcp/internal/protocol/session"
	"github.com/danmuck/ttcp/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("node-http", "GET", "/health", 200, 12*time.Millisecond)
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("node-http", "GET", "/health", "200")); got != 1 {
		t.Fatalf("unexpected request count %v", got)
	}
}

func TestRecorderSuccessfulSession(t *testing.T) {
	testlog.Start(t)
	node := "node-ok"
	r := NewRecorder(node, 4)
	role := session.RoleTransmitter

	r.SessionStarted("s1", role)
	if got := testutil.ToFloat64(activeSessions.WithLabelValues(node, "transmit")); got != 1 {
		t.Fatalf("expected one active session, got %v", got)
	}
	for i := int32(1); i <= 3; i++ {
		r.FrameCompleted(session.FrameEvent{
			SessionID: "s1",
			Role:      role,
			Iteration: i,
			Bytes:     frame.LengthPrefixLen + 100,
			RTT:       time.Millisecond,
		})
	}
	rec, ok := r.Get("s1")
	if !ok || rec.Frames != 3 || rec.PayloadBytes != 300 || rec.Outcome != OutcomeRunning {
		t.Fatalf("unexpected running record %+v", rec)
	}
	if r.Running() != 1 {
		t.Fatalf("expected one running session")
	}

	r.SessionClosed(session.Result{
		SessionID: "s1",
		Role:      role,
		Remote:    "127.0.0.1:12345",
		Stats: session.Stats{
			Descriptor:    frame.Descriptor{RepetitionCount: 3, PayloadLength: 100},
			Frames:        3,
			PayloadBytes:  300,
			BytesSent:     8 + 3*104,
			BytesReceived: 3 * 4,
			Elapsed:       time.Second,
		},
	})
	rec, _ = r.Get("s1")
	if rec.Outcome != OutcomeOK || rec.Count != 3 || rec.Length != 100 || rec.Remote == "" || rec.Error != "" {
		t.Fatalf("unexpected closed record %+v", rec)
	}
	if got := testutil.ToFloat64(activeSessions.WithLabelValues(node, "transmit")); got != 0 {
		t.Fatalf("expected no active sessions, got %v", got)
	}
	if got := testutil.ToFloat64(framesTotal.WithLabelValues(node, "transmit")); got != 3 {
		t.Fatalf("unexpected frames total %v", got)
	}
	if got := testutil.ToFloat64(sessionsTotal.WithLabelValues(node, "transmit", OutcomeOK)); got != 1 {
		t.Fatalf("unexpected sessions total %v", got)
	}
	if got := testutil.ToFloat64(bytesTotal.WithLabelValues(node, "transmit", "sent")); got != 320 {
		t.Fatalf("unexpected sent bytes %v", got)
	}
}

func TestRecorderFailedSessionLabelsKind(t *testing.T) {
	testlog.Start(t)
	node := "node-fail"
	r := NewRecorder(node, 4)
	r.SessionStarted("s2", session.RoleReceiver)
	r.SessionClosed(session.Result{
		SessionID: "s2",
		Role:      session.RoleReceiver,
		Err:       protocol.ProtocolError("read frame", "frame length mismatch"),
	})
	rec, _ := r.Get("s2")
	if rec.Outcome != "protocol" || rec.Error == "" {
		t.Fatalf("unexpected failed record %+v", rec)
	}
	if got := testutil.ToFloat64(sessionsTotal.WithLabelValues(node, "receive", "protocol")); got != 1 {
		t.Fatalf("unexpected failure count %v", got)
	}
}

func TestRecorderEvictsOldestFinished(t *testing.T) {
	testlog.Start(t)
	r := NewRecorder("node-evict", 2)
	r.SessionStarted("a", session.RoleReceiver)
	r.SessionClosed(session.Result{SessionID: "a", Role: session.RoleReceiver})
	r.SessionStarted("b", session.RoleReceiver)
	r.SessionStarted("c", session.RoleReceiver)

	if _, ok := r.Get("a"); ok {
		t.Fatalf("expected oldest finished record evicted")
	}
	if len(r.List()) != 2 {
		t.Fatalf("unexpected record count %d", len(r.List()))
	}
	// running sessions are never evicted
	r.SessionStarted("d", session.RoleReceiver)
	for _, id := range []string{"b", "c", "d"} {
		if _, ok := r.Get(id); !ok {
			t.Fatalf("running session %s evicted", id)
		}
	}
}

func TestRecorderIgnoresBlankID(t *testing.T) {
	testlog.Start(t)
	r := NewRecorder("node-blank", 2)
	r.SessionStarted(" ", session.RoleTransmitter)
	r.SessionClosed(session.Result{Role: session.RoleTransmitter})
	if len(r.List()) != 0 {
		t.Fatalf("blank ids should not be stored")
	}
}

func TestOutcome(t *testing.T) {
	testlog.Start(t)
	cases := map[string]error{
		OutcomeOK:    nil,
		"connection": protocol.ConnectionError("dial", errors.New("refused")),
		"io":         protocol.IOError("read", io.ErrClosedPipe),
		"unknown":    errors.New("plain"),
	}
	for want, err := range cases {
		if got := Outcome(err); got != want {
			t.Fatalf("Outcome(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestAdminMiddlewareRecordsRouteTemplates(t *testing.T) {
	testlog.Start(t)
	node := "node-mw"
	r := gin.New()
	r.Use(AdminMiddleware(node, zerolog.Nop()))
	r.GET("/sessions/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/sessions/a", "/sessions/b", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues(node, "GET", "/sessions/:id", "200")); got != 2 {
		t.Fatalf("unexpected templated route count %v", got)
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues(node, "GET", "unmatched", "404")); got != 1 {
		t.Fatalf("unexpected unmatched count %v", got)
	}
}
