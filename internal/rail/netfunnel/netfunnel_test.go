package netfunnel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hanrail/hanrail/internal/rail"
)

// fakeClock is an adjustable clock for cache-aging tests.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

// gateServer fakes the queue gate. Responses are keyed by opcode.
type gateServer struct {
	t        *testing.T
	dialect  Dialect
	requests int

	// enterStatus lets tests start in the waiting state; checks always
	// pass.
	enterStatus    string
	completeStatus string
}

func (g *gateServer) handler(w http.ResponseWriter, r *http.Request) {
	g.requests++

	var status string
	opcode := r.URL.Query().Get("opcode")
	switch opcode {
	case opEnter:
		status = g.enterStatus
	case opCheck:
		status = statusPass
	case opComplete:
		status = g.completeStatus
	default:
		g.t.Errorf("unexpected opcode %q", opcode)
		status = "500"
	}

	payload := fmt.Sprintf("%s:key=TESTKEY&nwait=7", status)
	if g.dialect == DialectScript {
		payload = fmt.Sprintf("NetFunnel.gControl.result='%s:%s'", opcode, payload)
	}
	fmt.Fprint(w, payload)
}

func newGateClient(t *testing.T, g *gateServer, clock *fakeClock, notify func(int)) (*Client, *httptest.Server) {
	t.Helper()
	if g.enterStatus == "" {
		g.enterStatus = statusPass
	}
	if g.completeStatus == "" {
		g.completeStatus = statusPass
	}
	srv := httptest.NewServer(http.HandlerFunc(g.handler))
	t.Cleanup(srv.Close)

	client := New(Options{
		URL:       srv.URL,
		ServiceID: "service_1",
		ActionID:  "act_10",
		Dialect:   g.dialect,
		TTL:       48 * time.Second,
		Notify:    notify,
		Now:       clock.Now,
	})
	return client, srv
}

func TestRunCachesKeyWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	gate := &gateServer{t: t, dialect: DialectScript}
	client, _ := newGateClient(t, gate, clock, nil)

	key, err := client.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if key != "TESTKEY" {
		t.Fatalf("key = %q, expected TESTKEY", key)
	}
	afterFirst := gate.requests

	clock.Advance(10 * time.Second)
	key2, err := client.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if key2 != key {
		t.Errorf("cached key = %q, expected %q", key2, key)
	}
	if gate.requests != afterFirst {
		t.Errorf("cache hit made %d network calls, expected none", gate.requests-afterFirst)
	}
}

func TestRunRefreshesAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	gate := &gateServer{t: t, dialect: DialectScript}
	client, _ := newGateClient(t, gate, clock, nil)

	if _, err := client.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	afterFirst := gate.requests

	clock.Advance(49 * time.Second)
	if _, err := client.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if gate.requests == afterFirst {
		t.Error("expired cache served without a fresh handshake")
	}
}

func TestRunSurfacesQueuePosition(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	var positions []int
	gate := &gateServer{t: t, dialect: DialectPlain, enterStatus: statusWait}
	client, _ := newGateClient(t, gate, clock, func(n int) { positions = append(positions, n) })

	key, err := client.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if key != "TESTKEY" {
		t.Errorf("key = %q, expected TESTKEY", key)
	}
	if len(positions) == 0 || positions[0] != 7 {
		t.Errorf("positions = %v, expected at least one report of 7", positions)
	}
}

func TestRunFailedCompletionClearsCache(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	gate := &gateServer{t: t, dialect: DialectScript, completeStatus: statusWait}
	client, _ := newGateClient(t, gate, clock, nil)

	_, err := client.Run(context.Background())
	var queueErr *rail.QueueError
	if !errors.As(err, &queueErr) {
		t.Fatalf("Run = %v, expected QueueError", err)
	}

	// The cache must be empty: a following Run goes back to the network.
	before := gate.requests
	gate.completeStatus = statusPass
	if _, err := client.Run(context.Background()); err != nil {
		t.Fatalf("recovery Run: %v", err)
	}
	if gate.requests == before {
		t.Error("Run after failure served from cache")
	}
}

func TestRunAcceptsAlreadyCompleted(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	gate := &gateServer{t: t, dialect: DialectPlain, completeStatus: statusAlreadyCompleted}
	client, _ := newGateClient(t, gate, clock, nil)

	if _, err := client.Run(context.Background()); err != nil {
		t.Errorf("Run with already-completed status: %v", err)
	}
}

func TestParseDialects(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		body    string
		status  string
		key     string
		wantErr bool
	}{
		{"script", DialectScript, "NetFunnel.gControl.result='5101:200:key=K1&nwait=3'", "200", "K1", false},
		{"plain", DialectPlain, "201:key=K2&nwait=12", "201", "K2", false},
		{"script garbage", DialectScript, "<html>error</html>", "", "", true},
		{"plain garbage", DialectPlain, "no-colon-here", "", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := New(Options{Dialect: tc.dialect})
			fields, err := c.parse(tc.body)
			if tc.wantErr {
				if err == nil {
					t.Errorf("parse = %v, expected error", fields)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if fields["status"] != tc.status || fields["key"] != tc.key {
				t.Errorf("parse = status %q key %q, expected %q/%q",
					fields["status"], fields["key"], tc.status, tc.key)
			}
		})
	}
}
