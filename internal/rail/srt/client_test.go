package srt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hanrail/hanrail/internal/rail"
	"github.com/hanrail/hanrail/internal/stations"
)

const succEnvelope = `"resultMap":[{"strResult":"SUCC"}]`

// fakeBackend serves the subset of the SRT protocol the client exercises.
type fakeBackend struct {
	t *testing.T

	loginFails      bool
	reserveSoldOut  bool
	reserveRequests int
}

func (f *fakeBackend) handler(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case pathLogin:
		if f.loginFails {
			fmt.Fprint(w, `{"MSG":"존재하지않는 회원입니다."}`)
			return
		}
		fmt.Fprint(w, `{"userMap":{"MB_CRD_NO":"1234567890","CUST_NM":"홍길동","MBL_PHONE":"01012345678"}}`)

	case pathLogout:
		fmt.Fprint(w, `{}`)

	case pathSearch:
		fmt.Fprintf(w, `{%s,"outDataSets":{"dsOutput1":[
			{"stlbTrnClsfCd":"17","trnNo":"0301","dptDt":"20260901","dptTm":"080000",
			 "dptRsStnCd":"0551","dptStnRunOrdr":"1","dptStnConsOrdr":"1",
			 "arvDt":"20260901","arvTm":"103000","arvRsStnCd":"0020",
			 "arvStnRunOrdr":"8","arvStnConsOrdr":"8",
			 "gnrmRsvPsbStr":"예약가능","sprmRsvPsbStr":"매진",
			 "rsvWaitPsbCdNm":"-","rsvWaitPsbCd":"-1"},
			{"stlbTrnClsfCd":"17","trnNo":"0305","dptDt":"20260901","dptTm":"100000",
			 "dptRsStnCd":"0551","dptStnRunOrdr":"1","dptStnConsOrdr":"1",
			 "arvDt":"20260901","arvTm":"123000","arvRsStnCd":"0020",
			 "arvStnRunOrdr":"8","arvStnConsOrdr":"8",
			 "gnrmRsvPsbStr":"매진","sprmRsvPsbStr":"매진",
			 "rsvWaitPsbCdNm":"가능","rsvWaitPsbCd":"9"},
			{"stlbTrnClsfCd":"00","trnNo":"0101","dptDt":"20260901","dptTm":"090000",
			 "dptRsStnCd":"0551","dptStnRunOrdr":"1","dptStnConsOrdr":"1",
			 "arvDt":"20260901","arvTm":"113000","arvRsStnCd":"0020",
			 "arvStnRunOrdr":"8","arvStnConsOrdr":"8",
			 "gnrmRsvPsbStr":"예약가능","sprmRsvPsbStr":"예약가능",
			 "rsvWaitPsbCdNm":"-","rsvWaitPsbCd":"-1"}
		]}}`, succEnvelope)

	case pathReserve:
		f.reserveRequests++
		if f.reserveSoldOut {
			fmt.Fprint(w, `{"resultMap":[{"strResult":"FAIL","msgCd":"S111","msgTxt":"잔여석없음"}]}`)
			return
		}
		fmt.Fprintf(w, `{%s,"reservListMap":[{"pnrNo":"000012345"}]}`, succEnvelope)

	case pathTickets:
		fmt.Fprintf(w, `{%s,
			"trainListMap":[{"pnrNo":"000012345","rcvdAmt":"51800","tkSpecNum":"1","seatNum":"1"}],
			"payListMap":[{"stlbTrnClsfCd":"17","trnNo":"0301","dptDt":"20260901","dptTm":"080000",
				"dptRsStnCd":"0551","arvTm":"103000","arvRsStnCd":"0020",
				"iseLmtDt":"20260901","iseLmtTm":"220000","stlFlg":"N"}]}`, succEnvelope)

	case pathTicketInfo:
		fmt.Fprintf(w, `{%s,"trainListMap":[{"scarNo":"2","seatNo":"3A","psrmClCd":"1",
			"dcntKndCd":"000","rcvdAmt":"51800","stdrPrc":"51800","dcntPrc":"0"}]}`, succEnvelope)

	default:
		f.t.Errorf("unexpected request to %s", r.URL.Path)
		http.NotFound(w, r)
	}
}

// passGate fakes the queue gate: every opcode passes immediately.
func passGate(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opcode := r.URL.Query().Get("opcode")
		fmt.Fprintf(w, "NetFunnel.gControl.result='%s:200:key=GATEKEY&nwait=0'", opcode)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, backend *fakeBackend) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(backend.handler))
	t.Cleanup(srv.Close)

	return New(Options{
		ID:       "1234567890",
		Password: "password",
		Catalog:  stations.SRT(),
		BaseURL:  srv.URL,
		GateURL:  passGate(t).URL,
		Now: func() time.Time {
			return time.Date(2026, 8, 30, 10, 0, 0, 0, rail.KST)
		},
	})
}

func TestLoginSuccess(t *testing.T) {
	client := newTestClient(t, &fakeBackend{t: t})

	session, err := client.Login(context.Background())
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !session.Authenticated {
		t.Error("session not authenticated after login")
	}
	if session.MembershipNumber != "1234567890" || session.Name != "홍길동" {
		t.Errorf("session = %+v, expected parsed user fields", session)
	}
}

func TestLoginRejected(t *testing.T) {
	client := newTestClient(t, &fakeBackend{t: t, loginFails: true})

	_, err := client.Login(context.Background())
	var authErr *rail.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Login = %v, expected AuthError", err)
	}
	if authErr.Message == "" {
		t.Error("AuthError carries no backend message")
	}
	if client.Session().Authenticated {
		t.Error("session authenticated after rejected login")
	}
}

func TestSearchFilters(t *testing.T) {
	client := newTestClient(t, &fakeBackend{t: t})

	base := rail.Query{Departure: "수서", Arrival: "부산", Date: "20260901"}

	// The base filter keeps only SRT runs with an open seat.
	schedules, err := client.Search(context.Background(), base)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(schedules) != 1 || schedules[0].TrainNumber() != "0301" {
		t.Fatalf("Search = %d runs, expected only 0301", len(schedules))
	}

	// Widening flags OR in the sold-out run.
	widened := base
	widened.IncludeSoldOut = true
	schedules, err = client.Search(context.Background(), widened)
	if err != nil {
		t.Fatalf("Search widened: %v", err)
	}
	if len(schedules) != 2 {
		t.Errorf("widened Search = %d runs, expected 2", len(schedules))
	}

	// Standby widening keeps the run with the open waitlist.
	standby := base
	standby.IncludeStandby = true
	schedules, err = client.Search(context.Background(), standby)
	if err != nil {
		t.Fatalf("Search standby: %v", err)
	}
	if len(schedules) != 2 || schedules[1].TrainNumber() != "0305" {
		t.Errorf("standby Search = %d runs, expected 0301 and 0305", len(schedules))
	}
}

func TestSearchTimeLimit(t *testing.T) {
	client := newTestClient(t, &fakeBackend{t: t})

	q := rail.Query{
		Departure: "수서", Arrival: "부산", Date: "20260901",
		TimeLimit:      "090000",
		IncludeSoldOut: true,
	}
	schedules, err := client.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, sched := range schedules {
		if sched.DepartureTime() > "090000" {
			t.Errorf("run %s departs after the limit", sched.TrainNumber())
		}
	}
}

func TestReserveRoundTrip(t *testing.T) {
	client := newTestClient(t, &fakeBackend{t: t})
	ctx := context.Background()

	if _, err := client.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}
	schedules, err := client.Search(ctx, rail.Query{Departure: "수서", Arrival: "부산", Date: "20260901"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	reservation, err := client.Reserve(ctx, schedules[0], rail.Adults(1), rail.GeneralFirst)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if reservation.Number() != "000012345" {
		t.Errorf("reservation number = %q, expected 000012345", reservation.Number())
	}

	// The write re-fetches the canonical record; a fresh lookup agrees.
	listed, err := client.Reservations(ctx)
	if err != nil {
		t.Fatalf("Reservations: %v", err)
	}
	if len(listed) != 1 || listed[0].Number() != reservation.Number() {
		t.Errorf("listing disagrees with reserve result: %+v", listed)
	}
}

func TestReserveSoldOutKeepsSession(t *testing.T) {
	backend := &fakeBackend{t: t, reserveSoldOut: true}
	client := newTestClient(t, backend)
	ctx := context.Background()

	if _, err := client.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}
	schedules, err := client.Search(ctx, rail.Query{Departure: "수서", Arrival: "부산", Date: "20260901"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	_, err = client.Reserve(ctx, schedules[0], rail.Adults(1), rail.GeneralFirst)
	if !errors.Is(err, rail.ErrSoldOut) {
		t.Fatalf("Reserve = %v, expected ErrSoldOut", err)
	}
	if !client.Session().Authenticated {
		t.Error("sold-out contention invalidated the session")
	}
}

func TestReserveRequiresLogin(t *testing.T) {
	backend := &fakeBackend{t: t}
	client := newTestClient(t, backend)

	sched := &Schedule{TrainTypeName: "SRT", TrainNo: "0301"}
	_, err := client.Reserve(context.Background(), sched, rail.Adults(1), rail.GeneralFirst)
	if !errors.Is(err, rail.ErrNotLoggedIn) {
		t.Errorf("Reserve = %v, expected ErrNotLoggedIn", err)
	}
	if backend.reserveRequests != 0 {
		t.Errorf("unauthenticated reserve hit the network %d times", backend.reserveRequests)
	}
}

func TestReserveRejectsForeignSchedule(t *testing.T) {
	client := newTestClient(t, &fakeBackend{t: t})
	if _, err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}

	sched := &Schedule{TrainTypeName: "KTX", TrainNo: "0101"}
	if _, err := client.Reserve(context.Background(), sched, rail.Adults(1), rail.GeneralFirst); err == nil {
		t.Error("Reserve accepted a non-SRT run")
	}
}

func TestClassify(t *testing.T) {
	client := newTestClient(t, &fakeBackend{t: t})
	if _, err := client.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}

	tests := []struct {
		message  string
		expected error
	}{
		{"잔여석없음", rail.ErrSoldOut},
		{"매진되었습니다", rail.ErrSoldOut},
		{"중복된 예약입니다", rail.ErrDuplicate},
	}
	for _, tc := range tests {
		if err := client.classify("X", tc.message); !errors.Is(err, tc.expected) {
			t.Errorf("classify(%q) = %v, expected %v", tc.message, err, tc.expected)
		}
	}

	// A server-detected session loss both classifies and marks the
	// session anonymous.
	if err := client.classify("X", "로그인 후 사용하십시오"); !errors.Is(err, rail.ErrNotLoggedIn) {
		t.Errorf("classify(login message) = %v, expected ErrNotLoggedIn", err)
	}
	if client.Session().Authenticated {
		t.Error("session still authenticated after login-required failure")
	}
}

func TestLoginModeClassification(t *testing.T) {
	tests := []struct {
		id       string
		expected string
	}{
		{"user@example.com", "2"},
		{"010-1234-5678", "3"},
		{"1234567890", "1"},
	}
	for _, tc := range tests {
		if got := loginMode(tc.id); got != tc.expected {
			t.Errorf("loginMode(%q) = %q, expected %q", tc.id, got, tc.expected)
		}
	}
}
