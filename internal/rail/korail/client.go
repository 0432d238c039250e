// Package korail implements the rail.Client capability against the Korail
// mobile-app backend. It differs from the SRT protocol in three ways that
// matter here: the login password is encrypted under a per-session key
// fetched in a pre-login handshake, failures carry stable machine codes,
// and most reads are GET requests.
package korail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hanrail/hanrail/internal/rail"
	"github.com/hanrail/hanrail/internal/rail/cipher"
	"github.com/hanrail/hanrail/internal/rail/netfunnel"
)

const (
	defaultBaseURL = "https://smart.letskorail.com:443/classes/com.korail.mobile"
	defaultGateURL = "http://nf.letskorail.com/ts.wseq"

	userAgent = "Dalvik/2.1.0 (Linux; U; Android 14; SM-S911U1 Build/UP1A.231005.007)"

	device  = "AD"
	version = "240531001"
	appKey  = "korail1234567890"

	// Korail's gate accepts keys slightly longer than SRT's; still well
	// below the server-declared expiry.
	admissionTTL = 50 * time.Second
)

const (
	pathLogin           = ".login.Login"
	pathLogout          = ".common.logout"
	pathSearch          = ".seatMovie.ScheduleView"
	pathReserve         = ".certification.TicketReservation"
	pathCancel          = ".reservationCancel.ReservationCancelChk"
	pathTicketSeat      = ".refunds.SelTicketInfo"
	pathTicketList      = ".myTicket.MyTicketList"
	pathReservationList = ".reservation.ReservationView"
	pathPay             = ".payment.ReservationPayment"
	pathRefund          = ".refunds.RefundsRequest"
	pathCode            = ".common.code.do"
)

var (
	emailRegex = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)
	phoneRegex = regexp.MustCompile(`^(\d{3})-(\d{3,4})-(\d{4})$`)
)

// errorCodes is the static code→kind table for failed envelopes.
var errorCodes = map[string]error{
	"P058":      rail.ErrNotLoggedIn,
	"P100":      rail.ErrNoResults,
	"WRG000000": rail.ErrNoResults,
	"WRD000061": rail.ErrNoResults,
	"WRT300005": rail.ErrNoResults,
	"IRT010110": rail.ErrSoldOut,
	"ERR211161": rail.ErrSoldOut,
}

// Options configures a Client.
type Options struct {
	ID       string // membership number, email or phone number
	Password string

	// QueueNotify receives queue positions while waiting at the
	// admission gate. May be nil.
	QueueNotify func(waiting int)

	BaseURL    string
	GateURL    string
	HTTPClient *http.Client
	Now        func() time.Time
}

// Client owns one authenticated conversation with the Korail backend. Not
// safe for concurrent use.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	gate    *netfunnel.Client

	id, password string
	baseURL      string
	now          func() time.Time

	// idx identifies the session encryption key negotiated before login;
	// the server needs it to decrypt the credential.
	idx string

	session rail.Session
}

// New creates a Korail client.
func New(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	gateURL := opts.GateURL
	if gateURL == "" {
		gateURL = defaultGateURL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, _ := cookiejar.New(nil)
		httpClient = &http.Client{Timeout: 15 * time.Second, Jar: jar}
	}

	gate := netfunnel.New(netfunnel.Options{
		URL:       gateURL,
		ServiceID: "service_1",
		ActionID:  "act_8",
		Dialect:   netfunnel.DialectPlain,
		TTL:       admissionTTL,
		Notify:    opts.QueueNotify,
		Now:       now,
		Headers: map[string]string{
			"User-Agent": "Apache-HttpClient/UNAVAILABLE (java 1.4)",
		},
	})

	return &Client{
		http:     httpClient,
		limiter:  rate.NewLimiter(rate.Limit(2), 2),
		gate:     gate,
		id:       opts.ID,
		password: opts.Password,
		baseURL:  baseURL,
		now:      now,
	}
}

// Session returns a copy of the current session state.
func (c *Client) Session() rail.Session {
	return c.session
}

// baseForm carries the app identification fields every call expects.
func baseForm() url.Values {
	return url.Values{
		"Device":  {device},
		"Version": {version},
		"Key":     {appKey},
	}
}

// fetchKey performs the pre-login handshake that negotiates the session
// encryption key for the credential codec.
func (c *Client) fetchKey(ctx context.Context) (cipher.Key, error) {
	body, err := c.do(ctx, "POST", pathCode, url.Values{"code": {"app.login.cphd"}})
	if err != nil {
		return cipher.Key{}, err
	}

	var payload struct {
		Result string `json:"strResult"`
		Cphd   struct {
			Idx string `json:"idx"`
			Key string `json:"key"`
		} `json:"app.login.cphd"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return cipher.Key{}, &rail.CodecError{Reason: "undecodable handshake response"}
	}
	if payload.Result != "SUCC" || payload.Cphd.Key == "" {
		return cipher.Key{}, &rail.CodecError{Reason: "handshake returned no key"}
	}
	return cipher.Key{Idx: payload.Cphd.Idx, Key: payload.Cphd.Key}, nil
}

// loginMode classifies the identifier by shape: 5 = email, 4 = phone,
// 2 = membership number.
func loginMode(id string) string {
	switch {
	case emailRegex.MatchString(id):
		return "5"
	case phoneRegex.MatchString(id):
		return "4"
	default:
		return "2"
	}
}

// Login negotiates the encryption key, encodes the credential and submits
// the login request.
func (c *Client) Login(ctx context.Context) (*rail.Session, error) {
	key, err := c.fetchKey(ctx)
	if err != nil {
		return nil, err
	}
	c.idx = key.Idx

	encoded, err := cipher.Encode(c.password, key)
	if err != nil {
		return nil, err
	}

	form := baseForm()
	form.Set("txtMemberNo", c.id)
	form.Set("txtPwd", encoded)
	form.Set("txtInputFlg", loginMode(c.id))
	form.Set("idx", c.idx)

	body, err := c.do(ctx, "POST", pathLogin, form)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Result           string `json:"strResult"`
		MsgText          string `json:"h_msg_txt"`
		MembershipNumber string `json:"strMbCrdNo"`
		Name             string `json:"strCustNm"`
		Email            string `json:"strEmailAdr"`
		Phone            string `json:"strCpNo"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unexpected login response: %w", err)
	}
	if payload.Result != "SUCC" || payload.MembershipNumber == "" {
		msg := payload.MsgText
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return nil, &rail.AuthError{Message: msg}
	}

	c.session = rail.Session{
		MembershipNumber: payload.MembershipNumber,
		Name:             payload.Name,
		Email:            payload.Email,
		Phone:            payload.Phone,
		Authenticated:    true,
	}
	log.Printf("Korail: logged in as %s (membership %s)", c.session.Name, c.session.MembershipNumber)
	return &c.session, nil
}

// Logout invalidates the session. A no-op when anonymous.
func (c *Client) Logout(ctx context.Context) error {
	if !c.session.Authenticated {
		return nil
	}
	if _, err := c.do(ctx, "GET", pathLogout, url.Values{}); err != nil {
		return err
	}
	c.session = rail.Session{}
	return nil
}

// ClearAdmissionCache drops the cached admission key.
func (c *Client) ClearAdmissionCache() {
	c.gate.Clear()
}

func (c *Client) requireLogin() error {
	if !c.session.Authenticated {
		return rail.ErrNotLoggedIn
	}
	return nil
}

// admit passes the queue gate before a write. Korail tracks admission on
// the session, so the key is not echoed in the form.
func (c *Client) admit(ctx context.Context) error {
	_, err := c.gate.Run(ctx)
	return err
}

// do performs one rate-limited call. GET requests carry the form as query
// parameters, POSTs as an encoded body.
func (c *Client) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var req *http.Request
	var err error
	if method == "GET" {
		req, err = http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
		if err == nil {
			req.URL.RawQuery = form.Encode()
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
		}
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// execute performs a call, validates the success/fail envelope against
// the code table, and decodes the payload into out when non-nil.
func (c *Client) execute(ctx context.Context, method, path string, form url.Values, out any) error {
	body, err := c.do(ctx, method, path, form)
	if err != nil {
		return err
	}

	var env struct {
		Result  string `json:"strResult"`
		MsgCode string `json:"h_msg_cd"`
		MsgText string `json:"h_msg_txt"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("undecodable response: %w", err)
	}
	if env.Result == "FAIL" {
		if kind, ok := errorCodes[env.MsgCode]; ok {
			if kind == rail.ErrNotLoggedIn {
				c.session.Authenticated = false
			}
			return fmt.Errorf("%w (%s)", kind, env.MsgCode)
		}
		return &rail.ResponseError{Code: env.MsgCode, Message: env.MsgText}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("undecodable response payload: %w", err)
		}
	}
	return nil
}
