// Package srt implements the rail.Client capability against the SRT
// mobile-app backend: a form-encoded request/response protocol with a
// generic success/fail envelope and a queue-admission gate on writes.
package srt

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
	"github.com/hanrail/hanrail/internal/rail/netfunnel"
)

const (
	defaultBaseURL = "https://app.srail.or.kr:443"
	defaultGateURL = "http://nf.letskorail.com/ts.wseq"

	userAgent = "Mozilla/5.0 (Linux; Android 14; SM-S911U1 Build/UP1A.231005.007; wv) AppleWebKit/537.36" +
		"(KHTML, like Gecko) Version/4.0 Chrome/131.0.6778.135 Mobile Safari/537.36SRT-APP-Android V.2.0.32"

	// Admission keys are cached below the server-side expiry to avoid
	// presenting a near-stale key on a write.
	admissionTTL = 48 * time.Second
)

// Relative endpoint paths on the mobile backend.
const (
	pathMain          = "/main/main.do"
	pathLogin         = "/apb/selectListApb01080_n.do"
	pathLogout        = "/login/loginOut.do"
	pathSearch        = "/ara/selectListAra10007_n.do"
	pathReserve       = "/arc/selectListArc05013_n.do"
	pathTickets       = "/atc/selectListAtc14016_n.do"
	pathTicketInfo    = "/ard/selectListArd02019_n.do"
	pathCancel        = "/ard/selectListArd02045_n.do"
	pathStandbyOption = "/ata/selectListAta01135_n.do"
	pathPayment       = "/ata/selectListAta09036_n.do"
	pathReserveInfo   = "/atc/getListAtc14087.do"
	pathReserveInfoRef = "/common/ATC/ATC0201L/view.do?pnrNo="
	pathRefund        = "/atc/selectListAtc02063_n.do"
)

var (
	emailRegex = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)
	phoneRegex = regexp.MustCompile(`^(\d{3})-(\d{3,4})-(\d{4})$`)
)

// Options configures a Client.
type Options struct {
	ID       string // membership number, email or phone number
	Password string

	// DeviceKey is the persistent device identifier sent on login.
	// Defaults to "-" when the caller has none.
	DeviceKey string

	// Catalog resolves station names to backend codes.
	Catalog rail.StationCatalog

	// WindowSeat biases seat placement: nil = no preference.
	WindowSeat *bool

	// QueueNotify receives queue positions while waiting at the
	// admission gate. May be nil.
	QueueNotify func(waiting int)

	BaseURL    string
	GateURL    string
	HTTPClient *http.Client
	Now        func() time.Time
}

// Client owns one authenticated conversation with the SRT backend. Not
// safe for concurrent use; run independent Clients for parallel sessions.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	gate    *netfunnel.Client
	catalog rail.StationCatalog

	id, password string
	deviceKey    string
	windowSeat   *bool
	baseURL      string
	now          func() time.Time

	session rail.Session
}

// New creates an SRT client. Credentials are taken at construction and
// submitted by Login.
func New(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	gateURL := opts.GateURL
	if gateURL == "" {
		gateURL = defaultGateURL
	}
	deviceKey := opts.DeviceKey
	if deviceKey == "" {
		deviceKey = "-"
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
		ActionID:  "act_10",
		Dialect:   netfunnel.DialectScript,
		TTL:       admissionTTL,
		Notify:    opts.QueueNotify,
		Now:       now,
		Headers: map[string]string{
			"User-Agent": userAgent,
			"Referer":    baseURL,
		},
	})

	return &Client{
		http:       httpClient,
		limiter:    rate.NewLimiter(rate.Limit(2), 2),
		gate:       gate,
		catalog:    opts.Catalog,
		id:         opts.ID,
		password:   opts.Password,
		deviceKey:  deviceKey,
		windowSeat: opts.WindowSeat,
		baseURL:    baseURL,
		now:        now,
	}
}

// Session returns a copy of the current session state.
func (c *Client) Session() rail.Session {
	return c.session
}

// loginMode classifies the identifier by shape to select the backend's
// login mode: 1 = membership number, 2 = email, 3 = phone number.
func loginMode(id string) string {
	switch {
	case emailRegex.MatchString(id):
		return "2"
	case phoneRegex.MatchString(id):
		return "3"
	default:
		return "1"
	}
}

// Login authenticates and populates the session. Explicit rejections,
// unknown accounts and IP blocks surface as rail.AuthError with the
// backend's own message.
func (c *Client) Login(ctx context.Context) (*rail.Session, error) {
	id := c.id
	mode := loginMode(id)
	if mode == "3" {
		id = strings.ReplaceAll(id, "-", "")
	}

	form := url.Values{
		"auto":          {"Y"},
		"check":         {"Y"},
		"page":          {"menu"},
		"deviceKey":     {c.deviceKey},
		"customerYn":    {""},
		"login_referer": {c.baseURL + pathMain},
		"srchDvCd":      {mode},
		"srchDvNm":      {id},
		"hmpgPwdCphd":   {c.password},
	}

	body, err := c.post(ctx, pathLogin, form, nil)
	if err != nil {
		return nil, err
	}

	text := string(body)
	switch {
	case strings.Contains(text, "존재하지않는 회원입니다"),
		strings.Contains(text, "비밀번호 오류"):
		var reject struct {
			Msg string `json:"MSG"`
		}
		if err := json.Unmarshal(body, &reject); err == nil && reject.Msg != "" {
			return nil, &rail.AuthError{Message: reject.Msg}
		}
		return nil, &rail.AuthError{Message: strings.TrimSpace(text)}
	case strings.Contains(text, "Your IP Address Blocked"):
		return nil, &rail.AuthError{Message: strings.TrimSpace(text)}
	}

	var parsed struct {
		UserMap struct {
			MembershipNumber string `json:"MB_CRD_NO"`
			Name             string `json:"CUST_NM"`
			Phone            string `json:"MBL_PHONE"`
		} `json:"userMap"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unexpected login response: %w", err)
	}
	if parsed.UserMap.MembershipNumber == "" {
		return nil, &rail.AuthError{Message: strings.TrimSpace(text)}
	}

	c.session = rail.Session{
		MembershipNumber: parsed.UserMap.MembershipNumber,
		Name:             parsed.UserMap.Name,
		Phone:            parsed.UserMap.Phone,
		Authenticated:    true,
	}
	log.Printf("SRT: logged in as %s (membership %s)", c.session.Name, c.session.MembershipNumber)
	return &c.session, nil
}

// Logout invalidates the session. A no-op when anonymous.
func (c *Client) Logout(ctx context.Context) error {
	if !c.session.Authenticated {
		return nil
	}
	if _, err := c.post(ctx, pathLogout, url.Values{}, nil); err != nil {
		return err
	}
	c.session = rail.Session{}
	return nil
}

// ClearAdmissionCache drops the cached admission key.
func (c *Client) ClearAdmissionCache() {
	c.gate.Clear()
}

// requireLogin guards the operations that need a session.
func (c *Client) requireLogin() error {
	if !c.session.Authenticated {
		return rail.ErrNotLoggedIn
	}
	return nil
}

// markLoggedOut records a server-detected session loss so the caller can
// re-login before retrying.
func (c *Client) markLoggedOut() {
	c.session.Authenticated = false
}

// post performs one rate-limited form POST and returns the raw body.
// extraHeaders may be nil.
func (c *Client) post(ctx context.Context, path string, form url.Values, extraHeaders map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

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

// execute performs a form POST and decodes the generic success/fail
// envelope. On failure the server's message is classified into the shared
// error taxonomy; when out is non-nil the full body is decoded into it.
func (c *Client) execute(ctx context.Context, path string, form url.Values, out any) error {
	body, err := c.post(ctx, path, form, nil)
	if err != nil {
		return err
	}

	var env struct {
		ResultMap []struct {
			Result  string `json:"strResult"`
			MsgCode string `json:"msgCd"`
			MsgText string `json:"msgTxt"`
		} `json:"resultMap"`
		ErrorCode string `json:"ErrorCode"`
		ErrorMsg  string `json:"ErrorMsg"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("undecodable response: %w", err)
	}

	if len(env.ResultMap) == 0 {
		if env.ErrorCode != "" || env.ErrorMsg != "" {
			return &rail.ResponseError{Code: env.ErrorCode, Message: env.ErrorMsg}
		}
		return fmt.Errorf("response carries no result envelope")
	}

	status := env.ResultMap[0]
	switch status.Result {
	case "SUCC":
	case "FAIL":
		return c.classify(status.MsgCode, status.MsgText)
	default:
		return &rail.ResponseError{Code: status.MsgCode, Message: fmt.Sprintf("undefined result status %q", status.Result)}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("undecodable response payload: %w", err)
		}
	}
	return nil
}

// classify maps a failed envelope to the shared taxonomy. The SRT backend
// identifies failures mostly through message text rather than stable
// codes.
func (c *Client) classify(code, message string) error {
	switch {
	case strings.Contains(message, "로그인"):
		c.markLoggedOut()
		return rail.ErrNotLoggedIn
	case strings.Contains(message, "잔여석없음"), strings.Contains(message, "매진"):
		return rail.ErrSoldOut
	case strings.Contains(message, "중복"):
		return rail.ErrDuplicate
	default:
		return &rail.ResponseError{Code: code, Message: message}
	}
}
