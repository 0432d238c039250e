// Package netfunnel speaks the demand-limiting queue protocol that gates
// write operations during contention windows. The handshake is enter →
// poll-until-pass → complete; a passing key is cached briefly so back to
// back writes don't re-queue.
package netfunnel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hanrail/hanrail/internal/rail"
)

const (
	opEnter    = "5101"
	opCheck    = "5002"
	opComplete = "5004"

	statusPass             = "200"
	statusWait             = "201"
	statusAlreadyCompleted = "502"

	// checkInterval paces the queue-position polls while waiting.
	checkInterval = time.Second
)

// scriptResultRegex extracts the payload from the script-wrapped response
// dialect: NetFunnel.gControl.result='code:status:params'
var scriptResultRegex = regexp.MustCompile(`NetFunnel\.gControl\.result='([^']+)'`)

// Dialect selects the response framing the gate server uses.
type Dialect int

const (
	// DialectScript wraps the payload in a JS assignment (SRT).
	DialectScript Dialect = iota
	// DialectPlain returns the bare status:params payload (Korail).
	DialectPlain
)

// Options configures a Client. URL, ServiceID and ActionID identify the
// protected service on the gate server.
type Options struct {
	URL       string
	ServiceID string
	ActionID  string
	Dialect   Dialect

	// TTL bounds how long a key is served from cache. It is deliberately
	// shorter than the server-side expiry so a near-stale key is never
	// presented on a write.
	TTL time.Duration

	Headers map[string]string

	// Notify receives the current queue position while waiting for
	// admission. May be nil.
	Notify func(waiting int)

	// Now is the clock used for cache aging; defaults to time.Now.
	Now func() time.Time

	HTTPClient *http.Client
}

// Client obtains and caches one admission token. Owned by a single booking
// loop; not safe for concurrent use.
type Client struct {
	opts      Options
	client    *http.Client
	cachedKey string
	fetchedAt time.Time
}

// New creates an admission client.
func New(opts Options) *Client {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TTL <= 0 {
		opts.TTL = 48 * time.Second
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{opts: opts, client: client}
}

// Run returns a valid admission key, reusing the cached one while it is
// fresh. A fresh handshake enters the queue, polls until admitted
// (surfacing the position through Notify) and completes exactly once. Any
// failure clears the cache and returns a rail.QueueError.
func (c *Client) Run(ctx context.Context) (string, error) {
	if c.cacheValid() {
		return c.cachedKey, nil
	}

	key, err := c.handshake(ctx)
	if err != nil {
		c.Clear()
		return "", &rail.QueueError{Err: err}
	}
	return key, nil
}

// Clear drops the cached key; the next Run performs a full handshake.
func (c *Client) Clear() {
	c.cachedKey = ""
	c.fetchedAt = time.Time{}
}

func (c *Client) cacheValid() bool {
	return c.cachedKey != "" && c.opts.Now().Sub(c.fetchedAt) < c.opts.TTL
}

func (c *Client) handshake(ctx context.Context) (string, error) {
	status, key, waiting, err := c.call(ctx, opEnter)
	if err != nil {
		return "", err
	}
	c.cachedKey = key
	c.fetchedAt = c.opts.Now()

	for status == statusWait {
		if c.opts.Notify != nil {
			c.opts.Notify(waiting)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(checkInterval):
		}
		status, key, waiting, err = c.call(ctx, opCheck)
		if err != nil {
			return "", err
		}
		if key != "" {
			c.cachedKey = key
		}
	}

	status, _, _, err = c.call(ctx, opComplete)
	if err != nil {
		return "", err
	}
	if status != statusPass && status != statusAlreadyCompleted {
		return "", fmt.Errorf("completion rejected with status %s", status)
	}
	return c.cachedKey, nil
}

func (c *Client) call(ctx context.Context, opcode string) (status, key string, waiting int, err error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.opts.URL, nil)
	if err != nil {
		return "", "", 0, err
	}
	req.URL.RawQuery = c.params(opcode).Encode()
	for k, v := range c.opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", 0, err
	}

	fields, err := c.parse(string(body))
	if err != nil {
		return "", "", 0, err
	}
	waiting, _ = strconv.Atoi(fields["nwait"])
	return fields["status"], fields["key"], waiting, nil
}

func (c *Client) params(opcode string) url.Values {
	v := url.Values{}
	v.Set("opcode", opcode)
	if c.opts.Dialect == DialectScript {
		v.Set("nfid", "0")
		v.Set("prefix", fmt.Sprintf("NetFunnel.gRtype=%s;", opcode))
		v.Set("js", "true")
		v.Set(strconv.FormatInt(c.opts.Now().UnixMilli(), 10), "")
	}
	switch opcode {
	case opEnter, opCheck:
		v.Set("sid", c.opts.ServiceID)
		v.Set("aid", c.opts.ActionID)
		if opcode == opCheck {
			v.Set("key", c.cachedKey)
			v.Set("ttl", "1")
		}
	case opComplete:
		v.Set("key", c.cachedKey)
	}
	return v
}

// parse decodes a gate response into its status/key/nwait fields. The
// script dialect carries code:status:params inside a JS assignment, the
// plain dialect is status:params.
func (c *Client) parse(body string) (map[string]string, error) {
	var status, paramsStr string
	switch c.opts.Dialect {
	case DialectScript:
		match := scriptResultRegex.FindStringSubmatch(body)
		if match == nil {
			return nil, fmt.Errorf("unrecognized gate response")
		}
		parts := strings.SplitN(match[1], ":", 3)
		if len(parts) != 3 || parts[2] == "" {
			return nil, fmt.Errorf("unrecognized gate response")
		}
		status, paramsStr = parts[1], parts[2]
	default:
		parts := strings.SplitN(body, ":", 2)
		if len(parts) != 2 || parts[1] == "" {
			return nil, fmt.Errorf("unrecognized gate response")
		}
		status, paramsStr = parts[0], parts[1]
	}

	fields := map[string]string{"status": status}
	for _, pair := range strings.Split(paramsStr, "&") {
		if k, v, ok := strings.Cut(pair, "="); ok {
			fields[k] = v
		}
	}
	return fields, nil
}
