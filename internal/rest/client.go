package rest

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"btc-order-gw/internal/metrics"
	"btc-order-gw/internal/trade"

	"go.uber.org/zap"
)

const userAgent = "btc-order-gw"

// Param is one form field. Params keep insertion order: some venues sign the
// exact encoded body, so encoding must not reorder fields.
type Param struct {
	Key   string
	Value string
}

type Params []Param

func (p Params) Encode() string {
	var b strings.Builder
	for i, param := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(param.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(param.Value))
	}
	return b.String()
}

// Auth injects a venue credential scheme into an outgoing request.
type Auth interface {
	sign(path string, params Params) (Params, http.Header, error)
}

// HMACKeypair signs path + NUL + encoded body with HMAC-SHA512 keyed by the
// base64-decoded secret, and prepends a millisecond nonce to the body.
type HMACKeypair struct {
	Key    string
	Secret string

	now func() time.Time
}

func NewHMACKeypair(key, secret string) *HMACKeypair {
	return &HMACKeypair{Key: key, Secret: secret, now: time.Now}
}

func (h *HMACKeypair) sign(path string, params Params) (Params, http.Header, error) {
	secret, err := base64.StdEncoding.DecodeString(h.Secret)
	if err != nil {
		return nil, nil, errors.New("api secret is not valid base64")
	}
	now := time.Now
	if h.now != nil {
		now = h.now
	}
	nonce := strconv.FormatInt(now().UnixMilli(), 10)
	signed := append(Params{{Key: "nonce", Value: nonce}}, params...)
	body := signed.Encode()

	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write([]byte{0})
	mac.Write([]byte(body))

	header := http.Header{}
	header.Set("Rest-Key", h.Key)
	header.Set("Rest-Sign", base64.StdEncoding.EncodeToString(mac.Sum(nil)))
	return signed, header, nil
}

// BodyCredentials appends plain username/password fields to the request body.
type BodyCredentials struct {
	User     string
	Password string
}

func (b BodyCredentials) sign(_ string, params Params) (Params, http.Header, error) {
	signed := append(append(Params{}, params...),
		Param{Key: "user", Value: b.User},
		Param{Key: "password", Value: b.Password},
	)
	return signed, nil, nil
}

// Client issues rate-limited, optionally authenticated requests against one
// venue. Timeouts are retried up to the attempt budget; any received HTTP
// response, error or not, is never retried.
type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *Limiter
	attempts int
	auth     Auth
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewClient(baseURL string, timeout time.Duration, attempts int, limiter *Limiter, auth Auth, log *zap.Logger) *Client {
	if attempts <= 0 {
		attempts = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		limiter:  limiter,
		attempts: attempts,
		auth:     auth,
		log:      log,
		metrics:  metrics.NewNoop(),
	}
}

func (c *Client) SetMetrics(m *metrics.Metrics) {
	if m != nil {
		c.metrics = m
	}
}

func (c *Client) Get(ctx context.Context, path string, params Params) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, path, params, false)
}

func (c *Client) Post(ctx context.Context, path string, params Params, authenticated bool) ([]byte, error) {
	return c.Do(ctx, http.MethodPost, path, params, authenticated)
}

// Do performs one logical request. The returned bytes are the raw response
// body of a 200; venue-specific envelopes are interpreted by the caller.
func (c *Client) Do(ctx context.Context, method, path string, params Params, authenticated bool) ([]byte, error) {
	var header http.Header
	if authenticated {
		if c.auth == nil {
			return nil, errors.New("client has no credentials configured")
		}
		var err error
		params, header, err = c.auth.sign(path, params)
		if err != nil {
			return nil, err
		}
	}

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if err := c.limiter.Admit(ctx); err != nil {
			return nil, err
		}
		c.metrics.Requests.Inc()
		req, err := c.newRequest(ctx, method, path, params, header)
		if err != nil {
			return nil, err
		}
		resp, lastErr = c.http.Do(req)
		if lastErr == nil {
			break
		}
		if !isTimeout(lastErr) {
			c.metrics.RequestFailures.Inc()
			return nil, trade.Transportf(lastErr, "request to %s failed", path)
		}
		c.metrics.RequestRetries.Inc()
		c.log.Warn("request timed out",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Int("attempts", c.attempts))
		resp = nil
	}
	if resp == nil {
		c.metrics.RequestFailures.Inc()
		return nil, trade.Transportf(lastErr, "HTTP request failed: no response after %d attempts (request path %s)", c.attempts, path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.metrics.RequestFailures.Inc()
		return nil, trade.Transportf(err, "reading response from %s", path)
	}
	if resp.StatusCode != http.StatusOK {
		c.metrics.RequestFailures.Inc()
		return nil, trade.Applicationf("HTTP request failed: API returned status %d (request path %s)", resp.StatusCode, path)
	}
	return body, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, params Params, header http.Header) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	var body io.Reader
	if method == http.MethodGet {
		if encoded := params.Encode(); encoded != "" {
			target += "?" + encoded
		}
	} else {
		body = strings.NewReader(params.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("User-Agent", userAgent)
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req, nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
