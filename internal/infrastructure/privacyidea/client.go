// Package privacyidea implements service.RemoteVerifier against the privacyIDEA REST API.
//
// Endpoints used:
//   - POST /auth                        service-account login, yields a JWT auth token
//   - GET  /token/?user=                token lookup (enrollment status)
//   - POST /token/init                  server-side token rollout with genkey
//   - POST /validate/check              code validation, may trigger push challenges
//   - GET  /validate/polltransaction    push approval polling
//
// Every call runs through a circuit breaker so that an unhealthy remote degrades to local
// validation quickly instead of holding requests on network timeouts.
package privacyidea

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/mfagate/internal/config"
	"github.com/turtacn/mfagate/internal/domain/service"
	"github.com/turtacn/mfagate/pkg/constants"
	mfaerrors "github.com/turtacn/mfagate/pkg/errors"
	"github.com/turtacn/mfagate/pkg/logger"
)

const (
	authTokenCacheKey = "auth"
	// authTokenSafetyMargin is subtracted from the token lifetime before caching it.
	authTokenSafetyMargin = 30 * time.Second
	defaultAuthTokenTTL   = 5 * time.Minute
	maxResponseBytes      = 1 << 20
)

// Client talks to one privacyIDEA instance.
type Client struct {
	cfg        config.PrivacyIDEAConfig
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	tokens     *cache.Cache
	logins     singleflight.Group
	password   PasswordSource
	logger     logger.Logger
	metrics    service.Metrics
}

var _ service.RemoteVerifier = (*Client)(nil)

// NewClient creates a client. With an empty host the client reports Enabled() == false.
func NewClient(cfg config.PrivacyIDEAConfig, password PasswordSource, log logger.Logger, metrics service.Metrics) *Client {
	if metrics == nil {
		metrics = service.NoopMetrics{}
	}
	if password == nil {
		password = StaticPassword(cfg.ServicePassword)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.Host, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion:         tls.VersionTLS12,
					InsecureSkipVerify: !cfg.TLSVerify, //nolint:gosec // operator opt-out via tls_verify
				},
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConnsPerHost: 16,
			},
		},
		tokens:   cache.New(defaultAuthTokenTTL, time.Minute),
		password: password,
		logger:   log.WithComponent("privacyidea"),
		metrics:  metrics,
	}
	c.breaker = gobreaker.NewCircuitBreaker(c.breakerSettings())
	return c
}

func (c *Client) breakerSettings() gobreaker.Settings {
	maxFailures := c.cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := c.cfg.BreakerOpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	return gobreaker.Settings{
		Name:        "privacyidea",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Client errors say nothing about remote health.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *statusError
			if errors.As(err, &se) {
				return se.StatusCode < http.StatusInternalServerError
			}
			var ae *apiError
			return errors.As(err, &ae)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn(context.Background(), "Circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	}
}

// Enabled reports whether a remote host is configured.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled()
}

// BreakerState exposes the circuit state for health reporting.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// EnrollmentTokenCount returns the number of tokens privacyIDEA holds for username.
// Without a service account it returns ErrNoServiceAccount and sends nothing.
func (c *Client) EnrollmentTokenCount(ctx context.Context, username string) (int, error) {
	if c.cfg.ServiceAccount == "" {
		return 0, mfaerrors.ErrNoServiceAccount
	}
	q := c.userParams(username)
	resp, err := c.call(ctx, "token_list", http.MethodGet, "/token/", q, true)
	if err != nil {
		return 0, err
	}

	var value tokenListValue
	if err := json.Unmarshal(resp.Result.Value, &value); err != nil {
		return 0, c.wrapRemote("token_list", fmt.Errorf("decode token list: %w", err))
	}
	if value.Count == 0 && len(value.Tokens) > 0 {
		return len(value.Tokens), nil
	}
	return value.Count, nil
}

// RolloutSecret enrolls a server-generated token of tokenType and returns its base32 seed.
func (c *Client) RolloutSecret(ctx context.Context, username, tokenType string) (string, error) {
	if c.cfg.ServiceAccount == "" {
		return "", mfaerrors.ErrNoServiceAccount
	}
	form := c.userParams(username)
	form.Set("type", tokenType)
	form.Set("genkey", "1")

	resp, err := c.call(ctx, "token_init", http.MethodPost, "/token/init", form, true)
	if err != nil {
		return "", err
	}

	var detail initDetail
	if len(resp.Detail) > 0 {
		if err := json.Unmarshal(resp.Detail, &detail); err != nil {
			return "", c.wrapRemote("token_init", fmt.Errorf("decode rollout detail: %w", err))
		}
	}

	c.logger.Info(ctx, "Rolled out remote token",
		logger.String("username", username),
		logger.String("serial", detail.Serial),
		logger.String("type", tokenType),
	)
	return detail.OTPKey.ValueB32, nil
}

// Validate submits code for username. An empty code asks privacyIDEA to trigger challenges.
func (c *Client) Validate(ctx context.Context, username, code string) (*service.ValidationResult, error) {
	form := c.userParams(username)
	form.Set("pass", code)

	resp, err := c.call(ctx, "validate_check", http.MethodPost, "/validate/check", form, false)
	if err != nil {
		return nil, err
	}

	var accepted bool
	if len(resp.Result.Value) > 0 {
		if err := json.Unmarshal(resp.Result.Value, &accepted); err != nil {
			return nil, c.wrapRemote("validate_check", fmt.Errorf("decode validate result: %w", err))
		}
	}

	var detail validateDetail
	if len(resp.Detail) > 0 {
		if err := json.Unmarshal(resp.Detail, &detail); err != nil {
			return nil, c.wrapRemote("validate_check", fmt.Errorf("decode validate detail: %w", err))
		}
	}

	result := &service.ValidationResult{TokenType: detail.Type}
	if strings.HasPrefix(detail.Type, constants.TokenTypeTOTP) && resp.Result.Status && accepted {
		result.TypeMatchedLocally = true
		return result, nil
	}
	for _, t := range detail.triggeredTypes() {
		if t == constants.TokenTypePush {
			result.TriggeredPush = detail.TransactionID != ""
			result.TransactionID = detail.TransactionID
			break
		}
	}
	return result, nil
}

// PollTransaction reports whether the push challenge transactionID was approved.
func (c *Client) PollTransaction(ctx context.Context, transactionID string) (bool, error) {
	q := url.Values{}
	q.Set("transaction_id", transactionID)

	resp, err := c.call(ctx, "poll_transaction", http.MethodGet, "/validate/polltransaction", q, false)
	if err != nil {
		return false, err
	}

	var approved bool
	if err := json.Unmarshal(resp.Result.Value, &approved); err != nil {
		return false, c.wrapRemote("poll_transaction", fmt.Errorf("decode poll result: %w", err))
	}
	return approved, nil
}

func (c *Client) userParams(username string) url.Values {
	v := url.Values{}
	v.Set("user", username)
	if c.cfg.ServiceRealm != "" {
		v.Set("realm", c.cfg.ServiceRealm)
	}
	return v
}

// call runs one request through the breaker. Authenticated calls retry once with a fresh
// auth token when the cached one was rejected.
func (c *Client) call(ctx context.Context, op, method, path string, params url.Values, authenticated bool) (*response, error) {
	ctx, span := otel.Tracer("mfagate").Start(ctx, "privacyidea."+op)
	span.SetAttributes(attribute.String("http.method", method), attribute.String("privacyidea.path", path))
	defer span.End()

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.roundTrip(ctx, op, method, path, params, authenticated)
		var se *statusError
		if authenticated && errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized {
			c.tokens.Delete(authTokenCacheKey)
			resp, err = c.roundTrip(ctx, op, method, path, params, authenticated)
		}
		return resp, err
	})
	c.metrics.RecordRemoteCall(op, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, c.wrapRemote(op, err)
	}
	return out.(*response), nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, params url.Values, authenticated bool) (*response, error) {
	var req *http.Request
	var err error
	endpoint := c.baseURL + path
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+params.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, bytes.NewBufferString(params.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", constants.RemoteUserAgent)
	req.Header.Set("Accept", "application/json")

	if authenticated {
		token, err := c.authToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", token)
	}

	return c.send(req, op)
}

func (c *Client) send(req *http.Request, op string) (*response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if out.Result.Error != nil {
		return nil, out.Result.Error
	}
	return &out, nil
}

// authToken returns a cached service-account token, logging in once for all concurrent callers.
func (c *Client) authToken(ctx context.Context) (string, error) {
	if token, ok := c.tokens.Get(authTokenCacheKey); ok {
		return token.(string), nil
	}

	v, err, _ := c.logins.Do(authTokenCacheKey, func() (interface{}, error) {
		if token, ok := c.tokens.Get(authTokenCacheKey); ok {
			return token, nil
		}
		return c.login(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) login(ctx context.Context) (string, error) {
	password, err := c.password.Password(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve service password: %w", err)
	}

	form := url.Values{}
	form.Set("username", c.cfg.ServiceAccount)
	form.Set("password", password)
	if c.cfg.ServiceRealm != "" {
		form.Set("realm", c.cfg.ServiceRealm)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", constants.RemoteUserAgent)

	resp, err := c.send(req, "auth")
	if err != nil {
		return "", err
	}

	var value authValue
	if err := json.Unmarshal(resp.Result.Value, &value); err != nil || value.Token == "" {
		return "", fmt.Errorf("auth: response carries no token")
	}

	ttl := tokenTTL(value.Token, time.Now())
	c.tokens.Set(authTokenCacheKey, value.Token, ttl)
	c.logger.Debug(ctx, "Obtained service account auth token", logger.Duration("ttl", ttl))
	return value.Token, nil
}

// tokenTTL derives the cache lifetime from the token's exp claim. The signature is not checked:
// the token is only ever presented back to its issuer.
func tokenTTL(token string, now time.Time) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return defaultAuthTokenTTL
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return defaultAuthTokenTTL
	}
	ttl := exp.Sub(now) - authTokenSafetyMargin
	if ttl <= 0 {
		return time.Second
	}
	return ttl
}

func (c *Client) wrapRemote(op string, err error) error {
	return mfaerrors.Wrap(fmt.Errorf("%s: %w", op, err), mfaerrors.ErrRemoteUnavailable).WithMetadata("operation", op)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
