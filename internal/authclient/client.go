// Package authclient talks to the remote authentication service over REST.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/cursos-vacacionales/panel/internal/auth"
)

const maxBodyBytes = 1 << 20

// Recorder receives one observation per remote call.
type Recorder interface {
	ObserveAuthCall(op, outcome string, elapsed time.Duration)
}

// Config configures a Client.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
	HTTPClient      *http.Client
	Logger          *slog.Logger
	Recorder        Recorder
}

// Client wraps interactions with the authentication service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*response]
	group      singleflight.Group
	logger     *slog.Logger
	recorder   Recorder
}

type response struct {
	status int
	body   []byte
}

// New constructs a Client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	switch {
	case httpClient == nil:
		httpClient = &http.Client{Timeout: timeout}
	case httpClient.Timeout <= 0:
		// Shared profile fetches run detached from the caller's context and
		// rely on the client timeout as their only bound.
		bounded := *httpClient
		bounded.Timeout = timeout
		httpClient = &bounded
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	cooldown := cfg.BreakerCooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		recorder:   cfg.Recorder,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "auth-service",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Rejections (4xx) are answers and aborted callers say nothing
		// about the service, so neither counts as an outage.
		IsSuccessful: func(err error) bool {
			switch {
			case err == nil, isCallerAbort(err):
				return true
			default:
				return !errors.Is(err, auth.ErrUnavailable)
			}
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("auth breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return c
}

// Login exchanges credentials for a user and bearer credential.
func (c *Client) Login(ctx context.Context, creds auth.Credentials) (auth.Result, error) {
	var payload authPayload
	err := c.call(ctx, "login", http.MethodPost, "/auth/login", "", creds, &payload, loginStatus)
	if err != nil {
		return auth.Result{}, err
	}
	return payload.result()
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, reg auth.Registration) (auth.Result, error) {
	var payload authPayload
	err := c.call(ctx, "register", http.MethodPost, "/auth/register", "", reg, &payload, registerStatus)
	if err != nil {
		return auth.Result{}, err
	}
	return payload.result()
}

// CurrentUser fetches the profile behind token. Concurrent calls for the same
// token share one request. The shared request is detached from any single
// caller, so a caller that gives up only abandons its own wait.
func (c *Client) CurrentUser(ctx context.Context, token string) (auth.User, error) {
	if strings.TrimSpace(token) == "" {
		return auth.User{}, &auth.ServiceError{Status: http.StatusUnauthorized, Err: auth.ErrUnauthorized}
	}
	ch := c.group.DoChan(token, func() (any, error) {
		var payload mePayload
		err := c.call(context.WithoutCancel(ctx), "me", http.MethodGet, "/auth/me", token, nil, &payload, meStatus)
		if err != nil {
			return auth.User{}, err
		}
		if payload.User == nil {
			return auth.User{}, fmt.Errorf("authclient: me: %w", auth.ErrMalformedResponse)
		}
		return payload.User.toDomain()
	})
	select {
	case <-ctx.Done():
		return auth.User{}, fmt.Errorf("authclient: me: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return auth.User{}, res.Err
		}
		return res.Val.(auth.User), nil
	}
}

// Logout invalidates token on the server.
func (c *Client) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return c.call(ctx, "logout", http.MethodPost, "/auth/logout", token, nil, nil, meStatus)
}

type statusMapper func(status int) error

func loginStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return auth.ErrInvalidCredentials
	case http.StatusLocked:
		return auth.ErrAccountLocked
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return auth.ErrValidation
	}
	return nil
}

func registerStatus(status int) error {
	switch status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return auth.ErrValidation
	}
	return nil
}

func meStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return auth.ErrUnauthorized
	}
	return nil
}

func (c *Client) call(ctx context.Context, op, method, path, token string, in, out any, mapStatus statusMapper) error {
	start := time.Now()
	err := c.execute(ctx, method, path, token, in, out, mapStatus)
	if c.recorder != nil {
		c.recorder.ObserveAuthCall(op, outcome(err), time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("authclient: %s: %w", op, err)
	}
	return nil
}

func (c *Client) execute(ctx context.Context, method, path, token string, in, out any, mapStatus statusMapper) error {
	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.roundTrip(ctx, method, path, token, in)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return &auth.ServiceError{Message: err.Error(), Err: auth.ErrUnavailable}
		}
		var svcErr *auth.ServiceError
		if errors.As(err, &svcErr) && svcErr.Status >= 400 && svcErr.Status < 500 {
			if mapped := mapStatus(svcErr.Status); mapped != nil {
				svcErr.Err = mapped
			}
		}
		return err
	}
	if out == nil || len(resp.body) == 0 {
		if out != nil {
			return auth.ErrMalformedResponse
		}
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("%w: %v", auth.ErrMalformedResponse, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path, token string, in any) (*response, error) {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &auth.ServiceError{Message: err.Error(), Err: auth.ErrUnavailable}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &auth.ServiceError{Status: resp.StatusCode, Message: err.Error(), Err: auth.ErrUnavailable}
	}
	if resp.StatusCode >= 400 {
		return nil, decodeError(resp.StatusCode, data)
	}
	return &response{status: resp.StatusCode, body: data}, nil
}

func decodeError(status int, data []byte) error {
	svcErr := &auth.ServiceError{Status: status, Err: auth.ErrUnavailable}
	var payload errorPayload
	if len(data) > 0 && json.Unmarshal(data, &payload) == nil {
		svcErr.Message = payload.Message
		svcErr.Fields = payload.Errors
	}
	if status < 500 {
		// Overridden per operation where the status has a specific meaning.
		svcErr.Err = auth.ErrRejected
	}
	return svcErr
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isCallerAbort(err):
		return "canceled"
	case errors.Is(err, auth.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, auth.ErrMalformedResponse):
		return "malformed"
	default:
		return "rejected"
	}
}

// isCallerAbort reports whether err comes from the caller's context rather
// than from the service.
func isCallerAbort(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
