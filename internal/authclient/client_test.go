package authclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cursos-vacacionales/panel/internal/auth"
	"github.com/cursos-vacacionales/panel/internal/authclient"
	"github.com/cursos-vacacionales/panel/internal/devauth/devauthtest"
	"github.com/cursos-vacacionales/panel/internal/rbac"
	_ "github.com/cursos-vacacionales/panel/testing"
)

type observation struct {
	op      string
	outcome string
}

type recorder struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recorder) ObserveAuthCall(op, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{op: op, outcome: outcome})
}

func newClient(url string, rec authclient.Recorder) *authclient.Client {
	return authclient.New(authclient.Config{
		BaseURL:         url,
		Timeout:         2 * time.Second,
		BreakerFailures: 2,
		BreakerCooldown: time.Minute,
		Recorder:        rec,
	})
}

func fixedResponse(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestClientAgainstDevAuth(t *testing.T) {
	srv := devauthtest.NewServer(t)
	rec := &recorder{}
	client := newClient(srv.URL, rec)
	ctx := context.Background()

	result, err := client.Login(ctx, auth.Credentials{Email: "tutor@cursos.test", Password: "tutor12345"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "Tomás Tutor", result.User.Name)
	assert.Equal(t, rbac.RoleTutor, result.User.Role)
	assert.Equal(t, "Tutor", result.User.RoleName)

	user, err := client.CurrentUser(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, user.ID)

	require.NoError(t, client.Logout(ctx, result.Token))
	_, err = client.CurrentUser(ctx, result.Token)
	assert.ErrorIs(t, err, auth.ErrUnauthorized)

	assert.Equal(t, []observation{
		{op: "login", outcome: "ok"},
		{op: "me", outcome: "ok"},
		{op: "logout", outcome: "ok"},
		{op: "me", outcome: "rejected"},
	}, rec.obs)
}

func TestClientLoginFailures(t *testing.T) {
	srv := devauthtest.NewServer(t)
	client := newClient(srv.URL, nil)
	ctx := context.Background()

	_, err := client.Login(ctx, auth.Credentials{Email: "tutor@cursos.test", Password: "incorrecta"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = client.Login(ctx, auth.Credentials{Email: "bloqueado@cursos.test", Password: "bloqueado123"})
	assert.ErrorIs(t, err, auth.ErrAccountLocked)
}

func TestClientRegisterReportsFields(t *testing.T) {
	srv := devauthtest.NewServer(t)
	client := newClient(srv.URL, nil)

	_, err := client.Register(context.Background(), auth.Registration{
		Name:                 "Repetida",
		Email:                "tutor@cursos.test",
		Password:             "secreto123",
		PasswordConfirmation: "secreto123",
	})
	require.ErrorIs(t, err, auth.ErrValidation)
	var svcErr *auth.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, http.StatusUnprocessableEntity, svcErr.Status)
	assert.Equal(t, "El correo ya está registrado", svcErr.Message)
	assert.Equal(t, map[string][]string{"email": {"unique"}}, svcErr.Fields)
}

func TestClientStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		call   func(c *authclient.Client) error
		want   error
	}{
		{"login forbidden", http.StatusForbidden, func(c *authclient.Client) error {
			_, err := c.Login(context.Background(), auth.Credentials{Email: "a@b.c", Password: "12345678"})
			return err
		}, auth.ErrInvalidCredentials},
		{"login teapot", http.StatusTeapot, func(c *authclient.Client) error {
			_, err := c.Login(context.Background(), auth.Credentials{Email: "a@b.c", Password: "12345678"})
			return err
		}, auth.ErrRejected},
		{"register conflict", http.StatusConflict, func(c *authclient.Client) error {
			_, err := c.Register(context.Background(), auth.Registration{})
			return err
		}, auth.ErrValidation},
		{"me forbidden", http.StatusForbidden, func(c *authclient.Client) error {
			_, err := c.CurrentUser(context.Background(), "token")
			return err
		}, auth.ErrUnauthorized},
		{"server error", http.StatusInternalServerError, func(c *authclient.Client) error {
			_, err := c.CurrentUser(context.Background(), "token")
			return err
		}, auth.ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := fixedResponse(tc.status, `{"message":"nope"}`)
			defer srv.Close()
			err := tc.call(newClient(srv.URL, nil))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestClientMalformedPayload(t *testing.T) {
	cases := map[string]string{
		"not json":      `<html>`,
		"missing token": `{"user":{"id":1,"name":"A","email":"a@b.c","role":{"slug":"tutor"}}}`,
		"missing user":  `{"token":"abc"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := fixedResponse(http.StatusOK, body)
			defer srv.Close()
			_, err := newClient(srv.URL, nil).Login(context.Background(), auth.Credentials{Email: "a@b.c", Password: "12345678"})
			assert.ErrorIs(t, err, auth.ErrMalformedResponse)
		})
	}
}

func TestClientAcceptsNumericIDsAndUnknownRoles(t *testing.T) {
	srv := fixedResponse(http.StatusOK, `{"user":{"id":42,"name":"A","email":"a@b.c","role":{"slug":"superuser","name":"Super"}}}`)
	defer srv.Close()

	user, err := newClient(srv.URL, nil).CurrentUser(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "42", user.ID)
	assert.Equal(t, rbac.RoleNone, user.Role)
}

func TestClientEmptyTokenNeverCallsService(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()
	client := newClient(srv.URL, nil)

	_, err := client.CurrentUser(context.Background(), "  ")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	assert.NoError(t, client.Logout(context.Background(), ""))
	assert.Zero(t, hits.Load())
}

func TestClientBreakerOpensOnOutage(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	rec := &recorder{}
	client := newClient(srv.URL, rec)

	for i := 0; i < 4; i++ {
		_, err := client.CurrentUser(context.Background(), "token")
		assert.ErrorIs(t, err, auth.ErrUnavailable)
	}
	assert.Equal(t, int32(2), hits.Load())
	for _, o := range rec.obs {
		assert.Equal(t, "unavailable", o.outcome)
	}
}

func TestClientBreakerIgnoresRejections(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	client := newClient(srv.URL, nil)

	for i := 0; i < 4; i++ {
		_, err := client.Login(context.Background(), auth.Credentials{Email: "a@b.c", Password: "12345678"})
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	}
	assert.Equal(t, int32(4), hits.Load())
}

func TestClientUnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newClient(url, nil).CurrentUser(context.Background(), "token")
	assert.ErrorIs(t, err, auth.ErrUnavailable)
}

func TestClientSharesConcurrentValidations(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"7","name":"A","email":"a@b.c","role":{"slug":"instructor"}}}`))
	}))
	defer srv.Close()
	client := newClient(srv.URL, nil)

	var wg sync.WaitGroup
	users := make([]auth.User, 5)
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := client.CurrentUser(context.Background(), "shared-token")
			assert.NoError(t, err)
			users[i] = user
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	for _, user := range users {
		assert.Equal(t, rbac.RoleInstructor, user.Role)
	}
}

func TestClientCancelledCallerDoesNotFailSharedValidation(t *testing.T) {
	var hits atomic.Int32
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		entered <- struct{}{}
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user":{"id":"7","name":"A","email":"a@b.c","role":{"slug":"tutor"}}}`))
	}))
	defer srv.Close()
	defer close(release)
	client := newClient(srv.URL, nil)

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := client.CurrentUser(leaderCtx, "shared-token")
		leaderErr <- err
	}()
	<-entered

	type result struct {
		user auth.User
		err  error
	}
	follower := make(chan result, 1)
	go func() {
		user, err := client.CurrentUser(context.Background(), "shared-token")
		follower <- result{user: user, err: err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	release <- struct{}{}
	got := <-follower
	require.NoError(t, got.err)
	assert.Equal(t, rbac.RoleTutor, got.user.Role)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClientCancelledCallsDoNotTripBreaker(t *testing.T) {
	srv := devauthtest.NewServer(t)
	rec := &recorder{}
	client := newClient(srv.URL, rec)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		_, err := client.Login(cancelled, auth.Credentials{Email: "tutor@cursos.test", Password: "tutor12345"})
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, auth.ErrUnavailable)
	}

	result, err := client.Login(context.Background(), auth.Credentials{Email: "tutor@cursos.test", Password: "tutor12345"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	require.Len(t, rec.obs, 4)
	assert.Equal(t, "canceled", rec.obs[0].outcome)
	assert.Equal(t, "ok", rec.obs[3].outcome)
}
