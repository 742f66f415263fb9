// Package devauthtest runs the development authentication service behind an
// httptest server for use in tests.
package devauthtest

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cursos-vacacionales/panel/internal/devauth"
)

// SigningKey signs every credential issued by test servers.
const SigningKey = "devauthtest-signing-key"

// Server is a seeded devauth instance.
type Server struct {
	*httptest.Server
	Service *devauth.Service
	Repo    *devauth.MemoryRepository
}

// NewServer starts a server seeded with devauth.DevelopmentAccounts. It is
// closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	repo := devauth.NewMemoryRepository()
	service := devauth.NewService(repo, SigningKey, time.Hour)
	if err := devauth.Seed(context.Background(), service, devauth.DevelopmentAccounts); err != nil {
		t.Fatalf("seed devauth: %v", err)
	}

	router := chi.NewRouter()
	router.Route("/auth", devauth.NewHandler(nil, service).MountRoutes)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &Server{Server: srv, Service: service, Repo: repo}
}
