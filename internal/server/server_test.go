package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/typoreporter/apiserver/config"
	"github.com/typoreporter/apiserver/internal/account"
	"github.com/typoreporter/apiserver/internal/logging"
	"github.com/typoreporter/apiserver/internal/security"
	"github.com/typoreporter/apiserver/internal/services"
	"github.com/typoreporter/apiserver/internal/store"
	"golang.org/x/crypto/bcrypt"
)

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(context.Background(), config.Config{})
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestNewRouter_Routes(t *testing.T) {
	repo := store.NewMemoryAccountRepository()
	svc := services.NewAccountService(repo, repo, account.NewPolicy(0), security.NewHasher(bcrypt.MinCost), logging.Discard())
	router := NewRouter(svc, security.NewTokenIssuer("secret", time.Hour), logging.Discard())

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/account", "", http.StatusUnauthorized},
		{http.MethodPut, "/account/update", "{}", http.StatusUnauthorized},
		{http.MethodPost, "/login", "{}", http.StatusBadRequest},
		{http.MethodDelete, "/healthz", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, tt.status, rec.Code, "%s %s", tt.method, tt.path)
	}
}
