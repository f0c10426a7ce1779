package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Simon-Egedal/farmor-aktier/internal/common"
	"github.com/Simon-Egedal/farmor-aktier/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerTokenMiddleware_PopulatesUserContext(t *testing.T) {
	cfg := common.NewDefaultConfig()
	store := newMemInternalStore()
	store.users["farmor"] = &models.InternalUser{
		UserID:   "farmor",
		Username: "farmor",
		Role:     "user",
	}

	token, err := signJWT(store.users["farmor"], &cfg.Auth)
	require.NoError(t, err)

	var gotUserID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uc := common.UserContextFromContext(r.Context()); uc != nil {
			gotUserID = uc.UserID
		}
		w.WriteHeader(http.StatusOK)
	})

	handler := bearerTokenMiddleware(cfg, store)(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "farmor", gotUserID)
}

func TestBearerTokenMiddleware_InvalidToken(t *testing.T) {
	cfg := common.NewDefaultConfig()
	store := newMemInternalStore()

	handler := bearerTokenMiddleware(cfg, store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestBearerTokenMiddleware_UnknownUser(t *testing.T) {
	cfg := common.NewDefaultConfig()
	store := newMemInternalStore()

	token, err := signJWT(&models.InternalUser{UserID: "ghost"}, &cfg.Auth)
	require.NoError(t, err)

	handler := bearerTokenMiddleware(cfg, store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerTokenMiddleware_NoHeaderPassesThrough(t *testing.T) {
	cfg := common.NewDefaultConfig()
	store := newMemInternalStore()

	handler := bearerTokenMiddleware(cfg, store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No user context means services fall back to the default scope
		uid := common.ResolveUserID(r.Context())
		assert.Equal(t, "default", uid)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCorrelationIDMiddleware_GeneratesID(t *testing.T) {
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, common.CorrelationIDFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Len(t, rec.Header().Get("X-Correlation-ID"), 8)
}

func TestCorrelationIDMiddleware_PreservesRequestID(t *testing.T) {
	handler := correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Correlation-ID"))
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler should not run for OPTIONS")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/portfolio", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware_CatchesPanic(t *testing.T) {
	logger := common.NewSilentLogger()
	handler := recoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWriteDomainError_Mapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid amount", models.ErrInvalidAmount, http.StatusBadRequest},
		{"invalid shares", models.ErrInvalidShares, http.StatusBadRequest},
		{"insufficient funds", models.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{"insufficient shares", models.ErrInsufficientShares, http.StatusUnprocessableEntity},
		{"version conflict", models.ErrVersionConflict, http.StatusConflict},
		{"not found", models.ErrNotFound, http.StatusNotFound},
		{"unknown", errors.New("kaboom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteDomainError(rec, tc.err)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestLoggingMiddleware_CapturesStatus(t *testing.T) {
	logger := common.NewSilentLogger()
	handler := loggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Millisecond)
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
}
