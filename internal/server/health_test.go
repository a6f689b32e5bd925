package server_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workmgmt/tasklens/internal/server"
)

type failingPinger struct{ err error }

func (p failingPinger) Ping(_ context.Context) error { return p.err }

func TestHealthChecker(t *testing.T) {
	t.Parallel()
	log := slog.New(slog.DiscardHandler)

	t.Run("healthy database", func(t *testing.T) {
		t.Parallel()
		checker := server.NewHealthChecker(log, okPinger{})

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		checker.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var status map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "ok", status["database"])
	})

	t.Run("unreachable database", func(t *testing.T) {
		t.Parallel()
		checker := server.NewHealthChecker(log, failingPinger{err: assert.AnError})

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		checker.ServeHTTP(rec, req)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var status map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "unavailable", status["database"])
	})
}
