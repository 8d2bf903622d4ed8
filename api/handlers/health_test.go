package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 HealthHandler 测试
// =============================================================================

func TestHealthHandler_HandleHealth(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())
	handler.RegisterCheck(NewFuncCheck("db", func(context.Context) error { return errors.New("down") }))

	w := httptest.NewRecorder()
	handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code, "liveness ignores readiness checks")
	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.False(t, status.Timestamp.IsZero())
}

func TestHealthHandler_HandleReady(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantStatus int
		wantState  string
	}{
		{"no checks", nil, http.StatusOK, "healthy"},
		{
			name: "all pass",
			checks: []HealthCheck{
				NewFuncCheck("database", func(context.Context) error { return nil }),
				NewFuncCheck("redis", func(context.Context) error { return nil }),
			},
			wantStatus: http.StatusOK,
			wantState:  "healthy",
		},
		{
			name: "one fails",
			checks: []HealthCheck{
				NewFuncCheck("database", func(context.Context) error { return nil }),
				NewFuncCheck("redis", func(context.Context) error { return errors.New("connection refused") }),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(nil)
			for _, c := range tt.checks {
				handler.RegisterCheck(c)
			}

			w := httptest.NewRecorder()
			handler.HandleReady(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			var status HealthStatus
			require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
			assert.Equal(t, tt.wantState, status.Status)
			assert.Len(t, status.Checks, len(tt.checks))
			if tt.wantState == "unhealthy" {
				assert.Equal(t, "fail", status.Checks["redis"].Status)
				assert.Equal(t, "connection refused", status.Checks["redis"].Message)
				assert.Equal(t, "pass", status.Checks["database"].Status)
			}
		})
	}
}

func TestHealthHandler_ReadyPassesDeadline(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())
	var hasDeadline bool
	handler.RegisterCheck(NewFuncCheck("deadline", func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	}))

	handler.HandleReady(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.True(t, hasDeadline)
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	handler := NewHealthHandler(zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleVersion("1.2.3", "2026-01-01", "abc123")(w, httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "1.2.3", resp.Data["version"])
	assert.Equal(t, "abc123", resp.Data["git_commit"])
}
