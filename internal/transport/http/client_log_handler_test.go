package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
)

func TestClientLogHandler_Handle(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedLevel  string
	}{
		{
			name:           "valid log entry",
			body:           `{"level":"info","message":"plate view opened","data":{"component":"plate"}}`,
			expectedStatus: http.StatusOK,
			expectedLevel:  "INFO",
		},
		{
			name:           "error level",
			body:           `{"level":"error","message":"chart failed","source":"charts.ts"}`,
			expectedStatus: http.StatusOK,
			expectedLevel:  "ERROR",
		},
		{
			name:           "missing level defaults to info",
			body:           `{"message":"no level"}`,
			expectedStatus: http.StatusOK,
			expectedLevel:  "INFO",
		},
		{
			name:           "unknown level",
			body:           `{"level":"fatal","message":"boom"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing message",
			body:           `{"level":"info"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			body:           `invalid json`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
			handler := NewClientLogHandler(logger, apierrors.NewErrorHandler(quietLogger(), false))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/logs", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			handler.Handle(rec, req)

			require.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.expectedStatus != http.StatusOK {
				assert.Zero(t, logs.Len())
				return
			}

			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
			assert.Equal(t, true, response["success"])

			var entry map[string]interface{}
			require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
			assert.Equal(t, tt.expectedLevel, entry["level"])
			assert.Equal(t, "client_log", entry["handler"])
		})
	}
}
