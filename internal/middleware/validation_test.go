package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/gddickinson/flipr-calcium-response-analysis-sub000/internal/errors"
)

type labelRequest struct {
	Wells []string `json:"wells" validate:"required,min=1,dive,well_id"`
	Label string   `json:"label" validate:"required"`
}

func TestValidateRequest(t *testing.T) {
	m := NewValidationMiddleware(quietLogger(), apierrors.NewErrorHandler(quietLogger(), false), 64)

	var reached bool
	h := m.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
		wantReached bool
	}{
		{name: "valid json", method: http.MethodPost, contentType: "application/json", body: `{"a":1}`, wantStatus: http.StatusNoContent, wantReached: true},
		{name: "invalid json", method: http.MethodPut, contentType: "application/json", body: `{"a":`, wantStatus: http.StatusBadRequest},
		{name: "too large", method: http.MethodPost, contentType: "application/json", body: `{"a":"` + strings.Repeat("x", 100) + `"}`, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "upload passes through", method: http.MethodPost, contentType: "text/plain", body: "A1\t1\t2", wantStatus: http.StatusNoContent, wantReached: true},
		{name: "get skipped", method: http.MethodGet, wantStatus: http.StatusNoContent, wantReached: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(tt.method, "/api/v1/layout", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantReached, reached)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "valid", body: `{"wells":["A1","B2"],"label":"Ionomycin"}`},
		{name: "empty body", body: "", wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "wrong type", body: `{"wells":"A1"}`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "bad well", body: `{"wells":["Z9"],"label":"x"}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_FAILED"},
		{name: "missing label", body: `{"wells":["A1"]}`, wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst labelRequest
			err := DecodeJSON(req, &dst)
			if tt.wantStatus == 0 {
				require.NoError(t, err)
				assert.Equal(t, []string{"A1", "B2"}, dst.Wells)
				return
			}
			var apiErr *apierrors.APIError
			require.True(t, errors.As(err, &apiErr), "got %v", err)
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
			assert.Equal(t, tt.wantCode, apiErr.ErrorCode)
		})
	}
}

func TestValidateStruct_Details(t *testing.T) {
	err := ValidateStruct(labelRequest{Wells: []string{"A1", "Q1"}})
	var apiErr *apierrors.APIError
	require.True(t, errors.As(err, &apiErr))

	details, ok := apiErr.Details.(apierrors.ValidationErrors)
	require.True(t, ok)
	fields := make([]string, len(details.Errors))
	for i, e := range details.Errors {
		fields[i] = e.Field
	}
	assert.ElementsMatch(t, []string{"wells[1]", "label"}, fields)
}

func TestContentTypeValidator(t *testing.T) {
	h := ContentTypeValidator("application/json", "multipart/form-data")(okHandler())

	tests := []struct {
		name        string
		method      string
		contentType string
		want        int
	}{
		{name: "json", method: http.MethodPost, contentType: "application/json; charset=utf-8", want: http.StatusOK},
		{name: "multipart", method: http.MethodPost, contentType: "multipart/form-data; boundary=x", want: http.StatusOK},
		{name: "missing", method: http.MethodPost, want: http.StatusBadRequest},
		{name: "unsupported", method: http.MethodPut, contentType: "text/xml", want: http.StatusUnsupportedMediaType},
		{name: "get ignored", method: http.MethodGet, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestQueryParamValidator(t *testing.T) {
	v := NewQueryParamValidator(apierrors.NewErrorHandler(quietLogger(), false))

	t.Run("int", func(t *testing.T) {
		rec := httptest.NewRecorder()
		n, ok := v.ValidateInt(rec, httptest.NewRequest(http.MethodGet, "/?limit=5", nil), "limit", 1, 96, 96)
		assert.True(t, ok)
		assert.Equal(t, 5, n)

		n, ok = v.ValidateInt(rec, httptest.NewRequest(http.MethodGet, "/", nil), "limit", 1, 96, 96)
		assert.True(t, ok)
		assert.Equal(t, 96, n)

		rec = httptest.NewRecorder()
		_, ok = v.ValidateInt(rec, httptest.NewRequest(http.MethodGet, "/?limit=200", nil), "limit", 1, 96, 96)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("enum", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s, ok := v.ValidateEnum(rec, httptest.NewRequest(http.MethodGet, "/?format=CSV", nil), "format", []string{"csv", "xlsx"}, "xlsx")
		assert.True(t, ok)
		assert.Equal(t, "csv", s)

		rec = httptest.NewRecorder()
		_, ok = v.ValidateEnum(rec, httptest.NewRequest(http.MethodGet, "/?format=pdf", nil), "format", []string{"csv", "xlsx"}, "xlsx")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bool", func(t *testing.T) {
		rec := httptest.NewRecorder()
		b, ok := v.ValidateBool(rec, httptest.NewRequest(http.MethodGet, "/?fit=true", nil), "fit", false)
		assert.True(t, ok)
		assert.True(t, b)

		rec = httptest.NewRecorder()
		_, ok = v.ValidateBool(rec, httptest.NewRequest(http.MethodGet, "/?fit=maybe", nil), "fit", false)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
