package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded-for first valid", map[string]string{"X-Forwarded-For": "garbage, 198.51.100.4, 10.0.0.1"}, "10.0.0.2:80", "198.51.100.4"},
		{"cloudflare", map[string]string{"CF-Connecting-IP": "198.51.100.5"}, "10.0.0.2:80", "198.51.100.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.6"}, "10.0.0.2:80", "198.51.100.6"},
		{"forwarded", map[string]string{"Forwarded": `for="198.51.100.7";proto=https`}, "10.0.0.2:80", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.9:5555", "192.0.2.9"},
		{"nothing parses", nil, "not-an-addr", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			require.Equal(t, tc.want, ClientIP(r))
		})
	}
}

func TestMobileFormat(t *testing.T) {
	require.True(t, IsMobileFormat("+919876543210"))
	require.False(t, IsMobileFormat("9876543210"))
	require.False(t, IsMobileFormat("+12345"))
	require.Equal(t, "+919876543210", NormalizeMobile(" +91 (98765) 432-10 "))
	require.True(t, IsE164("+14155552671"))
	require.False(t, IsE164("+04155552671"))
}

func TestIsValidEmailSyntax(t *testing.T) {
	require.True(t, IsValidEmailSyntax("asha@example.com"))
	require.False(t, IsValidEmailSyntax("Asha <asha@example.com>"))
	require.False(t, IsValidEmailSyntax("asha@"))
}

func TestRandomHelpers(t *testing.T) {
	code := RandomNumericString(6)
	require.Len(t, code, 6)
	for _, c := range code {
		require.True(t, c >= '0' && c <= '9')
	}
	require.Len(t, RandomString(12), 12)
	require.Equal(t, HashToken("abc"), HashToken("abc"))
	require.NotEqual(t, HashToken("abc"), HashToken("abd"))
}

func TestHandleAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleAppError(rec, &AppError{
		StatusCode: http.StatusConflict,
		Code:       ErrCodeConflict,
		Message:    "busy",
		Err:        ErrRowVersionConflict,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, ErrCodeConflict, body.Code)
	require.Equal(t, "busy", body.Message)

	rec = httptest.NewRecorder()
	HandleAppError(rec, errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAppErrorUnwrap(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &AppError{Err: ErrNotFound})
	require.ErrorIs(t, err, ErrNotFound)
}
