package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/aussiebroadwan/toupiao/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestIsLocalURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"/", true},
		{"/Polls/Details/01ABC", true},
		{"/Identity/Account/Manage?tab=2fa", true},
		{"~/", true},
		{"~/Home/Index", true},
		{"", false},
		{"Home/Index", false},
		{"//evil.example.com", false},
		{"/\\evil.example.com", false},
		{"https://evil.example.com/", false},
		{"javascript:alert(1)", false},
		{"/ok\r\nSet-Cookie: x=1", false},
		{"~//evil.example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, httpx.IsLocalURL(tt.in))
		})
	}
}

func TestLocalRedirect(t *testing.T) {
	t.Run("local target", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httpx.LocalRedirect(rec, httptest.NewRequest(http.MethodPost, "/", nil), "~/Polls", "/")
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, "/Polls", rec.Header().Get("Location"))
	})

	t.Run("foreign target falls back", func(t *testing.T) {
		rec := httptest.NewRecorder()
		httpx.LocalRedirect(rec, httptest.NewRequest(http.MethodPost, "/", nil), "https://evil.example.com", "~/")
		require.Equal(t, "/", rec.Header().Get("Location"))
	})
}

func TestAbsoluteURL(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://vote.example.com/Identity/Account/Login", nil)

	got := httpx.AbsoluteURL(req, "/Identity/Account/ConfirmEmail", url.Values{"userId": {"01U"}, "code": {"abc"}})
	require.Equal(t, "http://vote.example.com/Identity/Account/ConfirmEmail?code=abc&userId=01U", got)
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.WriteJSON(rec, http.StatusCreated, map[string]int{"votes": 3})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"votes":3}`, rec.Body.String())
}
