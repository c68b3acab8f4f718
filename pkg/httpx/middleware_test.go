package httpx_test

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/toupiao/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mark("outer"), mark("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRecoverer(t *testing.T) {
	var got error
	h := httpx.Recoverer(func(w http.ResponseWriter, r *http.Request, err error) {
		got = err
		w.WriteHeader(http.StatusInternalServerError)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.ErrorContains(t, got, "boom")
}

func TestRecovererRepanicsOnAbort(t *testing.T) {
	h := httpx.Recoverer(func(w http.ResponseWriter, r *http.Request, err error) {
		t.Fatal("onPanic must not run for ErrAbortHandler")
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.SecurityHeaders()(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestHSTS(t *testing.T) {
	h := httpx.HSTS(720 * time.Hour)(okHandler())

	t.Run("https", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "https://vote.example.com/", nil)
		req.TLS = &tls.ConnectionState{}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, "max-age=2592000", rec.Header().Get("Strict-Transport-Security"))
	})

	t.Run("plain http", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://vote.example.com/", nil))
		require.Empty(t, rec.Header().Get("Strict-Transport-Security"))
	})

	t.Run("localhost", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "https://localhost:5001/", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Empty(t, rec.Header().Get("Strict-Transport-Security"))
	})
}

func TestHTTPSRedirect(t *testing.T) {
	h := httpx.HTTPSRedirect()(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://vote.example.com/Polls?page=2", nil))
	require.Equal(t, http.StatusPermanentRedirect, rec.Code)
	require.Equal(t, "https://vote.example.com/Polls?page=2", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://vote.example.com/livez", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "http://vote.example.com/", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestScheme(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Equal(t, "http", httpx.Scheme(req))

	req.Header.Set("X-Forwarded-Proto", "https, http")
	require.Equal(t, "https", httpx.Scheme(req))
	require.True(t, strings.HasPrefix(httpx.AbsoluteURL(req, "/a", nil), "https://"))
}
