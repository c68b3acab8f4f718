package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/i18n"
	"github.com/aussiebroadwan/toupiao/pkg/cryptox"
	"github.com/aussiebroadwan/toupiao/pkg/httpx"
	"github.com/aussiebroadwan/toupiao/pkg/idx"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
)

const (
	antiforgeryField  = "__RequestVerificationToken"
	antiforgeryHeader = "RequestVerificationToken"

	cultureCookieTTL = 365 * 24 * time.Hour
)

// culture picks the request culture from the query, the culture cookie,
// Accept-Language and finally the configured default. An explicit
// ?culture= choice is remembered in the cookie.
func (rt *Router) culture(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		tag := i18n.Resolve(q, cookieValue(r, i18n.CookieName), r.Header.Get("Accept-Language"), rt.opts.DefaultCulture)

		for _, key := range []string{"ui-culture", "culture"} {
			if chosen, ok := i18n.Parse(q.Get(key)); ok {
				rt.setCookie(w, i18n.CookieName, i18n.CookieValue(chosen), rt.now().Add(cultureCookieTTL), false)
				break
			}
		}

		w.Header().Set("Content-Language", i18n.Name(tag))
		next.ServeHTTP(w, r.WithContext(withLocalizer(r.Context(), i18n.New(tag))))
	})
}

// authenticate resolves the session cookie to a Principal. Invalid or
// stale sessions are dropped and the request continues anonymously.
func (rt *Router) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := cookieValue(r, identityCookie)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		u, claims, err := rt.SignIn.ValidateSession(ctx, token)
		if err != nil {
			slogx.FromContext(ctx).Debug("dropping session cookie", "err", err)
			rt.signOut(w)
			next.ServeHTTP(w, r)
			return
		}
		isAdmin, err := rt.Users.IsInRole(ctx, u, domain.RoleAdmin)
		if err != nil {
			rt.serverError(w, r, err)
			return
		}

		ctx = withPrincipal(ctx, &Principal{User: u, Claims: claims, IsAdmin: isAdmin})
		ctx = httpx.WithUserID(ctx, u.ID)
		ctx = slogx.With(ctx, "user_id", u.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// antiforgery issues the per-browser request verification token and checks
// it on unsafe form posts. The cookie holds the token sealed with the
// cookie keys; forms echo the plain token.
func (rt *Router) antiforgery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if c, err := r.Cookie(antiforgeryCookie); err == nil {
			if err := rt.codec.Decode(antiforgeryCookie, c.Value, &token); err != nil {
				token = ""
			}
		}

		issued := false
		if token == "" {
			t, err := cryptox.GenerateToken(cryptox.TokenSize256)
			if err != nil {
				rt.serverError(w, r, err)
				return
			}
			encoded, err := rt.codec.Encode(antiforgeryCookie, t)
			if err != nil {
				rt.serverError(w, r, err)
				return
			}
			rt.setCookie(w, antiforgeryCookie, encoded, time.Time{}, true)
			token, issued = t, true
		}

		if isUnsafe(r.Method) && !strings.HasPrefix(r.URL.Path, "/api/") {
			submitted := r.Header.Get(antiforgeryHeader)
			if submitted == "" {
				submitted = r.PostFormValue(antiforgeryField)
			}
			if issued || submitted == "" || !cryptox.EqualTokens(submitted, token) {
				slogx.FromContext(r.Context()).Warn("antiforgery token validation failed")
				http.Error(w, "Bad Request: antiforgery token validation failed", http.StatusBadRequest)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(withCSRFToken(r.Context(), token)))
	})
}

func isUnsafe(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	return true
}

// requireUser sends anonymous visitors to the login page.
func (rt *Router) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			rt.redirect(w, r, "/Identity/Account/Login", url.Values{"ReturnUrl": {r.URL.RequestURI()}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin additionally demands the ADMIN role.
func (rt *Router) requireAdmin(next http.Handler) http.Handler {
	return rt.requireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, _ := PrincipalFromContext(r.Context()); !p.IsAdmin {
			rt.redirect(w, r, "/Identity/Account/AccessDenied", url.Values{"ReturnUrl": {r.URL.RequestURI()}})
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// validID answers malformed {id} route values with notFound and hands the
// canonical form to next.
func validID(notFound http.Handler) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := idx.Parse(r.PathValue("id"))
			if err != nil {
				notFound.ServeHTTP(w, r)
				return
			}
			r.SetPathValue("id", id.String())
			next.ServeHTTP(w, r)
		})
	}
}

// countLimited records rejected requests of route. It must wrap the rate
// limiter.
func (rt *Router) countLimited(route string) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			if sw.status == http.StatusTooManyRequests {
				rt.metrics.Limited(route)
			}
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Unwrap() http.ResponseWriter { return sw.ResponseWriter }
