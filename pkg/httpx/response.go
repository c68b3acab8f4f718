package httpx

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// WriteJSON writes v as JSON with the given status code and no-store caching.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// WantsHTML reports whether the client prefers an HTML response.
func WantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// IsLocalURL reports whether raw is an application-relative path that is safe
// to redirect to. Absolute URLs, protocol-relative URLs ("//host") and the
// backslash variants browsers normalise ("/\host") are rejected.
func IsLocalURL(raw string) bool {
	if strings.HasPrefix(raw, "~/") {
		raw = raw[1:]
	}
	if raw == "" || raw[0] != '/' {
		return false
	}
	if len(raw) == 1 {
		return true
	}
	if raw[1] == '/' || raw[1] == '\\' {
		return false
	}
	if strings.ContainsAny(raw, "\r\n\t") {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && u.Scheme == "" && u.Host == ""
}

// LocalRedirect redirects to target when it is local and to fallback otherwise.
func LocalRedirect(w http.ResponseWriter, r *http.Request, target, fallback string) {
	if !IsLocalURL(target) {
		target = fallback
	}
	target = strings.TrimPrefix(target, "~")
	http.Redirect(w, r, target, http.StatusFound)
}

// AbsoluteURL resolves path against the scheme and host the request came in on.
func AbsoluteURL(r *http.Request, path string, query url.Values) string {
	u := url.URL{
		Scheme: Scheme(r),
		Host:   r.Host,
		Path:   path,
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}
