package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/service"
	"github.com/aussiebroadwan/toupiao/pkg/slogx"
)

const (
	identityCookie        = ".Toupiao.Identity"
	twoFactorCookie       = "Identity.TwoFactorUserId"
	rememberMachineCookie = "Identity.TwoFactorRememberMe"
	tempDataCookie        = ".Toupiao.TempData"
	antiforgeryCookie     = ".Toupiao.Antiforgery"

	// isAdminCookie is a display hint for the front end. Authorization
	// always checks the stored roles.
	isAdminCookie = "IsAdmin"
	isAdminTTL    = 365 * 24 * time.Hour
)

func (p *pages) setCookie(w http.ResponseWriter, name, value string, expires time.Time, httpOnly bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: httpOnly,
		Secure:   p.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (p *pages) deleteCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   p.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeTicket stores a signed ticket. Non-persistent tickets become
// browser-session cookies.
func (p *pages) writeTicket(w http.ResponseWriter, name string, t *service.Ticket) {
	if t == nil {
		return
	}
	var expires time.Time
	if t.Persistent {
		expires = t.ExpiresAt
	}
	p.setCookie(w, name, t.Value, expires, true)
}

// signIn writes the session cookie after a completed sign-in and drops the
// pending two-factor cookie.
func (p *pages) signIn(w http.ResponseWriter, session *service.Ticket, isAdmin bool) {
	p.writeTicket(w, identityCookie, session)
	p.deleteCookie(w, twoFactorCookie)
	if isAdmin {
		p.setCookie(w, isAdminCookie, "1", p.now().Add(isAdminTTL), false)
	}
}

func (p *pages) signOut(w http.ResponseWriter) {
	p.deleteCookie(w, identityCookie)
	p.deleteCookie(w, twoFactorCookie)
	p.deleteCookie(w, isAdminCookie)
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// takeTempData reads and clears the flash values for keys in one cookie
// write. Values for other keys stay.
func (p *pages) takeTempData(w http.ResponseWriter, r *http.Request, keys ...string) map[string]string {
	c, err := r.Cookie(tempDataCookie)
	if err != nil {
		return nil
	}
	values := map[string]string{}
	if err := p.codec.Decode(tempDataCookie, c.Value, &values); err != nil {
		slogx.FromContext(r.Context()).Debug("discarding unreadable temp data", "err", err)
		p.deleteCookie(w, tempDataCookie)
		return nil
	}

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := values[k]; ok {
			out[k] = v
			delete(values, k)
		}
	}
	if len(out) == 0 {
		return out
	}
	p.storeTempData(w, r, values)
	return out
}

// setTempData stores a flash value for the next request.
func (p *pages) setTempData(w http.ResponseWriter, r *http.Request, key, value string) {
	values := map[string]string{}
	if c, err := r.Cookie(tempDataCookie); err == nil {
		_ = p.codec.Decode(tempDataCookie, c.Value, &values)
	}
	values[key] = value
	p.storeTempData(w, r, values)
}

func (p *pages) storeTempData(w http.ResponseWriter, r *http.Request, values map[string]string) {
	if len(values) == 0 {
		p.deleteCookie(w, tempDataCookie)
		return
	}
	encoded, err := p.codec.Encode(tempDataCookie, values)
	if err != nil {
		slogx.FromContext(r.Context()).Error("failed to encode temp data", "err", err)
		return
	}
	p.setCookie(w, tempDataCookie, encoded, time.Time{}, true)
}
