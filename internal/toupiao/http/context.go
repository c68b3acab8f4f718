package http

import (
	"context"

	"github.com/aussiebroadwan/toupiao/internal/toupiao/domain"
	"github.com/aussiebroadwan/toupiao/internal/toupiao/i18n"
	"github.com/aussiebroadwan/toupiao/pkg/jwtx"
)

type ctxKey int

const (
	ctxKeyPrincipal ctxKey = iota
	ctxKeyLocalizer
	ctxKeyCSRF
)

// Principal is the signed-in user of a request.
type Principal struct {
	User    domain.User
	Claims  *jwtx.Claims
	IsAdmin bool
}

func withPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// PrincipalFromContext returns the signed-in user, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(*Principal)
	return p, ok && p != nil
}

func withLocalizer(ctx context.Context, l *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKeyLocalizer, l)
}

// localizer falls back to the default culture outside the culture middleware.
func localizer(ctx context.Context) *i18n.Localizer {
	if l, ok := ctx.Value(ctxKeyLocalizer).(*i18n.Localizer); ok {
		return l
	}
	return i18n.New(i18n.ZhHans)
}

func withCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKeyCSRF, token)
}

func csrfToken(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyCSRF).(string)
	return v
}
