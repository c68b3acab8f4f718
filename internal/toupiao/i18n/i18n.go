// Package i18n resolves the request culture and translates UI strings.
// zh-Hans is the default culture; en-US is the only other one.
package i18n

import (
	"net/url"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// CookieName holds the user's culture choice as "c=<tag>|uic=<tag>".
const CookieName = ".AspNetCore.Culture"

var (
	ZhHans = language.MustParse("zh-Hans")
	EnUS   = language.AmericanEnglish

	// Supported lists the cultures in preference order.
	Supported = []language.Tag{ZhHans, EnUS}

	matcher = language.NewMatcher(Supported)
	cat     = buildCatalog()
)

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(ZhHans))
	for _, m := range messages {
		_ = b.SetString(ZhHans, m.key, m.zh)
		en := m.en
		if en == "" {
			en = m.key
		}
		_ = b.SetString(EnUS, m.key, en)
	}
	return b
}

// Name is the culture name used in cookies and the html lang attribute.
func Name(tag language.Tag) string {
	if tag == EnUS {
		return "en-US"
	}
	return "zh-Hans"
}

// Parse maps a culture name onto a supported tag.
func Parse(s string) (language.Tag, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return language.Und, false
	}
	t, err := language.Parse(s)
	if err != nil {
		return language.Und, false
	}
	_, idx, conf := matcher.Match(t)
	if conf < language.High {
		return language.Und, false
	}
	return Supported[idx], true
}

// CookieValue formats tag for CookieName.
func CookieValue(tag language.Tag) string {
	n := Name(tag)
	return "c=" + n + "|uic=" + n
}

// ParseCookieValue reads a CookieName value. The cookie may be URL encoded.
func ParseCookieValue(v string) (language.Tag, bool) {
	if dec, err := url.QueryUnescape(v); err == nil {
		v = dec
	}
	var c, uic string
	for _, part := range strings.Split(v, "|") {
		k, val, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch k {
		case "c":
			c = val
		case "uic":
			uic = val
		}
	}
	if uic == "" {
		uic = c
	}
	return Parse(uic)
}

// Resolve picks the culture: query string, then cookie, then
// Accept-Language, then def.
func Resolve(query url.Values, cookie, acceptLanguage string, def language.Tag) language.Tag {
	for _, key := range []string{"ui-culture", "culture"} {
		if t, ok := Parse(query.Get(key)); ok {
			return t
		}
	}
	if cookie != "" {
		if t, ok := ParseCookieValue(cookie); ok {
			return t
		}
	}
	if acceptLanguage != "" {
		tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
		if err == nil && len(tags) > 0 {
			_, idx, conf := matcher.Match(tags...)
			if conf >= language.High {
				return Supported[idx]
			}
		}
	}
	return def
}

// Localizer translates message keys for one culture.
type Localizer struct {
	tag language.Tag
	p   *message.Printer
}

func New(tag language.Tag) *Localizer {
	return &Localizer{tag: tag, p: message.NewPrinter(tag, message.Catalog(cat))}
}

func (l *Localizer) Tag() language.Tag { return l.tag }
func (l *Localizer) Name() string      { return Name(l.tag) }

// T translates key, formatting args into it.
func (l *Localizer) T(key string, args ...any) string {
	return l.p.Sprintf(key, args...)
}
