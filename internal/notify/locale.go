package notify

import (
	"golang.org/x/text/language"
)

type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
)

type Locale struct {
	Code string
	Tag  language.Tag
	Dir  Direction
}

// Supported locales; the first is the fallback.
var locales = []Locale{
	{Code: "fr", Tag: language.French, Dir: LTR},
	{Code: "ar", Tag: language.Arabic, Dir: RTL},
	{Code: "en", Tag: language.English, Dir: LTR},
}

var matcher = language.NewMatcher(tags())

func tags() []language.Tag {
	out := make([]language.Tag, len(locales))
	for i, l := range locales {
		out[i] = l.Tag
	}
	return out
}

// ResolveLocale picks the closest supported locale for a BCP 47 tag or an
// Accept-Language style list. Unknown or empty input falls back to def, then
// to French.
func ResolveLocale(requested, def string) Locale {
	if requested == "" {
		requested = def
	}
	if t, _, err := language.ParseAcceptLanguage(requested); err == nil && len(t) > 0 {
		_, idx, conf := matcher.Match(t...)
		if conf != language.No {
			return locales[idx]
		}
	}
	if def != "" && def != requested {
		return ResolveLocale(def, "")
	}
	return locales[0]
}

func SupportedLocales() []string {
	out := make([]string, len(locales))
	for i, l := range locales {
		out[i] = l.Code
	}
	return out
}
