package category

import (
	"strings"

	"golang.org/x/text/language"
)

// Supported UI languages.
const (
	LangEn = "en"
	LangFr = "fr"
	LangAr = "ar"
)

type Labels struct {
	Name   string
	NameFr string
	NameAr string
}

// Labeled is anything that carries localized display names.
type Labeled interface {
	Labels() Labels
}

// LocalizedLabel picks the display name for lang. A missing or blank
// translation falls back to the default name, and so does any language other
// than fr and ar.
func LocalizedLabel(e Labeled, lang string) string {
	if e == nil {
		return ""
	}
	l := e.Labels()

	switch lang {
	case LangAr:
		if strings.TrimSpace(l.NameAr) != "" {
			return l.NameAr
		}
	case LangFr:
		if strings.TrimSpace(l.NameFr) != "" {
			return l.NameFr
		}
	}
	return l.Name
}

// Direction is the text direction of lang.
func Direction(lang string) string {
	if lang == LangAr {
		return "rtl"
	}
	return "ltr"
}

var (
	supportedCodes = []string{LangEn, LangFr, LangAr}
	langMatcher    = language.NewMatcher([]language.Tag{
		language.English,
		language.French,
		language.Arabic,
	})
)

// NormalizeLang maps a language tag or an Accept-Language value onto one of
// the supported codes. Anything unrecognised becomes en.
func NormalizeLang(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return LangEn
	}

	tags, _, err := language.ParseAcceptLanguage(value)
	if err != nil || len(tags) == 0 {
		return LangEn
	}

	_, i, conf := langMatcher.Match(tags...)
	if conf == language.No || i < 0 || i >= len(supportedCodes) {
		return LangEn
	}
	return supportedCodes[i]
}
