package ui

import (
	"embed"
	"fmt"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"

	"launcher/internal/config"
)

//go:embed locales/*.toml
var localeFS embed.FS

var (
	bundleOnce sync.Once
	bundle     *i18n.Bundle
	bundleErr  error
)

// localeFiles maps launcher language codes to the embedded string tables.
// The launcher has always called Japanese "jp"; the BCP 47 tag is "ja".
var localeFiles = map[string]string{
	"en": "locales/en.toml",
	"vi": "locales/vi.toml",
	"jp": "locales/ja.toml",
	"zh": "locales/zh.toml",
}

var languageTags = map[string]language.Tag{
	"en": language.English,
	"vi": language.Vietnamese,
	"jp": language.Japanese,
	"zh": language.Chinese,
}

// LanguageTag returns the BCP 47 tag for a launcher language code.
func LanguageTag(code string) language.Tag {
	return languageTags[config.NormalizeLanguage(code)]
}

func loadBundle() (*i18n.Bundle, error) {
	bundleOnce.Do(func() {
		b := i18n.NewBundle(language.English)
		b.RegisterUnmarshalFunc("toml", toml.Unmarshal)
		for _, code := range config.SupportedLanguages {
			path, ok := localeFiles[code]
			if !ok {
				bundleErr = fmt.Errorf("no string table for language %q", code)
				return
			}
			if _, err := b.LoadMessageFileFS(localeFS, path); err != nil {
				bundleErr = fmt.Errorf("load %s: %w", path, err)
				return
			}
		}
		bundle = b
	})
	return bundle, bundleErr
}

// Translator renders string-table entries for one language. Missing entries
// fall back to English, then to the message id itself.
type Translator struct {
	lang      string
	localizer *i18n.Localizer
}

// NewTranslator returns a Translator for a launcher language code. Unknown
// codes are coerced the same way the settings file is.
func NewTranslator(lang string) (*Translator, error) {
	b, err := loadBundle()
	if err != nil {
		return nil, err
	}
	lang = config.NormalizeLanguage(lang)
	return &Translator{
		lang:      lang,
		localizer: i18n.NewLocalizer(b, LanguageTag(lang).String()),
	}, nil
}

// Language returns the launcher code this translator renders.
func (t *Translator) Language() string { return t.lang }

// T renders id with optional template data.
func (t *Translator) T(id string, data map[string]any) string {
	if t == nil || t.localizer == nil {
		return id
	}
	out, err := t.localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil || out == "" {
		return id
	}
	return out
}

// NextLanguage cycles through the supported codes.
func NextLanguage(current string) string {
	langs := config.SupportedLanguages
	current = config.NormalizeLanguage(current)
	for i, code := range langs {
		if code == current {
			return langs[(i+1)%len(langs)]
		}
	}
	return langs[0]
}
