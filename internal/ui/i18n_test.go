package ui

import (
	"testing"

	"launcher/internal/config"
)

func TestEveryLanguageHasEveryMessage(t *testing.T) {
	ids := []string{
		"checking", "offline", "download", "update", "play", "installing",
		"status.checking", "status.offline", "status.missing", "status.update",
		"status.ready", "status.downloading", "status.error",
		"version.installed", "version.latest", "version.none", "checked",
		"server.maintenance", "server.closed", "news", "links", "copied",
		"key.action", "key.refresh", "key.language", "key.theme", "key.copy", "key.help", "key.quit",
	}
	english, err := NewTranslator("en")
	if err != nil {
		t.Fatalf("NewTranslator(en): %v", err)
	}
	for _, lang := range config.SupportedLanguages {
		tr, err := NewTranslator(lang)
		if err != nil {
			t.Fatalf("NewTranslator(%s): %v", lang, err)
		}
		for _, id := range ids {
			got := tr.T(id, map[string]any{"Version": "1.0.0", "Ago": "now"})
			if got == id {
				t.Errorf("%s: %q missing", lang, id)
			}
			if lang != "en" && got == english.T(id, map[string]any{"Version": "1.0.0", "Ago": "now"}) {
				t.Errorf("%s: %q falls back to English", lang, id)
			}
		}
	}
}

func TestTranslatorTemplatesAndFallback(t *testing.T) {
	tr, err := NewTranslator("vi")
	if err != nil {
		t.Fatal(err)
	}
	if got := tr.T("status.update", map[string]any{"Version": "2.0.0"}); got != "Đã có phiên bản 2.0.0" {
		t.Errorf("status.update = %q", got)
	}
	if got := tr.T("no.such.message", nil); got != "no.such.message" {
		t.Errorf("unknown id = %q, want the id itself", got)
	}

	unknown, err := NewTranslator("klingon")
	if err != nil {
		t.Fatal(err)
	}
	if unknown.Language() != "en" || unknown.T("play", nil) != "Play" {
		t.Errorf("unsupported language should render English, got %s/%q", unknown.Language(), unknown.T("play", nil))
	}

	var nilTr *Translator
	if got := nilTr.T("play", nil); got != "play" {
		t.Errorf("nil translator = %q", got)
	}
}

func TestNextLanguageCycles(t *testing.T) {
	tests := map[string]string{
		"en":  "vi",
		"vi":  "jp",
		"jp":  "zh",
		"zh":  "en",
		"xx":  "vi", // coerced to en first
		" ZH": "en",
	}
	for in, want := range tests {
		if got := NextLanguage(in); got != want {
			t.Errorf("NextLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
