package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/jeandeaual/go-locale"
	"golang.org/x/text/language"

	"launcher/internal/config"
)

var detectLanguage = locale.GetLanguage

// seedLanguage picks the display language from the OS on the very first run,
// before any settings file exists.
func seedLanguage() error {
	path, err := config.WritablePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	osLang, err := detectLanguage()
	if err != nil {
		return err
	}
	code := launcherLanguage(osLang)
	if code == "" {
		log.Logf("OS language %q not supported; keeping %s", osLang, config.DefaultLanguage)
		return nil
	}
	cfg, err := config.LoadLauncherConfig()
	if err != nil {
		return err
	}
	cfg.Language = code
	log.Logf("first run: language %s from OS %q", code, osLang)
	return config.SaveLauncherConfig(cfg)
}

// launcherLanguage maps an OS locale such as "ja_JP" or "zh-Hant" onto a
// supported launcher code, or "" when there is none.
func launcherLanguage(osLang string) string {
	tag, err := language.Parse(osLang)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	switch base.String() {
	case "en":
		return "en"
	case "vi":
		return "vi"
	case "ja":
		return "jp"
	case "zh":
		return "zh"
	default:
		return ""
	}
}
