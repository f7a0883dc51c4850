package main

import (
	"errors"

	"github.com/charmbracelet/huh"
	"golang.org/x/text/language/display"

	"launcher/internal/config"
	"launcher/internal/ui"
)

type settingsValues struct {
	Language        string
	CloseBehavior   string
	LaunchAtStartup bool
}

func newSettingsForm(v *settingsValues) *huh.Form {
	langs := make([]huh.Option[string], 0, len(config.SupportedLanguages))
	for _, code := range config.SupportedLanguages {
		langs = append(langs, huh.NewOption(languageName(code), code))
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Language").
				Options(langs...).
				Value(&v.Language),
			huh.NewSelect[string]().
				Title("When the game starts").
				Options(
					huh.NewOption("Minimize the launcher to the tray", string(config.CloseMinimizeToTray)),
					huh.NewOption("Exit the launcher", string(config.CloseExit)),
				).
				Value(&v.CloseBehavior),
			huh.NewConfirm().
				Title("Start the launcher when you log in?").
				Value(&v.LaunchAtStartup),
		),
	)
}

// languageName renders a language code in its own language, e.g. "日本語".
func languageName(code string) string {
	if name := display.Self.Name(ui.LanguageTag(code)); name != "" {
		return name
	}
	return code
}

var runSettingsForm = func(v *settingsValues) error {
	return newSettingsForm(v).Run()
}

// editSettings shows the settings form and persists the result. Aborting the
// form leaves the settings untouched.
func editSettings() error {
	cfg, err := config.LoadLauncherConfig()
	if err != nil {
		return err
	}
	v := settingsValues{
		Language:        cfg.Language,
		CloseBehavior:   string(cfg.CloseBehavior),
		LaunchAtStartup: cfg.LaunchAtStartup,
	}
	if err := runSettingsForm(&v); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		return err
	}
	return config.SaveLauncherConfig(config.LauncherConfig{
		Language:        v.Language,
		CloseBehavior:   config.CloseBehavior(v.CloseBehavior),
		LaunchAtStartup: v.LaunchAtStartup,
	})
}
