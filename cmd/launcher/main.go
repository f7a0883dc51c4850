package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"launcher/internal/config"
	"launcher/internal/debug"
	"launcher/internal/ui"
	"launcher/internal/ui/theme"
)

var log = debug.Component("main")

const shutdownTimeout = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("launcher", flag.ContinueOnError)
	versionFlag := fs.Bool("version", false, "Print version information and exit")
	debugFlag := fs.Bool("debug", config.GetBool(config.KeyDebug), "Write a debug log to ~/.launcher/debug.log")
	checkFlag := fs.Bool("check", false, "Check for updates once, print the result and exit")
	jsonFlag := fs.Bool("json", false, "With -check, print the result as JSON")
	settingsFlag := fs.Bool("settings", false, "Edit launcher settings and exit")
	manifestURLFlag := fs.String("manifest-url", config.GetString(config.KeyManifestURL), "URL of the release manifest")
	gameDirFlag := fs.String("game-dir", config.GetString(config.KeyGameDir), "Directory the game is installed into")
	langFlag := fs.String("lang", config.GetString(config.KeyLanguage), "Display language (en, vi, jp, zh)")
	themeFlag := fs.String("theme", config.GetString(config.KeyTheme), "Color theme ("+strings.Join(theme.Available(), ", ")+")")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *versionFlag {
		printVersion(os.Stdout)
		return 0
	}

	visited := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) { visited[f.Name] = struct{}{} })
	overrides := collectOverrides(visited, map[string]flagOverride{
		"debug":        {key: config.KeyDebug, value: *debugFlag},
		"manifest-url": {key: config.KeyManifestURL, value: strings.TrimSpace(*manifestURLFlag)},
		"game-dir":     {key: config.KeyGameDir, value: strings.TrimSpace(*gameDirFlag)},
		"lang":         {key: config.KeyLanguage, value: config.NormalizeLanguage(*langFlag)},
		"theme":        {key: config.KeyTheme, value: strings.TrimSpace(*themeFlag)},
	})
	if err := config.ApplyOverrides(overrides); err != nil {
		fmt.Fprintf(os.Stderr, "Error applying flags: %v\n", err)
		return 1
	}

	if *checkFlag && config.GetBool(config.KeyDebug) {
		debug.InitWriter(os.Stderr)
	} else if err := debug.Init(config.GetBool(config.KeyDebug)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: debug log unavailable: %v\n", err)
	} else if debug.Enabled() {
		if path, err := debug.GetLogPath(); err == nil {
			fmt.Fprintf(os.Stderr, "Debug log: %s\n", path)
		}
	}
	defer debug.Close()

	if _, langSet := visited["lang"]; !langSet {
		if err := seedLanguage(); err != nil {
			log.Logf("seed language: %v", err)
		}
	}

	if *settingsFlag {
		if err := editSettings(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := buildLauncher(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer deps.Close()

	if *checkFlag {
		return runCheck(ctx, deps, os.Stdout, *jsonFlag)
	}

	if name := config.GetString(config.KeyTheme); !theme.SetTheme(name) {
		log.Logf("unknown theme %q; using %s", name, theme.CurrentName())
	}

	wait := deps.Start(ctx)
	err = runProgram(ui.Config{Controller: deps.orch, Version: Version}, ui.NewApp, func(app *ui.App) programRunner {
		return tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	})
	stop()
	wait(shutdownTimeout)
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type flagOverride struct {
	key   string
	value any
}

// collectOverrides keeps only the flags the user actually passed so config
// files and the environment still apply to the rest.
func collectOverrides(visited map[string]struct{}, flags map[string]flagOverride) map[string]any {
	overrides := make(map[string]any)
	for name, o := range flags {
		if _, ok := visited[name]; ok {
			overrides[o.key] = o.value
		}
	}
	return overrides
}

type programRunner interface {
	Run() (tea.Model, error)
}

type programFactory func(*ui.App) programRunner

func runProgram(cfg ui.Config, builder func(ui.Config) (*ui.App, error), factory programFactory) error {
	app, err := builder(cfg)
	if err != nil {
		return fmt.Errorf("initialize UI: %w", err)
	}
	if factory == nil {
		return fmt.Errorf("program factory is nil")
	}
	prog := factory(app)
	if prog == nil {
		return fmt.Errorf("program is nil")
	}
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("run UI: %w", err)
	}
	return nil
}
