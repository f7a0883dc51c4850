package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"launcher/internal/backend"
	"launcher/internal/config"
	appErrors "launcher/internal/errors"
	"launcher/internal/installer"
	"launcher/internal/launcher"
	"launcher/internal/manifest"
	"launcher/internal/store"
)

// launcherDeps is the wired object graph behind one launcher process.
type launcherDeps struct {
	store   *store.Store
	backend *backend.Local
	orch    *launcher.Orchestrator
}

func buildLauncher(ctx context.Context) (*launcherDeps, error) {
	manifestURL := strings.TrimSpace(config.GetString(config.KeyManifestURL))
	if manifestURL == "" {
		return nil, appErrors.New(appErrors.CodeConfigurationError,
			"no manifest URL configured; set manifest.url or pass -manifest-url", nil)
	}
	gameDir, err := config.GameDir()
	if err != nil {
		return nil, err
	}
	cacheDir, err := config.CacheDir()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, filepath.Join(cacheDir, store.FileName))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	clientOpts := []manifest.Option{
		manifest.WithCache(st),
		manifest.WithMaxAge(config.GetDuration(config.KeyManifestMaxAge)),
		manifest.WithUserAgent(userAgent()),
	}
	if key := strings.TrimSpace(config.GetString(config.KeyManifestPublicKey)); key != "" {
		verifier, err := manifest.NewVerifier(key)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		clientOpts = append(clientOpts, manifest.WithVerifier(verifier))
	}
	client := manifest.NewClient(manifestURL, clientOpts...)

	inst := installer.New(gameDir)

	localOpts := []backend.LocalOption{
		backend.WithRecorder(st),
		backend.WithDefaultExecutable(config.GetString(config.KeyGameExe)),
		backend.WithPushListener(backend.NewPushListener(
			strings.TrimSpace(config.GetString(config.KeyPushURL)),
			config.GetDuration(config.KeyPushPollInterval),
		)),
	}
	if path, err := config.WritablePath(); err == nil {
		localOpts = append(localOpts, backend.WithConfigWatch(path))
	} else {
		log.Logf("config watch disabled: %v", err)
	}
	local := backend.NewLocal(client, inst, localOpts...)

	log.Logf("manifest %s, game dir %s, cache %s", manifestURL, gameDir, cacheDir)
	return &launcherDeps{
		store:   st,
		backend: local,
		orch:    launcher.New(local),
	}, nil
}

// Start runs the backend's background sources and the orchestrator until ctx
// is done. The returned function waits, up to a timeout, for both to stop.
func (d *launcherDeps) Start(ctx context.Context) func(time.Duration) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := d.backend.Serve(ctx); err != nil {
			log.Logf("backend stopped: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := d.orch.Run(ctx); err != nil && ctx.Err() == nil {
			log.Logf("orchestrator stopped: %v", err)
		}
	}()

	return func(timeout time.Duration) {
		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			log.Logf("shutdown timed out after %s", timeout)
		}
	}
}

func (d *launcherDeps) Close() {
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			log.Logf("close store: %v", err)
		}
	}
}
