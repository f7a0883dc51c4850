package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/sjson"

	"launcher/internal/domain"
	"launcher/internal/launcher"
	"launcher/internal/store"
)

const (
	checkTimeout = 30 * time.Second
	historyLimit = 3
)

type subscriber interface {
	Subscribe() (<-chan launcher.Snapshot, func())
}

// runCheck performs one reconciliation and reports it. The exit code is 1 when
// the launcher could not determine what to do (Offline or Error).
func runCheck(ctx context.Context, deps *launcherDeps, w io.Writer, asJSON bool) int {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- deps.orch.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	snap, err := waitSettled(ctx, deps.orch)
	if err != nil {
		fmt.Fprintf(w, "check failed: %v\n", err)
		return 1
	}

	history, err := deps.store.RecentDownloads(ctx, historyLimit)
	if err != nil {
		log.Logf("load download history: %v", err)
	}
	if err := writeCheck(w, snap, history, asJSON, time.Now()); err != nil {
		log.Logf("write check result: %v", err)
		return 1
	}
	return checkExitCode(snap)
}

// waitSettled returns the first snapshot past the initial check.
func waitSettled(ctx context.Context, s subscriber) (launcher.Snapshot, error) {
	snaps, unsubscribe := s.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return launcher.Snapshot{}, ctx.Err()
		case snap, ok := <-snaps:
			if !ok {
				return launcher.Snapshot{}, fmt.Errorf("snapshot stream closed")
			}
			if !snap.Status.Is(domain.KindChecking) {
				return snap, nil
			}
		}
	}
}

func checkExitCode(snap launcher.Snapshot) int {
	if snap.Status.Is(domain.KindOffline) || snap.Status.Is(domain.KindError) {
		return 1
	}
	return 0
}

func writeCheck(w io.Writer, snap launcher.Snapshot, history []store.DownloadRecord, asJSON bool, now time.Time) error {
	if asJSON {
		out, err := checkJSON(snap, history)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, out)
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "status:    %s\n", snap.Status.Kind())
	if msg := snap.Status.Message(); msg != "" {
		fmt.Fprintf(&b, "message:   %s\n", msg)
	}
	fmt.Fprintf(&b, "installed: %s\n", snap.LocalVersion)
	if snap.Manifest != nil {
		fmt.Fprintf(&b, "latest:    %s\n", snap.Manifest.LatestVersion)
		if snap.Manifest.ServerStatus != "" {
			fmt.Fprintf(&b, "servers:   %s\n", snap.Manifest.ServerStatus)
		}
	}
	if !snap.CheckedAt.IsZero() {
		fmt.Fprintf(&b, "checked:   %s\n", humanize.RelTime(snap.CheckedAt, now, "ago", "from now"))
	}
	if snap.Notice.Text != "" {
		fmt.Fprintf(&b, "notice:    %s\n", snap.Notice.Text)
	}
	for i, rec := range history {
		if i == 0 {
			b.WriteString("recent downloads:\n")
		}
		line := fmt.Sprintf("  %s %s %s", rec.Version, rec.Outcome, humanize.RelTime(rec.FinishedAt, now, "ago", "from now"))
		if rec.Bytes > 0 {
			line += " (" + humanize.Bytes(uint64(rec.Bytes)) + ")"
		}
		if rec.Message != "" {
			line += ": " + rec.Message
		}
		b.WriteString(line + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type jsonField struct {
	path  string
	value any
}

func checkJSON(snap launcher.Snapshot, history []store.DownloadRecord) (string, error) {
	out := "{}"
	set := func(path string, value any) error {
		var err error
		out, err = sjson.Set(out, path, value)
		return err
	}

	fields := []jsonField{
		{"status", snap.Status.Kind().String()},
		{"offline", snap.Offline},
		{"installed", snap.LocalVersion},
		{"action.enabled", snap.Action.Enabled},
		{"action.label", snap.Action.Label.Key()},
	}
	if msg := snap.Status.Message(); msg != "" {
		fields = append(fields, jsonField{"message", msg})
	}
	for _, f := range fields {
		if err := set(f.path, f.value); err != nil {
			return "", err
		}
	}
	if snap.Manifest != nil {
		if err := set("latest", snap.Manifest.LatestVersion); err != nil {
			return "", err
		}
		if err := set("servers", string(snap.Manifest.ServerStatus)); err != nil {
			return "", err
		}
		if err := set("backgrounds", nonNil(snap.Manifest.Backgrounds)); err != nil {
			return "", err
		}
		if err := set("languages", nonNil(snap.Manifest.Languages)); err != nil {
			return "", err
		}
		if err := set("sidebar_links", []any{}); err != nil {
			return "", err
		}
		for _, l := range snap.Manifest.SidebarLinks {
			if err := set("sidebar_links.-1", map[string]any{"name": l.Name, "url": l.URL}); err != nil {
				return "", err
			}
		}
	}
	if !snap.CheckedAt.IsZero() {
		if err := set("checked_at", snap.CheckedAt.UTC().Format(time.RFC3339)); err != nil {
			return "", err
		}
	}
	if err := set("history", []any{}); err != nil {
		return "", err
	}
	for _, rec := range history {
		entry := map[string]any{
			"session": rec.SessionID,
			"version": rec.Version,
			"outcome": string(rec.Outcome),
			"bytes":   rec.Bytes,
		}
		if rec.Message != "" {
			entry["message"] = rec.Message
		}
		if err := set("history.-1", entry); err != nil {
			return "", err
		}
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
