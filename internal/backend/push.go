package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"
	"github.com/tidwall/gjson"
)

// Push frame event names.
const (
	FrameManifestUpdated = "manifest-updated"
	FrameChangeLanguage  = "change-language"
)

// Reconnect backoff bounds for the websocket connection.
const (
	DefaultMinBackoff = time.Second
	DefaultMaxBackoff = time.Minute
)

// PushListener turns an external notification channel into backend events.
// With a websocket URL it keeps a connection open and reconnects with
// exponential backoff. Without one it falls back to polling: a
// ManifestUpdated event every interval.
type PushListener struct {
	url        string
	header     http.Header
	dialer     *websocket.Dialer
	interval   time.Duration
	minBackoff time.Duration
	maxBackoff time.Duration
}

// PushOption configures a PushListener.
type PushOption func(*PushListener)

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) PushOption {
	return func(p *PushListener) {
		if d != nil {
			p.dialer = d
		}
	}
}

// WithHeader adds headers to the websocket handshake.
func WithHeader(h http.Header) PushOption {
	return func(p *PushListener) {
		p.header = h
	}
}

// WithBackoff sets the reconnect backoff bounds.
func WithBackoff(minDelay, maxDelay time.Duration) PushOption {
	return func(p *PushListener) {
		if minDelay > 0 {
			p.minBackoff = minDelay
		}
		if maxDelay >= p.minBackoff {
			p.maxBackoff = maxDelay
		}
	}
}

// NewPushListener creates a listener. url may be empty to poll every interval.
func NewPushListener(url string, interval time.Duration, opts ...PushOption) *PushListener {
	p := &PushListener{
		url:        strings.TrimSpace(url),
		dialer:     websocket.DefaultDialer,
		interval:   interval,
		minBackoff: DefaultMinBackoff,
		maxBackoff: DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run delivers events to emit until ctx is done.
func (p *PushListener) Run(ctx context.Context, emit func(Event)) error {
	if p.url == "" {
		return p.poll(ctx, emit)
	}
	return p.listen(ctx, emit)
}

func (p *PushListener) poll(ctx context.Context, emit func(Event)) error {
	if p.interval <= 0 {
		log.Logf("no push url and no poll interval; manifest changes arrive only on refresh")
		<-ctx.Done()
		return ctx.Err()
	}
	c := cron.New()
	c.Schedule(cron.Every(p.interval), cron.FuncJob(func() {
		log.Logf("poll interval elapsed")
		emit(ManifestUpdated{})
	}))
	c.Start()
	log.Logf("polling for manifest changes every %s", p.interval)

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

func (p *PushListener) listen(ctx context.Context, emit func(Event)) error {
	delay := p.minBackoff
	for {
		connected, err := p.session(ctx, emit)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			delay = p.minBackoff
		}
		log.Logf("push connection lost (%v), retrying in %s", err, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > p.maxBackoff {
			delay = p.maxBackoff
		}
	}
}

// session runs one connection. connected reports whether the handshake
// succeeded, which resets the backoff.
func (p *PushListener) session(ctx context.Context, emit func(Event)) (bool, error) {
	conn, _, err := p.dialer.DialContext(ctx, p.url, p.header)
	if err != nil {
		return false, err
	}
	log.Logf("push connected to %s", p.url)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, errors.New("closed by server")
			}
			return true, err
		}
		ev, ok := ParseFrame(data)
		if !ok {
			log.Logf("ignoring push frame %q", truncate(string(data), 120))
			continue
		}
		emit(ev)
	}
}

// ParseFrame decodes a push frame such as {"event":"change-language","lang":"vi"}.
// The language may also be sent as "payload".
func ParseFrame(data []byte) (Event, bool) {
	if !gjson.ValidBytes(data) {
		return nil, false
	}
	frame := gjson.ParseBytes(data)
	switch frame.Get("event").String() {
	case FrameManifestUpdated:
		return ManifestUpdated{}, true
	case FrameChangeLanguage:
		lang := frame.Get("lang").String()
		if lang == "" {
			lang = frame.Get("payload").String()
		}
		if strings.TrimSpace(lang) == "" {
			return nil, false
		}
		return ChangeLanguage{Lang: strings.TrimSpace(lang)}, true
	default:
		return nil, false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
