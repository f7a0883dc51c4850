package launcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"launcher/internal/backend"
	"launcher/internal/config"
	"launcher/internal/domain"
	appErrors "launcher/internal/errors"
	"launcher/internal/manifest"
	"launcher/internal/version"
)

// DefaultQueueSize is the capacity of the input queue.
const DefaultQueueSize = 64

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("orchestrator already running")

// Snapshot is a fully formed view of the launcher, published after every
// input.
type Snapshot struct {
	Status       domain.Status
	Action       domain.Action
	Manifest     *manifest.Manifest
	LocalVersion string
	Config       config.LauncherConfig
	Notice       Notice
	Launches     int
	Offline      bool
	CheckedAt    time.Time
}

func snapshotOf(s State) Snapshot {
	return Snapshot{
		Status:       s.Status,
		Action:       domain.ActionFor(s.Status),
		Manifest:     s.Manifest,
		LocalVersion: s.LocalVersion,
		Config:       s.Config,
		Notice:       s.Notice,
		Launches:     s.Launches,
		Offline:      s.Status.Is(domain.KindOffline),
		CheckedAt:    s.CheckedAt,
	}
}

// Orchestrator runs the state machine as a single actor. User intents, backend
// events and effect results all enter one queue and are applied one at a time.
type Orchestrator struct {
	backend    backend.Backend
	oracle     *version.Oracle
	newSession func() string
	now        func() time.Time

	inputs  chan Input
	done    chan struct{}
	running atomic.Bool

	// Owned by the Run goroutine.
	state       State
	cancelCheck context.CancelFunc
	effects     sync.WaitGroup

	current atomic.Pointer[Snapshot]

	subMu   sync.Mutex
	subs    map[uint64]chan Snapshot
	nextSub uint64

	saveMu  sync.Mutex
	saveSeq atomic.Uint64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSessionIDs overrides how download session ids are generated.
func WithSessionIDs(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newSession = fn
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithQueueSize sets the input queue capacity.
func WithQueueSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.inputs = make(chan Input, n)
		}
	}
}

// New creates an orchestrator over b. Call Run to start it.
func New(b backend.Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:    b,
		oracle:     version.NewOracle(b.LocalVersion),
		newSession: uuid.NewString,
		now:        time.Now,
		inputs:     make(chan Input, DefaultQueueSize),
		done:       make(chan struct{}),
		subs:       make(map[uint64]chan Snapshot),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.state = NewState(config.LauncherConfig{Language: config.DefaultLanguage, CloseBehavior: config.CloseMinimizeToTray})
	snap := snapshotOf(o.state)
	o.current.Store(&snap)
	return o
}

// Run loads the settings, starts the first reconciliation and processes inputs
// until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(o.done)

	cfg, err := o.backend.Config()
	if err != nil {
		log.Logf("load settings: %v", err)
		cfg = o.state.Config
	}
	o.state = NewState(cfg)
	if err != nil {
		o.state = notify(o.state, appErrors.New(appErrors.CodeConfigurationError, fmt.Sprintf("load settings: %v", err), err))
	}
	o.apply(ctx, Start{})

	events := o.backend.Events()
	for {
		select {
		case <-ctx.Done():
			if o.cancelCheck != nil {
				o.cancelCheck()
			}
			o.effects.Wait()
			return ctx.Err()
		case in := <-o.inputs:
			o.apply(ctx, in)
		case ev := <-events:
			if in := fromBackend(ev); in != nil {
				o.apply(ctx, in)
			}
		}
	}
}

func fromBackend(ev backend.Event) Input {
	switch ev := ev.(type) {
	case backend.DownloadProgress:
		return DownloadProgress{Session: ev.Session, Event: ev.Progress}
	case backend.DownloadComplete:
		return DownloadComplete(ev)
	case backend.DownloadError:
		return DownloadFailed(ev)
	case backend.ManifestUpdated:
		return ManifestUpdated{}
	case backend.ChangeLanguage:
		return LanguageChanged(ev)
	default:
		log.Logf("unknown backend event %T", ev)
		return nil
	}
}

func (o *Orchestrator) apply(ctx context.Context, in Input) {
	next, effects := Apply(o.state, in)
	o.state = next
	o.publish(snapshotOf(next))
	for _, eff := range effects {
		o.perform(ctx, eff)
	}
}

func (o *Orchestrator) perform(ctx context.Context, eff Effect) {
	switch eff := eff.(type) {
	case Reconcile:
		if o.cancelCheck != nil {
			o.cancelCheck()
		}
		cctx, cancel := context.WithCancel(ctx)
		o.cancelCheck = cancel
		o.spawn(ctx, func() Input {
			defer cancel()
			return o.reconcile(cctx, eff)
		})

	case BeginDownload:
		o.spawn(ctx, func() Input {
			if err := o.backend.StartDownload(ctx, eff.Session, eff.Manifest); err != nil {
				return DownloadStartFailed{Session: eff.Session, Err: err}
			}
			return nil
		})

	case QueryVersion:
		o.spawn(ctx, func() Input {
			return VersionQueried{Version: o.oracle.LocalVersion(ctx)}
		})

	case Launch:
		o.spawn(ctx, func() Input {
			return Launched{Err: o.backend.LaunchGame(ctx, eff.Manifest)}
		})

	case SaveConfig:
		seq := o.saveSeq.Add(1)
		o.spawn(ctx, func() Input {
			o.saveMu.Lock()
			defer o.saveMu.Unlock()
			if o.saveSeq.Load() != seq {
				// A newer save is queued behind this one.
				return nil
			}
			return ConfigSaved{Err: o.backend.SaveConfig(eff.Config)}
		})

	case Requeue:
		o.apply(ctx, eff.Input)

	default:
		log.Logf("unknown effect %T", eff)
	}
}

func (o *Orchestrator) reconcile(ctx context.Context, eff Reconcile) Input {
	var (
		g     errgroup.Group
		local string
		m     *manifest.Manifest
		err   error
	)
	g.Go(func() error {
		local = o.oracle.LocalVersion(ctx)
		return nil
	})
	g.Go(func() error {
		m, err = o.backend.Manifest(ctx, eff.Force)
		return nil
	})
	_ = g.Wait()

	return Reconciled{
		Generation: eff.Generation,
		Local:      local,
		Manifest:   m,
		Err:        manifest.Classify(err),
		At:         o.now(),
	}
}

// spawn runs fn off the actor and queues its result, if any.
func (o *Orchestrator) spawn(ctx context.Context, fn func() Input) {
	o.effects.Add(1)
	go func() {
		defer o.effects.Done()
		if in := fn(); in != nil {
			o.enqueue(ctx, in)
		}
	}()
}

func (o *Orchestrator) enqueue(ctx context.Context, in Input) {
	select {
	case o.inputs <- in:
	case <-ctx.Done():
	case <-o.done:
	}
}

func (o *Orchestrator) publish(snap Snapshot) {
	o.current.Store(&snap)

	o.subMu.Lock()
	defer o.subMu.Unlock()
	for _, ch := range o.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Snapshot returns the latest published view.
func (o *Orchestrator) Snapshot() Snapshot {
	return *o.current.Load()
}

// Subscribe returns a channel that always holds the newest snapshot; slow
// readers skip intermediate ones. The current snapshot is delivered at once.
// Call the returned function to unsubscribe.
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	o.subMu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	ch <- *o.current.Load()
	o.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.subMu.Lock()
			delete(o.subs, id)
			close(ch)
			o.subMu.Unlock()
		})
	}
}

// RequestDownload asks to install or update the game.
func (o *Orchestrator) RequestDownload() {
	o.send(DownloadRequested{Session: o.newSession()})
}

// RequestLaunch asks to start the game.
func (o *Orchestrator) RequestLaunch() {
	o.send(LaunchRequested{})
}

// RequestRefresh re-checks the manifest, bypassing the cache.
func (o *Orchestrator) RequestRefresh() {
	o.send(Refresh{Force: true})
}

// SetLanguage switches and persists the display language.
func (o *Orchestrator) SetLanguage(lang string) {
	o.send(LanguageChanged{Lang: lang})
}

// SetConfig replaces and persists the launcher settings.
func (o *Orchestrator) SetConfig(cfg config.LauncherConfig) {
	o.send(ConfigChanged{Config: cfg})
}

func (o *Orchestrator) send(in Input) {
	select {
	case o.inputs <- in:
	case <-o.done:
		log.Logf("dropping %T: orchestrator stopped", in)
	}
}
