package wardsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/bft-labs/wardsync/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/wardsync/internal/adapters/http"
	"github.com/bft-labs/wardsync/internal/adapters/sqlite"
	"github.com/bft-labs/wardsync/internal/adapters/ws"
	"github.com/bft-labs/wardsync/internal/app"
	"github.com/bft-labs/wardsync/internal/contract"
	"github.com/bft-labs/wardsync/internal/domain"
	"github.com/bft-labs/wardsync/pkg/log"
)

// StatusSnapshot is the document served by the status endpoints.
type StatusSnapshot = ws.Snapshot

// Service queues mutating requests while offline and replays them when
// connectivity returns. Use New to create one and Start to run it.
//
// Enqueue, ProcessQueue and the queue inspection methods work without
// Start; Start adds the connectivity probe, automatic drains, the routes
// watcher and the status server.
type Service struct {
	config    Config
	opts      options
	logger    log.Logger
	emitter   eventEmitter
	lifecycle *app.Lifecycle

	store     QueueStore
	ownsStore bool
	contract  *contract.Contract
	watcher   *contract.Watcher
	monitor   *app.ConnectivityMonitor
	indicator *app.SyncIndicator
	manager   *app.SyncManager
	enqueuer  *app.Enqueuer
	status    *ws.StatusServer

	subs      []*Subscription
	closeOnce sync.Once
}

// New creates a Service in StateStopped.
// Returns an error if the configuration is invalid or the store or routes
// cannot be opened.
func New(cfg Config, opts ...Option) (*Service, error) {
	cfg.SetDefaults()

	o := defaultOptions(&http.Client{Timeout: cfg.HTTPTimeout})
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.NewNoopLogger()
	}

	if err := cfg.validate(o.store != nil); err != nil {
		return nil, err
	}

	s := &Service{
		config:  cfg,
		opts:    o,
		logger:  o.logger,
		emitter: eventEmitter{handler: o.eventHandler},
	}

	routes, err := loadRoutes(cfg)
	if err != nil {
		return nil, err
	}
	s.contract = contract.New(routes)

	s.store = o.store
	if s.store == nil {
		if s.store, err = openStore(cfg); err != nil {
			return nil, err
		}
		s.ownsStore = true
	}

	s.lifecycle = app.NewLifecycle(s.logger, s.onStateChange)

	source := o.source
	if source == nil {
		source = httpAdapter.NewProbe(o.httpClient, httpAdapter.ProbeConfig{
			URL:      httpAdapter.HealthURL(cfg.APIBaseURL, cfg.HealthPath),
			Interval: cfg.ProbeInterval,
		}, s.logger)
	}
	s.monitor = app.NewConnectivityMonitor(source, s.logger)
	s.indicator = app.NewSyncIndicator(s.logger)

	reporter := app.MultiReporter{app.NewLogReporter(s.logger)}
	if o.reporter != nil {
		reporter = append(reporter, o.reporter)
	}

	replayer := httpAdapter.NewReplayer(o.httpClient, httpAdapter.ReplayerConfig{
		BaseURL:           cfg.APIBaseURL,
		AuthToken:         cfg.AuthToken,
		IdempotencyHeader: cfg.IdempotencyHeader,
	}, s.logger)

	s.manager = app.NewSyncManager(app.SyncDeps{
		Connectivity: s.monitor,
		Store:        s.store,
		Contract:     s.contract,
		Replayer:     replayer,
		Reporter:     reporter,
		Indicator:    s.indicator,
		Logger:       s.logger,
	}, app.SyncManagerConfig{
		MaxAttempts: cfg.MaxAttempts,
		OnRun:       s.onRun,
	})

	s.enqueuer = app.NewEnqueuer(s.store, s.contract, s.logger, s.onEnqueue)

	if cfg.WatchRoutes {
		s.watcher = contract.NewWatcher(cfg.RoutesFile, s.contract, contract.DefaultDebounceDelay, s.logger, s.onRoutesReload)
	}
	if cfg.StatusAddr != "" {
		s.status = ws.NewStatusServer(cfg.StatusAddr, s.Snapshot, s.logger)
	}

	s.subs = append(s.subs,
		s.monitor.Subscribe(s.onConnectivity),
		s.indicator.Subscribe(s.onSyncing),
	)

	return s, nil
}

func loadRoutes(cfg Config) (*contract.RouteTable, error) {
	switch {
	case cfg.RoutesFile != "":
		return contract.LoadRoutes(cfg.RoutesFile)
	case len(cfg.Routes) > 0:
		return contract.NewRouteTable(cfg.Routes)
	default:
		return nil, nil
	}
}

func openStore(cfg Config) (QueueStore, error) {
	switch cfg.Store {
	case StoreSQLite:
		return sqlite.Open(filepath.Join(cfg.StateDir, sqlite.DBFileName))
	default:
		return fs.NewQueueFile(cfg.StateDir), nil
	}
}

// Start begins watching connectivity and draining the queue whenever the
// service goes online. It also runs one drain right away, since the
// service starts out assuming it is online.
// Returns ErrAlreadyRunning if the service is not stopped or crashed.
func (s *Service) Start(ctx context.Context) error {
	runCtx, err := s.lifecycle.Begin(ctx)
	if err != nil {
		return err
	}

	s.lifecycle.Go(runCtx, "connectivity", s.monitor.Run)
	if s.watcher != nil {
		s.lifecycle.Go(runCtx, "routes", s.watcher.Run)
	}
	if s.status != nil {
		s.lifecycle.Go(runCtx, "status", s.status.Run)
	}

	s.manager.StartSync()

	if err := s.lifecycle.TransitionTo(app.StateRunning, "started"); err != nil {
		return err
	}

	s.lifecycle.Go(runCtx, "initial-sync", func(ctx context.Context) error {
		if _, err := s.manager.ProcessQueue(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("initial drain failed", log.Err(err))
		}
		return nil
	})
	return nil
}

// Stop cancels the background workers and in-flight drains and waits for
// them. Returns ErrNotRunning if the service was not started.
func (s *Service) Stop() error {
	err := s.lifecycle.Shutdown(app.ShutdownTimeout)
	s.manager.CancelRuns()
	return err
}

// Close stops the service if needed and releases the store it opened.
// The service cannot be used afterwards.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		switch s.lifecycle.State() {
		case app.StateStarting, app.StateRunning, app.StateCrashed:
			if stopErr := s.Stop(); stopErr != nil {
				err = stopErr
			}
		}
		for _, sub := range s.subs {
			sub.Unsubscribe()
		}
		s.manager.Close()
		if s.ownsStore {
			if closeErr := s.store.Close(); closeErr != nil {
				err = errors.Join(err, fmt.Errorf("close store: %w", closeErr))
			}
		}
	})
	return err
}

// Status returns the lifecycle state.
func (s *Service) Status() State {
	return s.lifecycle.State()
}

// StartSync subscribes the sync manager to connectivity transitions.
// Start calls it; embedders that drive connectivity themselves may call
// it directly. Every call returns the same subscription.
func (s *Service) StartSync() *Subscription {
	return s.manager.StartSync()
}

// ProcessQueue drains the queue once if online. A call made while a drain
// is running joins it and returns its result. Canceling ctx returns early
// without stopping the drain; Stop and Close do stop it.
func (s *Service) ProcessQueue(ctx context.Context) (SyncRunResult, error) {
	return s.manager.ProcessQueue(ctx)
}

// Enqueue sanitizes d and persists it for replay. Returns ErrConflict if
// d.ID is already queued.
func (s *Service) Enqueue(ctx context.Context, d RequestDraft) (QueuedRequest, error) {
	return s.enqueuer.Enqueue(ctx, d)
}

// Syncing reports whether a drain is running.
func (s *Service) Syncing() bool {
	return s.indicator.Syncing()
}

// Online reports the last known connectivity.
func (s *Service) Online() bool {
	return s.monitor.IsOnline()
}

// SubscribeSyncing registers h for changes of the syncing flag.
func (s *Service) SubscribeSyncing(h func(syncing bool)) *Subscription {
	return s.indicator.Subscribe(h)
}

// SubscribeConnectivity registers h for connectivity transitions.
func (s *Service) SubscribeConnectivity(h func(online bool)) *Subscription {
	return s.monitor.Subscribe(h)
}

// Queue returns the queued requests in replay order.
func (s *Service) Queue(ctx context.Context) ([]QueuedRequest, error) {
	return s.store.List(ctx)
}

// Len returns the number of queued requests.
func (s *Service) Len(ctx context.Context) (int, error) {
	return s.store.Len(ctx)
}

// Remove deletes a queued request. Unknown ids are ignored.
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.store.Remove(ctx, id); err != nil {
		return err
	}
	s.notifyStatus()
	return nil
}

// DeadLetters returns the requests that exhausted their replay attempts.
func (s *Service) DeadLetters(ctx context.Context) ([]DeadLetter, error) {
	return s.store.ListDeadLetters(ctx)
}

// Requeue moves a dead letter back to the end of the queue with its
// attempts reset. Returns ErrNotFound for an unknown id.
func (s *Service) Requeue(ctx context.Context, id string) error {
	if err := s.store.Requeue(ctx, id); err != nil {
		return err
	}
	s.notifyStatus()
	return nil
}

// Routes returns the mounted routes currently in effect, or nil when every
// route is accepted.
func (s *Service) Routes() []Route {
	t := s.contract.Routes()
	if t == nil {
		return nil
	}
	return t.Routes()
}

// Check reports why req would be discarded by the next drain, or nil if it
// would be replayed.
func (s *Service) Check(req QueuedRequest) error {
	return s.contract.Check(req)
}

// Snapshot returns the current status. Store errors are reported in
// LastError rather than failing the snapshot.
func (s *Service) Snapshot(ctx context.Context) StatusSnapshot {
	snap := StatusSnapshot{
		State:   s.lifecycle.State().String(),
		Online:  s.monitor.IsOnline(),
		Syncing: s.indicator.Syncing(),
		Time:    time.Now().UTC(),
	}

	if rec, ok := s.manager.LastRun(); ok {
		result := rec.Result
		finished := rec.Finished
		snap.LastRun = &result
		snap.LastRunAt = &finished
		if rec.Err != nil {
			snap.LastError = rec.Err.Error()
		}
	}

	var errs []error
	n, err := s.store.Len(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	snap.QueueLength = n

	dead, err := s.store.ListDeadLetters(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	snap.DeadLetters = len(dead)

	if err := errors.Join(errs...); err != nil {
		snap.LastError = err.Error()
	}
	return snap
}

func (s *Service) notifyStatus() {
	if s.status != nil {
		s.status.Notify()
	}
}

func (s *Service) onStateChange(previous, current app.State, reason string) {
	s.emitter.OnStateChange(StateChangeEvent{Previous: previous, Current: current, Reason: reason})
	s.notifyStatus()
}

func (s *Service) onConnectivity(online bool) {
	s.emitter.OnConnectivityChange(ConnectivityEvent{Online: online, Time: time.Now()})
	s.notifyStatus()
}

func (s *Service) onSyncing(syncing bool) {
	s.emitter.OnSyncingChange(SyncingEvent{Syncing: syncing, Time: time.Now()})
	s.notifyStatus()
}

func (s *Service) onRun(result domain.SyncRunResult, err error) {
	s.emitter.OnSyncRun(SyncRunEvent{Result: result, Err: err, Finished: time.Now()})
	s.notifyStatus()
}

func (s *Service) onEnqueue(req domain.QueuedRequest) {
	s.emitter.OnEnqueue(EnqueueEvent{Request: req})
	s.notifyStatus()
}

func (s *Service) onRoutesReload(t *contract.RouteTable, err error) {
	e := RoutesReloadEvent{Err: err}
	if t != nil {
		e.Routes = t.Len()
	}
	s.emitter.OnRoutesReload(e)
}

// eventEmitter forwards to an optional EventHandler.
type eventEmitter struct {
	handler EventHandler
}

func (e eventEmitter) OnStateChange(ev StateChangeEvent) {
	if e.handler != nil {
		e.handler.OnStateChange(ev)
	}
}

func (e eventEmitter) OnConnectivityChange(ev ConnectivityEvent) {
	if e.handler != nil {
		e.handler.OnConnectivityChange(ev)
	}
}

func (e eventEmitter) OnSyncingChange(ev SyncingEvent) {
	if e.handler != nil {
		e.handler.OnSyncingChange(ev)
	}
}

func (e eventEmitter) OnSyncRun(ev SyncRunEvent) {
	if e.handler != nil {
		e.handler.OnSyncRun(ev)
	}
}

func (e eventEmitter) OnEnqueue(ev EnqueueEvent) {
	if e.handler != nil {
		e.handler.OnEnqueue(ev)
	}
}

func (e eventEmitter) OnRoutesReload(ev RoutesReloadEvent) {
	if e.handler != nil {
		e.handler.OnRoutesReload(ev)
	}
}
