package app

import (
	"context"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/hopperd/hopper/internal/hopper"
	"github.com/hopperd/hopper/internal/metric"
	"github.com/hopperd/hopper/internal/routing"
	"github.com/hopperd/hopper/internal/runtime"
	"github.com/hopperd/hopper/internal/selftelemetry"
	"github.com/hopperd/hopper/internal/valve"
	"github.com/hopperd/hopper/sinks"
	"github.com/hopperd/hopper/sources"
	"github.com/pkg/errors"
)

// App owns every running stage of one hopperd process: the concrete
// source/filter/sink instances, the durable channel fabric connecting
// them, the timer and self-telemetry drain loops, and the internal HTTP
// server. Grounded on cmd/tempo/app/app.go's App-as-root-object shape,
// generalized from Tempo's fixed module graph to hopperd's
// config-declared routing.Graph.
type App struct {
	cfg    Config
	logger log.Logger

	graph *routing.Graph

	sourceInstances map[string]runnableSource
	filterInstances map[string]runtime.Filter
	sinkInstances   map[string]runtime.Sink

	// senders holds the template Sender for every filter/sink stage's
	// own durable channel, cloned once per upstream forward and once
	// more for Timer/self-telemetry fan-out.
	senders   map[string]*hopper.Sender
	receivers map[string]*hopper.Receiver

	selfTelemetryExposition *sinks.Prometheus

	httpServer *http.Server

	wg sync.WaitGroup

	stopOnce      sync.Once
	cancelAmbient context.CancelFunc
}

// New validates cfg and constructs every configured stage, but does not
// start any goroutines — call Run for that.
func New(cfg Config, logger log.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	stages := make([]routing.Stage, 0, len(cfg.Sources)+len(cfg.Filters)+len(cfg.Sinks))
	for _, s := range cfg.Sources {
		stages = append(stages, routing.Stage{Name: s.Name, Kind: routing.StageSource, Forwards: s.Forwards})
	}
	for _, f := range cfg.Filters {
		stages = append(stages, routing.Stage{Name: f.Name, Kind: routing.StageFilter, Forwards: f.Forwards})
	}
	for _, s := range cfg.Sinks {
		stages = append(stages, routing.Stage{Name: s.Name, Kind: routing.StageSink, Forwards: nil})
	}

	graph, err := routing.Build(stages)
	if err != nil {
		return nil, errors.Wrap(err, "building routing graph")
	}

	a := &App{
		cfg:             cfg,
		logger:          logger,
		graph:           graph,
		sourceInstances: make(map[string]runnableSource, len(cfg.Sources)),
		filterInstances: make(map[string]runtime.Filter, len(cfg.Filters)),
		sinkInstances:   make(map[string]runtime.Sink, len(cfg.Sinks)),
		senders:         make(map[string]*hopper.Sender, len(cfg.Filters)+len(cfg.Sinks)),
		receivers:       make(map[string]*hopper.Receiver, len(cfg.Filters)+len(cfg.Sinks)),
	}

	// Every filter and sink stage owns a durable channel; sources only
	// ever send into one, never receive.
	for _, f := range cfg.Filters {
		if err := a.openChannel(f.Name); err != nil {
			return nil, err
		}
	}
	for _, s := range cfg.Sinks {
		if err := a.openChannel(s.Name); err != nil {
			return nil, err
		}
	}

	for _, fc := range cfg.Filters {
		build := filterBuilders[fc.Type]
		impl, err := build(fc)
		if err != nil {
			return nil, errors.Wrapf(err, "filter %q", fc.Name)
		}
		a.filterInstances[fc.Name] = impl
	}
	for _, sc := range cfg.Sinks {
		build := sinkBuilders[sc.Type]
		impl, err := build(sc)
		if err != nil {
			return nil, errors.Wrapf(err, "sink %q", sc.Name)
		}
		a.sinkInstances[sc.Name] = impl
	}
	for _, sc := range cfg.Sources {
		forwards, err := a.resolveSourceForwards(sc.Forwards)
		if err != nil {
			return nil, errors.Wrapf(err, "source %q", sc.Name)
		}
		build := sourceBuilders[sc.Type]
		impl, err := build(sc, forwards)
		if err != nil {
			return nil, errors.Wrapf(err, "source %q", sc.Name)
		}
		a.sourceInstances[sc.Name] = impl
	}

	a.selfTelemetryExposition = sinks.NewPrometheus()

	a.httpServer = &http.Server{
		Addr:    cfg.Server.HTTPListenAddr,
		Handler: a.router(),
	}

	return a, nil
}

func (a *App) openChannel(name string) error {
	dir := filepath.Join(a.cfg.Channels.Directory, name)
	sender, receiver, err := hopper.Open(name, dir, a.cfg.Channels.MaxBytes)
	if err != nil {
		return errors.Wrapf(err, "opening channel for stage %q", name)
	}
	a.senders[name] = sender
	a.receivers[name] = receiver
	return nil
}

// resolveSourceForwards clones the template sender for every named
// downstream stage, satisfying sources.Sender.
func (a *App) resolveSourceForwards(names []string) ([]sources.Sender, error) {
	out := make([]sources.Sender, 0, len(names))
	for _, name := range names {
		tmpl, ok := a.senders[name]
		if !ok {
			return nil, errors.Errorf("forwards to %q, which is not a filter or sink stage", name)
		}
		clone, err := tmpl.Clone()
		if err != nil {
			return nil, errors.Wrapf(err, "cloning sender for %q", name)
		}
		out = append(out, clone)
	}
	return out, nil
}

// resolveFilterForwards is identical to resolveSourceForwards but
// returns runtime.Sender, the interface RunFilter expects. The two
// interfaces are structurally identical (Send(metric.Event) error) —
// *hopper.Sender satisfies both without any adapter.
func (a *App) resolveFilterForwards(names []string) ([]runtime.Sender, error) {
	out := make([]runtime.Sender, 0, len(names))
	for _, name := range names {
		tmpl, ok := a.senders[name]
		if !ok {
			return nil, errors.Errorf("forwards to %q, which is not a filter or sink stage", name)
		}
		clone, err := tmpl.Clone()
		if err != nil {
			return nil, errors.Wrapf(err, "cloning sender for %q", name)
		}
		out = append(out, clone)
	}
	return out, nil
}

// downstreamValve returns the Valve exposed by forwards[0] when it is
// the filter's only forward and that filter implements valver (only
// FlushBoundary does). Any other shape — multiple forwards, a sink
// target, a filter with no Valve — yields nil, meaning no back-pressure
// is observed upstream of this filter.
func (a *App) downstreamValve(forwards []string) *valve.Valve {
	if len(forwards) != 1 {
		return nil
	}
	impl, ok := a.filterInstances[forwards[0]]
	if !ok {
		return nil
	}
	v, ok := impl.(valver)
	if !ok {
		return nil
	}
	return v.Valve()
}

// router builds the internal HTTP server's mux: /healthz for liveness,
// /metrics exposing the self-telemetry counters fed by
// internal/selftelemetry, per SPEC_FULL.md §6.
func (a *App) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", a.selfTelemetryExposition.Handler()).Methods(http.MethodGet)
	return r
}

// Run starts every configured stage's goroutine, the timer, the
// self-telemetry drain loop, and the HTTP server, then returns
// immediately — callers block on their own signal handling and call
// Shutdown when ready to stop.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancelAmbient = cancel

	for name, fc := range a.filterConfigByName() {
		forwards, err := a.resolveFilterForwards(fc.Forwards)
		if err != nil {
			return errors.Wrapf(err, "filter %q", name)
		}
		filterImpl := a.filterInstances[name]
		recv := a.receivers[name]
		dv := a.downstreamValve(fc.Forwards)

		a.wg.Add(1)
		go func(name string, recv *hopper.Receiver, filterImpl runtime.Filter, forwards []runtime.Sender, dv *valve.Valve) {
			defer a.wg.Done()
			if err := runtime.RunFilter(recv, filterImpl, forwards, dv); err != nil {
				level.Error(a.logger).Log("msg", "filter stage exited", "stage", name, "err", err)
			}
		}(name, recv, filterImpl, forwards, dv)
	}

	for name, sinkImpl := range a.sinkInstances {
		recv := a.receivers[name]
		a.wg.Add(1)
		go func(name string, recv *hopper.Receiver, sinkImpl runtime.Sink) {
			defer a.wg.Done()
			if err := runtime.RunSink(recv, sinkImpl); err != nil {
				level.Error(a.logger).Log("msg", "sink stage exited", "stage", name, "err", err)
			}
		}(name, recv, sinkImpl)
	}

	for name, srcImpl := range a.sourceInstances {
		a.wg.Add(1)
		go func(name string, srcImpl runnableSource) {
			defer a.wg.Done()
			if err := srcImpl.Run(); err != nil {
				level.Error(a.logger).Log("msg", "source stage exited", "stage", name, "err", err)
			}
		}(name, srcImpl)
	}

	tickTargets := make([]routing.Sender, 0, len(a.senders))
	for _, snd := range a.senders {
		clone, err := snd.Clone()
		if err != nil {
			return errors.Wrap(err, "cloning sender for timer")
		}
		tickTargets = append(tickTargets, clone)
	}
	timer := routing.NewTimer(a.cfg.Channels.TickInterval, tickTargets...)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		timer.Run(ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.runSelfTelemetryDrain(ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		level.Info(a.logger).Log("msg", "internal http server listening", "addr", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			level.Error(a.logger).Log("msg", "internal http server exited", "err", err)
		}
	}()

	return nil
}

func (a *App) filterConfigByName() map[string]FilterConfig {
	out := make(map[string]FilterConfig, len(a.cfg.Filters))
	for _, fc := range a.cfg.Filters {
		out[fc.Name] = fc
	}
	return out
}

// runSelfTelemetryDrain periodically drains internal/selftelemetry's
// process-wide queue, exposing every counter through the /metrics
// registry and, if configured, re-injecting it into the ordinary
// routing pipeline at cfg.Channels.SelfTelemetry — following
// selftelemetry's own doc comment: "a dedicated drain loop then feeds
// [self-reported telemetry] into the same hopper/buckets pipeline as
// externally-ingested samples".
func (a *App) runSelfTelemetryDrain(ctx context.Context) {
	var target *hopper.Sender
	if name := a.cfg.Channels.SelfTelemetry; name != "" {
		target = a.senders[name]
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			selftelemetry.Default.DrainInto(func(t *metric.Telemetry) {
				a.selfTelemetryExposition.Deliver(t)
				if target == nil {
					return
				}
				clone, err := target.Clone()
				if err != nil {
					return
				}
				_ = clone.Send(metric.NewTelemetryEvent(t))
			})
		}
	}
}

// Shutdown stops every source from accepting new work, injects a
// Shutdown event directly into every filter and sink stage's channel
// (each filter fans it further downstream itself, per
// internal/runtime.RunFilter, so a stage with multiple upstream
// producers may see it more than once — harmless, since the loop
// exits on the first one), stops the HTTP server and the ambient
// timer/drain goroutines, and waits up to timeout for every stage
// goroutine to exit.
func (a *App) Shutdown(timeout time.Duration) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		for name, src := range a.sourceInstances {
			if err := src.Close(); err != nil {
				level.Warn(a.logger).Log("msg", "error closing source", "stage", name, "err", err)
			}
		}

		for name, snd := range a.senders {
			clone, err := snd.Clone()
			if err != nil {
				level.Warn(a.logger).Log("msg", "error cloning sender for shutdown", "stage", name, "err", err)
				continue
			}
			if err := clone.Send(metric.ShutdownEvent); err != nil {
				level.Warn(a.logger).Log("msg", "error sending shutdown event", "stage", name, "err", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = a.httpServer.Shutdown(shutdownCtx)

		if a.cancelAmbient != nil {
			a.cancelAmbient()
		}

		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			shutdownErr = errors.New("timed out waiting for stages to stop")
		}
	})
	return shutdownErr
}
