// Package engine owns the control plane of the resolver daemon: the module
// registry, the scripting environment, the peer channels to sibling workers
// and the maintenance scheduler. A single engine exists per process and all
// of its mutable state is touched only from the control goroutine driven by
// Run.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/resolvekit/resolverd/internal/daemon/common/clock"
	"github.com/resolvekit/resolverd/internal/daemon/common/log"
	"github.com/resolvekit/resolverd/internal/daemon/config"
	"github.com/resolvekit/resolverd/internal/daemon/ipc"
	"github.com/resolvekit/resolverd/internal/daemon/modules"
	"github.com/resolvekit/resolverd/internal/daemon/reputation"
	"github.com/resolvekit/resolverd/internal/daemon/script"
	"github.com/resolvekit/resolverd/internal/daemon/value"
)

// ErrStopped reports a command submitted to an engine that is shutting down.
var ErrStopped = errors.New("engine: stopped")

// resolverOptions are the operator-togglable resolver flags. Their effect on
// resolution lives outside the control plane; the engine only owns the
// switchboard.
var resolverOptions = []string{
	"NO_MINIMIZE",
	"NO_THROTTLE",
	"NO_IPV6",
	"NO_IPV4",
	"TCP",
	"SAFEMODE",
	"NO_CACHE",
	"ALLOW_LOCAL",
	"DNSSEC_WANT",
}

// Options are the injectable engine dependencies.
type Options struct {
	Clock  clock.Clock
	Logger log.Logger

	// Peers are the leader's sibling channels, in rank order. Empty on
	// sibling workers and single-process deployments.
	Peers []*ipc.Peer

	// Scripting overrides the yaegi environment built during Init. Used in
	// tests.
	Scripting Scripting
}

type cmdResult struct {
	v   value.Value
	has bool
	err error
}

type cmdRequest struct {
	cmd  string
	resp chan cmdResult
}

// Engine is the top-level owner of the control plane.
type Engine struct {
	cfg    *config.AppConfig
	clk    clock.Clock
	logger log.Logger

	script   Scripting
	registry *modules.Registry
	peers    []*ipc.Peer
	rep      *reputation.Cache
	store    *reputation.Store

	options map[string]bool
	verbose bool

	startedAt time.Time

	mu       sync.Mutex
	state    State
	stopOnce sync.Once
	stopCh   chan struct{}
	cmdCh    chan cmdRequest
}

// New creates an engine in the Uninitialized state.
func New(cfg *config.AppConfig, opts Options) *Engine {
	clk := opts.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Named("engine")
	}
	options := make(map[string]bool, len(resolverOptions))
	for _, name := range resolverOptions {
		options[name] = false
	}
	return &Engine{
		cfg:     cfg,
		clk:     clk,
		logger:  logger,
		script:  opts.Scripting,
		peers:   opts.Peers,
		options: options,
		stopCh:  make(chan struct{}),
		cmdCh:   make(chan cmdRequest),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Registry exposes the module registry for the operator surface and tests.
func (e *Engine) Registry() *modules.Registry { return e.registry }

// Init builds the scripting environment, the reputation cache and the module
// registry, and registers the built-in modules. Any failure tears down
// whatever was partially constructed before returning.
func (e *Engine) Init() error {
	if s := e.State(); s != Uninitialized {
		return fmt.Errorf("engine: init in state %s", s)
	}

	if e.script == nil {
		env, err := script.New(script.Config{
			ModuleDir: e.cfg.ModuleDir,
			Logger:    e.logger.Named("script"),
			Hooks:     e.scriptHooks(),
		})
		if err != nil {
			_ = e.Deinit()
			return fmt.Errorf("engine: scripting environment: %w", err)
		}
		e.script = env
	}

	rep, err := reputation.New(e.cfg.ReputationSize)
	if err != nil {
		_ = e.Deinit()
		return fmt.Errorf("engine: reputation cache: %w", err)
	}
	e.rep = rep

	if e.cfg.ReputationDB != "" {
		store, err := reputation.OpenStore(e.cfg.ReputationDB)
		if err != nil {
			_ = e.Deinit()
			return fmt.Errorf("engine: reputation store: %w", err)
		}
		e.store = store
		snapshot, err := store.Load()
		if err != nil {
			_ = e.Deinit()
			return fmt.Errorf("engine: reputation snapshot: %w", err)
		}
		for peer, score := range snapshot {
			e.rep.Set(peer, score)
		}
	}

	e.registry = modules.NewRegistry(nativeLoader{}, e.script, e.script, e.logger.Named("modules"))
	for _, name := range builtinModules {
		if err := e.registry.Register(name, "", ""); err != nil {
			_ = e.Deinit()
			return fmt.Errorf("engine: register builtin %s: %w", name, err)
		}
	}

	e.setState(Initialized)
	e.logger.Info(map[string]any{"modules": e.registry.Names()}, "engine initialized")
	return nil
}

// Configure runs the bootstrap script, then the operator configuration and
// built-in defaults. Bootstrap failure is fatal and aborts startup; user and
// default script failures are reported and startup proceeds with whatever
// configuration state resulted. userScript "-" skips both the user script
// and the defaults.
func (e *Engine) Configure(userScript string) error {
	if s := e.State(); s != Initialized {
		return fmt.Errorf("engine: configure in state %s", s)
	}

	if err := e.script.Bootstrap(); err != nil {
		return err
	}

	if userScript != "-" {
		userOK := true
		if userScript != "" {
			if _, err := os.Stat(userScript); err == nil {
				if err := e.script.EvalFile(userScript); err != nil {
					userOK = false
					e.logger.Warn(map[string]any{"script": userScript, "error": err.Error()}, "user configuration script failed")
				}
			}
		}
		if userOK {
			if err := e.script.EvalDefaults(); err != nil {
				e.logger.Warn(map[string]any{"error": err.Error()}, "default configuration script failed")
			}
		}
	}

	e.setState(Configured)
	return nil
}

// Run arms the maintenance scheduler and drives the control loop until Stop
// is called or ctx is cancelled. All command evaluation and registry
// mutation happens here.
func (e *Engine) Run(ctx context.Context) error {
	if s := e.State(); s != Configured {
		return fmt.Errorf("engine: run in state %s", s)
	}
	e.startedAt = e.clk.Now()
	e.setState(Running)

	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	e.logger.Info(map[string]any{
		"sweep_interval": e.cfg.SweepInterval.String(),
		"peers":          len(e.peers),
	}, "engine running")

	for {
		select {
		case <-ctx.Done():
			e.Stop()
			return nil
		case <-e.stopCh:
			return nil
		case <-ticker.C:
			e.maintain()
		case req := <-e.cmdCh:
			v, has, err := e.script.Eval(req.cmd, false)
			req.resp <- cmdResult{v: v, has: has, err: err}
		}
	}
}

// Stop requests the control loop to wind down. Safe to call from any
// goroutine, idempotent.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.setState(Stopping)
		close(e.stopCh)
	})
}

// Do submits one operator command to the control loop and waits for its
// result.
func (e *Engine) Do(cmd string) (value.Value, bool, error) {
	req := cmdRequest{cmd: cmd, resp: make(chan cmdResult, 1)}
	select {
	case e.cmdCh <- req:
	case <-e.stopCh:
		return value.Null(), false, ErrStopped
	}
	select {
	case res := <-req.resp:
		return res.v, res.has, res.err
	case <-e.stopCh:
		return value.Null(), false, ErrStopped
	}
}

// EvalCommand evaluates one fanned-out command on the control loop and
// serializes the result. This is the sibling side of the fan-out protocol.
func (e *Engine) EvalCommand(cmd string) string {
	v, has, err := e.Do(cmd)
	if err != nil {
		return value.Encode(value.String(err.Error()))
	}
	if !has {
		return ""
	}
	return value.Encode(v)
}

// Deinit releases every owned resource. It tolerates a partially
// initialized engine and repeated invocation; every member is nil-checked.
func (e *Engine) Deinit() error {
	if e.State() == Deinitialized {
		return nil
	}

	var result *multierror.Error

	for _, p := range e.peers {
		if p == nil {
			continue
		}
		if err := p.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("engine: close peer %d: %w", p.Rank(), err))
		}
	}
	e.peers = nil

	if e.store != nil {
		if e.rep != nil {
			if err := e.store.Save(e.rep.Snapshot()); err != nil {
				result = multierror.Append(result, fmt.Errorf("engine: save reputation snapshot: %w", err))
			}
		}
		if err := e.store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("engine: close reputation store: %w", err))
		}
		e.store = nil
	}

	if e.registry != nil {
		e.registry.UnregisterAll()
		e.registry = nil
	}

	e.rep = nil
	e.script = nil
	e.setState(Deinitialized)

	return result.ErrorOrNil()
}

// maintain is the periodic sweep over the reputation table: peers whose
// score climbed above the long threshold are evicted so they can recover
// instead of lingering until capacity pressure forces them out.
func (e *Engine) maintain() {
	if e.rep == nil {
		return
	}
	evicted := e.rep.Sweep(reputation.ScoreLong)
	if evicted > 0 {
		e.logger.Debug(map[string]any{"evicted": evicted}, "reputation sweep")
	}
}

// scriptHooks exposes the native operator surface to the scripting
// environment. Every hook receives the engine through this closure set
// rather than any ambient global.
func (e *Engine) scriptHooks() script.Hooks {
	return script.Hooks{
		Quit:    e.Stop,
		Verbose: e.setVerbose,
		Option:  e.option,
		Fanout: func(cmd string) []any {
			results := e.Fanout(cmd)
			out := make([]any, len(results))
			for i, v := range results {
				out[i] = v.Interface()
			}
			return out
		},
		Load: func(name, precedence, ref string) error {
			return e.registry.Register(name, precedence, ref)
		},
		Unload: func(name string) error {
			return e.registry.Unregister(name)
		},
		Invoke: func(m *modules.Module, cb modules.Callback, arg any) (value.Value, bool, error) {
			return modules.Invoke(e, m, cb, arg)
		},
	}
}

func (e *Engine) setVerbose(on bool) bool {
	e.verbose = on
	level := e.cfg.LogLevel
	if on {
		level = "debug"
	}
	if err := log.Configure(e.cfg.Env, level); err != nil {
		e.logger.Warn(map[string]any{"error": err.Error()}, "verbose toggle failed")
	}
	return e.verbose
}

func (e *Engine) option(name string, set ...bool) (bool, error) {
	cur, ok := e.options[name]
	if !ok {
		return false, fmt.Errorf("engine: invalid option name %q", name)
	}
	if len(set) > 0 {
		e.options[name] = set[0]
		return set[0], nil
	}
	return cur, nil
}

// The modules.Host surface handed to module callbacks.

// ModuleNames returns the loaded module names in precedence order.
func (e *Engine) ModuleNames() []string {
	if e.registry == nil {
		return nil
	}
	return e.registry.Names()
}

// PeerScores returns a snapshot of the reputation table.
func (e *Engine) PeerScores() map[string]float64 {
	if e.rep == nil {
		return nil
	}
	return e.rep.Snapshot()
}

// EvictPeer drops one peer from the reputation table.
func (e *Engine) EvictPeer(peer string) bool {
	if e.rep == nil {
		return false
	}
	return e.rep.Evict(peer)
}

// SetPeerScore records a peer's score.
func (e *Engine) SetPeerScore(peer string, score float64) {
	if e.rep != nil {
		e.rep.Set(peer, score)
	}
}

// Uptime reports time since the engine entered Running.
func (e *Engine) Uptime() time.Duration {
	if e.startedAt.IsZero() {
		return 0
	}
	return e.clk.Since(e.startedAt)
}
