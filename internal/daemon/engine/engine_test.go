package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvekit/resolverd/internal/daemon/common/clock"
	"github.com/resolvekit/resolverd/internal/daemon/common/log"
	"github.com/resolvekit/resolverd/internal/daemon/config"
	"github.com/resolvekit/resolverd/internal/daemon/modules"
	"github.com/resolvekit/resolverd/internal/daemon/reputation"
	"github.com/resolvekit/resolverd/internal/daemon/value"
)

// fakeScripting records calls and returns canned results, standing in for
// the yaegi environment.
type fakeScripting struct {
	bootstrapErr error
	evalFileErr  error
	defaultsErr  error
	evalFn       func(cmd string) (value.Value, bool, error)

	bootstraps int
	files      []string
	defaults   int
	cmds       []string
}

func (f *fakeScripting) Bootstrap() error {
	f.bootstraps++
	return f.bootstrapErr
}

func (f *fakeScripting) EvalFile(path string) error {
	f.files = append(f.files, path)
	return f.evalFileErr
}

func (f *fakeScripting) EvalDefaults() error {
	f.defaults++
	return f.defaultsErr
}

func (f *fakeScripting) Eval(cmd string, _ bool) (value.Value, bool, error) {
	f.cmds = append(f.cmds, cmd)
	if f.evalFn != nil {
		return f.evalFn(cmd)
	}
	return value.Null(), false, nil
}

func (f *fakeScripting) EvalCommand(cmd string) string {
	v, has, err := f.Eval(cmd, true)
	if err != nil {
		return value.Encode(value.String(err.Error()))
	}
	if !has {
		return ""
	}
	return value.Encode(v)
}

func (f *fakeScripting) Load(string) (*modules.Module, error) {
	return nil, modules.ErrNotFound
}

func (f *fakeScripting) BindModule(*modules.Module) error { return nil }

func (f *fakeScripting) UnbindModule(string) {}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := config.DEFAULT_APP_CONFIG
	cfg.Env = "dev"
	cfg.ModuleDir = t.TempDir()
	cfg.SweepInterval = time.Hour
	return &cfg
}

func testEngine(t *testing.T, fake *fakeScripting) *Engine {
	t.Helper()
	return New(testConfig(t), Options{
		Clock:     &clock.MockClock{},
		Logger:    log.NewNoopLogger(),
		Scripting: fake,
	})
}

func TestLifecycle(t *testing.T) {
	fake := &fakeScripting{}
	e := testEngine(t, fake)
	assert.Equal(t, Uninitialized, e.State())

	require.NoError(t, e.Init())
	assert.Equal(t, Initialized, e.State())
	assert.Equal(t, builtinModules, e.Registry().Names())

	require.NoError(t, e.Configure(""))
	assert.Equal(t, Configured, e.State())
	assert.Equal(t, 1, fake.bootstraps)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	fake.evalFn = func(string) (value.Value, bool, error) {
		return value.Number(42), true, nil
	}
	v, has, err := e.Do("answer()")
	require.NoError(t, err)
	assert.True(t, has)
	assert.True(t, v.Equal(value.Number(42)))

	e.Stop()
	require.NoError(t, <-done)
	assert.Equal(t, Stopping, e.State())

	require.NoError(t, e.Deinit())
	assert.Equal(t, Deinitialized, e.State())
	// repeat invocation is a no-op
	require.NoError(t, e.Deinit())
}

func TestInit_WrongState(t *testing.T) {
	e := testEngine(t, &fakeScripting{})
	require.NoError(t, e.Init())
	assert.Error(t, e.Init())
}

func TestRun_ContextCancel(t *testing.T) {
	e := testEngine(t, &fakeScripting{})
	require.NoError(t, e.Init())
	require.NoError(t, e.Configure("-"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, Stopping, e.State())
}

func TestDo_AfterStop(t *testing.T) {
	e := testEngine(t, &fakeScripting{})
	e.Stop()
	_, _, err := e.Do("quit()")
	assert.ErrorIs(t, err, ErrStopped)
}

func TestConfigure_BootstrapFatal(t *testing.T) {
	fake := &fakeScripting{bootstrapErr: errors.New("syntax error")}
	e := testEngine(t, fake)
	require.NoError(t, e.Init())

	err := e.Configure("")
	require.Error(t, err)
	assert.Equal(t, Initialized, e.State())
	assert.Empty(t, fake.files)
	assert.Zero(t, fake.defaults)
}

func TestConfigure_UserScriptFailureSkipsDefaults(t *testing.T) {
	script := filepath.Join(t.TempDir(), "config.gox")
	require.NoError(t, os.WriteFile(script, []byte("bogus"), 0o600))

	fake := &fakeScripting{evalFileErr: errors.New("eval failed")}
	e := testEngine(t, fake)
	require.NoError(t, e.Init())

	require.NoError(t, e.Configure(script))
	assert.Equal(t, Configured, e.State())
	assert.Equal(t, []string{script}, fake.files)
	assert.Zero(t, fake.defaults)
}

func TestConfigure_MissingUserScriptStillRunsDefaults(t *testing.T) {
	fake := &fakeScripting{}
	e := testEngine(t, fake)
	require.NoError(t, e.Init())

	require.NoError(t, e.Configure(filepath.Join(t.TempDir(), "nope.gox")))
	assert.Empty(t, fake.files)
	assert.Equal(t, 1, fake.defaults)
}

func TestConfigure_DashDisablesScripts(t *testing.T) {
	fake := &fakeScripting{}
	e := testEngine(t, fake)
	require.NoError(t, e.Init())

	require.NoError(t, e.Configure("-"))
	assert.Equal(t, Configured, e.State())
	assert.Equal(t, 1, fake.bootstraps)
	assert.Empty(t, fake.files)
	assert.Zero(t, fake.defaults)
}

func TestDeinit_PartialInit(t *testing.T) {
	e := testEngine(t, &fakeScripting{})
	// never initialized; every member is nil
	require.NoError(t, e.Deinit())
	assert.Equal(t, Deinitialized, e.State())
}

func TestDeinit_SavesReputationSnapshot(t *testing.T) {
	fake := &fakeScripting{}
	e := testEngine(t, fake)
	e.cfg.ReputationDB = filepath.Join(t.TempDir(), "rep.db")
	require.NoError(t, e.Init())
	e.SetPeerScore("203.0.113.7", 120)
	require.NoError(t, e.Deinit())

	store, err := reputation.OpenStore(e.cfg.ReputationDB)
	require.NoError(t, err)
	defer store.Close()
	snap, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"203.0.113.7": 120}, snap)
}

func TestMaintain_SweepsLongScores(t *testing.T) {
	e := testEngine(t, &fakeScripting{})
	require.NoError(t, e.Init())

	e.SetPeerScore("a", reputation.ScoreLong-1)
	e.SetPeerScore("b", reputation.ScoreLong+1)
	e.maintain()

	scores := e.PeerScores()
	assert.Contains(t, scores, "a")
	assert.NotContains(t, scores, "b")

	// second sweep finds nothing left to evict
	e.maintain()
	assert.Len(t, e.PeerScores(), 1)
}

func TestOption(t *testing.T) {
	e := testEngine(t, &fakeScripting{})

	on, err := e.option("NO_IPV6")
	require.NoError(t, err)
	assert.False(t, on)

	on, err = e.option("NO_IPV6", true)
	require.NoError(t, err)
	assert.True(t, on)

	on, err = e.option("NO_IPV6")
	require.NoError(t, err)
	assert.True(t, on)

	_, err = e.option("NOT_AN_OPTION")
	assert.Error(t, err)
}

func TestEvalCommand(t *testing.T) {
	fake := &fakeScripting{}
	e := testEngine(t, fake)
	require.NoError(t, e.Init())
	require.NoError(t, e.Configure("-"))

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	defer func() {
		e.Stop()
		<-done
	}()

	fake.evalFn = func(cmd string) (value.Value, bool, error) {
		switch cmd {
		case "err()":
			return value.Null(), false, errors.New("boom")
		case "none()":
			return value.Null(), false, nil
		default:
			return value.Bool(true), true, nil
		}
	}

	assert.Equal(t, `"boom"`, e.EvalCommand("err()"))
	assert.Equal(t, "", e.EvalCommand("none()"))
	assert.Equal(t, "true", e.EvalCommand("ok()"))
}

func TestUptime(t *testing.T) {
	clk := &clock.MockClock{}
	fake := &fakeScripting{}
	clk.Advance(time.Hour) // start from a non-zero instant
	e := New(testConfig(t), Options{Clock: clk, Logger: log.NewNoopLogger(), Scripting: fake})
	assert.Zero(t, e.Uptime())

	require.NoError(t, e.Init())
	require.NoError(t, e.Configure("-"))

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	// wait for Running before advancing
	for e.State() != Running {
		time.Sleep(time.Millisecond)
	}
	clk.Advance(3 * time.Second)
	assert.Equal(t, 3*time.Second, e.Uptime())

	e.Stop()
	require.NoError(t, <-done)
}
