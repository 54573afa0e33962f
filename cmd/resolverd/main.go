package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/resolvekit/resolverd/internal/daemon/common/log"
	"github.com/resolvekit/resolverd/internal/daemon/config"
	"github.com/resolvekit/resolverd/internal/daemon/engine"
	"github.com/resolvekit/resolverd/internal/daemon/ipc"
	"github.com/resolvekit/resolverd/internal/daemon/value"
)

const (
	version = "0.1.0-dev"
	appName = "resolverd"

	// workerRankEnv marks a process as a sibling worker; the leader leaves
	// it unset. The worker's channel to the leader arrives as fd 3.
	workerRankEnv = "RESOLVERD_WORKER_RANK"
)

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Configure global logging
	if err := log.Configure(cfg.Env, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	if rank := os.Getenv(workerRankEnv); rank != "" {
		if err := runWorker(cfg, rank); err != nil {
			log.Fatal(map[string]any{"error": err, "rank": rank}, "Worker failed")
		}
		return
	}

	log.Info(map[string]any{
		"version":       version,
		"env":           cfg.Env,
		"log_level":     cfg.LogLevel,
		"forks":         cfg.Forks,
		"config_script": cfg.ConfigScript,
		"module_dir":    cfg.ModuleDir,
	}, "Starting resolverd")

	if err := runLeader(cfg); err != nil {
		log.Fatal(map[string]any{"error": err}, "Daemon failed")
	}

	log.Info(nil, "resolverd stopped gracefully")
}

// runLeader spawns the worker fork group, runs the leader engine and drives
// the operator console until shutdown.
func runLeader(cfg *config.AppConfig) error {
	peers, workers, err := spawnWorkers(cfg)
	if err != nil {
		return fmt.Errorf("failed to spawn workers: %w", err)
	}

	eng := engine.New(cfg, engine.Options{Peers: peers})
	if err := eng.Init(); err != nil {
		return err
	}
	if err := eng.Configure(cfg.ConfigScript); err != nil {
		derr := eng.Deinit()
		return errors.Join(err, derr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	go console(eng)

	runErr := eng.Run(ctx)
	deinitErr := eng.Deinit()

	for _, w := range workers {
		if err := w.Wait(); err != nil {
			log.Warn(map[string]any{"pid": w.Process.Pid, "error": err.Error()}, "Worker exited with error")
		}
	}

	return errors.Join(runErr, deinitErr)
}

// runWorker runs a sibling engine serving fanned-out commands from the
// leader over the inherited channel.
func runWorker(cfg *config.AppConfig, rankStr string) error {
	rank, err := strconv.Atoi(rankStr)
	if err != nil {
		return fmt.Errorf("bad worker rank %q: %w", rankStr, err)
	}

	f := os.NewFile(3, "leader")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("leader channel: %w", err)
	}

	eng := engine.New(cfg, engine.Options{Logger: log.Named("engine").Named(rankStr)})
	if err := eng.Init(); err != nil {
		return err
	}
	if err := eng.Configure(cfg.ConfigScript); err != nil {
		derr := eng.Deinit()
		return errors.Join(err, derr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// Serve the leader's commands; a hangup means the leader is gone and
	// the worker winds down with it.
	go func() {
		if err := ipc.Serve(ctx, conn, eng, log.Named("ipc").Named(rankStr)); err != nil {
			log.Warn(map[string]any{"rank": rank, "error": err.Error()}, "Leader channel failed")
		}
		eng.Stop()
	}()

	log.Info(map[string]any{"rank": rank}, "Worker running")
	runErr := eng.Run(ctx)
	return errors.Join(runErr, eng.Deinit())
}

// spawnWorkers re-executes this binary cfg.Forks-1 times, handing each child
// one end of a socketpair as fd 3 and its rank in the environment. Returns
// the leader-side peer handles in rank order.
func spawnWorkers(cfg *config.AppConfig) ([]*ipc.Peer, []*exec.Cmd, error) {
	if cfg.Forks <= 1 {
		return nil, nil, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, nil, err
	}

	var peers []*ipc.Peer
	var workers []*exec.Cmd
	for rank := 1; rank < cfg.Forks; rank++ {
		fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("socketpair for rank %d: %w", rank, err)
		}
		leaderFile := os.NewFile(uintptr(fds[0]), "worker")
		workerFile := os.NewFile(uintptr(fds[1]), "leader")

		cmd := exec.Command(exe)
		cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%d", workerRankEnv, rank))
		cmd.ExtraFiles = []*os.File{workerFile}
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			leaderFile.Close()
			workerFile.Close()
			return nil, nil, fmt.Errorf("start worker %d: %w", rank, err)
		}
		workerFile.Close()

		conn, err := net.FileConn(leaderFile)
		leaderFile.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("leader channel for rank %d: %w", rank, err)
		}
		peers = append(peers, ipc.NewPeer(rank, conn))
		workers = append(workers, cmd)
	}
	return peers, workers, nil
}

// console is the interactive operator surface on stdin. EOF or engine
// shutdown ends it.
func console(eng *engine.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}
		v, has, err := eng.Do(line)
		switch {
		case errors.Is(err, engine.ErrStopped):
			return
		case err != nil:
			fmt.Printf("error: %v\n", err)
		case has:
			fmt.Println(value.Encode(v))
		}
		fmt.Print("> ")
	}
	eng.Stop()
}
