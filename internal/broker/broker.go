// Package broker implements the long-lived broker process (spec.md §4.5,
// component C5): single-session ownership, the IPC accept loop, idle exit,
// periodic event drain, and signal-driven shutdown.
package broker

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/dap-broker/internal/adapterconfig"
	"github.com/orizon-lang/dap-broker/internal/ipc"
	"github.com/orizon-lang/dap-broker/internal/session"
)

// Config bundles the broker's tunables.
type Config struct {
	AppName     string
	IdleTimeout time.Duration
	DrainTick   time.Duration
	Session     session.Config
}

// DefaultConfig returns the broker defaults: app name "dapbroker", a
// 10-minute idle timeout, a 1s drain tick, and session.DefaultConfig().
func DefaultConfig() Config {
	return Config{
		AppName:     "dapbroker",
		IdleTimeout: 10 * time.Minute,
		DrainTick:   time.Second,
		Session:     session.DefaultConfig(),
	}
}

// Broker owns at most one Session at a time and serves the IPC command
// vocabulary over its rendezvous endpoint.
type Broker struct {
	cfg   Config
	log   *log.Logger
	table *adapterconfig.Table

	mu           sync.Mutex
	sess         *session.Session
	lastActivity time.Time

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New constructs a Broker over table, which the caller may wire to a
// fsnotify.Watcher for hot reload.
func New(cfg Config, table *adapterconfig.Table, logger *log.Logger) *Broker {
	if logger == nil {
		logger = log.Default()
	}

	return &Broker{cfg: cfg, log: logger, table: table, lastActivity: time.Now(), shutdownCh: make(chan struct{})}
}

// requestShutdown is called by the `shutdown` IPC command to trigger a
// graceful exit from Run, exactly as a SIGINT/SIGTERM would.
func (b *Broker) requestShutdown() {
	b.shutdownOnce.Do(func() { close(b.shutdownCh) })
}

// Run binds the rendezvous endpoint and serves until ctx is canceled, a
// SIGINT/SIGTERM arrives, or the broker idles out. It always unlinks the
// rendezvous file and tears down any live session before returning.
func (b *Broker) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ln, err := ipc.Listen(b.cfg.AppName)
	if err != nil {
		return fmt.Errorf("broker: listen: %w", err)
	}

	defer func() {
		b.shutdownSession()
		_ = ln.Close()
	}()

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return b.acceptLoop(gctx, ln)
	})

	group.Go(func() error {
		return b.drainTicker(gctx)
	})

	group.Go(func() error {
		return b.idleWatch(gctx)
	})

	group.Go(func() error {
		select {
		case <-b.shutdownCh:
			return errShutdownRequested
		case <-gctx.Done():
			return nil
		}
	})

	<-gctx.Done()
	_ = ln.Close() // unblocks acceptLoop's Accept

	if err := group.Wait(); err != nil && err != errIdleExit && err != errShutdownRequested {
		return err
	}

	return nil
}

// acceptLoop accepts connections sequentially, per spec.md's single-client
// model: one connection is fully served before the next is accepted.
func (b *Broker) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("broker: accept: %w", err)
		}

		b.touchActivity()
		b.serveConn(ctx, conn)
	}
}

// drainTicker implements the periodic drain: every DrainTick, process any
// queued adapter events even with no client connected, so state (and
// output) progresses between IPC calls.
func (b *Broker) drainTicker(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.DrainTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.mu.Lock()
			if b.sess != nil {
				b.sess.Status() // Status() drains as a side effect.
			}
			b.mu.Unlock()
		}
	}
}

// idleWatch exits the broker cleanly once no session has been active and no
// client has connected for IdleTimeout.
func (b *Broker) idleWatch(ctx context.Context) error {
	if b.cfg.IdleTimeout <= 0 {
		<-ctx.Done()

		return nil
	}

	ticker := time.NewTicker(b.cfg.DrainTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.mu.Lock()
			idle := b.sess == nil && time.Since(b.lastActivity) > b.cfg.IdleTimeout
			b.mu.Unlock()

			if idle {
				b.log.Printf("broker: idle for %s with no active session, exiting", b.cfg.IdleTimeout)

				return errIdleExit
			}
		}
	}
}

var errIdleExit = fmt.Errorf("broker: idle timeout reached")
var errShutdownRequested = fmt.Errorf("broker: shutdown requested")

func (b *Broker) touchActivity() {
	b.mu.Lock()
	b.lastActivity = time.Now()
	b.mu.Unlock()
}

func (b *Broker) shutdownSession() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sess != nil {
		_ = b.sess.Stop()
		b.sess = nil
	}
}
