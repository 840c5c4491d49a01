// Command kanbandserver runs the kanban forum server: it opens the
// on-disk store, listens for framed TCP connections, and drives one
// internal/session.Session per connection through a bounded worker
// pool. Structure follows the teacher's ws/main.go (automaxprocs side
// effect import, config load, structured logger, signal-driven
// graceful shutdown).
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/adred-codev/kanband/internal/config"
	"github.com/adred-codev/kanband/internal/logging"
	"github.com/adred-codev/kanband/internal/metrics"
	"github.com/adred-codev/kanband/internal/serverpool"
	"github.com/adred-codev/kanband/internal/session"
	"github.com/adred-codev/kanband/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Options{Level: "info", Format: logging.FormatJSON}).
			Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Format:  logging.Format(cfg.LogFormat),
		Service: "kanbandserver",
	})
	cfg.LogConfig(logger)

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.ListenAddr).Msg("failed to listen")
	}
	logger.Info().Str("addr", cfg.ListenAddr).Msg("listening")

	pool := serverpool.New(cfg.MaxConnections, cfg.MaxConnections, logger)
	pool.Start()

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	go metrics.StartProcessMonitor(monitorCtx, logger)

	var conns sync.Map // net.Conn -> struct{}, tracked so shutdown can force-close stragglers

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		for {
			conn, err := ln.Accept()
			if err != nil {
				if !errors.Is(err, net.ErrClosed) {
					logger.Error().Err(err).Msg("accept error")
				}
				return
			}
			conns.Store(conn, struct{}{})
			sess := session.New(conn, st, logger)
			run := func() {
				defer conns.Delete(conn)
				sess.Run()
			}
			if !pool.Submit(run) {
				logger.Warn().Str("remote", conn.RemoteAddr().String()).Msg("rejecting connection: at capacity")
				conns.Delete(conn)
				conn.Close()
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down: no new connections accepted")
	ln.Close()
	<-acceptDone

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("metrics server shutdown error")
	}

	// Grace period for sessions to drain on their own before force-closing
	// the stragglers (mirrors the teacher's drain-then-force-close
	// shutdown sequence in ws/server.go's Server.Shutdown).
	const gracePeriod = 5 * time.Second
	deadline := time.After(gracePeriod)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
drain:
	for {
		select {
		case <-deadline:
			break drain
		case <-ticker.C:
			if !anyConnsOpen(&conns) {
				break drain
			}
		}
	}
	conns.Range(func(key, _ any) bool {
		key.(net.Conn).Close()
		return true
	})

	pool.Stop()
	logger.Info().Msg("shutdown complete")
}

func anyConnsOpen(conns *sync.Map) bool {
	open := false
	conns.Range(func(_, _ any) bool {
		open = true
		return false
	})
	return open
}
