package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return ExitUserError
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	stack, err := bootstrap(ctx, resolveConfigPath(*configPath), true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "byokey: %v\n", err)
		return ExitUserError
	}

	cfg := stack.Config.Load()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "byokey: bind %s: %v\n", addr, err)
		return ExitBindError
	}

	reloadStop := make(chan struct{})
	defer close(reloadStop)
	if err := stack.Config.WatchReload(reloadStop); err != nil {
		log.WithError(err).Warn("config: hot-reload watcher unavailable")
	}

	srv := &http.Server{Handler: stack.Dispatch.Routes()}
	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("byokey: listening")
		serveErr <- srv.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		log.Info("byokey: shutting down")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "byokey: server error: %v\n", err)
			return ExitBindError
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("byokey: graceful shutdown timed out")
	}
	return ExitOK
}
