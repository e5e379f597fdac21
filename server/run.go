package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"epub2pdf/state"
)

// Run is serve subcommand action. It serves until ctx is canceled and then
// waits for running conversions.
func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	sc := &env.Cfg.Server

	addr := sc.Listen
	if a := cmd.String("listen"); len(a) > 0 {
		addr = a
	}

	s := New(env)
	s.StartSweeper(ctx)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.log),
	}

	s.log.Info("Serving", zap.String("address", ln.Addr().String()))
	defer func(start time.Time) {
		s.log.Info("Server stopped", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down", zap.Duration("timeout", sc.ShutdownTimeout))
	sctx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
	defer cancel()

	if er := srv.Shutdown(sctx); er != nil {
		err = multierr.Append(err, fmt.Errorf("unable to shutdown server: %w", er))
	}
	if er := s.Wait(sctx); er != nil {
		err = multierr.Append(err, fmt.Errorf("conversions still running: %w", er))
	}
	return err
}
