package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("copilot backend starting",
		"addr", r.cfg.HTTPAddr,
		"environment", r.cfg.Environment,
		"db_path", r.cfg.DBPath,
		"sync_enabled", r.cfg.SyncEnabled,
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		err := r.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		return r.promptWatch.Start(groupCtx)
	})
	if r.scheduler != nil {
		group.Go(func() error {
			return r.scheduler.Start(groupCtx)
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return r.httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func (r *Runtime) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}
