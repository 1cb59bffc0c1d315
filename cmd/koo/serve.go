package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	httpapi "koo/api/http"
	"koo/internal/initial"
	mcpserver "koo/internal/modules/ai/infrastructure/mcp/server"
	"koo/internal/modules/ai/infrastructure/queue"
	"koo/internal/modules/ai/interface/scheduler"
	"koo/pkg/util/myjwt"
	"koo/pkg/zlog"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "start the HTTP API, plus the Kafka worker, resync scheduler and MCP SSE server when enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := opts.newApp(ctx, initial.Options{EnsureSchema: true, EnableQueue: true})
			if err != nil {
				return err
			}
			defer app.Close()
			return serve(ctx, app)
		},
	}
}

func serve(ctx context.Context, app *initial.App) error {
	conf := app.Conf
	signer, err := myjwt.NewSigner(conf.JwtConfig.Key, conf.JwtConfig.Issuer, conf.JwtConfig.ExpireHours)
	if err != nil {
		return err
	}

	engine := httpapi.NewEngine(httpapi.Deps{
		Conf:        conf,
		Signer:      signer,
		Ask:         app.AskService,
		Ingest:      app.IngestService,
		AsyncIngest: app.AsyncIngestService,
		QueryLogs:   app.QueryLogService,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var worker *queue.IngestConsumerWorker
	if conf.KafkaConfig.Enabled {
		if worker, err = app.NewIngestWorker(); err != nil {
			return err
		}
	}
	var sched *scheduler.SyncScheduler
	if conf.SchedulerConfig.Enabled {
		sched = scheduler.NewSyncScheduler(app.IngestService)
		if err := sched.Register(conf.SchedulerConfig.Jobs); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zlog.Info("http server listening", zap.String("addr", srv.Addr), zap.Bool("tls", conf.MainConfig.TLS))
		var err error
		if conf.MainConfig.TLS {
			err = srv.ListenAndServeTLS(conf.MainConfig.CertFile, conf.MainConfig.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if worker != nil {
		g.Go(func() error {
			err := worker.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if sched != nil {
		sched.Start()
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			sched.Stop(stopCtx)
			return nil
		})
	}

	if conf.MCPConfig.Enabled && strings.EqualFold(conf.MCPConfig.Transport, "sse") {
		s := newMCPServer(app)
		g.Go(func() error {
			return mcpserver.Serve(gctx, s, "sse", conf.MCPConfig.Addr)
		})
	}

	err = g.Wait()
	zlog.Info("server stopped")
	return err
}
