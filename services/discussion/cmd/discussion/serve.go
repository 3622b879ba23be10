package main

import (
	"context"
	"net"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/discussion/internal/platform/config"
	"github.com/example/discussion/internal/platform/httpserver"
	"github.com/example/discussion/internal/platform/logging"
	"github.com/example/discussion/internal/platform/run"
	"github.com/example/discussion/services/discussion/internal/grpcapi"
	"github.com/example/discussion/services/discussion/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the gRPC health endpoint",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		run.Exit(serve())
	},
}

func serve() int {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	st, closeStore, err := initStore(context.Background(), cfg, log)
	if err != nil {
		log.Error("store init", zap.Error(err))
		return 1
	}
	if closeStore != nil {
		defer closeStore()
	}

	pub, closeEvents := initEvents(cfg, log)
	if closeEvents != nil {
		defer closeEvents()
	}

	svc := service.New(st, pub, log.Named("service"))
	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, Router: newRouter(cfg, svc, log)})

	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		log.Error("grpc listen", zap.Error(err))
		return 1
	}
	health := grpcapi.NewHealth(svc.Ready, log.Named("grpc"))
	grpcSrv := grpcapi.NewServer(health)
	go func() {
		log.Info("grpc server starting", zap.String("addr", cfg.GRPC.Addr))
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error("grpc serve", zap.Error(err))
		}
	}()

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go health.Run(ctx, 10*time.Second)

		go func() {
			<-ctx.Done()
			stopped := make(chan struct{})
			go func() {
				grpcSrv.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-time.After(10 * time.Second):
				grpcSrv.Stop()
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	return code
}
