package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/discussion/internal/platform/auth"
	"github.com/example/discussion/internal/platform/config"
	"github.com/example/discussion/internal/platform/db"
	"github.com/example/discussion/internal/platform/events"
	"github.com/example/discussion/internal/platform/httpserver"
	"github.com/example/discussion/internal/platform/natsconn"
	"github.com/example/discussion/services/discussion/internal/handlers"
	"github.com/example/discussion/services/discussion/internal/service"
	"github.com/example/discussion/services/discussion/internal/store"
)

// initStore selects the Store backend.
// In production a working Postgres connection is required; elsewhere the
// in-memory store is used when DATABASE_URL is empty or unreachable.
func initStore(ctx context.Context, cfg config.AppConfig, log *zap.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store (development only)")
		return store.NewInMemoryStore(), nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		if cfg.IsProduction() {
			return nil, nil, err
		}
		log.Warn("postgres unavailable, falling back to in-memory store", zap.Error(err))
		return store.NewInMemoryStore(), nil, nil
	}

	log.Info("store: postgres")
	return store.NewPostgresStore(pool), pool.Close, nil
}

// initEvents connects the JetStream publisher. Events are optional: any
// failure leaves the service running with a no-op publisher.
func initEvents(cfg config.AppConfig, log *zap.Logger) (*events.Publisher, func()) {
	if cfg.NATSURL == "" {
		log.Info("NATS_URL not set, lifecycle events disabled")
		return events.New(nil, log), nil
	}

	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName})
	if err != nil {
		log.Warn("nats connect", zap.Error(err))
		return events.New(nil, log), nil
	}
	js, err := nc.JetStream()
	if err != nil {
		log.Warn("nats jetstream", zap.Error(err))
		nc.Close()
		return events.New(nil, log), nil
	}
	if err := events.EnsureStream(js); err != nil {
		log.Warn("nats ensure stream", zap.String("stream", events.StreamName), zap.Error(err))
	}
	return events.New(js, log.Named("events")), func() { _ = nc.Drain() }
}

// newRouter wires the common endpoints and the comment routes under the
// configured prefix.
func newRouter(cfg config.AppConfig, svc *service.Service, log *zap.Logger) chi.Router {
	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		AllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		ReadyFunc: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return svc.Ready(ctx)
		},
	})

	r.Group(func(r chi.Router) {
		r.Use(httpserver.AccessLog(log))
		if cfg.JWTSecret != "" {
			r.Use(auth.OptionalUser(auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}))
		}
		if cfg.HTTP.Prefix == "" {
			handlers.Routes(r, svc)
			return
		}
		r.Route(cfg.HTTP.Prefix, func(r chi.Router) {
			handlers.Routes(r, svc)
		})
	})
	return r
}
