package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/procflow-hq/procflow/modules/workflows/infrastructure/persistence"
	"github.com/procflow-hq/procflow/modules/workflows/presentation/controllers"
	"github.com/procflow-hq/procflow/modules/workflows/services"
	"github.com/procflow-hq/procflow/pkg/composables"
	"github.com/procflow-hq/procflow/pkg/configuration"
	"github.com/procflow-hq/procflow/pkg/eventbus"
	"github.com/procflow-hq/procflow/pkg/metrics"
	"github.com/procflow-hq/procflow/pkg/middleware"
	"github.com/procflow-hq/procflow/pkg/outbox"
	"github.com/procflow-hq/procflow/pkg/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the outbox relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	conf := configuration.Use()
	logger := conf.Logger()

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, conf.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer pool.Close()

	bus := eventbus.NewEventPublisher(logger)
	svc := services.NewReassignService(
		persistence.NewReassignmentRepository(),
		bus,
		outbox.NewPublisher(),
	)

	relay, err := outbox.NewRelay(
		pool,
		services.OutboxTable,
		services.NewCompletionDispatcher(services.NewEventBusTaskRunner(bus), logger),
		outbox.RelayOptions{
			PollInterval: time.Duration(conf.Outbox.PollIntervalMS) * time.Millisecond,
			BatchSize:    conf.Outbox.BatchSize,
			MaxAttempts:  conf.Outbox.MaxAttempts,
			Logger:       logrus.NewEntry(logger),
		},
	)
	if err != nil {
		return err
	}

	srvControllers := []server.Controller{
		healthController{pool: pool},
		controllers.NewReassignController(svc, logger),
	}
	if conf.Prometheus.Enabled {
		srvControllers = append(srvControllers, metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	srv := &server.HTTPServer{
		Controllers: srvControllers,
		Middlewares: []mux.MiddlewareFunc{
			middleware.ProvidePool(pool),
			middleware.RequestLogger(logger),
		},
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := relay.Run(composables.WithPool(gCtx, pool))
		if err != nil && gCtx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		logger.WithField("address", conf.ServerAddress).Info("server listening")
		return srv.Start(gCtx, conf.ServerAddress)
	})

	return g.Wait()
}

type healthController struct {
	pool *pgxpool.Pool
}

func (h healthController) Key() string {
	return "/health"
}

func (h healthController) Register(r *mux.Router) {
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := h.pool.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
}
