package service

import (
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/groupsplit/internal/auth"
	"github.com/mmynk/groupsplit/internal/events"
	"github.com/mmynk/groupsplit/internal/ledger"
	"github.com/mmynk/groupsplit/internal/metrics"
	"github.com/mmynk/groupsplit/internal/middleware"
	"github.com/mmynk/groupsplit/internal/storage"
	"github.com/mmynk/groupsplit/pkg/api"
)

// Options wires the services to their collaborators.
type Options struct {
	Store        storage.Store
	JWT          *auth.JWTManager
	Publisher    events.Publisher
	Metrics      *metrics.Metrics
	CookieSecure bool
	Logger       *slog.Logger
}

// NewMux builds the ledger components and mounts every service, /metrics and
// /healthz on a fresh mux.
func NewMux(opts Options) *http.ServeMux {
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	clock := ledger.NewClock()
	registry := ledger.NewRegistry(opts.Store, clock)
	expenses := ledger.New(opts.Store, clock)
	aggregator := ledger.NewAggregator(registry, expenses)

	authSvc := NewAuthService(
		auth.NewPasswordAuthenticator(opts.Store),
		opts.JWT,
		opts.Store,
		opts.Metrics,
		opts.CookieSecure,
		opts.Logger,
	)
	groupSvc := NewGroupService(registry, opts.Publisher, opts.Metrics)
	expenseSvc := NewExpenseService(expenses, aggregator, opts.Publisher, opts.Metrics)

	// Auth runs before logging so log lines carry the caller.
	public := connect.WithInterceptors(
		opts.Metrics.Interceptor(),
		middleware.OptionalAuth(opts.JWT),
		middleware.LoggingInterceptor(),
	)
	protected := connect.WithInterceptors(
		opts.Metrics.Interceptor(),
		middleware.RequireAuth(opts.JWT),
		middleware.LoggingInterceptor(),
	)

	mux := http.NewServeMux()
	mux.Handle(api.NewAuthServiceHandler(authSvc, public))
	mux.Handle(api.NewGroupServiceHandler(groupSvc, protected))
	mux.Handle(api.NewExpenseServiceHandler(expenseSvc, protected))
	mux.Handle("/metrics", opts.Metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})
	return mux
}
