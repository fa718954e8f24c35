// Package kernel assembles the storefront's HTTP handler: repositories,
// services, the event bus and the global middleware stack around the routes.
package kernel

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/onyxia-store/onyxia/app/controllers"
	"github.com/onyxia-store/onyxia/app/repositories"
	"github.com/onyxia-store/onyxia/app/routes"
	"github.com/onyxia-store/onyxia/app/services"
	"github.com/onyxia-store/onyxia/pkg/auth"
	"github.com/onyxia-store/onyxia/pkg/cache"
	"github.com/onyxia-store/onyxia/pkg/event"
	"github.com/onyxia-store/onyxia/pkg/grpc"
	"github.com/onyxia-store/onyxia/pkg/logger"
	"github.com/onyxia-store/onyxia/pkg/mail"
	"github.com/onyxia-store/onyxia/pkg/metrics"
	"github.com/onyxia-store/onyxia/pkg/middleware"
	"github.com/onyxia-store/onyxia/pkg/reqid"
	"github.com/onyxia-store/onyxia/pkg/router"
	"github.com/onyxia-store/onyxia/pkg/schedule"
	"github.com/onyxia-store/onyxia/pkg/session"
	"github.com/onyxia-store/onyxia/pkg/storage"
	"github.com/onyxia-store/onyxia/pkg/tracing"
	"github.com/onyxia-store/onyxia/pkg/workerpool"
	"github.com/onyxia-store/onyxia/pkg/ws"
)

// Options are the already-connected backends and the settings read from
// config. DB, Cache and Issuer are required.
type Options struct {
	DB          *gorm.DB
	Cache       cache.Store
	Issuer      *auth.Issuer
	Credentials services.AdminCredentials

	Disk       storage.Disk
	Mailer     mail.Sender
	AdminEmail string

	Session    session.Options
	CORS       middleware.CORSOptions
	RateLimit  int
	Workers    int
	Tracing    bool
	StaticDir  string
	IndexFile  string
	ExtraProbe []grpc.Probe
}

// Kernel owns the handler and the background pieces it depends on.
type Kernel struct {
	router   *router.Router
	handler  http.Handler
	hub      *ws.Hub
	pool     *workerpool.Pool
	limiter  *middleware.Limiter
	schedule *schedule.Scheduler
	probes   []grpc.Probe
}

func NewHTTPKernel(opts Options) (*Kernel, error) {
	if opts.DB == nil || opts.Cache == nil || opts.Issuer == nil {
		return nil, errors.New("kernel: DB, Cache and Issuer are required")
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 200
	}

	pool := workerpool.New("events", opts.Workers)
	bus := event.NewBus(pool)
	hub := ws.NewHub(ws.AllowOrigins(opts.CORS.AllowedOrigins))

	services.Notifier{Hub: hub, Mailer: opts.Mailer, AdminEmail: opts.AdminEmail}.Register(bus)

	blacklist := auth.NewBlacklist(opts.Cache)
	authService := services.NewAuthService(opts.Issuer, blacklist, opts.Credentials)
	productRepo := repositories.NewProductRepository(opts.DB)
	productService := services.NewProductService(productRepo, opts.Cache)
	orderService := services.NewOrderService(repositories.NewOrderRepository(opts.DB), productRepo, bus)

	catalog, err := controllers.NewCatalogSchema(productService)
	if err != nil {
		return nil, err
	}

	probes := append([]grpc.Probe{
		{Name: "database", Check: func(ctx context.Context) error {
			sqlDB, err := opts.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
		{Name: "cache", Check: func(ctx context.Context) error {
			_, err := opts.Cache.Exists(ctx, "health:ping")
			return err
		}},
	}, opts.ExtraProbe...)

	k := &Kernel{
		router:   router.New(),
		hub:      hub,
		pool:     pool,
		limiter:  middleware.NewLimiter(opts.RateLimit, time.Minute),
		schedule: schedule.New(),
		probes:   probes,
	}

	k.schedule.Every(time.Minute).Name("ratelimit.prune").Run(k.limiter.Prune)
	if mem, ok := opts.Cache.(*cache.Memory); ok {
		k.schedule.Every(5 * time.Minute).Name("cache.sweep").WithoutOverlapping().Run(func() {
			if n := mem.Sweep(); n > 0 {
				logger.Debug("cache sweep", "removed", n)
			}
		})
	}

	// Global middleware, outermost first:
	//  1. metrics, for total latency
	//  2. recovery
	//  3. request id, before anything logs
	//  4. logger
	//  5. session cookie
	//  6. CORS
	//  7. rate limit
	r := k.router
	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(session.NewManager(opts.Cache, opts.Session).Middleware())
	r.Use(middleware.CORS(opts.CORS))
	r.Use(k.limiter.Middleware)

	routes.RegisterAPI(r, routes.Deps{
		Auth:      authService,
		Products:  productService,
		Orders:    orderService,
		Disk:      opts.Disk,
		Hub:       hub,
		Catalog:   &catalog,
		Probes:    probes,
		StaticDir: opts.StaticDir,
		IndexFile: opts.IndexFile,
	})

	k.handler = r.Handler()
	if opts.Tracing {
		k.handler = tracing.Middleware(k.handler)
	}
	return k, nil
}

func (k *Kernel) Handler() http.Handler  { return k.handler }
func (k *Kernel) Router() *router.Router { return k.router }
func (k *Kernel) Hub() *ws.Hub           { return k.hub }

// Probes are shared with the gRPC health service.
func (k *Kernel) Probes() []grpc.Probe { return k.probes }

// Run drives the websocket hub and the housekeeping schedule until ctx ends.
func (k *Kernel) Run(ctx context.Context) {
	go k.hub.Run(ctx)
	k.schedule.Start(ctx)
}

// Schedule lists the housekeeping tasks, for the CLI.
func (k *Kernel) Schedule() []string { return k.schedule.List() }

// Shutdown waits for queued notification jobs.
func (k *Kernel) Shutdown(ctx context.Context) error {
	return k.pool.Shutdown(ctx)
}
