// Package routes maps URLs to controllers.
package routes

import (
	"net/http"

	gql "github.com/graphql-go/graphql"

	"github.com/onyxia-store/onyxia/app/controllers"
	"github.com/onyxia-store/onyxia/app/services"
	"github.com/onyxia-store/onyxia/pkg/ctx"
	"github.com/onyxia-store/onyxia/pkg/graphql"
	"github.com/onyxia-store/onyxia/pkg/grpc"
	"github.com/onyxia-store/onyxia/pkg/metrics"
	"github.com/onyxia-store/onyxia/pkg/middleware"
	"github.com/onyxia-store/onyxia/pkg/router"
	"github.com/onyxia-store/onyxia/pkg/storage"
	"github.com/onyxia-store/onyxia/pkg/ws"
)

// Deps carries everything the controllers need. Nil Hub, Disk or Catalog
// leave the matching routes unregistered.
type Deps struct {
	Auth      *services.AuthService
	Products  *services.ProductService
	Orders    *services.OrderService
	Disk      storage.Disk
	Hub       *ws.Hub
	Catalog   *gql.Schema
	Probes    []grpc.Probe
	StaticDir string
	IndexFile string
}

func RegisterAPI(r *router.Router, d Deps) {
	admin := middleware.RequireAdmin(d.Auth.Issuer(), d.Auth.Blacklist())

	authController := controllers.NewAuthController(d.Auth)
	productController := controllers.NewProductController(d.Products)
	orderController := controllers.NewOrderController(d.Orders)

	r.Get("/healthz", "health", ctx.Wrap(controllers.NewHealthController(d.Probes...).Show))
	r.Get("/metrics", "metrics", metrics.Handler())
	if d.Catalog != nil {
		r.Post("/graphql", "graphql", graphql.Handler(*d.Catalog))
	}

	api := r.Group("/api")

	api.Post("/admin/login", "admin.login", ctx.Wrap(authController.Login))
	api.Get("/admin/verify", "admin.verify", ctx.Wrap(authController.Verify), admin)
	api.Post("/admin/logout", "admin.logout", ctx.Wrap(authController.Logout), admin)

	api.Get("/products", "products.index", ctx.Wrap(productController.Index))
	api.Get("/products/home", "products.home", ctx.Wrap(productController.Home))
	api.Get("/products/{id}", "products.show", ctx.Wrap(productController.Show))
	api.Post("/orders", "orders.store", ctx.Wrap(orderController.Store))

	protected := api.Group("", admin)
	protected.Post("/products", "products.store", ctx.Wrap(productController.Store))
	protected.Put("/products/{id}", "products.update", ctx.Wrap(productController.Update))
	protected.Delete("/products/{id}", "products.destroy", ctx.Wrap(productController.Destroy))

	protected.Get("/orders", "orders.index", ctx.Wrap(orderController.Index))
	protected.Put("/orders/{id}", "orders.update", ctx.Wrap(orderController.Update))
	protected.Delete("/orders/{id}", "orders.destroy", ctx.Wrap(orderController.Destroy))

	if d.Disk != nil {
		protected.Post("/uploads", "uploads.store", ctx.Wrap(controllers.NewUploadController(d.Disk).Store))
	}
	if local, ok := d.Disk.(*storage.Local); ok {
		r.Handle("/storage/*", "storage", http.StripPrefix("/storage/", http.FileServer(http.Dir(local.Root()))))
	}
	if d.Hub != nil {
		protected.Get("/admin/orders/feed", "orders.feed", d.Hub.ServeWS)
	}

	if d.StaticDir != "" {
		static := controllers.NewStaticController(d.StaticDir, d.IndexFile, d.Auth.Issuer(), d.Auth.Blacklist())
		r.Get("/*", "static", ctx.Wrap(static.Serve))
	}
}
