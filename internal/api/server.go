package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/dharsanguruparan/DockGuard/internal/config"
	"github.com/dharsanguruparan/DockGuard/internal/model"
	"github.com/dharsanguruparan/DockGuard/internal/queue"
	"github.com/dharsanguruparan/DockGuard/internal/warehouse"
)

// Warehouse is the set of engine operations exposed over HTTP.
// *warehouse.Engine satisfies it.
type Warehouse interface {
	CreatePallet(ctx context.Context, barcode string, weight *decimal.Decimal) (*model.Pallet, error)
	ListPallets(ctx context.Context) ([]*model.Pallet, error)
	ScanPalletToDock(ctx context.Context, barcode, dockNumber string) (*warehouse.ScanResult, error)
	CreateDock(ctx context.Context, number string, dockType model.DockType) (*model.Dock, error)
	ListDocks(ctx context.Context) ([]*model.Dock, error)
	AssignDockToShipment(ctx context.Context, dockNumber, shipmentRef string) (*warehouse.Assignment, error)
	CreateShipment(ctx context.Context, in warehouse.NewShipment) (*model.Shipment, error)
	ListShipments(ctx context.Context) ([]*model.Shipment, error)
	CheckPickupStatus(ctx context.Context, shipmentRef string) (*warehouse.PickupStatus, error)
	MarkCollected(ctx context.Context, shipmentRef string) (*model.Shipment, error)
	ReleaseDock(ctx context.Context, shipmentRef string) (*warehouse.Release, error)
	ShipmentLoad(ctx context.Context, shipmentRef string) (*warehouse.LoadReport, error)
}

var _ Warehouse = (*warehouse.Engine)(nil)

// ManifestLinker hands out download links for exported manifests.
// *s3storage.Storage satisfies it.
type ManifestLinker interface {
	PresignManifestURL(ctx context.Context, ref string, expiry time.Duration) (string, error)
}

// Server exposes the warehouse operations and the scanner gateway over HTTP.
type Server struct {
	cfg    *config.Config
	wh     Warehouse
	queue  queue.Enqueuer
	links  ManifestLinker
	router *gin.Engine
	server *http.Server
	once   sync.Once
}

// New constructs a Server. queueClient may be nil, in which case POST /scan
// answers 503.
func New(cfg *config.Config, wh Warehouse, queueClient queue.Enqueuer) *Server {
	return &Server{cfg: cfg, wh: wh, queue: queueClient}
}

// WithManifestLinks enables GET /api/shipments/:ref/manifest-url.
func (s *Server) WithManifestLinks(links ManifestLinker) *Server {
	s.links = links
	return s
}

// Handler returns the gin router, building it on first use.
func (s *Server) Handler() http.Handler {
	s.once.Do(func() {
		s.router = s.routes()
		s.server = &http.Server{
			Addr:              s.cfg.Address,
			Handler:           s.router,
			ReadHeaderTimeout: 10 * time.Second,
		}
	})
	return s.router
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.Handler()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	log.Printf("api listening on %s", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), loggingMiddleware(), corsMiddleware())

	r.GET("/healthz", s.handleHealth)
	r.GET("/ping", s.handleHealth)
	r.POST("/scan", s.handleScan)

	api := r.Group("/api")

	pallets := api.Group("/pallets")
	pallets.POST("", s.handleCreatePallet)
	pallets.GET("", s.handleListPallets)
	pallets.POST("/scan-to-dock", s.handleScanToDock)

	docks := api.Group("/docks")
	docks.POST("", s.handleCreateDock)
	docks.GET("", s.handleListDocks)
	docks.POST("/assign", s.handleAssign)

	shipments := api.Group("/shipments")
	shipments.POST("", s.handleCreateShipment)
	shipments.GET("", s.handleListShipments)
	shipments.GET("/check-pickup/:ref", s.handleCheckPickup)
	shipments.PATCH("/collect/:ref", s.handleCollect)
	shipments.POST("/release/:ref", s.handleRelease)
	shipments.GET("/:ref/load", s.handleLoad)
	shipments.GET("/:ref/manifest-url", s.handleManifestURL)

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("%s %s %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
