package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/dharsanguruparan/DockGuard/internal/model"
	"github.com/dharsanguruparan/DockGuard/internal/queue"
	"github.com/dharsanguruparan/DockGuard/internal/warehouse"
)

type createPalletRequest struct {
	Barcode string           `json:"barcode" binding:"required"`
	Weight  *decimal.Decimal `json:"weight"`
}

type scanToDockRequest struct {
	Barcode    string `json:"barcode" binding:"required"`
	DockNumber string `json:"dock_number" binding:"required"`
}

type createDockRequest struct {
	Number   string `json:"number" binding:"required"`
	DockType string `json:"dock_type"`
}

type assignRequest struct {
	DockNumber  string `json:"dock_number" binding:"required"`
	ShipmentRef string `json:"shipment_reference" binding:"required"`
}

type createShipmentRequest struct {
	ReferenceNumber   string           `json:"reference_number" binding:"required"`
	Origin            string           `json:"origin" binding:"required"`
	Destination       string           `json:"destination" binding:"required"`
	Status            string           `json:"status"`
	MaxWeightCapacity *decimal.Decimal `json:"max_weight_capacity"`
}

type scanRequest struct {
	Barcode    string           `json:"barcode" binding:"required"`
	DockNumber string           `json:"dock_number"`
	ScannerID  string           `json:"scanner_id" binding:"required"`
	Weight     *decimal.Decimal `json:"weight"`
}

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCreatePallet(c *gin.Context) {
	var req createPalletRequest
	if !bind(c, &req) {
		return
	}
	pallet, err := s.wh.CreatePallet(c.Request.Context(), req.Barcode, req.Weight)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pallet)
}

func (s *Server) handleListPallets(c *gin.Context) {
	pallets, err := s.wh.ListPallets(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pallets)
}

func (s *Server) handleScanToDock(c *gin.Context) {
	var req scanToDockRequest
	if !bind(c, &req) {
		return
	}
	res, err := s.wh.ScanPalletToDock(c.Request.Context(), req.Barcode, req.DockNumber)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCreateDock(c *gin.Context) {
	var req createDockRequest
	if !bind(c, &req) {
		return
	}
	dock, err := s.wh.CreateDock(c.Request.Context(), req.Number, model.DockType(req.DockType))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dock)
}

func (s *Server) handleListDocks(c *gin.Context) {
	docks, err := s.wh.ListDocks(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, docks)
}

func (s *Server) handleAssign(c *gin.Context) {
	var req assignRequest
	if !bind(c, &req) {
		return
	}
	res, err := s.wh.AssignDockToShipment(c.Request.Context(), req.DockNumber, req.ShipmentRef)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCreateShipment(c *gin.Context) {
	var req createShipmentRequest
	if !bind(c, &req) {
		return
	}
	shipment, err := s.wh.CreateShipment(c.Request.Context(), warehouse.NewShipment{
		ReferenceNumber:   req.ReferenceNumber,
		Origin:            req.Origin,
		Destination:       req.Destination,
		Status:            model.ShipmentStatus(req.Status),
		MaxWeightCapacity: req.MaxWeightCapacity,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, shipment)
}

func (s *Server) handleListShipments(c *gin.Context) {
	shipments, err := s.wh.ListShipments(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shipments)
}

func (s *Server) handleCheckPickup(c *gin.Context) {
	res, err := s.wh.CheckPickupStatus(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCollect(c *gin.Context) {
	shipment, err := s.wh.MarkCollected(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          "shipment marked as collected",
		"reference_number": shipment.ReferenceNumber,
		"status":           shipment.Status,
	})
}

func (s *Server) handleRelease(c *gin.Context) {
	res, err := s.wh.ReleaseDock(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          "dock released",
		"dock_number":      res.DockNumber,
		"reference_number": res.Shipment.ReferenceNumber,
		"status":           res.Shipment.Status,
	})
}

func (s *Server) handleLoad(c *gin.Context) {
	res, err := s.wh.ShipmentLoad(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleManifestURL(c *gin.Context) {
	if s.links == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "UNAVAILABLE", Message: "manifest export not configured"})
		return
	}
	ref := c.Param("ref")
	shipment, err := s.wh.CheckPickupStatus(c.Request.Context(), ref)
	if err != nil {
		respondError(c, err)
		return
	}
	if shipment.Status != model.ShipmentShipped && shipment.Status != model.ShipmentCollected {
		c.JSON(http.StatusUnprocessableEntity, errorResponse{
			Error:   string(warehouse.KindInvalidState),
			Message: "manifest is exported when the dock is released",
			Details: map[string]string{"reference_number": ref, "status": string(shipment.Status)},
		})
		return
	}
	url, err := s.links.PresignManifestURL(c.Request.Context(), ref, s.cfg.ManifestURLTTL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// handleScan is the scanner gateway: it accepts the event, queues it and
// answers before the pallet exists.
func (s *Server) handleScan(c *gin.Context) {
	var req scanRequest
	if !bind(c, &req) {
		return
	}
	if req.Weight != nil && req.Weight.IsNegative() {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   string(warehouse.KindInvalidArgument),
			Message: "weight must not be negative",
		})
		return
	}
	if s.queue == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "UNAVAILABLE", Message: "scan queue not configured"})
		return
	}
	payload := queue.ScanPayload{
		Barcode:    req.Barcode,
		DockNumber: req.DockNumber,
		ScannerID:  req.ScannerID,
		Weight:     req.Weight,
	}
	if err := queue.EnqueueScan(c.Request.Context(), s.queue, payload); err != nil {
		log.Printf("enqueue scan barcode=%s: %v", req.Barcode, err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "INTERNAL", Message: "failed to queue scan"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "barcode": req.Barcode})
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Error:   string(warehouse.KindInvalidArgument),
			Message: err.Error(),
		})
		return false
	}
	return true
}

func respondError(c *gin.Context, err error) {
	var werr *warehouse.Error
	if !errors.As(err, &werr) {
		log.Printf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "INTERNAL", Message: "internal error"})
		return
	}
	c.JSON(statusFor(werr.Kind), errorResponse{
		Error:   string(werr.Kind),
		Message: werr.Message,
		Details: werr.Details,
	})
}

func statusFor(kind warehouse.Kind) int {
	switch kind {
	case warehouse.KindNotFound:
		return http.StatusNotFound
	case warehouse.KindConflict:
		return http.StatusConflict
	case warehouse.KindInvalidState, warehouse.KindCapacityExceeded:
		return http.StatusUnprocessableEntity
	case warehouse.KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
