package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rl1809/shirt-tracker/internal/core/domain"
	"github.com/rl1809/shirt-tracker/internal/core/service"
)

type HTTPHandler struct {
	inventory *service.InventoryService
	scans     *service.ScanService
	metrics   *Metrics
}

type CreateShirtHTTPRequest struct {
	SerialNumber string `json:"serial_number"`
	Color        string `json:"color"`
	Size         string `json:"size"`
	Type         string `json:"type"`
}

type CreateShipmentHTTPRequest struct {
	TrackingCode string `json:"tracking_code"`
}

type ShipmentSummaryHTTPResponse struct {
	ID           string `json:"id"`
	TrackingCode string `json:"tracking_code"`
}

type ShirtHTTPResponse struct {
	ID           string                       `json:"id"`
	SerialNumber string                       `json:"serial_number"`
	Color        string                       `json:"color"`
	Size         string                       `json:"size"`
	Type         string                       `json:"type"`
	Status       string                       `json:"status"`
	ShipmentID   *string                      `json:"shipment_id"`
	Shipment     *ShipmentSummaryHTTPResponse `json:"shipment,omitempty"`
}

type ShipmentHTTPResponse struct {
	ID           string              `json:"id"`
	TrackingCode string              `json:"tracking_code"`
	CreatedAt    time.Time           `json:"created_at"`
	Shirts       []ShirtHTTPResponse `json:"shirts"`
}

type StatsHTTPResponse struct {
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
	Shipments int            `json:"shipments"`
}

type ErrorHTTPResponse struct {
	Detail string `json:"detail"`
}

// NewHTTPHandler builds the JSON API. metrics may be nil.
func NewHTTPHandler(inventory *service.InventoryService, scans *service.ScanService, metrics *Metrics) *HTTPHandler {
	return &HTTPHandler{inventory: inventory, scans: scans, metrics: metrics}
}

// Register mounts the API on mux. Collection routes answer with and without the trailing slash.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)

	for _, prefix := range []string{"/shirts", "/shirts/{$}"} {
		mux.HandleFunc("POST "+prefix, h.CreateShirt)
		mux.HandleFunc("GET "+prefix, h.ListShirts)
	}
	mux.HandleFunc("GET /shirts/{id}", h.GetShirt)

	for _, prefix := range []string{"/shipments", "/shipments/{$}"} {
		mux.HandleFunc("POST "+prefix, h.CreateShipment)
		mux.HandleFunc("GET "+prefix, h.ListShipments)
	}
	mux.HandleFunc("GET /shipments/{id}", h.GetShipment)

	mux.HandleFunc("POST /scan", h.Scan)
	mux.HandleFunc("POST /scan/{$}", h.Scan)
	mux.HandleFunc("GET /stats", h.Stats)
	mux.HandleFunc("GET /stats/{$}", h.Stats)
}

func (h *HTTPHandler) CreateShirt(w http.ResponseWriter, r *http.Request) {
	var req CreateShirtHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	shirt, err := h.inventory.RegisterShirt(r.Context(), domain.ShirtInput{
		SerialNumber: req.SerialNumber,
		Color:        req.Color,
		Size:         domain.ShirtSize(req.Size),
		Type:         domain.ShirtType(req.Type),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShirtResponse(*shirt))
}

func (h *HTTPHandler) ListShirts(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := pageParams(w, r)
	if !ok {
		return
	}

	shirts, err := h.inventory.ListShirts(r.Context(), skip, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShirtResponses(shirts))
}

func (h *HTTPHandler) GetShirt(w http.ResponseWriter, r *http.Request) {
	shirt, err := h.inventory.GetShirt(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShirtResponse(*shirt))
}

func (h *HTTPHandler) CreateShipment(w http.ResponseWriter, r *http.Request) {
	var req CreateShipmentHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	shipment, err := h.inventory.RegisterShipment(r.Context(), domain.ShipmentInput{TrackingCode: req.TrackingCode})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShipmentResponse(*shipment))
}

func (h *HTTPHandler) ListShipments(w http.ResponseWriter, r *http.Request) {
	skip, limit, ok := pageParams(w, r)
	if !ok {
		return
	}

	shipments, err := h.inventory.ListShipments(r.Context(), skip, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := make([]ShipmentHTTPResponse, 0, len(shipments))
	for _, shipment := range shipments {
		resp = append(resp, toShipmentResponse(shipment))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) GetShipment(w http.ResponseWriter, r *http.Request) {
	shipment, err := h.inventory.GetShipment(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toShipmentResponse(*shipment))
}

// Scan takes its arguments from the query string, as the scanner UI sends them.
func (h *HTTPHandler) Scan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	action := strings.TrimSpace(q.Get("action"))
	serial := strings.TrimSpace(q.Get("serial"))
	if action == "" || serial == "" {
		writeError(w, http.StatusUnprocessableEntity, "action and serial are required")
		return
	}

	requestID := q.Get("request_id")
	if requestID == "" {
		requestID = r.Header.Get("Idempotency-Key")
	}

	shirt, err := h.scans.Scan(r.Context(), service.ScanRequest{
		Action:     action,
		Serial:     serial,
		ShipmentID: q.Get("shipment_id"),
		RequestID:  requestID,
	})
	if err != nil {
		h.metrics.ObserveScan(action, scanOutcome(err))
		h.writeServiceError(w, err)
		return
	}

	h.metrics.ObserveScan(action, "ok")
	writeJSON(w, http.StatusOK, toShirtResponse(*shirt))
}

func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.inventory.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	byStatus := make(map[string]int, len(stats.ByStatus))
	for status, n := range stats.ByStatus {
		byStatus[string(status)] = n
	}
	writeJSON(w, http.StatusOK, StatsHTTPResponse{
		Total:     stats.Total,
		ByStatus:  byStatus,
		Shipments: stats.Shipments,
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, err error) {
	status, message := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("http: internal error: %v", err)
	}
	writeError(w, status, message)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrShirtNotFound):
		return http.StatusNotFound, "Shirt not found"
	case errors.Is(err, domain.ErrShipmentNotFound):
		return http.StatusNotFound, "Shipment not found"
	case errors.Is(err, domain.ErrDuplicateSerial):
		return http.StatusBadRequest, "Serial number already registered"
	case errors.Is(err, domain.ErrDuplicateTrackingCode):
		return http.StatusBadRequest, "Tracking code already registered"
	case errors.Is(err, domain.ErrShipmentIDRequired):
		return http.StatusBadRequest, "Shipment ID required for shipping"
	case errors.Is(err, domain.ErrUnknownAction):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrActionNotImplemented):
		return http.StatusNotImplemented, "Scan action not implemented"
	case errors.Is(err, service.ErrDuplicateScan):
		return http.StatusConflict, "duplicate request"
	}
	return http.StatusInternalServerError, "internal error"
}

func scanOutcome(err error) string {
	switch status, _ := errorStatus(err); status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "duplicate"
	case http.StatusInternalServerError:
		return "error"
	}
	return "rejected"
}

func pageParams(w http.ResponseWriter, r *http.Request) (skip, limit int, ok bool) {
	q := r.URL.Query()
	skip, limit = 0, service.DefaultPageLimit

	if v := q.Get("skip"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusUnprocessableEntity, "skip must be a non-negative integer")
			return 0, 0, false
		}
		skip = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusUnprocessableEntity, "limit must be a non-negative integer")
			return 0, 0, false
		}
		limit = n
	}
	return skip, limit, true
}

func toShirtResponse(s domain.Shirt) ShirtHTTPResponse {
	resp := ShirtHTTPResponse{
		ID:           s.ID,
		SerialNumber: s.SerialNumber,
		Color:        s.Color,
		Size:         string(s.Size),
		Type:         string(s.Type),
		Status:       string(s.Status),
		ShipmentID:   s.ShipmentID,
	}
	if s.Shipment != nil {
		resp.Shipment = &ShipmentSummaryHTTPResponse{ID: s.Shipment.ID, TrackingCode: s.Shipment.TrackingCode}
	}
	return resp
}

func toShirtResponses(shirts []domain.Shirt) []ShirtHTTPResponse {
	resp := make([]ShirtHTTPResponse, 0, len(shirts))
	for _, s := range shirts {
		resp = append(resp, toShirtResponse(s))
	}
	return resp
}

func toShipmentResponse(s domain.Shipment) ShipmentHTTPResponse {
	return ShipmentHTTPResponse{
		ID:           s.ID,
		TrackingCode: s.TrackingCode,
		CreatedAt:    s.CreatedAt,
		Shirts:       toShirtResponses(s.Shirts),
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorHTTPResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
