// Package handler содержит HTTP-обработчики API сервиса парковок.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mmeshcher/parking-system/internal/model"
	"github.com/mmeshcher/parking-system/internal/repository"
	"github.com/mmeshcher/parking-system/internal/service"
	"github.com/mmeshcher/parking-system/internal/validation"
)

const (
	msgEntered = "Client entered parking"
	msgLeft    = "Client left parking, payment processed"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateClient(ctx context.Context, c *model.Client) error
	GetClient(ctx context.Context, id int64) (*model.Client, error)
	ListClients(ctx context.Context) ([]model.Client, error)
	CreateParking(ctx context.Context, p *model.Parking) error
	GetParking(ctx context.Context, id int64) (*model.Parking, error)
	ListParkings(ctx context.Context) ([]model.Parking, error)
	Enter(ctx context.Context, clientID, parkingID int64) error
	Exit(ctx context.Context, clientID, parkingID int64) (float64, error)
}

// Handler реализует HTTP-обработчики API сервиса парковок.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

// errorMessages сопоставляет ошибкам бизнес-правил ответ клиенту.
var errorMessages = []struct {
	err    error
	status int
	msg    string
}{
	{service.ErrParkingClosed, http.StatusBadRequest, "Parking is closed"},
	{service.ErrNoAvailablePlaces, http.StatusBadRequest, "No available places"},
	{service.ErrAlreadyParked, http.StatusBadRequest, "Client already parked"},
	{service.ErrAlreadyExited, http.StatusBadRequest, "Client already left parking"},
	{service.ErrNoCreditCard, http.StatusBadRequest, "No credit card attached to client"},
	{service.ErrInvalidPlaces, http.StatusBadRequest, "count_places must not be negative"},
	{repository.ErrPlacesOutOfRange, http.StatusBadRequest, "count_places must not be negative"},
	{repository.ErrClientNotFound, http.StatusNotFound, "Client not found"},
	{repository.ErrParkingNotFound, http.StatusNotFound, "Parking not found"},
	{repository.ErrSessionNotFound, http.StatusNotFound, "Parking session not found"},
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message         string   `json:"message"`
	DurationMinutes *float64 `json:"duration_minutes,omitempty"`
}

type clientRequest struct {
	Name       *string `json:"name" validate:"required"`
	Surname    *string `json:"surname" validate:"required"`
	CreditCard *string `json:"credit_card"`
	CarNumber  *string `json:"car_number"`
}

type clientResponse struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Surname    string  `json:"surname"`
	CreditCard *string `json:"credit_card"`
	CarNumber  *string `json:"car_number"`
}

type parkingRequest struct {
	Address     *string `json:"address" validate:"required"`
	CountPlaces *int    `json:"count_places" validate:"required"`
	Opened      *bool   `json:"opened"`
}

type parkingResponse struct {
	ID                   int64  `json:"id"`
	Address              string `json:"address"`
	Opened               bool   `json:"opened"`
	CountPlaces          int    `json:"count_places"`
	CountAvailablePlaces int    `json:"count_available_places"`
}

type clientParkingRequest struct {
	ClientID  *int64 `json:"client_id" validate:"required"`
	ParkingID *int64 `json:"parking_id" validate:"required"`
}

func toClientResponse(c model.Client) clientResponse {
	return clientResponse{
		ID:         c.ID,
		Name:       c.Name,
		Surname:    c.Surname,
		CreditCard: c.CreditCard,
		CarNumber:  c.CarNumber,
	}
}

func toParkingResponse(p model.Parking) parkingResponse {
	return parkingResponse{
		ID:                   p.ID,
		Address:              p.Address,
		Opened:               p.Opened,
		CountPlaces:          p.TotalPlaces,
		CountAvailablePlaces: p.AvailablePlaces,
	}
}

// ListClients возвращает список всех клиентов.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.service.ListClients(r.Context())
	if err != nil {
		h.writeServiceError(w, "list clients error", err)
		return
	}

	resp := make([]clientResponse, 0, len(clients))
	for _, c := range clients {
		resp = append(resp, toClientResponse(c))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetClient возвращает клиента по идентификатору из пути.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Client not found")
		return
	}

	c, err := h.service.GetClient(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get client error", err, zap.Int64("clientID", id))
		return
	}
	h.writeJSON(w, http.StatusOK, toClientResponse(*c))
}

// CreateClient регистрирует нового клиента.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if !h.decode(w, r, &req) {
		return
	}

	c := &model.Client{
		Name:       *req.Name,
		Surname:    *req.Surname,
		CreditCard: req.CreditCard,
		CarNumber:  req.CarNumber,
	}
	if err := h.service.CreateClient(r.Context(), c); err != nil {
		h.writeServiceError(w, "create client error", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toClientResponse(*c))
}

// ListParkings возвращает список всех парковок.
func (h *Handler) ListParkings(w http.ResponseWriter, r *http.Request) {
	parkings, err := h.service.ListParkings(r.Context())
	if err != nil {
		h.writeServiceError(w, "list parkings error", err)
		return
	}

	resp := make([]parkingResponse, 0, len(parkings))
	for _, p := range parkings {
		resp = append(resp, toParkingResponse(p))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetParking возвращает парковку по идентификатору из пути.
func (h *Handler) GetParking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.writeError(w, http.StatusNotFound, "Parking not found")
		return
	}

	p, err := h.service.GetParking(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get parking error", err, zap.Int64("parkingID", id))
		return
	}
	h.writeJSON(w, http.StatusOK, toParkingResponse(*p))
}

// CreateParking регистрирует новую парковку.
func (h *Handler) CreateParking(w http.ResponseWriter, r *http.Request) {
	var req parkingRequest
	if !h.decode(w, r, &req) {
		return
	}

	p := &model.Parking{
		Address:     *req.Address,
		TotalPlaces: *req.CountPlaces,
	}
	if req.Opened != nil {
		p.Opened = *req.Opened
	}

	if err := h.service.CreateParking(r.Context(), p); err != nil {
		h.writeServiceError(w, "create parking error", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toParkingResponse(*p))
}

// Enter регистрирует въезд клиента на парковку.
func (h *Handler) Enter(w http.ResponseWriter, r *http.Request) {
	var req clientParkingRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.Enter(r.Context(), *req.ClientID, *req.ParkingID)
	if err != nil {
		h.writeServiceError(w, "client entry error", err,
			zap.Int64("clientID", *req.ClientID), zap.Int64("parkingID", *req.ParkingID))
		return
	}
	h.writeJSON(w, http.StatusCreated, messageResponse{Message: msgEntered})
}

// Exit регистрирует выезд клиента и возвращает длительность стоянки.
func (h *Handler) Exit(w http.ResponseWriter, r *http.Request) {
	var req clientParkingRequest
	if !h.decode(w, r, &req) {
		return
	}

	minutes, err := h.service.Exit(r.Context(), *req.ClientID, *req.ParkingID)
	if err != nil {
		h.writeServiceError(w, "client exit error", err,
			zap.Int64("clientID", *req.ClientID), zap.Int64("parkingID", *req.ParkingID))
		return
	}
	h.writeJSON(w, http.StatusOK, messageResponse{Message: msgLeft, DurationMinutes: &minutes})
}

// decode читает JSON-тело запроса в req и проверяет обязательные поля.
// Пустое тело эквивалентно пустому объекту.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}

	if err := validation.Required(req); err != nil {
		var mfe *validation.MissingFieldsError
		if errors.As(err, &mfe) {
			h.writeError(w, http.StatusBadRequest, mfe.Error())
			return false
		}
		h.logger.Error("validate request error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return false
	}
	return true
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, logMsg string, err error, fields ...zap.Field) {
	for _, m := range errorMessages {
		if errors.Is(err, m.err) {
			h.writeError(w, m.status, m.msg)
			return
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		h.writeError(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable))
		return
	}

	h.logger.Error(logMsg, append(fields, zap.Error(err))...)
	h.writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}
