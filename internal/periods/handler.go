package periods

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fakturio/fakturio/internal/platform/httpx"
	"github.com/fakturio/fakturio/internal/shared"
)

// Handler wires HTTP endpoints for accounting periods.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the periods handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// Mount registers routes on the router.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/accounting/periods", h.list)
	r.Post("/accounting/lock", h.lock)
	r.Post("/accounting/unlock", h.unlock)
}

type lockRequest struct {
	Month int `json:"month" validate:"required,min=1,max=12"`
	Year  int `json:"year" validate:"required,min=2000,max=2200"`
}

type periodResponse struct {
	ID       int64  `json:"id"`
	Month    int    `json:"month"`
	Year     int    `json:"year"`
	LockedAt string `json:"lockedAt,omitempty"`
	LockedBy *int64 `json:"lockedBy,omitempty"`
}

func toPeriodResponse(p Period) periodResponse {
	resp := periodResponse{ID: p.ID, Month: p.Month, Year: p.Year, LockedBy: p.LockedBy}
	if p.LockedAt != nil {
		resp.LockedAt = p.LockedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]periodResponse, 0, len(items))
	for _, p := range items {
		out = append(out, toPeriodResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) lock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", err.Error())
		return
	}
	period, err := h.service.Lock(r.Context(), req.Month, req.Year, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) unlock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Period", err.Error())
		return
	}
	period, err := h.service.Unlock(r.Context(), req.Month, req.Year, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}
