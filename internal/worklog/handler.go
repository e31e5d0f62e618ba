package worklog

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fakturio/fakturio/internal/platform/httpx"
	"github.com/fakturio/fakturio/internal/shared"
)

// Handler wires HTTP endpoints for work records.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the worklog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// Mount registers routes on the router.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/work-records", h.list)
	r.Post("/work-records", h.create)
	r.Put("/work-records/{id}", h.update)
	r.Delete("/work-records/{id}", h.remove)
	r.Post("/work-records/{id}/submit", h.submit)
	r.Post("/work-records/{id}/approve", h.approve)
}

type recordRequest struct {
	OrganizationID int64  `json:"organizationId" validate:"required"`
	BillingOrgID   *int64 `json:"billingOrgId"`
	Date           string `json:"date" validate:"required"`
	Minutes        int    `json:"minutes" validate:"min=0"`
	Kilometers     int    `json:"kilometers" validate:"min=0"`
	Description    string `json:"description"`
	ProjectCode    string `json:"projectCode"`
}

type recordResponse struct {
	ID             int64  `json:"id"`
	OrganizationID int64  `json:"organizationId"`
	BillingOrgID   *int64 `json:"billingOrgId,omitempty"`
	Date           string `json:"date"`
	Minutes        int    `json:"minutes"`
	Kilometers     int    `json:"kilometers"`
	Description    string `json:"description,omitempty"`
	ProjectCode    string `json:"projectCode,omitempty"`
	Status         string `json:"status"`
}

func toRecordResponse(rec Record) recordResponse {
	return recordResponse{
		ID:             rec.ID,
		OrganizationID: rec.OrganizationID,
		BillingOrgID:   rec.BillingOrgID,
		Date:           rec.Date.UTC().Format("2006-01-02"),
		Minutes:        rec.Minutes,
		Kilometers:     rec.Kilometers,
		Description:    rec.Description,
		ProjectCode:    rec.ProjectCode,
		Status:         rec.Status,
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Record, bool) {
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return Record{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return Record{}, false
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
		return Record{}, false
	}
	return Record{
		OrganizationID: req.OrganizationID,
		BillingOrgID:   req.BillingOrgID,
		Date:           date,
		Minutes:        req.Minutes,
		Kilometers:     req.Kilometers,
		Description:    req.Description,
		ProjectCode:    req.ProjectCode,
	}, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orgID, _ := strconv.ParseInt(r.URL.Query().Get("organizationId"), 10, 64)
	month, _ := strconv.Atoi(r.URL.Query().Get("month"))
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	if orgID == 0 || month == 0 || year == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "organizationId, month and year are required")
		return
	}
	records, err := h.service.ListForBilling(r.Context(), orgID, month, year)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordResponse(rec))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.decode(w, r)
	if !ok {
		return
	}
	rec.CreatedBy = shared.ActorFromContext(r.Context())
	created, err := h.service.Create(r.Context(), rec)
	if err != nil {
		if errors.Is(err, ErrInvalidRecord) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Record", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRecordResponse(created))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	rec, ok := h.decode(w, r)
	if !ok {
		return
	}
	rec.ID = id
	updated, err := h.service.Update(r.Context(), rec, shared.ActorFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, ErrBilledImmutable) {
			httpx.Problem(w, http.StatusConflict, "Record Billed", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRecordResponse(updated))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		if errors.Is(err, ErrBilledImmutable) {
			httpx.Problem(w, http.StatusConflict, "Record Billed", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Submit)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Approve)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, actorID int64) (Record, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	rec, err := fn(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRecordResponse(rec))
}
