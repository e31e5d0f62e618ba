package inventory

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fakturio/fakturio/internal/platform/httpx"
	"github.com/fakturio/fakturio/internal/shared"
)

// Handler wires HTTP endpoints for inventory items.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the inventory handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// Mount registers routes on the router.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/inventory", h.list)
	r.Post("/inventory", h.create)
	r.Post("/inventory/assign", h.assign)
	r.Put("/inventory/{id}", h.update)
	r.Delete("/inventory/{id}", h.remove)
}

type createRequest struct {
	OrganizationID  int64  `json:"organizationId" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Description     string `json:"description"`
	ProductCode     string `json:"productCode"`
	Quantity        int64  `json:"quantity"`
	UnitPriceCents  int64  `json:"unitPriceCents"`
	TotalPriceCents int64  `json:"totalPriceCents"`
	VATRate         *int   `json:"vatRate"`
	Month           int    `json:"month" validate:"required,min=1,max=12"`
	Year            int    `json:"year" validate:"required,min=2000,max=2200"`
}

type assignRequest struct {
	LineItemID     int64 `json:"lineItemId" validate:"required"`
	OrganizationID int64 `json:"organizationId" validate:"required"`
	Month          int   `json:"month" validate:"required,min=1,max=12"`
	Year           int   `json:"year" validate:"required,min=2000,max=2200"`
}

type itemResponse struct {
	ID               int64  `json:"id"`
	OrganizationID   int64  `json:"organizationId"`
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	ProductCode      string `json:"productCode,omitempty"`
	Quantity         int64  `json:"quantity"`
	UnitPriceCents   int64  `json:"unitPriceCents"`
	TotalPriceCents  int64  `json:"totalPriceCents"`
	VATRate          *int   `json:"vatRate,omitempty"`
	Month            int    `json:"month"`
	Year             int    `json:"year"`
	Status           string `json:"status"`
	SourceLineItemID *int64 `json:"sourceLineItemId,omitempty"`
}

func toItemResponse(it Item) itemResponse {
	return itemResponse{
		ID:               it.ID,
		OrganizationID:   it.OrganizationID,
		Name:             it.Name,
		Description:      it.Description,
		ProductCode:      it.ProductCode,
		Quantity:         it.Quantity,
		UnitPriceCents:   it.UnitPriceCents,
		TotalPriceCents:  it.TotalPriceCents,
		VATRate:          it.VATRate,
		Month:            it.Month,
		Year:             it.Year,
		Status:           it.Status,
		SourceLineItemID: it.SourceLineItemID,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orgID, _ := strconv.ParseInt(r.URL.Query().Get("organizationId"), 10, 64)
	month, _ := strconv.Atoi(r.URL.Query().Get("month"))
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	if orgID == 0 || month == 0 || year == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "organizationId, month and year are required")
		return
	}
	items, err := h.service.ListForPeriod(r.Context(), orgID, month, year)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResponse(it))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	item, err := h.service.Create(r.Context(), CreateInput{
		OrganizationID:  req.OrganizationID,
		Name:            req.Name,
		Description:     req.Description,
		ProductCode:     req.ProductCode,
		Quantity:        req.Quantity,
		UnitPriceCents:  req.UnitPriceCents,
		TotalPriceCents: req.TotalPriceCents,
		VATRate:         req.VATRate,
		Month:           req.Month,
		Year:            req.Year,
		ActorID:         shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	item, err := h.service.Assign(r.Context(), AssignInput{
		LineItemID:     req.LineItemID,
		OrganizationID: req.OrganizationID,
		Month:          req.Month,
		Year:           req.Year,
		ActorID:        shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	item, err := h.service.Update(r.Context(), Item{
		ID:              id,
		Name:            req.Name,
		Description:     req.Description,
		ProductCode:     req.ProductCode,
		Quantity:        req.Quantity,
		UnitPriceCents:  req.UnitPriceCents,
		TotalPriceCents: req.TotalPriceCents,
		VATRate:         req.VATRate,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, ErrInvoicedImmutable) {
			httpx.Problem(w, http.StatusConflict, "Item Invoiced", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		if errors.Is(err, ErrInvoicedImmutable) {
			httpx.Problem(w, http.StatusConflict, "Item Invoiced", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
