package invoices

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fakturio/fakturio/internal/platform/httpx"
	"github.com/fakturio/fakturio/internal/shared"
)

// Handler wires HTTP endpoints for issued invoices.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the invoices handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// Mount registers routes on the router.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/invoices", h.list)
	r.Get("/invoices/{id}", h.get)
	r.Post("/invoices/generate", h.generate)
	r.Post("/invoices/{id}/send", h.send)
	r.Post("/invoices/{id}/paid", h.markPaid)
	r.Post("/invoices/{id}/cancel", h.cancel)
}

type generateRequest struct {
	OrganizationID int64 `json:"organizationId" validate:"required"`
	Month          int   `json:"month" validate:"required,min=1,max=12"`
	Year           int   `json:"year" validate:"required,min=2000,max=2200"`
}

type invoiceResponse struct {
	ID             int64  `json:"id"`
	OrganizationID int64  `json:"organizationId"`
	Month          int    `json:"month"`
	Year           int    `json:"year"`
	Number         string `json:"number"`
	SubtotalCents  int64  `json:"subtotalCents"`
	VATCents       int64  `json:"vatCents"`
	TotalCents     int64  `json:"totalCents"`
	Status         string `json:"status"`
}

func toInvoiceResponse(inv Invoice) invoiceResponse {
	return invoiceResponse{
		ID:             inv.ID,
		OrganizationID: inv.OrganizationID,
		Month:          inv.Month,
		Year:           inv.Year,
		Number:         inv.Number,
		SubtotalCents:  inv.SubtotalCents,
		VATCents:       inv.VATCents,
		TotalCents:     inv.TotalCents,
		Status:         inv.Status,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orgID, _ := strconv.ParseInt(r.URL.Query().Get("organizationId"), 10, 64)
	if orgID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "organizationId is required")
		return
	}
	invoices, err := h.service.List(r.Context(), orgID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	inv, err := h.service.Generate(r.Context(), req.OrganizationID, req.Month, req.Year, shared.ActorFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, ErrInvoiceExists) {
			httpx.Problem(w, http.StatusConflict, "Invoice Exists", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(inv))
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Send)
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkPaid)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Cancel)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, actorID int64) (Invoice, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	inv, err := fn(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}
