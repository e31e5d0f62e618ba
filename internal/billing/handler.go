package billing

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fakturio/fakturio/internal/platform/httpx"
)

// Handler wires the billing summary endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs the billing handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Mount registers routes on the router.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/billing/summary", h.summary)
}

type summaryResponse struct {
	Totals
	Subtotal string `json:"subtotal"`
	Total    string `json:"total"`
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	orgID, _ := strconv.ParseInt(r.URL.Query().Get("organizationId"), 10, 64)
	month, _ := strconv.Atoi(r.URL.Query().Get("month"))
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	if orgID == 0 || month < 1 || month > 12 || year == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "organizationId, month and year are required")
		return
	}
	totals, err := h.service.Summary(r.Context(), orgID, month, year)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summaryResponse{
		Totals:   totals,
		Subtotal: totals.Subtotal().StringFixed(2),
		Total:    totals.Total().StringFixed(2),
	})
}
