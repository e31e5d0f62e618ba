package recurring

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fakturio/fakturio/internal/platform/httpx"
)

// Handler wires HTTP endpoints for recurring services. CRUD goes
// straight to the repository; there is no period guard because fee
// lines are configuration, not period data.
type Handler struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewHandler constructs the recurring services handler.
func NewHandler(repo RepositoryPort) *Handler {
	return &Handler{repo: repo, validate: validator.New()}
}

// Mount registers routes on the router.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/recurring-services", h.list)
	r.Post("/recurring-services", h.create)
	r.Put("/recurring-services/{id}", h.update)
	r.Delete("/recurring-services/{id}", h.remove)
}

type serviceRequest struct {
	OrganizationID  int64  `json:"organizationId" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Description     string `json:"description"`
	MonthlyFeeCents int64  `json:"monthlyFeeCents" validate:"min=0"`
	Active          bool   `json:"active"`
}

type serviceResponse struct {
	ID              int64  `json:"id"`
	OrganizationID  int64  `json:"organizationId"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	MonthlyFeeCents int64  `json:"monthlyFeeCents"`
	Active          bool   `json:"active"`
}

func toServiceResponse(s Service) serviceResponse {
	return serviceResponse{
		ID:              s.ID,
		OrganizationID:  s.OrganizationID,
		Name:            s.Name,
		Description:     s.Description,
		MonthlyFeeCents: s.MonthlyFeeCents,
		Active:          s.Active,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orgID, _ := strconv.ParseInt(r.URL.Query().Get("organizationId"), 10, 64)
	if orgID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "organizationId is required")
		return
	}
	services, err := h.repo.ListForOrganization(r.Context(), orgID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]serviceResponse, 0, len(services))
	for _, s := range services {
		out = append(out, toServiceResponse(s))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.decode(w, r)
	if !ok {
		return
	}
	created, err := h.repo.Create(r.Context(), svc)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toServiceResponse(created))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	svc, ok := h.decode(w, r)
	if !ok {
		return
	}
	svc.ID = id
	updated, err := h.repo.Update(r.Context(), svc)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toServiceResponse(updated))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Service, bool) {
	var req serviceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return Service{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return Service{}, false
	}
	svc := Service{
		OrganizationID:  req.OrganizationID,
		Name:            req.Name,
		Description:     req.Description,
		MonthlyFeeCents: req.MonthlyFeeCents,
		Active:          req.Active,
	}
	if err := svc.Validate(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Service", err.Error())
		return Service{}, false
	}
	return svc, true
}
