package organizations

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/fakturio/fakturio/internal/platform/httpx"
	"github.com/fakturio/fakturio/internal/shared"
)

// Handler wires HTTP endpoints for organizations.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the organizations handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// Mount registers routes on the router.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/organizations", h.list)
	r.Post("/organizations", h.create)
	r.Get("/organizations/ares/{ico}", h.lookup)
	r.Get("/organizations/{id}", h.get)
	r.Put("/organizations/{id}", h.update)
	r.Delete("/organizations/{id}", h.remove)
}

type organizationRequest struct {
	Name               string  `json:"name"`
	TaxID              string  `json:"taxId"`
	VATID              string  `json:"vatId"`
	Address            string  `json:"address"`
	Email              string  `json:"email" validate:"omitempty,email"`
	Phone              string  `json:"phone"`
	HourlyRateCents    int64   `json:"hourlyRateCents" validate:"min=0"`
	KilometerRateCents int64   `json:"kilometerRateCents" validate:"min=0"`
	VATRate            *string `json:"vatRate"`
}

type organizationResponse struct {
	ID                 int64   `json:"id"`
	Name               string  `json:"name"`
	TaxID              string  `json:"taxId,omitempty"`
	VATID              string  `json:"vatId,omitempty"`
	Address            string  `json:"address,omitempty"`
	Email              string  `json:"email,omitempty"`
	Phone              string  `json:"phone,omitempty"`
	HourlyRateCents    int64   `json:"hourlyRateCents"`
	KilometerRateCents int64   `json:"kilometerRateCents"`
	VATRate            *string `json:"vatRate,omitempty"`
}

func toOrganizationResponse(org Organization) organizationResponse {
	resp := organizationResponse{
		ID:                 org.ID,
		Name:               org.Name,
		TaxID:              org.TaxID,
		VATID:              org.VATID,
		Address:            org.Address,
		Email:              org.Email,
		Phone:              org.Phone,
		HourlyRateCents:    org.HourlyRateCents,
		KilometerRateCents: org.KilometerRateCents,
	}
	if org.VATRate != nil {
		rate := org.VATRate.String()
		resp.VATRate = &rate
	}
	return resp
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (Organization, bool) {
	var req organizationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return Organization{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return Organization{}, false
	}
	org := Organization{
		Name:               req.Name,
		TaxID:              req.TaxID,
		VATID:              req.VATID,
		Address:            req.Address,
		Email:              req.Email,
		Phone:              req.Phone,
		HourlyRateCents:    req.HourlyRateCents,
		KilometerRateCents: req.KilometerRateCents,
	}
	if req.VATRate != nil {
		rate, err := decimal.NewFromString(*req.VATRate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid VAT Rate", err.Error())
			return Organization{}, false
		}
		org.VATRate = &rate
	}
	return org, true
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]organizationResponse, 0, len(orgs))
	for _, org := range orgs {
		out = append(out, toOrganizationResponse(org))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	org, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrganizationResponse(org))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	org, ok := h.decode(w, r)
	if !ok {
		return
	}
	created, err := h.service.Create(r.Context(), org, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondWriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOrganizationResponse(created))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	org, ok := h.decode(w, r)
	if !ok {
		return
	}
	org.ID = id
	updated, err := h.service.Update(r.Context(), org, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.respondWriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrganizationResponse(updated))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	company, err := h.service.LookupCompany(r.Context(), chi.URLParam(r, "ico"))
	if err != nil {
		h.respondWriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{
		"taxId":   company.TaxID,
		"vatId":   company.VATID,
		"name":    company.Name,
		"address": company.Address,
	})
}

func (h *Handler) respondWriteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidOrganization):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Organization", err.Error())
	case errors.Is(err, ErrInvalidTaxID):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Tax ID", err.Error())
	case errors.Is(err, ErrCompanyNotFound):
		httpx.Problem(w, http.StatusNotFound, "Company Not Found", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
