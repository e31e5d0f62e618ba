package received

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fakturio/fakturio/internal/platform/httpx"
	"github.com/fakturio/fakturio/internal/shared"
)

// maxUploadBytes caps uploaded documents at 20 MiB.
const maxUploadBytes = 20 << 20

// Handler wires HTTP endpoints for received invoices.
type Handler struct {
	service *Service
}

// NewHandler constructs the received-invoices handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Mount registers routes on the router.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/received-invoices/upload", h.upload)
	r.Get("/received-invoices", h.list)
	r.Get("/received-invoices/{id}", h.get)
	r.Post("/received-invoices/{id}/ready", h.markReady)
	r.Post("/received-invoices/{id}/archive", h.archive)
	r.Delete("/received-invoices/{id}", h.remove)
	r.Patch("/received-invoices/items/{itemID}", h.reviewItem)
}

type invoiceResponse struct {
	ID               int64          `json:"id"`
	SupplierName     string         `json:"supplierName"`
	SupplierTaxID    string         `json:"supplierTaxId,omitempty"`
	InvoiceNumber    string         `json:"invoiceNumber"`
	IssueDate        string         `json:"issueDate,omitempty"`
	Currency         string         `json:"currency"`
	TotalExVATCents  *int64         `json:"totalExVatCents,omitempty"`
	TotalIncVATCents *int64         `json:"totalIncVatCents,omitempty"`
	Source           string         `json:"source"`
	Status           string         `json:"status"`
	OCRStatus        string         `json:"ocrStatus"`
	OCRError         string         `json:"ocrError,omitempty"`
	Mock             bool           `json:"mock,omitempty"`
	Duplicated       bool           `json:"duplicated,omitempty"`
	Items            []itemResponse `json:"items,omitempty"`
}

type itemResponse struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	Quantity          string `json:"quantity"`
	UnitPriceCents    *int64 `json:"unitPriceCents,omitempty"`
	TotalPriceCents   *int64 `json:"totalPriceCents,omitempty"`
	VATRate           *int   `json:"vatRate,omitempty"`
	ProductCode       string `json:"productCode,omitempty"`
	LinkedProductCode string `json:"linkedProductCode,omitempty"`
	Status            string `json:"status"`
}

func toInvoiceResponse(inv Invoice, duplicated bool) invoiceResponse {
	resp := invoiceResponse{
		ID:               inv.ID,
		SupplierName:     inv.SupplierName,
		SupplierTaxID:    inv.SupplierTaxID,
		InvoiceNumber:    inv.InvoiceNumber,
		Currency:         inv.Currency,
		TotalExVATCents:  inv.TotalExVATCents,
		TotalIncVATCents: inv.TotalIncVATCents,
		Source:           string(inv.Source),
		Status:           inv.Status,
		OCRStatus:        inv.OCRStatus,
		OCRError:         inv.OCRError,
		Mock:             inv.Mock,
		Duplicated:       duplicated,
	}
	if inv.IssueDate != nil {
		resp.IssueDate = inv.IssueDate.UTC().Format(time.RFC3339)
	}
	for _, it := range inv.Items {
		resp.Items = append(resp.Items, itemResponse{
			ID:                it.ID,
			Name:              it.Name,
			Description:       it.Description,
			Quantity:          it.Quantity.String(),
			UnitPriceCents:    it.UnitPriceCents,
			TotalPriceCents:   it.TotalPriceCents,
			VATRate:           it.VATRate,
			ProductCode:       it.ProductCode,
			LinkedProductCode: it.LinkedProductCode,
			Status:            it.Status,
		})
	}
	return resp
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", "multipart form expected")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", "file field missing")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Upload", err.Error())
		return
	}

	in := IngestInput{
		Data:     data,
		Filename: header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		ActorID:  shared.ActorFromContext(r.Context()),
	}

	if r.URL.Query().Get("async") == "true" {
		location, err := h.service.UploadAsync(r.Context(), in)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]string{"location": location, "status": OCRProcessing})
		return
	}

	res, err := h.service.Ingest(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusCreated
	if res.Duplicated {
		status = http.StatusOK
	}
	httpx.JSON(w, status, toInvoiceResponse(res.Invoice, res.Duplicated))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv, false))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(inv, false))
}

func (h *Handler) markReady(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.service.MarkReady)
}

func (h *Handler) archive(w http.ResponseWriter, r *http.Request) {
	h.updateStatus(w, r, h.service.Archive)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64) (Invoice, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	inv, err := fn(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(inv, false))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrHasAssignedItems) {
			httpx.Problem(w, http.StatusConflict, "Invoice In Use", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reviewItemRequest struct {
	Status string `json:"status"`
}

func (h *Handler) reviewItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req reviewItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
		return
	}
	item, err := h.service.ReviewItem(r.Context(), itemID, req.Status)
	if err != nil {
		if errors.Is(err, ErrInvalidItemStatus) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Status", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, itemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Quantity:    item.Quantity.String(),
		Status:      item.Status,
	})
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}
