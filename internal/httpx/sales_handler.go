package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	kafkax "github.com/ariefcatur/go-pharmacy-pos.git/internal/kafka"
	"github.com/ariefcatur/go-pharmacy-pos.git/internal/pricing"
	"github.com/ariefcatur/go-pharmacy-pos.git/internal/redisx"
	"github.com/ariefcatur/go-pharmacy-pos.git/internal/sales"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// SalesHandler is the thin boundary in front of the orchestrator: it decodes
// and validates once, dedupes resubmits by external_id, and translates typed
// errors to status codes. Redis and the producers are optional; without them
// the transactional path still works.
type SalesHandler struct {
	Svc             *sales.Service
	Repo            *sales.Repo
	Redis           *redis.Client
	Producer        *kafkax.Producer // sale.completed
	RestockProducer *kafkax.Producer // stock.restocked
	Validate        *validator.Validate
	Service         string
}

type createSaleItemReq struct {
	ItemID       string           `json:"item_id" validate:"required"`
	Qty          int64            `json:"qty" validate:"required,min=1"`
	DiscountRate *decimal.Decimal `json:"discount_rate,omitempty"`
	TaxRate      *decimal.Decimal `json:"tax_rate,omitempty"`
}

type createSaleReq struct {
	ExternalID        string              `json:"external_id" validate:"required"`
	StaffID           string              `json:"staff_id" validate:"required"`
	CustomerID        *string             `json:"customer_id,omitempty"`
	Items             []createSaleItemReq `json:"items" validate:"required,min=1,dive"`
	PaymentMethod     string              `json:"payment_method" validate:"required"`
	ExtraDiscountRate decimal.Decimal     `json:"extra_discount_rate"`
	Note              string              `json:"note,omitempty"`
}

type createSaleResp struct {
	Sale       *sales.Sale `json:"sale"`
	Idempotent bool        `json:"idempotent"`
}

type restockReq struct {
	Qty int64 `json:"qty" validate:"required,min=1"`
}

func (h *SalesHandler) Register(r *chi.Mux) {
	r.Post("/sales", h.createSale)
	r.Get("/sales/{id}", h.getSale)
	r.Get("/items", h.listItems)
	r.Post("/items/{id}/restock", h.restock)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	var (
		ve *sales.ValidationError
		nf *sales.ItemNotFoundError
		is *sales.InsufficientStockError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error(), "field": ve.Field})
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": nf.Error(), "item_id": nf.ItemID})
	case errors.As(err, &is):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": is.Error(), "item_id": is.ItemID,
			"available": is.Available, "requested": is.Requested,
		})
	case sales.IsRetryable(err):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error(), "retryable": "true"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (h *SalesHandler) createSale(w http.ResponseWriter, r *http.Request) {
	var req createSaleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// resubmit with the same external_id returns the already-created sale;
	// without this the orchestrator would happily sell the cart twice
	idemKey := fmt.Sprintf(redisx.KeyIdemSaleCreate, req.ExternalID)
	if h.Redis != nil {
		if saleID, err := h.Redis.Get(ctx, idemKey).Result(); err == nil {
			if sale, err := h.Repo.FindSale(ctx, saleID); err == nil && sale != nil {
				writeJSON(w, http.StatusOK, createSaleResp{Sale: sale, Idempotent: true})
				return
			}
		}
	}

	lines := make([]sales.SaleLineRequest, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, sales.SaleLineRequest{
			ItemID:       it.ItemID,
			Qty:          it.Qty,
			DiscountRate: it.DiscountRate,
			TaxRate:      it.TaxRate,
		})
	}

	sale, err := h.Svc.ProcessSale(ctx, sales.SaleCreateRequest{
		ExternalID:        req.ExternalID,
		StaffID:           req.StaffID,
		CustomerID:        req.CustomerID,
		Lines:             lines,
		PaymentMethod:     sales.PaymentMethod(req.PaymentMethod),
		ExtraDiscountRate: req.ExtraDiscountRate,
		Note:              req.Note,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	if h.Redis != nil {
		_ = h.Redis.Set(ctx, idemKey, sale.ID, redisx.TTLIdempotency).Err()
	}
	h.publishSaleCompleted(r, sale)

	writeJSON(w, http.StatusCreated, createSaleResp{Sale: sale})
}

func (h *SalesHandler) publishSaleCompleted(r *http.Request, sale *sales.Sale) {
	if h.Producer == nil {
		return
	}
	pl := sales.SaleCompletedPayload{
		SaleID:          sale.ID,
		StaffID:         sale.StaffID,
		CustomerID:      sale.CustomerID,
		PaymentMethod:   string(sale.PaymentMethod),
		GrandTotalCents: pricing.ToMinorUnits(sale.GrandTotal),
		TotalTaxCents:   pricing.ToMinorUnits(sale.TotalTax),
		SoldAt:          sale.CreatedAt,
	}
	if sale.Invoice != nil {
		pl.InvoiceNo = sale.Invoice.Number
	}
	for _, l := range sale.Lines {
		pl.Lines = append(pl.Lines, sales.SaleLinePayload{
			ItemID:         l.ItemID,
			Qty:            l.Qty,
			LineTotalCents: pricing.ToMinorUnits(l.LineTotal),
		})
	}
	ev := sales.Envelope{
		EventID:       uuid.NewString(),
		EventType:     sales.EventSaleCompleted,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: sale.ID,
		Payload:       kafkax.MustMarshal(pl),
	}
	h.Producer.Publish(sales.PartitionKey(sale.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(sales.EventSaleCompleted)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *SalesHandler) getSale(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	sale, err := h.Repo.FindSale(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	if sale == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "sale not found"})
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (h *SalesHandler) listItems(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Repo.ListStockItems(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *SalesHandler) restock(w http.ResponseWriter, r *http.Request) {
	var req restockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	itemID := chi.URLParam(r, "id")
	quantity, err := h.Repo.Restock(ctx, itemID, req.Qty)
	if err != nil {
		writeErr(w, err)
		return
	}

	if h.RestockProducer != nil {
		ev := sales.Envelope{
			EventID:       uuid.NewString(),
			EventType:     sales.EventStockRestocked,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      h.Service,
			TraceID:       r.Header.Get("X-Request-Id"),
			CorrelationID: itemID,
			Payload: kafkax.MustMarshal(sales.StockRestockedPayload{
				ItemID: itemID, Qty: req.Qty, NewQuantity: quantity,
			}),
		}
		h.RestockProducer.Publish([]byte(itemID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(sales.EventStockRestocked)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}

	writeJSON(w, http.StatusOK, map[string]any{"item_id": itemID, "quantity": quantity})
}
