package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/drone-orders/internal/auth"
	"github.com/ariefcatur/drone-orders/internal/orders"
	"github.com/ariefcatur/drone-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type idempotency interface {
	Begin(ctx context.Context, userID, key string) (string, error)
	Complete(ctx context.Context, userID, key, orderID string) error
	Abort(ctx context.Context, userID, key string) error
}

type OrdersHandler struct {
	Service  *orders.Service
	Journal  orders.JournalReader
	Idem     idempotency // optional
	Verifier tokenVerifier
	Log      *zap.Logger
}

type CreateOrderReq struct {
	Shipping   orders.Address  `json:"shipping"`
	Billing    *orders.Address `json:"billing,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	CouponCode string          `json:"coupon_code,omitempty"`
}

type UpdateStatusReq struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status,omitempty"`
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(h.Verifier))

		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOwnOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Put("/orders/{id}/status", h.updateStatus)
		r.Delete("/orders/{id}", h.cancelOrder)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/orders", h.listAllOrders)
			r.Get("/products/{id}/stock-movements", h.stockMovements)
		})
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = msg
	writeJSON(w, status, body)
}

func statusFor(code orders.Code) int {
	switch code {
	case orders.CodeNotFound, orders.CodeProductUnavailable:
		return http.StatusNotFound
	case orders.CodeForbidden:
		return http.StatusForbidden
	case orders.CodePersistence:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// fail maps a service error to its stable code. Store details only go to the log.
func (h *OrdersHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := orders.ErrorCode(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		h.Log.Error("order request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		h.Log.Debug("order request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, status, string(code), msg)
}

func principal(r *http.Request) orders.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(orders.CodeInvalidInput), "invalid json")
		return
	}
	who := principal(r)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idemKey != "" && h.Idem != nil {
		existing, err := h.Idem.Begin(ctx, who.ID, idemKey)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			writeError(w, http.StatusConflict, "request_in_progress", "a request with this Idempotency-Key is still running")
			return
		case err != nil:
			// Redis is only a fast path; carry on without it.
			h.Log.Warn("idempotency lookup failed", zap.Error(err))
			idemKey = ""
		case existing != "":
			d, err := h.Service.GetOrder(ctx, existing, who)
			if err != nil {
				h.fail(w, r, err)
				return
			}
			w.Header().Set("Idempotent-Replayed", "true")
			writeJSON(w, http.StatusOK, d)
			return
		}
	}

	d, err := h.Service.CreateOrder(ctx, orders.CreateOrderInput{
		UserID:     who.ID,
		Shipping:   req.Shipping,
		Billing:    req.Billing,
		Notes:      req.Notes,
		CouponCode: req.CouponCode,
	})
	if idemKey != "" && h.Idem != nil {
		// The claim must be settled even when the client has gone away.
		sctx, scancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer scancel()
		if err != nil {
			if aerr := h.Idem.Abort(sctx, who.ID, idemKey); aerr != nil {
				h.Log.Warn("idempotency release failed", zap.Error(aerr))
			}
		} else if cerr := h.Idem.Complete(sctx, who.ID, idemKey, d.Order.ID); cerr != nil {
			h.Log.Warn("idempotency store failed", zap.String("order_id", d.Order.ID), zap.Error(cerr))
		}
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func pageParams(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	return page, perPage
}

func (h *OrdersHandler) listOwnOrders(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)
	res, err := h.Service.ListOrders(r.Context(), orders.ListOrdersFilter{
		UserID:  principal(r).ID,
		Status:  orders.Status(r.URL.Query().Get("status")),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)
	res, err := h.Service.ListOrders(r.Context(), orders.ListOrdersFilter{
		UserID:  r.URL.Query().Get("user_id"),
		Status:  orders.Status(r.URL.Query().Get("status")),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	d, err := h.Service.GetOrder(r.Context(), chi.URLParam(r, "id"), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(orders.CodeInvalidInput), "invalid json")
		return
	}
	o, err := h.Service.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), orders.UpdateStatusInput{
		Status:        req.Status,
		PaymentStatus: req.PaymentStatus,
	}, principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Service.CancelOrder(r.Context(), chi.URLParam(r, "id"), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": o.ID, "status": o.Status})
}

func (h *OrdersHandler) stockMovements(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ms, err := h.Journal.Movements(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	type movement struct {
		ID         string    `json:"id"`
		OrderID    string    `json:"order_id,omitempty"`
		Delta      int       `json:"delta"`
		Reason     string    `json:"reason"`
		StockAfter int       `json:"stock_after"`
		CreatedAt  time.Time `json:"created_at"`
	}
	out := make([]movement, 0, len(ms))
	for _, m := range ms {
		out = append(out, movement{m.ID, m.OrderID, m.Delta, string(m.Reason), m.StockAfter, m.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}
