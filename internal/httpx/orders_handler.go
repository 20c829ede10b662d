package httpx

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/ariefcatur/go-kitchen-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type OrdersHandler struct {
	Service *orders.Service
	// Status is optional; without it status polls read the store.
	Status *redisx.StatusCache
	Logger *slog.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(15 * time.Second))

		r.Get("/api/user/dishes", h.listDishes)
		r.Get("/api/user/dishes/{id}", h.getDish)
		r.Get("/api/user/categories", h.listCategories)
		r.Post("/api/user/orders", h.createOrder)
		r.Get("/api/user/orders/{userID}", h.listUserOrders)
		r.Get("/api/user/order-status/{id}", h.getOrderStatus)
		r.Post("/api/user/payment", h.pay)

		r.Get("/api/merchant/orders", h.listOrders)
		r.Get("/api/merchant/orders/{id}", h.getOrderDetail)
		r.Put("/api/merchant/orders/{id}", h.overrideStatus)
		r.Post("/api/merchant/orders/{id}/{action}", h.transition)
	})
}

func (h *OrdersHandler) listDishes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ds, err := h.Service.Dishes(ctx)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (h *OrdersHandler) getDish(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid dish id")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	d, err := h.Service.Dish(ctx, id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *OrdersHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cs, err := h.Service.Categories(ctx)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": cs})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.Create(ctx, req)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Service.List(ctx, orders.Filter{UserID: chi.URLParam(r, "userID")})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) cache
	if h.Status != nil {
		s, ok, err := h.Status.Get(ctx, orderID)
		if err != nil {
			h.Logger.Warn("status cache read failed", "order_id", orderID, "error", err)
		}
		if ok {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// 2) fallback store
	o, err := h.Service.Get(ctx, orderID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	s := redisx.CachedStatus{OrderID: o.ID, Status: o.Status, UpdatedAt: o.UpdatedAt}
	if h.Status != nil {
		if _, err := h.Status.Put(ctx, s); err != nil {
			h.Logger.Warn("status cache write failed", "order_id", orderID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *OrdersHandler) pay(w http.ResponseWriter, r *http.Request) {
	var req orders.PaymentInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	receipt, err := h.Service.Pay(ctx, req)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	var f orders.Filter
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, ok := orders.ParseStatus(raw)
		if !ok {
			badRequest(w, "unknown status "+strconv.Quote(raw))
			return
		}
		f.Status = st
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Service.List(ctx, f)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrderDetail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	d, err := h.Service.Detail(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type transitionResp struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Order   orders.Order `json:"order"`
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request) {
	action, ok := orders.ParseAction(chi.URLParam(r, "action"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown action", Reason: string(orders.KindNotFound)})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.Apply(ctx, chi.URLParam(r, "id"), action)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResp{Success: true, Message: action.Message(), Order: o})
}

type overrideReq struct {
	Status *string `json:"status"`
}

func (h *OrdersHandler) overrideStatus(w http.ResponseWriter, r *http.Request) {
	var req overrideReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid json")
		return
	}
	if req.Status == nil {
		badRequest(w, "missing required field: status")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.SetStatus(ctx, chi.URLParam(r, "id"), *req.Status)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionResp{Success: true, Message: "status updated", Order: o})
}
