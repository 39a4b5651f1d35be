package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopkit/order-fulfillment/internal/apperrors"
	"github.com/shopkit/order-fulfillment/internal/cart"
	"github.com/shopkit/order-fulfillment/internal/entity"
	"github.com/shopkit/order-fulfillment/internal/metrics"
	"github.com/shopkit/order-fulfillment/internal/service"
)

// Handler handles HTTP requests for the fulfillment core.
type Handler struct {
	checkoutSvc  *service.CheckoutService
	orderSvc     *service.OrderService
	returnSvc    *service.ReturnService
	webhookSvc   *service.WebhookService
	inventorySvc *service.InventoryService
	cartSvc      *cart.RedisCartProvider
	metrics      *metrics.Metrics
}

func NewHandler(
	checkoutSvc *service.CheckoutService,
	orderSvc *service.OrderService,
	returnSvc *service.ReturnService,
	webhookSvc *service.WebhookService,
	inventorySvc *service.InventoryService,
	cartSvc *cart.RedisCartProvider,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		checkoutSvc:  checkoutSvc,
		orderSvc:     orderSvc,
		returnSvc:    returnSvc,
		webhookSvc:   webhookSvc,
		inventorySvc: inventorySvc,
		cartSvc:      cartSvc,
		metrics:      m,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/cart/items", h.instrument("cart_items", h.handleAddCartItem))
	mux.HandleFunc("POST /api/checkout", h.instrument("checkout", h.handleCheckout))
	mux.HandleFunc("GET /api/orders/{id}", h.instrument("get_order", h.handleGetOrder))
	mux.HandleFunc("POST /api/orders/{id}/status", h.instrument("order_status", h.handleChangeOrderStatus))
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.instrument("order_cancel", h.handleCancelOrder))
	mux.HandleFunc("POST /api/orders/{id}/cancel-items", h.instrument("order_cancel_items", h.handleCancelItems))
	mux.HandleFunc("POST /api/returns", h.instrument("create_return", h.handleCreateReturn))
	mux.HandleFunc("POST /api/returns/{id}/status", h.instrument("return_status", h.handleChangeReturnStatus))
	mux.HandleFunc("POST /api/webhooks/payment", h.instrument("payment_webhook", h.handlePaymentWebhook))
	mux.HandleFunc("POST /api/variants/{id}/adjust", h.instrument("adjust_stock", h.handleAdjustStock))
}

func (h *Handler) instrument(name string, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		fn(w, r)
		h.metrics.RequestLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

// userID resolves the caller identity. Session handling lives outside the
// core; the gateway in front of this service injects the header.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

type addCartItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddCartItem(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "missing X-User-ID header"))
		return
	}

	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if req.VariantID == "" {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "variant_id is required"))
		return
	}

	if err := h.cartSvc.AddItem(r.Context(), uid, req.VariantID, req.Quantity); err != nil {
		writeInternalError(w, "Failed to update cart", err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "missing X-User-ID header"))
		return
	}

	var input service.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if input.AddressID == "" {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "address_id is required"))
		return
	}
	if input.PaymentMethod == "" {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "payment_method is required"))
		return
	}

	order, err := h.checkoutSvc.CreateOrder(r.Context(), uid, input)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodePaymentFailed) {
			h.metrics.PaymentFailures.Inc()
		}
		h.metrics.Checkouts.WithLabelValues("failure").Inc()
		if domainErr := apperrors.AsError(err); domainErr != nil {
			writeError(w, domainErr)
			return
		}
		writeInternalError(w, "Checkout failed", err)
		return
	}

	h.metrics.Checkouts.WithLabelValues("success").Inc()
	writeData(w, http.StatusCreated, order)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "Failed to load order", err)
		return
	}
	writeData(w, http.StatusOK, order)
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleChangeOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid request body"))
		return
	}

	err := h.orderSvc.ChangeStatus(r.Context(), r.PathValue("id"), entity.OrderStatus(req.Status))
	if err != nil {
		h.writeServiceError(w, "Failed to change order status", err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": req.Status})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if err := h.orderSvc.CancelOrder(r.Context(), r.PathValue("id"), req.Reason); err != nil {
		h.writeServiceError(w, "Failed to cancel order", err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": string(entity.OrderCancelled)})
}

type cancelItemsRequest struct {
	LineIDs []string `json:"line_ids"`
}

func (h *Handler) handleCancelItems(w http.ResponseWriter, r *http.Request) {
	var req cancelItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if err := h.orderSvc.CancelItems(r.Context(), r.PathValue("id"), req.LineIDs); err != nil {
		h.writeServiceError(w, "Failed to cancel order lines", err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *Handler) handleCreateReturn(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "missing X-User-ID header"))
		return
	}

	var input service.CreateReturnInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if input.OrderID == "" {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "order_id is required"))
		return
	}

	ret, err := h.returnSvc.CreateReturn(r.Context(), uid, input)
	if err != nil {
		h.writeServiceError(w, "Failed to create return", err)
		return
	}
	writeData(w, http.StatusCreated, ret)
}

func (h *Handler) handleChangeReturnStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid request body"))
		return
	}

	err := h.returnSvc.ChangeStatus(r.Context(), r.PathValue("id"), entity.ReturnStatus(req.Status))
	if err != nil {
		h.writeServiceError(w, "Failed to change return status", err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (h *Handler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "failed to read request body"))
		return
	}

	result, err := h.webhookSvc.Reconcile(r.Context(), payload)
	if err != nil {
		h.metrics.Webhooks.WithLabelValues("unknown", "error").Inc()
		h.writeServiceError(w, "Failed to reconcile webhook", err)
		return
	}

	h.metrics.Webhooks.WithLabelValues(result.Event, "ok").Inc()
	writeData(w, http.StatusOK, result)
}

type adjustStockRequest struct {
	Quantity int    `json:"quantity"`
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
}

func (h *Handler) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidInput, "invalid request body"))
		return
	}

	err := h.inventorySvc.Adjust(r.Context(), r.PathValue("id"), req.Quantity, entity.MovementKind(req.Kind), req.Reason)
	if err != nil {
		h.writeServiceError(w, "Failed to adjust stock", err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeServiceError maps a service error onto the wire: domain errors keep
// their code and a 4xx status, everything else becomes a generic 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	if domainErr := apperrors.AsError(err); domainErr != nil {
		writeError(w, domainErr)
		return
	}
	writeInternalError(w, msg, err)
}

func statusForCode(code string) int {
	switch code {
	case apperrors.CodeOrderNotFound, apperrors.CodeVariantNotFound, apperrors.CodeAddressNotFound,
		apperrors.CodePaymentNotFound, apperrors.CodeReturnNotFound, apperrors.CodeCouponNotFound:
		return http.StatusNotFound
	case apperrors.CodeInvalidStateTransition, apperrors.CodeInvalidReturnTransition,
		apperrors.CodeReturnAlreadyExists, apperrors.CodeCouponAlreadyUsed:
		return http.StatusConflict
	case apperrors.CodePaymentFailed, apperrors.CodeRefundFailed:
		return http.StatusPaymentRequired
	default:
		return http.StatusBadRequest
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeError(w http.ResponseWriter, err *apperrors.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForCode(err.Code))
	json.NewEncoder(w).Encode(err)
}

func writeInternalError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "err", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{
		"code":    "INTERNAL_ERROR",
		"message": "internal server error",
	})
}

// EnableCORS is a middleware to allow the storefront frontend to connect.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
