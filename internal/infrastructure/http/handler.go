package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	appcart "github.com/orderstack/storefront/internal/application/cart"
	appcheckout "github.com/orderstack/storefront/internal/application/checkout"
	appordering "github.com/orderstack/storefront/internal/application/ordering"
	domcart "github.com/orderstack/storefront/internal/domain/cart"
	domcatalog "github.com/orderstack/storefront/internal/domain/catalog"
	domorder "github.com/orderstack/storefront/internal/domain/order"
	domoutbox "github.com/orderstack/storefront/internal/domain/outbox"
)

// userHeader carries the authenticated principal's opaque identifier, attached
// upstream by the identity collaborator. The core trusts it as-is.
const userHeader = "X-User-ID"

type Handler struct {
	carts     *appcart.Service
	checkout  *appcheckout.UseCase
	ordering  *appordering.Service
	catalog   domcatalog.Repository
	publisher domoutbox.Publisher
}

func NewHandler(
	carts *appcart.Service,
	checkout *appcheckout.UseCase,
	ordering *appordering.Service,
	catalog domcatalog.Repository,
	publisher domoutbox.Publisher,
) *Handler {
	return &Handler{
		carts:     carts,
		checkout:  checkout,
		ordering:  ordering,
		catalog:   catalog,
		publisher: publisher,
	}
}

func (h *Handler) Router() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /cart", h.withUser(h.handleGetCart))
	mux.HandleFunc("POST /cart/items", h.withUser(h.handleAddItem))
	mux.HandleFunc("PUT /cart/items/{productID}", h.withUser(h.handleUpdateItem))
	mux.HandleFunc("DELETE /cart/items/{productID}", h.withUser(h.handleRemoveItem))
	mux.HandleFunc("DELETE /cart", h.withUser(h.handleClearCart))

	mux.HandleFunc("POST /checkout", h.withUser(h.handleCheckout))

	mux.HandleFunc("GET /orders", h.withUser(h.handleListOrders))
	mux.HandleFunc("GET /orders/{orderID}", h.withUser(h.handleGetOrder))
	mux.HandleFunc("POST /orders/{orderID}/cancel", h.withUser(h.handleCancelOrder))

	mux.HandleFunc("PUT /admin/products/{productID}", h.handleUpsertProduct)
	mux.HandleFunc("POST /admin/products/{productID}/stock", h.handleAdjustStock)
	mux.HandleFunc("GET /admin/orders", h.handleListAllOrders)
	mux.HandleFunc("POST /admin/orders/{orderID}/status", h.handleAdvanceStatus)

	mux.HandleFunc("POST /webhooks/payment", h.handlePaymentWebhook)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return mux
}

func (h *Handler) withUser(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userHeader)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, errors.New("missing "+userHeader+" header"))
			return
		}
		next(w, r, userID)
	}
}

type cartLineResponse struct {
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

type cartResponse struct {
	UserID string             `json:"user_id"`
	Lines  []cartLineResponse `json:"lines"`
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request, userID string) {
	c, err := h.carts.Get(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request, userID string) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.carts.AddItem(r.Context(), userID, req.ProductID, req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request, userID string) {
	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.carts.UpdateItemQuantity(r.Context(), userID, r.PathValue("productID"), req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.carts.RemoveItem(r.Context(), userID, r.PathValue("productID")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.carts.Clear(r.Context(), userID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
	Note            string `json:"note,omitempty"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request, userID string) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	o, err := h.checkout.Execute(r.Context(), appcheckout.Input{
		UserID:          userID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Note:            req.Note,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request, userID string) {
	page, pageSize := pagination(r)
	p, err := h.ordering.ListByUser(r.Context(), userID, page, pageSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(p))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request, userID string) {
	o, err := h.ordering.GetForUser(r.Context(), r.PathValue("orderID"), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.ordering.Cancel(r.Context(), r.PathValue("orderID"), userID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type upsertProductRequest struct {
	Name      string   `json:"name"`
	UnitPrice int64    `json:"unit_price"`
	Stock     int      `json:"stock"`
	Images    []string `json:"images,omitempty"`
	Active    bool     `json:"active"`
}

func (h *Handler) handleUpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req upsertProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.UnitPrice < 0 || req.Stock < 0 {
		writeError(w, http.StatusBadRequest, errors.New("unit_price and stock must be non-negative"))
		return
	}

	err := h.catalog.Save(r.Context(), &domcatalog.Product{
		ID:        r.PathValue("productID"),
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Stock:     req.Stock,
		Images:    req.Images,
		Active:    req.Active,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

type adjustStockResponse struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
}

// handleAdjustStock is the admin restock path. It goes through the same
// atomic primitive as checkout, so an admin correction can never race stock
// negative either.
func (h *Handler) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Delta == 0 {
		writeError(w, http.StatusBadRequest, domcatalog.ErrInvalidDelta)
		return
	}

	productID := r.PathValue("productID")
	stock, err := h.catalog.AdjustStock(r.Context(), productID, req.Delta)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, adjustStockResponse{ProductID: productID, Stock: stock})
}

func (h *Handler) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
	var filter domorder.ListFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domorder.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		filter.Status = status
	}

	page, pageSize := pagination(r)
	p, err := h.ordering.ListAll(r.Context(), filter, page, pageSize)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(p))
}

type advanceStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleAdvanceStatus(w http.ResponseWriter, r *http.Request) {
	var req advanceStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := domorder.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.ordering.AdvanceStatus(r.Context(), r.PathValue("orderID"), status); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type paymentWebhookRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// handlePaymentWebhook accepts the external settlement signal and hands it to
// the payment worker through the bus.
func (h *Handler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req paymentWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	status, err := domorder.ParsePaymentStatus(req.Status)
	if err != nil || status == domorder.PaymentPending {
		writeError(w, http.StatusBadRequest, domorder.ErrInvalidStatus)
		return
	}

	evt := domorder.PaymentSettledEvent{OrderID: req.OrderID, Status: status, OccurredAt: time.Now().UTC()}
	if err := h.publisher.Publish(r.Context(), evt); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type orderItemResponse struct {
	ProductID   string   `json:"product_id"`
	ProductName string   `json:"product_name"`
	UnitPrice   int64    `json:"unit_price"`
	Quantity    int      `json:"quantity"`
	Images      []string `json:"images,omitempty"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	UserID          string              `json:"user_id"`
	Items           []orderItemResponse `json:"items"`
	TotalAmount     int64               `json:"total_amount"`
	Status          string              `json:"status"`
	PaymentStatus   string              `json:"payment_status"`
	ShippingAddress string              `json:"shipping_address"`
	PaymentMethod   string              `json:"payment_method"`
	Note            string              `json:"note,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

type pageResponse struct {
	Orders   []orderResponse `json:"orders"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Pages    int             `json:"pages"`
}

func toCartResponse(c *domcart.Cart) cartResponse {
	resp := cartResponse{UserID: c.UserID, Lines: make([]cartLineResponse, 0, len(c.Lines))}
	for _, l := range c.Lines {
		resp.Lines = append(resp.Lines, cartLineResponse{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			AddedAt:   l.AddedAt,
		})
	}
	return resp
}

func toOrderResponse(o *domorder.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Images:      it.Images,
		})
	}
	return orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           items,
		TotalAmount:     o.TotalAmount,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		Note:            o.Note,
		CreatedAt:       o.CreatedAt,
	}
}

func toPageResponse(p *domorder.Page) pageResponse {
	resp := pageResponse{
		Orders:   make([]orderResponse, 0, len(p.Orders)),
		Total:    p.Total,
		Page:     p.Page,
		PageSize: p.PageSize,
		Pages:    p.Pages,
	}
	for _, o := range p.Orders {
		resp.Orders = append(resp.Orders, toOrderResponse(o))
	}
	return resp
}

func pagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domcatalog.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domorder.ErrNotOwned):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, appcheckout.ErrEmptyCart),
		errors.Is(err, domorder.ErrEmptyOrder),
		errors.Is(err, domorder.ErrInvalidStatus),
		errors.Is(err, domcart.ErrInvalidQuantity),
		errors.Is(err, domcatalog.ErrInvalidDelta):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domcatalog.ErrInsufficientStock),
		errors.Is(err, appcheckout.ErrOversold),
		errors.Is(err, domorder.ErrInvalidTransition),
		errors.Is(err, domorder.ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, appcheckout.ErrStoreUnavailable),
		errors.Is(err, appordering.ErrStoreUnavailable),
		errors.Is(err, appcart.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
