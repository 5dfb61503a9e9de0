package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-realtime-shop/internal/auth"
	"github.com/ariefcatur/go-realtime-shop/internal/catalog"
	"github.com/ariefcatur/go-realtime-shop/internal/checkout"
	"github.com/ariefcatur/go-realtime-shop/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const (
	HeaderUserID   = "X-User-Id"
	HeaderUserName = "X-User-Name"
)

// ShopHandler exposes the catalog and checkout operations to the chat
// transport. The caller's identity comes from X-User-Id / X-User-Name and
// its role from the admin list.
type ShopHandler struct {
	Catalog             *catalog.Catalog
	Checkout            *checkout.Service
	Admins              auth.AdminList
	PaymentInstructions string
	Log                 logrus.FieldLogger
}

type CreateProductReq struct {
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	Stock       int    `json:"stock"`
	Description string `json:"description"`
	Delivery    string `json:"delivery"`
}

type ProductListResp struct {
	Products      []orders.Product `json:"products"`
	TotalProducts int              `json:"total_products"`
	TotalStock    int              `json:"total_stock"`
}

type CreateOrderReq struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

type CreateOrderResp struct {
	Order               orders.Order `json:"order"`
	PaymentInstructions string       `json:"payment_instructions"`
	PayBefore           time.Time    `json:"pay_before"`
}

type SubmitProofReq struct {
	Ref  string           `json:"ref"`
	Type orders.ProofType `json:"type"`
}

type ApproveResp struct {
	Order   orders.Order   `json:"order"`
	Product orders.Product `json:"product"`
}

type errorResp struct {
	Error string        `json:"error"`
	Order *orders.Order `json:"order,omitempty"`
}

func (h *ShopHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Post("/products", h.createProduct)
	r.Delete("/products/{id}", h.removeProduct)
	r.Get("/me/products", h.myProducts)

	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/proof-request", h.requestProof)
	r.Post("/orders/{id}/proof", h.submitProof)
	r.Post("/orders/{id}/approve", h.approve)
	r.Post("/orders/{id}/reject", h.reject)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the domain error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, orders.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrInsufficientStock),
		errors.Is(err, orders.ErrWrongState),
		errors.Is(err, orders.ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, orders.ErrExpired):
		return http.StatusGone
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *ShopHandler) fail(w http.ResponseWriter, r *http.Request, err error, o *orders.Order) {
	code := statusFor(err)
	if code >= 500 {
		h.log().WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	body := errorResp{Error: err.Error()}
	if o != nil && o.ID != 0 {
		body.Order = o
	}
	writeJSON(w, code, body)
}

func (h *ShopHandler) log() logrus.FieldLogger {
	if h.Log == nil {
		return logrus.StandardLogger()
	}
	return h.Log
}

// actor resolves the caller. Anonymous callers get a zero, non-admin actor.
func (h *ShopHandler) actor(r *http.Request) (auth.Actor, bool) {
	raw := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if raw == "" {
		return auth.Actor{}, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return auth.Actor{}, false
	}
	return h.Admins.Resolve(id, strings.TrimSpace(r.Header.Get(HeaderUserName))), true
}

func (h *ShopHandler) mustActor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	a, ok := h.actor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResp{Error: "missing or invalid " + HeaderUserID})
	}
	return a, ok
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid id"})
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid json"})
		return false
	}
	return true
}

func (h *ShopHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	viewer, _ := h.actor(r)
	l, err := h.Catalog.Search(ctx, r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	resp := ProductListResp{Products: make([]orders.Product, 0, len(l.Products)), TotalProducts: l.TotalProducts, TotalStock: l.TotalStock}
	for _, p := range l.Products {
		resp.Products = append(resp.Products, catalog.ForViewer(p, viewer))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ShopHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	viewer, _ := h.actor(r)
	p, err := h.Catalog.Find(ctx, id)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, catalog.ForViewer(p, viewer))
}

func (h *ShopHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	seller, ok := h.mustActor(w, r)
	if !ok {
		return
	}
	var req CreateProductReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Catalog.Create(ctx, seller, catalog.NewProduct{
		Name:        req.Name,
		Price:       req.Price,
		Stock:       req.Stock,
		Description: req.Description,
		Delivery:    req.Delivery,
	})
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ShopHandler) removeProduct(w http.ResponseWriter, r *http.Request) {
	who, ok := h.mustActor(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Catalog.Remove(ctx, id, who); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ShopHandler) myProducts(w http.ResponseWriter, r *http.Request) {
	seller, ok := h.mustActor(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ListBySeller(ctx, seller.ID)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ShopHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	buyer, ok := h.mustActor(w, r)
	if !ok {
		return
	}
	var req CreateOrderReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Checkout.Create(ctx, req.ProductID, req.Qty, buyer)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusCreated, CreateOrderResp{
		Order:               o,
		PaymentInstructions: h.PaymentInstructions,
		PayBefore:           o.Deadline(h.Checkout.PaymentTimeout()),
	})
}

func (h *ShopHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	buyer, ok := h.mustActor(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Checkout.ListByBuyer(ctx, buyer)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ShopHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, func(ctx context.Context, id int64, a auth.Actor) (orders.Order, error) {
		return h.Checkout.Get(ctx, id, a)
	})
}

func (h *ShopHandler) requestProof(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, func(ctx context.Context, id int64, a auth.Actor) (orders.Order, error) {
		return h.Checkout.RequestProof(ctx, id, a)
	})
}

func (h *ShopHandler) submitProof(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.mustActor(w, r); !ok {
		return
	}
	var req SubmitProofReq
	if !decode(w, r, &req) {
		return
	}
	h.orderAction(w, r, func(ctx context.Context, id int64, a auth.Actor) (orders.Order, error) {
		return h.Checkout.SubmitProof(ctx, id, a, req.Ref, req.Type)
	})
}

func (h *ShopHandler) reject(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, func(ctx context.Context, id int64, a auth.Actor) (orders.Order, error) {
		return h.Checkout.Reject(ctx, id, a)
	})
}

func (h *ShopHandler) approve(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.mustActor(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, p, err := h.Checkout.Approve(ctx, id, admin)
	if err != nil {
		// a cancelled or timed-out order is still reported back
		h.fail(w, r, err, &o)
		return
	}
	writeJSON(w, http.StatusOK, ApproveResp{Order: o, Product: p})
}

// orderAction runs a single-order operation for the calling actor and
// renders the resulting order.
func (h *ShopHandler) orderAction(w http.ResponseWriter, r *http.Request, do func(ctx context.Context, id int64, a auth.Actor) (orders.Order, error)) {
	who, ok := h.mustActor(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := do(ctx, id, who)
	if err != nil {
		h.fail(w, r, err, &o)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
