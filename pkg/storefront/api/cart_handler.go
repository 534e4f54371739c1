package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

func (s *Server) cartRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.getCart)
	r.Delete("/", s.clearCart)
	r.Post("/lines", s.addToCart)
	r.Patch("/lines/{lineID}", s.changeQuantity)
	r.Delete("/lines/{lineID}", s.removeLine)
	r.Post("/total", s.cartTotal)
	return r
}

// AddToCartRequest is the body of POST /cart/lines. An omitted quantity
// means one.
type AddToCartRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  *int64    `json:"quantity,omitempty"`
}

// ChangeQuantityRequest is the body of PATCH /cart/lines/{id}. Strict
// reports a missing line as not found instead of a no-op.
type ChangeQuantityRequest struct {
	Delta  int64 `json:"delta"`
	Strict bool  `json:"strict,omitempty"`
}

// ChangeQuantityResponse reports the line after the change. Line is nil
// when it was removed or did not exist.
type ChangeQuantityResponse struct {
	Line    *storefront.CartLine `json:"line"`
	Removed bool                 `json:"removed"`
}

// CartTotalRequest is the body of POST /cart/total.
type CartTotalRequest struct {
	SelectedIDs []uuid.UUID `json:"selected_ids"`
}

// ClearCartResponse is returned by DELETE /cart.
type ClearCartResponse struct {
	Removed int `json:"removed"`
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	summary, err := s.service.CartSummary(r.Context(), id, nil)
	if err != nil {
		s.logFailure(r, "load cart failed", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req AddToCartRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "body", "invalid JSON")
		return
	}
	quantity := int64(1)
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	line, err := s.service.AddToCart(r.Context(), id, req.ProductID, quantity)
	if err != nil {
		s.logFailure(r, "add to cart failed", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, line)
}

func (s *Server) changeQuantity(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}

	var req ChangeQuantityRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "body", "invalid JSON")
		return
	}

	change := s.service.ChangeQuantity
	if req.Strict {
		change = s.service.ChangeQuantityStrict
	}
	line, removed, err := change(r.Context(), id, lineID, req.Delta)
	if err != nil {
		s.logFailure(r, "change quantity failed", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, ChangeQuantityResponse{Line: line, Removed: removed})
}

func (s *Server) removeLine(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	lineID, ok := pathID(w, r, "lineID")
	if !ok {
		return
	}

	if err := s.service.RemoveLine(r.Context(), id, lineID); err != nil {
		s.logFailure(r, "remove line failed", err)
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cartTotal(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req CartTotalRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "body", "invalid JSON")
		return
	}
	if req.SelectedIDs == nil {
		req.SelectedIDs = []uuid.UUID{}
	}

	summary, err := s.service.CartSummary(r.Context(), id, req.SelectedIDs)
	if err != nil {
		s.logFailure(r, "cart total failed", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	n, err := s.service.ClearCart(r.Context(), id)
	if err != nil {
		s.logFailure(r, "clear cart failed", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, ClearCartResponse{Removed: n})
}
