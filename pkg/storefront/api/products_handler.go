package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

func (s *Server) productRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.listProducts)
	r.Get("/{productID}", s.getProduct)

	r.Group(func(r chi.Router) {
		r.Use(requireIdentity)
		r.Post("/", s.createProduct)
		r.Patch("/{productID}", s.updateProduct)
		r.Delete("/{productID}", s.deleteProduct)
	})
	return r
}

// UpdateProductBody is the body of PATCH /products/{id}. Omitted fields are
// left untouched.
type UpdateProductBody struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	PriceMinor  *int64  `json:"price_minor,omitempty"`
	Category    *string `json:"category,omitempty"`
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.ListProducts(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		s.logFailure(r, "list products failed", err)
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []*storefront.CatalogItem{}
	}
	render.JSON(w, r, items)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	item, err := s.service.GetProduct(r.Context(), productID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, item)
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	images, release, err := s.parseMultipart(w, r, "images", "images[]")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer release()

	price, err := parsePrice(r.FormValue("price"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := s.service.CreateProduct(r.Context(), id, storefront.CreateProductRequest{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		PriceMinor:  price,
		Category:    r.FormValue("category"),
		Images:      images,
	})
	if err != nil {
		s.logFailure(r, "create product failed", err)
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, item)
}

// parsePrice reads a price in minor units. Empty is passed through as zero so
// the service reports the validation failure.
func parsePrice(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &storefront.ValidationError{Field: "price", Reason: "must be an integer amount in minor units"}
	}
	return n, nil
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	var body UpdateProductBody
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		badRequest(w, r, "body", "invalid JSON")
		return
	}

	item, err := s.service.UpdateProduct(r.Context(), id, productID, storefront.UpdateProductRequest{
		Name:        body.Name,
		Description: body.Description,
		PriceMinor:  body.PriceMinor,
		Category:    body.Category,
	})
	if err != nil {
		s.logFailure(r, "update product failed", err)
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, item)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	if err := s.service.DeleteProduct(r.Context(), id, productID); err != nil {
		s.logFailure(r, "delete product failed", err)
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
