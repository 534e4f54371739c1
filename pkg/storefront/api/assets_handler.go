package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/tendant/simple-storefront/pkg/storefront"
)

func (s *Server) assetRoutes() http.Handler {
	r := chi.NewRouter()
	// Content stays public so product images render for every visitor.
	r.Get("/{assetID}/content", s.downloadAsset)

	r.Group(func(r chi.Router) {
		r.Use(requireIdentity)
		r.Get("/", s.listAssets)
		r.Get("/{assetID}", s.getAsset)
		r.Post("/", s.uploadAssets)
		r.Patch("/{assetID}", s.updateAsset)
		r.Delete("/{assetID}", s.deleteAsset)
	})
	return r
}

// UpdateAssetRequest is the body of PATCH /assets/{id}.
type UpdateAssetRequest struct {
	Name     *string `json:"name,omitempty"`
	Category *string `json:"category,omitempty"`
}

// DeleteAssetResponse is returned when a delete left its blob behind.
type DeleteAssetResponse struct {
	Deleted bool   `json:"deleted"`
	Warning string `json:"warning,omitempty"`
}

func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	filter, err := assetFilterFrom(r, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	records, err := s.service.ListAssets(r.Context(), id, filter)
	if err != nil {
		s.logFailure(r, "list assets failed", err)
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []*storefront.AssetRecord{}
	}
	render.JSON(w, r, records)
}

// assetFilterFrom builds the list filter from the query string. filter=mine
// selects the caller's own uploads.
func assetFilterFrom(r *http.Request, caller storefront.Identity) (storefront.AssetFilter, error) {
	q := r.URL.Query()
	switch q.Get("filter") {
	case "", "all":
		if c := q.Get("category"); c != "" {
			return storefront.ByCategory(c), nil
		}
		return storefront.AllAssets(), nil
	case "category":
		return storefront.ByCategory(q.Get("category")), nil
	case "owner":
		return storefront.ByOwner(q.Get("owner")), nil
	case "mine":
		return storefront.ByOwner(caller.Subject), nil
	case "latest", "recent":
		var within time.Duration
		if days := q.Get("days"); days != "" {
			n, err := strconv.Atoi(days)
			if err != nil || n <= 0 {
				return storefront.AssetFilter{}, &storefront.ValidationError{Field: "days", Reason: "must be a positive integer"}
			}
			within = time.Duration(n) * 24 * time.Hour
		}
		return storefront.Recent(within), nil
	default:
		return storefront.AssetFilter{}, &storefront.ValidationError{Field: "filter", Reason: "unknown filter " + q.Get("filter")}
	}
}

func (s *Server) uploadAssets(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	files, release, err := s.parseMultipart(w, r, "files", "files[]")
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer release()

	records, err := s.service.Upload(r.Context(), id, storefront.UploadAssetsRequest{
		Name:     r.FormValue("name"),
		Category: r.FormValue("category"),
		Files:    files,
	})
	if err != nil {
		s.logFailure(r, "upload failed", err)
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, records)
}

func (s *Server) getAsset(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	assetID, ok := pathID(w, r, "assetID")
	if !ok {
		return
	}

	record, err := s.service.GetAsset(r.Context(), id, assetID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, record)
}

func (s *Server) updateAsset(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	assetID, ok := pathID(w, r, "assetID")
	if !ok {
		return
	}

	var req UpdateAssetRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		badRequest(w, r, "body", "invalid JSON")
		return
	}
	if req.Name == nil && req.Category == nil {
		badRequest(w, r, "body", "name or category is required")
		return
	}

	var (
		record *storefront.AssetRecord
		err    error
	)
	if req.Name != nil {
		if record, err = s.service.RenameAsset(r.Context(), id, assetID, *req.Name); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Category != nil {
		if record, err = s.service.RetagAsset(r.Context(), id, assetID, *req.Category); err != nil {
			writeError(w, r, err)
			return
		}
	}
	render.JSON(w, r, record)
}

func (s *Server) deleteAsset(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	assetID, ok := pathID(w, r, "assetID")
	if !ok {
		return
	}

	err := s.service.DeleteAsset(r.Context(), id, assetID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case storefront.IsWarning(err):
		s.logger.WarnContext(r.Context(), "asset deleted with leftover blob", "asset_id", assetID, "error", err)
		render.JSON(w, r, DeleteAssetResponse{Deleted: true, Warning: err.Error()})
	default:
		s.logFailure(r, "delete asset failed", err)
		writeError(w, r, err)
	}
}

func (s *Server) downloadAsset(w http.ResponseWriter, r *http.Request) {
	assetID, ok := pathID(w, r, "assetID")
	if !ok {
		return
	}

	rc, record, err := s.service.OpenAsset(r.Context(), assetID)
	if err != nil {
		s.logFailure(r, "open asset failed", err)
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := record.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if record.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(record.Size, 10))
	}
	if cd := mime.FormatMediaType("inline", map[string]string{"filename": record.Name}); cd != "" {
		w.Header().Set("Content-Disposition", cd)
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil && !errors.Is(err, r.Context().Err()) {
		s.logger.ErrorContext(r.Context(), "stream asset failed", "asset_id", assetID, "error", err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		badRequest(w, r, param, "must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// logFailure logs errors that are not the caller's fault.
func (s *Server) logFailure(r *http.Request, msg string, err error) {
	if status, _ := statusFor(err); status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), msg, "path", r.URL.Path, "error", err)
	}
}
