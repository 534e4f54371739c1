package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-storefront/pkg/storefront"
	"github.com/tendant/simple-storefront/pkg/storefront/api"
	"github.com/tendant/simple-storefront/pkg/storefront/auth"
	"github.com/tendant/simple-storefront/pkg/storefront/repo/memory"
	blobmemory "github.com/tendant/simple-storefront/pkg/storefront/storage/memory"
)

type testEnv struct {
	server   *httptest.Server
	service  storefront.Service
	verifier *auth.JWTVerifier
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	svc, err := storefront.New(
		storefront.WithRepository(memory.New()),
		storefront.WithBlobStore(blobmemory.New()),
	)
	require.NoError(t, err)

	verifier, err := auth.NewJWTVerifier([]byte("test-secret"), svc)
	require.NoError(t, err)

	server := api.NewServer(svc, verifier, api.WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "# metrics\n")
	})))
	ts := httptest.NewServer(server.Routes())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, service: svc, verifier: verifier}
}

func (e *testEnv) token(t *testing.T, subject string, role storefront.Role) string {
	t.Helper()
	tok, err := e.verifier.Issue(storefront.Identity{Subject: subject, Email: subject + "@example.com", Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return e.do(t, method, path, token, body, "application/json")
}

type part struct {
	field, filename, contentType, content string
}

func multipartBody(t *testing.T, fields map[string]string, parts ...part) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, p := range parts {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{`form-data; name="` + p.field + `"; filename="` + p.filename + `"`}
		h["Content-Type"] = []string{p.contentType}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = io.WriteString(w, p.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body api.ErrorBody
	decode(t, resp, &body)
	return body.Error.Code
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupTestServer(t)

	resp := env.do(t, http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/metrics", "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# metrics")
}

func TestAuthentication(t *testing.T) {
	env := setupTestServer(t)

	t.Run("anonymous catalog browse", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/products", "", nil, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("gallery needs sign-in", func(t *testing.T) {
		for _, path := range []string{"/api/v1/assets", "/api/v1/assets/" + uuid.NewString()} {
			resp := env.do(t, http.MethodGet, path, "", nil, "")
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
			assert.Equal(t, "unauthenticated", errorCode(t, resp), path)
		}
	})

	t.Run("bad token", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/assets", "not-a-token", nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "unauthenticated", errorCode(t, resp))
	})

	t.Run("cart needs sign-in", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/cart", "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("mine needs sign-in", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/assets?filter=mine", "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestAssetLifecycle(t *testing.T) {
	env := setupTestServer(t)
	employee := env.token(t, "emp-1", storefront.RoleEmployee)
	customer := env.token(t, "cust-1", storefront.RoleUser)
	admin := env.token(t, "admin-1", storefront.RoleAdmin)

	body, ct := multipartBody(t, map[string]string{"name": "Workshop", "category": "elektro"},
		part{"files", "a.jpg", "image/jpeg", "first"},
		part{"files[]", "b.png", "image/png", "second"},
	)
	resp := env.do(t, http.MethodPost, "/api/v1/assets", employee, body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created []*storefront.AssetRecord
	decode(t, resp, &created)
	require.Len(t, created, 2)
	assert.Equal(t, "emp-1", created[0].OwnerIdentity)
	assert.Equal(t, "elektro", created[0].Category)

	t.Run("customer cannot upload", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"name": "x", "category": "elektro"},
			part{"files", "c.jpg", "image/jpeg", "third"})
		resp := env.do(t, http.MethodPost, "/api/v1/assets", customer, body, ct)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("upload rejects unknown category", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"name": "x", "category": "nope"},
			part{"files", "c.jpg", "image/jpeg", "third"})
		resp := env.do(t, http.MethodPost, "/api/v1/assets", employee, body, ct)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("filters", func(t *testing.T) {
		for _, path := range []string{
			"/api/v1/assets?filter=category&category=elektro",
			"/api/v1/assets?filter=latest",
			"/api/v1/assets?filter=owner&owner=emp-1",
		} {
			resp := env.do(t, http.MethodGet, path, employee, nil, "")
			require.Equal(t, http.StatusOK, resp.StatusCode, path)
			var records []*storefront.AssetRecord
			decode(t, resp, &records)
			assert.Len(t, records, 2, path)
		}

		resp := env.do(t, http.MethodGet, "/api/v1/assets?filter=mine", admin, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var records []*storefront.AssetRecord
		decode(t, resp, &records)
		assert.Empty(t, records)

		resp = env.do(t, http.MethodGet, "/api/v1/assets?filter=bogus", employee, nil, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("customer cannot browse the gallery", func(t *testing.T) {
		for _, path := range []string{
			"/api/v1/assets",
			"/api/v1/assets?filter=owner&owner=emp-1",
			"/api/v1/assets/" + created[0].ID.String(),
		} {
			resp := env.do(t, http.MethodGet, path, customer, nil, "")
			assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
			assert.Equal(t, "forbidden", errorCode(t, resp), path)
		}

		resp := env.do(t, http.MethodGet, "/api/v1/assets/"+created[1].ID.String()+"/content", customer, nil, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	id := created[0].ID.String()

	t.Run("download", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/assets/"+id+"/content", "", nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "first", string(data))
	})

	t.Run("rename", func(t *testing.T) {
		resp := env.doJSON(t, http.MethodPatch, "/api/v1/assets/"+id, customer, map[string]string{"name": "stolen"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp = env.doJSON(t, http.MethodPatch, "/api/v1/assets/"+id, employee, map[string]string{"name": "Renamed", "category": "robotik"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var record storefront.AssetRecord
		decode(t, resp, &record)
		assert.Equal(t, "Renamed", record.Name)
		assert.Equal(t, "robotik", record.Category)
		assert.Equal(t, created[0].URL, record.URL)
	})

	t.Run("delete", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, "/api/v1/assets/"+id, employee, nil, "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = env.do(t, http.MethodGet, "/api/v1/assets/"+id, employee, nil, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "not_found", errorCode(t, resp))
	})

	t.Run("invalid id", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/assets/not-a-uuid", employee, nil, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func createProduct(t *testing.T, env *testEnv, token string, price string) *storefront.CatalogItem {
	t.Helper()
	body, ct := multipartBody(t, map[string]string{
		"name":        "ESP32 Kit",
		"description": "Dev board",
		"price":       price,
		"category":    "IoT",
	}, part{"images", "front.jpg", "image/jpeg", "front"}, part{"images", "back.jpg", "image/jpeg", "back"})
	resp := env.do(t, http.MethodPost, "/api/v1/products", token, body, ct)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var item storefront.CatalogItem
	decode(t, resp, &item)
	return &item
}

func TestProductsAndCart(t *testing.T) {
	env := setupTestServer(t)
	admin := env.token(t, "admin-1", storefront.RoleAdmin)
	customer := env.token(t, "cust-1", storefront.RoleUser)
	other := env.token(t, "cust-2", storefront.RoleUser)

	product := createProduct(t, env, admin, "150000")
	assert.Len(t, product.ImageURLs, 2)
	assert.Equal(t, int64(150000), product.PriceMinor)

	t.Run("customer cannot create", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"name": "x", "description": "y", "price": "1", "category": "IoT"},
			part{"images", "a.jpg", "image/jpeg", "a"})
		resp := env.do(t, http.MethodPost, "/api/v1/products", customer, body, ct)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("bad price", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"name": "x", "description": "y", "price": "1.5", "category": "IoT"},
			part{"images", "a.jpg", "image/jpeg", "a"})
		resp := env.do(t, http.MethodPost, "/api/v1/products", admin, body, ct)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("list by category", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/products?category=IoT", "", nil, "")
		var items []*storefront.CatalogItem
		decode(t, resp, &items)
		assert.Len(t, items, 1)

		resp = env.do(t, http.MethodGet, "/api/v1/products?category=Sensor", "", nil, "")
		decode(t, resp, &items)
		assert.Empty(t, items)
	})

	pid := product.ID.String()

	resp := env.doJSON(t, http.MethodPost, "/api/v1/cart/lines", customer, map[string]any{"product_id": pid, "quantity": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var line storefront.CartLine
	decode(t, resp, &line)
	assert.Equal(t, int64(2), line.Quantity)
	assert.Equal(t, int64(150000), line.UnitPriceSnapshot)

	t.Run("add merges", func(t *testing.T) {
		resp := env.doJSON(t, http.MethodPost, "/api/v1/cart/lines", customer, map[string]any{"product_id": pid, "quantity": 1})
		var merged storefront.CartLine
		decode(t, resp, &merged)
		assert.Equal(t, line.ID, merged.ID)
		assert.Equal(t, int64(3), merged.Quantity)
	})

	t.Run("price change keeps snapshot", func(t *testing.T) {
		resp := env.doJSON(t, http.MethodPatch, "/api/v1/products/"+pid, admin, map[string]any{"price_minor": 99})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = env.doJSON(t, http.MethodPost, "/api/v1/cart/total", customer, map[string]any{"selected_ids": []uuid.UUID{line.ID}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var summary storefront.CartSummary
		decode(t, resp, &summary)
		assert.Equal(t, 1, summary.SelectedCount)
		assert.Equal(t, int64(450000), summary.TotalMinor)
	})

	t.Run("other user cannot touch line", func(t *testing.T) {
		resp := env.doJSON(t, http.MethodPatch, "/api/v1/cart/lines/"+line.ID.String(), other, map[string]any{"delta": 1})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("decrement to zero removes", func(t *testing.T) {
		resp := env.doJSON(t, http.MethodPatch, "/api/v1/cart/lines/"+line.ID.String(), customer, map[string]any{"delta": -3})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out api.ChangeQuantityResponse
		decode(t, resp, &out)
		assert.True(t, out.Removed)
		assert.Nil(t, out.Line)

		resp = env.doJSON(t, http.MethodPatch, "/api/v1/cart/lines/"+line.ID.String(), customer, map[string]any{"delta": 1, "strict": true})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("omitted quantity defaults to one", func(t *testing.T) {
		resp := env.doJSON(t, http.MethodPost, "/api/v1/cart/lines", customer, map[string]any{"product_id": pid})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var added storefront.CartLine
		decode(t, resp, &added)
		assert.Equal(t, int64(1), added.Quantity)
	})

	t.Run("explicit non-positive quantity is rejected", func(t *testing.T) {
		for _, quantity := range []int64{0, -1} {
			resp := env.doJSON(t, http.MethodPost, "/api/v1/cart/lines", customer, map[string]any{"product_id": pid, "quantity": quantity})
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, quantity)
			assert.Equal(t, "validation_failed", errorCode(t, resp), quantity)
		}

		resp := env.do(t, http.MethodGet, "/api/v1/cart", customer, nil, "")
		var summary storefront.CartSummary
		decode(t, resp, &summary)
		require.Len(t, summary.Lines, 1)
		assert.Equal(t, int64(1), summary.Lines[0].Quantity)
	})

	t.Run("clear", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, "/api/v1/cart", customer, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out api.ClearCartResponse
		decode(t, resp, &out)
		assert.Equal(t, 1, out.Removed)

		resp = env.do(t, http.MethodGet, "/api/v1/cart", customer, nil, "")
		var summary storefront.CartSummary
		decode(t, resp, &summary)
		assert.Equal(t, 0, summary.LineCount)
	})

	t.Run("delete product", func(t *testing.T) {
		resp := env.do(t, http.MethodDelete, "/api/v1/products/"+pid, admin, nil, "")
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp = env.doJSON(t, http.MethodPost, "/api/v1/cart/lines", customer, map[string]any{"product_id": pid, "quantity": 1})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestUsersAndSession(t *testing.T) {
	env := setupTestServer(t)
	admin := env.token(t, "admin-1", storefront.RoleAdmin)
	// No role claim, so the stored role applies.
	customer := env.token(t, "cust-1", "")

	resp := env.do(t, http.MethodGet, "/api/v1/me", customer, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me api.MeResponse
	decode(t, resp, &me)
	assert.Equal(t, "cust-1", me.User.Identity)
	assert.Equal(t, storefront.RoleUser, me.User.Role)

	resp = env.do(t, http.MethodGet, "/api/v1/users", customer, nil, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/users", admin, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var users []*storefront.User
	decode(t, resp, &users)
	require.Len(t, users, 1)

	resp = env.doJSON(t, http.MethodPut, "/api/v1/users/cust-1/role", admin, map[string]string{"role": "wizard"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.doJSON(t, http.MethodPut, "/api/v1/users/cust-1/role", admin, map[string]string{"role": "karyawan"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated storefront.User
	decode(t, resp, &updated)
	assert.Equal(t, storefront.RoleEmployee, updated.Role)

	// The promoted user can now upload.
	body, ct := multipartBody(t, map[string]string{"name": "Lab", "category": "robotik"},
		part{"files", "lab.jpg", "image/jpeg", "lab"})
	resp = env.do(t, http.MethodPost, "/api/v1/assets", customer, body, ct)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/session/sign-out", customer, nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
