package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toxnroot/trans-invoice-v3/config"
	"github.com/toxnroot/trans-invoice-v3/ledger"
	"github.com/toxnroot/trans-invoice-v3/models"
	"github.com/toxnroot/trans-invoice-v3/store/memory"
)

type testEnv struct {
	svc    *ledger.Service
	cfg    *config.Config
	logger *logrus.Logger
	hook   *test.Hook
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, hook := test.NewNullLogger()
	return &testEnv{
		svc:    ledger.New(memory.New(), ledger.WithLogger(logger)),
		cfg:    &config.Config{TxMaxAttempts: 3, JWTSecret: "test-secret", JWTTTL: time.Hour},
		logger: logger,
		hook:   hook,
	}
}

// as installs the identity the auth middleware would normally set.
func as(uid, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", uid)
		c.Set("email", uid+"@example.com")
		c.Set("name", uid)
		c.Set("role", role)
		c.Next()
	}
}

func doJSON(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func invoiceRouter(env *testEnv, role string) *gin.Engine {
	h := NewInvoiceHandler(env.svc, env.cfg, env.logger)
	router := gin.New()
	router.Use(as("user-1", role))
	router.GET("/invoices", h.ListInvoices)
	router.POST("/invoices", h.CreateInvoice)
	router.GET("/drafts", h.NewDraft)
	router.GET("/invoices/:id", h.GetInvoice)
	router.PATCH("/invoices/:id", h.UpdateInvoice)
	router.PUT("/invoices/:id/status", h.UpdateStatus)
	router.PUT("/invoices/:id/note", h.UpdateNote)
	router.DELETE("/invoices/:id", h.DeleteInvoice)
	router.DELETE("/invoices", h.DeleteAllInvoices)
	router.GET("/counter", h.Counter)
	router.POST("/invoices/:id/products", h.AddProduct)
	router.PUT("/invoices/:id/products/:index", h.UpdateProduct)
	router.DELETE("/invoices/:id/products/:index", h.DeleteProduct)
	return router
}

var cottonLine = map[string]any{"name": "Cotton", "color": "White", "price": 10, "quantity": 2, "meter": 5}

func createVia(t *testing.T, router http.Handler, customer string) InvoiceResponse {
	t.Helper()
	w := doJSON(router, "POST", "/invoices", map[string]any{
		"customerName": customer,
		"date":         "2024-03-01",
		"products":     []any{cottonLine},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var inv InvoiceResponse
	decode(t, w, &inv)
	return inv
}

func TestCreateInvoice(t *testing.T) {
	env := setupEnv(t)
	router := invoiceRouter(env, "deploy")

	t.Run("Valid Request", func(t *testing.T) {
		inv := createVia(t, router, "Ahmed")
		assert.NotEmpty(t, inv.ID)
		assert.Equal(t, int64(1), inv.InvoiceNumber)
		assert.Equal(t, "user-1", inv.UserID)
		assert.Equal(t, "50", inv.Totals.Total.String())
		assert.Equal(t, "50", inv.Totals.FinalTotal.String())
		assert.Equal(t, int64(2), inv.Totals.Quantity)

		second := createVia(t, router, "Mona")
		assert.Equal(t, int64(2), second.InvoiceNumber)
	})

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"Missing customer", map[string]any{"date": "2024-03-01", "products": []any{cottonLine}}, "customerName"},
		{"Blank customer", map[string]any{"customerName": "  ", "products": []any{cottonLine}}, "customerName"},
		{"Blank date", map[string]any{"customerName": "A", "date": "", "products": []any{cottonLine}}, "date"},
		{"No products", map[string]any{"customerName": "A", "products": []any{}}, "products"},
		{"Unknown state", map[string]any{"customerName": "A", "state": "bogus", "products": []any{cottonLine}}, "state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, "POST", "/invoices", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var body map[string]any
			decode(t, w, &body)
			assert.Equal(t, "ValidationFailed", body["code"])
			assert.Equal(t, tt.field, body["field"])
		})
	}

	t.Run("Malformed JSON", func(t *testing.T) {
		w := doJSON(router, "POST", "/invoices", "{not json")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestNewDraft(t *testing.T) {
	env := setupEnv(t)
	router := invoiceRouter(env, "deploy")

	w := doJSON(router, "GET", "/drafts", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var draft InvoiceResponse
	decode(t, w, &draft)
	assert.Empty(t, draft.ID)
	assert.Equal(t, models.StateDeliveryNote, draft.State)
	assert.Equal(t, models.PaymentCash, draft.PaymentType)
	assert.NotEmpty(t, draft.Date)
	assert.Empty(t, draft.Products)

	list := doJSON(router, "GET", "/invoices", nil)
	assert.Contains(t, list.Body.String(), `"count":0`)
}

func TestGetAndListInvoices(t *testing.T) {
	env := setupEnv(t)
	router := invoiceRouter(env, "deploy")
	first := createVia(t, router, "Ahmed")
	createVia(t, router, "Mona")

	t.Run("Get", func(t *testing.T) {
		w := doJSON(router, "GET", "/invoices/"+first.ID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var inv InvoiceResponse
		decode(t, w, &inv)
		assert.Equal(t, "Ahmed", inv.CustomerName)
	})

	t.Run("Not found", func(t *testing.T) {
		w := doJSON(router, "GET", "/invoices/missing", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "NotFound")
	})

	t.Run("List newest first", func(t *testing.T) {
		w := doJSON(router, "GET", "/invoices", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Invoices []InvoiceResponse `json:"invoices"`
			Count    int               `json:"count"`
		}
		decode(t, w, &body)
		require.Equal(t, 2, body.Count)
		assert.Equal(t, int64(2), body.Invoices[0].InvoiceNumber)
		assert.Equal(t, int64(1), body.Invoices[1].InvoiceNumber)
	})

	t.Run("Search", func(t *testing.T) {
		w := doJSON(router, "GET", "/invoices?q=mon", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Mona")
		assert.NotContains(t, w.Body.String(), "Ahmed")
	})
}

func TestUpdateInvoice(t *testing.T) {
	env := setupEnv(t)
	inv := createVia(t, invoiceRouter(env, "deploy"), "Ahmed")

	t.Run("Patch fields", func(t *testing.T) {
		router := invoiceRouter(env, "deploy")
		w := doJSON(router, "PATCH", "/invoices/"+inv.ID, map[string]any{"customerName": "Ahmed Ali", "discount": 20})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var got InvoiceResponse
		decode(t, w, &got)
		assert.Equal(t, "Ahmed Ali", got.CustomerName)
		assert.Equal(t, "30", got.Totals.FinalTotal.String())
		assert.Equal(t, int64(1), got.InvoiceNumber)
	})

	t.Run("Renumber requires admin", func(t *testing.T) {
		router := invoiceRouter(env, "deploy")
		w := doJSON(router, "PATCH", "/invoices/"+inv.ID, map[string]any{"invoiceNumber": 9})
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "Unauthorized")
	})

	t.Run("Admin renumbers", func(t *testing.T) {
		router := invoiceRouter(env, "admin")
		w := doJSON(router, "PATCH", "/invoices/"+inv.ID, map[string]any{"invoiceNumber": 9})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var got InvoiceResponse
		decode(t, w, &got)
		assert.Equal(t, int64(9), got.InvoiceNumber)

		next := createVia(t, router, "Mona")
		assert.Equal(t, int64(10), next.InvoiceNumber)
	})

	t.Run("Empty product list", func(t *testing.T) {
		router := invoiceRouter(env, "deploy")
		w := doJSON(router, "PATCH", "/invoices/"+inv.ID, map[string]any{"products": []any{}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Missing invoice", func(t *testing.T) {
		router := invoiceRouter(env, "deploy")
		w := doJSON(router, "PATCH", "/invoices/missing", map[string]any{"note": "x"})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestStatusAndNote(t *testing.T) {
	env := setupEnv(t)
	router := invoiceRouter(env, "deploy")
	inv := createVia(t, router, "Ahmed")

	w := doJSON(router, "PUT", "/invoices/"+inv.ID+"/status", map[string]any{"isCompleted": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(router, "PUT", "/invoices/"+inv.ID+"/status", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, "PUT", "/invoices/"+inv.ID+"/note", map[string]any{"note": "paid half"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := env.svc.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsCompleted)
	assert.Equal(t, "paid half", stored.Note)
}

func TestInvoiceLock(t *testing.T) {
	env := setupEnv(t)
	env.cfg.EnforceInvoiceLock = true
	router := invoiceRouter(env, "deploy")
	inv := createVia(t, router, "Ahmed")

	w := doJSON(router, "PUT", "/invoices/"+inv.ID+"/status", map[string]any{"isCompleted": true})
	require.Equal(t, http.StatusOK, w.Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"Patch", "PATCH", "/invoices/" + inv.ID, map[string]any{"customerName": "B"}},
		{"Note", "PUT", "/invoices/" + inv.ID + "/note", map[string]any{"note": "x"}},
		{"Add product", "POST", "/invoices/" + inv.ID + "/products", cottonLine},
		{"Delete product", "DELETE", "/invoices/" + inv.ID + "/products/0", nil},
		{"Delete invoice", "DELETE", "/invoices/" + inv.ID, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusConflict, w.Code)
			assert.Contains(t, w.Body.String(), "InvoiceLocked")
		})
	}

	t.Run("Unlock still allowed", func(t *testing.T) {
		w := doJSON(router, "PATCH", "/invoices/"+inv.ID, map[string]any{"isCompleted": false})
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	})
}

func TestDeleteInvoice(t *testing.T) {
	env := setupEnv(t)
	router := invoiceRouter(env, "deploy")
	createVia(t, router, "A")
	last := createVia(t, router, "B")

	w := doJSON(router, "DELETE", "/invoices/"+last.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	n, err := env.svc.LastInvoiceNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	w = doJSON(router, "DELETE", "/invoices/"+last.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	next := createVia(t, router, "C")
	assert.Equal(t, int64(2), next.InvoiceNumber)
}

func TestDeleteAllInvoices(t *testing.T) {
	env := setupEnv(t)
	router := invoiceRouter(env, "admin")
	createVia(t, router, "A")
	createVia(t, router, "B")

	w := doJSON(router, "DELETE", "/invoices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deleted":2`)

	first := createVia(t, router, "C")
	assert.Equal(t, int64(1), first.InvoiceNumber)
}

func TestCounterEndpoint(t *testing.T) {
	env := setupEnv(t)
	router := invoiceRouter(env, "admin")
	createVia(t, router, "A")
	createVia(t, router, "B")

	w := doJSON(router, "GET", "/counter", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"lastInvoiceNumber":2,"highestInvoiceNumber":2,"behind":false}`, w.Body.String())

	payload := `[{"id":"restored-1","invoiceNumber":40,"customerName":"Old","products":[]}]`
	_, err := env.svc.Restore(context.Background(), []byte(payload))
	require.NoError(t, err)

	w = doJSON(router, "GET", "/counter", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"lastInvoiceNumber":2,"highestInvoiceNumber":40,"behind":true}`, w.Body.String())
}

func TestProductEndpoints(t *testing.T) {
	env := setupEnv(t)
	router := invoiceRouter(env, "deploy")
	inv := createVia(t, router, "Ahmed")
	base := "/invoices/" + inv.ID + "/products"

	var body struct {
		Products []models.Product `json:"products"`
	}

	w := doJSON(router, "POST", base, map[string]any{"name": "Silk", "color": "Blue", "price": 12.5, "quantity": 1, "meter": 4})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	decode(t, w, &body)
	require.Len(t, body.Products, 2)
	assert.Equal(t, "50", body.Products[1].Total.String())

	w = doJSON(router, "PUT", base+"/0", map[string]any{"name": "Linen", "color": "Beige", "price": 3, "quantity": 1, "meter": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &body)
	assert.Equal(t, "Linen", body.Products[0].Name)
	assert.Equal(t, inv.Products[0].ID, body.Products[0].ID)

	w = doJSON(router, "DELETE", base+"/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &body)
	require.Len(t, body.Products, 1)
	assert.Equal(t, "Linen", body.Products[0].Name)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"Non-numeric index", "PUT", base + "/abc", cottonLine, http.StatusBadRequest},
		{"Index out of range", "PUT", base + "/7", cottonLine, http.StatusNotFound},
		{"Invalid product", "POST", base, map[string]any{"name": "", "color": "Red", "price": 1}, http.StatusBadRequest},
		{"Missing invoice", "POST", "/invoices/missing/products", cottonLine, http.StatusNotFound},
		{"Delete out of range is a no-op", "DELETE", base + "/9", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func userRouter(env *testEnv, uid, role string) *gin.Engine {
	h := NewUserHandler(env.svc, env.cfg, env.logger)
	router := gin.New()
	router.Use(as(uid, role))
	router.POST("/profile", h.Register)
	router.GET("/profile", h.Me)
	router.POST("/auth/refresh", h.Refresh)
	router.GET("/users", h.ListUsers)
	router.PUT("/users/:uid/role", h.UpdateRole)
	return router
}

func TestUserEndpoints(t *testing.T) {
	env := setupEnv(t)

	t.Run("Register from claims", func(t *testing.T) {
		router := userRouter(env, "mona", "")
		w := doJSON(router, "POST", "/profile", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var p models.UserProfile
		decode(t, w, &p)
		assert.Equal(t, "mona", p.UID)
		assert.Equal(t, "mona@example.com", p.Email)
		assert.Equal(t, models.RoleDeploy, p.Role)
	})

	t.Run("Register with body", func(t *testing.T) {
		router := userRouter(env, "ali", "")
		w := doJSON(router, "POST", "/profile", map[string]any{"name": "Ali Hassan", "email": "ali@shop.test"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "Ali Hassan")
	})

	t.Run("Register invalid email", func(t *testing.T) {
		router := userRouter(env, "bad", "")
		w := doJSON(router, "POST", "/profile", map[string]any{"name": "Bad", "email": "nope"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Me", func(t *testing.T) {
		w := doJSON(userRouter(env, "mona", "deploy"), "GET", "/profile", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"role":"deploy"`)

		w = doJSON(userRouter(env, "ghost", "deploy"), "GET", "/profile", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Update role", func(t *testing.T) {
		admin := userRouter(env, "ali", "admin")

		w := doJSON(admin, "PUT", "/users/mona/role", map[string]any{"role": "admin"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = doJSON(admin, "PUT", "/users/ali/role", map[string]any{"role": "deploy"})
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = doJSON(admin, "PUT", "/users/mona/role", map[string]any{"role": "owner"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doJSON(admin, "PUT", "/users/ghost/role", map[string]any{"role": "admin"})
		assert.Equal(t, http.StatusNotFound, w.Code)

		p, err := env.svc.GetUserProfile(context.Background(), "mona")
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, p.Role)
	})

	t.Run("List users", func(t *testing.T) {
		w := doJSON(userRouter(env, "ali", "admin"), "GET", "/users", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"count":2`)
	})

	t.Run("Refresh", func(t *testing.T) {
		w := doJSON(userRouter(env, "mona", ""), "POST", "/auth/refresh", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		decode(t, w, &body)
		assert.NotEmpty(t, body["access_token"])
		assert.Equal(t, float64(3600), body["expires_in"])
	})
}

func TestSuggestionEndpoints(t *testing.T) {
	env := setupEnv(t)
	h := NewSuggestionHandler(env.svc, nil, env.logger)
	router := gin.New()
	router.GET("/suggestions/:list", h.List)
	router.GET("/suggestions/:list/complete", h.Complete)
	router.POST("/suggestions/:list", h.Add)
	router.DELETE("/suggestions/:list", h.Delete)

	for _, v := range []string{"Silk", " Cotton ", "Chiffon", "Silk"} {
		w := doJSON(router, "POST", "/suggestions/nametextile", map[string]any{"value": v})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	var body struct {
		Values []string `json:"values"`
	}

	w := doJSON(router, "GET", "/suggestions/nametextile", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &body)
	assert.Equal(t, []string{"Chiffon", "Cotton", "Silk"}, body.Values)

	w = doJSON(router, "GET", "/suggestions/nametextile/complete?q=c", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &body)
	assert.ElementsMatch(t, []string{"Chiffon", "Cotton"}, body.Values)

	w = doJSON(router, "GET", "/suggestions/nametextile/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &body)
	assert.Empty(t, body.Values)

	w = doJSON(router, "DELETE", "/suggestions/nametextile?value=Silk", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(router, "GET", "/suggestions/nametextile", nil)
	decode(t, w, &body)
	assert.Equal(t, []string{"Chiffon", "Cotton"}, body.Values)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"Unknown list", "GET", "/suggestions/sizes", nil},
		{"Blank value", "POST", "/suggestions/colors", map[string]any{"value": "  "}},
		{"Delete without value", "DELETE", "/suggestions/colors", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestBackupEndpoints(t *testing.T) {
	env := setupEnv(t)
	invoices := invoiceRouter(env, "admin")
	createVia(t, invoices, "A")
	createVia(t, invoices, "B")

	h := NewBackupHandler(env.svc, env.logger)
	router := gin.New()
	router.GET("/backup", h.Backup)
	router.POST("/restore", h.Restore)

	w := doJSON(router, "GET", "/backup", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	snapshot := w.Body.String()

	w = doJSON(invoices, "DELETE", "/invoices", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, "POST", "/restore", snapshot)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"restored":2`)

	w = doJSON(router, "GET", "/backup", nil)
	assert.JSONEq(t, snapshot, w.Body.String())

	t.Run("Malformed", func(t *testing.T) {
		w := doJSON(router, "POST", "/restore", `{"id":"x"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRetryConflicts(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := retryConflicts(ctx, 3, func() error {
		calls++
		if calls < 3 {
			return ledger.ErrConflict
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryConflicts(ctx, 2, func() error {
		calls++
		return ledger.ErrConflict
	})
	assert.True(t, ledger.IsConflict(err))
	assert.Equal(t, 2, calls)

	calls = 0
	err = retryConflicts(ctx, 5, func() error {
		calls++
		return ledger.ErrInvoiceNotFound
	})
	assert.ErrorIs(t, err, ledger.ErrInvoiceNotFound)
	assert.Equal(t, 1, calls)
}

func TestRespondErrorLogsInternal(t *testing.T) {
	env := setupEnv(t)
	router := gin.New()
	router.GET("/boom", func(c *gin.Context) {
		respondError(c, env.logger, assert.AnError)
	})

	w := doJSON(router, "GET", "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
	require.NotNil(t, env.hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, env.hook.LastEntry().Level)
}
