package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kitchen/inventory/internal/interfaces/http/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())

	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine, WithAPIVersion("v1"))

	group := NewDomainGroup("test", "/test")
	group.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	r.Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/ping", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestRouterMiddleware_OnlyUnderAPI(t *testing.T) {
	engine := gin.New()
	engine.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	guard := func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }
	r := NewRouter(engine, WithMiddleware(guard))
	r.Register(NewDomainGroup("sections", "/sections").
		GET("", func(c *gin.Context) { c.Status(http.StatusOK) }))
	r.Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sections", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDomainGroup(t *testing.T) {
	t.Run("creates group with name and prefix", func(t *testing.T) {
		g := NewDomainGroup("materials", "/materials")
		assert.Equal(t, "materials", g.Name())
		assert.Equal(t, "/materials", g.Prefix())
	})

	t.Run("registers every method", func(t *testing.T) {
		engine := gin.New()
		ok := func(c *gin.Context) { c.String(http.StatusOK, c.Request.Method) }
		g := NewDomainGroup("materials", "/materials").
			GET("/:id", ok).
			POST("", ok).
			PUT("/:id", ok).
			PATCH("/:id", ok).
			DELETE("/:id", ok)
		g.RegisterRoutes(engine.Group("/api/v1"))

		for _, tc := range []struct{ method, path string }{
			{http.MethodGet, "/api/v1/materials/1"},
			{http.MethodPost, "/api/v1/materials"},
			{http.MethodPut, "/api/v1/materials/1"},
			{http.MethodPatch, "/api/v1/materials/1"},
			{http.MethodDelete, "/api/v1/materials/1"},
		} {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, http.StatusOK, w.Code, tc.method)
			assert.Equal(t, tc.method, w.Body.String())
		}
	})

	t.Run("group middleware and subgroups", func(t *testing.T) {
		engine := gin.New()
		g := NewDomainGroup("sections", "/sections").Use(func(c *gin.Context) {
			c.Header("X-Group", "sections")
			c.Next()
		})
		g.Group("inventory", "/:id").GET("/inventory", func(c *gin.Context) {
			c.String(http.StatusOK, c.Param("id"))
		})
		g.RegisterRoutes(engine.Group("/api/v1"))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sections/bar/inventory", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "bar", w.Body.String())
		assert.Equal(t, "sections", w.Header().Get("X-Group"))
	})
}

func TestLedgerRoutes(t *testing.T) {
	engine := gin.New()
	h := Handlers{
		Stock:    handler.NewStockHandler(nil, nil),
		Material: handler.NewMaterialHandler(nil),
		Section:  handler.NewSectionHandler(nil, nil),
		Report:   handler.NewReportHandler(nil),
		System:   handler.NewSystemHandler("inventory", "test", nil),
	}
	NewRouter(engine).Register(LedgerRoutes(h)...).Setup()

	registered := make(map[string]bool)
	for _, route := range engine.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	expected := []string{
		"GET /api/v1/stock-levels",
		"GET /api/v1/stock-levels/:materialId",
		"GET /api/v1/stock-entries",
		"POST /api/v1/stock-entries",
		"GET /api/v1/stock-entries/:id",
		"PUT /api/v1/stock-entries/:id",
		"GET /api/v1/stock-movements",
		"POST /api/v1/stock-movements",
		"POST /api/v1/stock-movements/transfer",
		"POST /api/v1/stock-movements/consume",
		"GET /api/v1/materials",
		"POST /api/v1/materials",
		"GET /api/v1/materials/:id",
		"PUT /api/v1/materials/:id",
		"DELETE /api/v1/materials/:id",
		"GET /api/v1/sections",
		"POST /api/v1/sections",
		"GET /api/v1/sections/:id",
		"GET /api/v1/sections/:id/inventory",
		"POST /api/v1/sections/:id/assign",
		"POST /api/v1/sections/:id/consume",
		"GET /api/v1/reports/consumption",
		"GET /api/v1/reports/expenses",
		"GET /api/v1/reports/low-stock",
		"GET /api/v1/reports/section-consumption",
		"GET /api/v1/system/info",
	}
	for _, route := range expected {
		assert.True(t, registered[route], "missing route %s", route)
	}
	require.Len(t, engine.Routes(), len(expected))
}
