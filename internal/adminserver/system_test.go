package adminserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfroberg/coursepilot/internal/config"
)

func init() { gin.SetMode(gin.TestMode) }

func TestSystemHandler_GetHealthz(t *testing.T) {
	r := New(&config.Config{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSystemHandler_GetSystemInfo_ReportsConfiguredDrivers(t *testing.T) {
	cfg := &config.Config{
		VectorDatabase: &config.VectorDatabaseConfig{Driver: "qdrant"},
		LLM:            &config.LLMConfig{Provider: "openai"},
	}
	r := New(cfg)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/system/info", nil)
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"vector_store_driver":"qdrant"`)
	assert.Contains(t, rec.Body.String(), `"llm_provider":"openai"`)
}

func TestSystemHandler_GetSystemInfo_DefaultsWhenUnconfigured(t *testing.T) {
	r := New(&config.Config{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/system/info", nil)
	r.ServeHTTP(rec, req)

	assert.Contains(t, rec.Body.String(), `"vector_store_driver":"unconfigured"`)
}
