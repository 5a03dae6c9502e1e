// Package adminserver is the ops/admin HTTP surface: health and system-info
// endpoints only, not the chat front door.
package adminserver

import (
	"net/http"
	"runtime"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginswagger "github.com/swaggo/gin-swagger"

	"github.com/dfroberg/coursepilot/internal/config"
	"github.com/dfroberg/coursepilot/internal/logger"
)

// Build-time version metadata, injected via -ldflags at link time.
var (
	Version   = "unknown"
	CommitID  = "unknown"
	BuildTime = "unknown"
)

// SystemHandler serves /healthz and /system/info.
type SystemHandler struct {
	cfg *config.Config
}

func NewSystemHandler(cfg *config.Config) *SystemHandler {
	return &SystemHandler{cfg: cfg}
}

// SystemInfoResponse is the /system/info payload.
type SystemInfoResponse struct {
	Version           string `json:"version"`
	CommitID          string `json:"commit_id,omitempty"`
	BuildTime         string `json:"build_time,omitempty"`
	GoVersion         string `json:"go_version"`
	VectorStoreDriver string `json:"vector_store_driver"`
	QueueDriver       string `json:"queue_driver"`
	LLMProvider       string `json:"llm_provider"`
}

// GetHealthz godoc
// @Summary      Liveness probe
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /healthz [get]
func (h *SystemHandler) GetHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetSystemInfo godoc
// @Summary      System and driver configuration info
// @Produce      json
// @Success      200  {object}  SystemInfoResponse
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	ctx := c.Request.Context()

	driver := "unconfigured"
	if h.cfg != nil && h.cfg.VectorDatabase != nil && h.cfg.VectorDatabase.Driver != "" {
		driver = h.cfg.VectorDatabase.Driver
	}
	provider := "unconfigured"
	if h.cfg != nil && h.cfg.LLM != nil && h.cfg.LLM.Provider != "" {
		provider = h.cfg.LLM.Provider
	}

	logger.FromContext(ctx).Info("system info retrieved")
	c.JSON(http.StatusOK, SystemInfoResponse{
		Version:           Version,
		CommitID:          CommitID,
		BuildTime:         BuildTime,
		GoVersion:         runtime.Version(),
		VectorStoreDriver: driver,
		QueueDriver:       "asynq",
		LLMProvider:       provider,
	})
}

// New builds the admin gin.Engine: CORS, swagger docs, /healthz, /system/info.
func New(cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	h := NewSystemHandler(cfg)
	r.GET("/healthz", h.GetHealthz)
	r.GET("/system/info", h.GetSystemInfo)
	r.GET("/swagger/*any", ginswagger.WrapHandler(swaggerfiles.Handler))

	return r
}
