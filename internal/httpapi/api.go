// Package httpapi exposes the runner over a REST API.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/modelroom/modelroom/internal/httpapi/docs"
	"github.com/modelroom/modelroom/internal/logger"
	"github.com/modelroom/modelroom/internal/monitoring"
	"github.com/modelroom/modelroom/internal/runner"
)

// Options configures the API server. Runner is required.
type Options struct {
	Runner  *runner.Runner
	Logger  *logger.Logger
	Metrics *monitoring.Registry
	Listen  string
	Version string
}

// API serves the model lifecycle over HTTP.
type API struct {
	runner  *runner.Runner
	log     *logger.Logger
	metrics *monitoring.Registry
	version string
	router  *gin.Engine
	server  *http.Server
	listen  string
}

// New builds the API and wires up its routes.
// @title           modelroom API
// @version         1.0
// @description     REST API for the modelroom model host
// @BasePath        /api/v1
func New(opts Options) (*API, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	listen := opts.Listen
	if listen == "" {
		listen = ":8990"
	}

	docs.SwaggerInfo.Title = "modelroom API"
	docs.SwaggerInfo.Description = "REST API for the modelroom model host"
	docs.SwaggerInfo.Version = opts.Version
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http"}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	api := &API{
		runner:  opts.Runner,
		log:     opts.Logger,
		metrics: opts.Metrics,
		version: opts.Version,
		router:  router,
		listen:  listen,
	}
	router.Use(api.requestLogger(), api.recovery())
	api.setupRoutes()
	return api, nil
}

func (a *API) setupRoutes() {
	v1 := a.router.Group("/api/v1")
	{
		v1.GET("/status", a.getStatus)
		v1.GET("/engines", a.listEngines)
		v1.POST("/engines/:name/connect", a.connectEngine)

		models := v1.Group("/models")
		{
			models.GET("", a.listModels)
			models.POST("", a.createModel)
			models.GET("/:name", a.getModel)
			models.DELETE("/:name", a.deleteModel)
			models.POST("/:name/predict", a.predict)
			models.POST("/:name/update", a.updateModel)
			models.GET("/:name/describe", a.describeModel)
		}
	}

	if a.metrics != nil {
		a.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{})))
	}
	a.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler returns the routed handler, mainly for tests.
func (a *API) Handler() http.Handler {
	return a.router
}

// Start serves requests until Shutdown is called. It returns
// http.ErrServerClosed after a clean shutdown.
func (a *API) Start() error {
	a.server = &http.Server{
		Addr:              a.listen,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a.server.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (a *API) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

func (a *API) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]any{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}
		entry := a.log.WithFields(fields)
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Warn("request failed")
		default:
			entry.Info("request")
		}
	}
}

func (a *API) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				a.log.WithFields(map[string]any{
					"panic": fmt.Sprintf("%v", p),
					"path":  c.Request.URL.Path,
				}).Warn("handler panic")
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
					Error: "internal server error",
					Kind:  "internal",
				})
			}
		}()
		c.Next()
	}
}
