package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/assetsync/internal/server/blob"
	"github.com/openmined/assetsync/internal/server/handlers/api"
	"github.com/openmined/assetsync/internal/server/handlers/assets"
	"github.com/openmined/assetsync/internal/server/middlewares"
	"github.com/openmined/assetsync/internal/version"
)

func SetupRoutes(cfg *Config, svc *blob.BlobService) (http.Handler, error) {
	r := gin.New()

	assetsH := assets.New(svc)

	limiter, err := middlewares.RateLimiter(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("rate limit %q: %w", cfg.RateLimit, err)
	}

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	if cfg.HTTP.TLS() {
		r.Use(middlewares.HSTS())
	}
	r.Use(middlewares.CORS())

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	files := r.Group("/assets")
	files.Use(limiter)
	{
		files.GET("/*filepath", assetsH.Download)
		files.HEAD("/*filepath", assetsH.Download)
	}

	v1 := r.Group("/api/v1")
	v1.Use(limiter, middlewares.GZIP())
	{
		v1.GET("/manifest", assetsH.Manifest)
		v1.GET("/version", assetsH.Version)
	}

	r.NoRoute(func(c *gin.Context) {
		c.PureJSON(http.StatusNotFound, api.APIError{
			Code:    api.CodeNotFound,
			Message: "not found",
		})
	})

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.PureJSON(http.StatusMethodNotAllowed, api.APIError{
			Code:    api.CodeMethodNotAllowed,
			Message: "method not allowed",
		})
	})

	return r.Handler(), nil
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
