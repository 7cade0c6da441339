package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS lets any origin read assets. The server is read-only, so only safe
// methods are allowed and credentials are never shared.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Range", "If-None-Match", "If-Modified-Since"},
		ExposeHeaders:    []string{"Content-Length", "Content-Range", "ETag"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}
