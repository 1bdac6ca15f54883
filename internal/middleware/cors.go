package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shrimpcod/RealTimeChat/internal/config"
)

// AllowedOrigins splits FRONTEND_URL on commas; the Vite dev server is
// always allowed.
func AllowedOrigins() []string {
	origins := []string{"http://localhost:5173"}
	for _, o := range strings.Split(config.AppConfig.FrontendURL, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" && o != "http://localhost:5173" {
			origins = append(origins, o)
		}
	}
	return origins
}

func CORSMiddleware() gin.HandlerFunc {
	cfg := cors.Config{
		AllowOrigins:     AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	return cors.New(cfg)
}
