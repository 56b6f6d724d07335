package http

import (
	"github.com/gin-gonic/gin"
	"github.com/richardliu001/pos-sync/internal/config"
)

func NewRouter(api *API, rl config.RateLimitConfig) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(api.Log))
	if rl.RPS > 0 {
		r.Use(RateLimit(rl.RPS, rl.Burst))
	}
	RegisterHandlers(r, api)
	return r
}
