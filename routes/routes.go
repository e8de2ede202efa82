package routes

import (
	"net/http"

	"moshimoshi/config"
	"moshimoshi/handlers"
	"moshimoshi/utils"

	"github.com/gin-gonic/gin"
)

// HandlerBundle collects the handlers the routes need.
type HandlerBundle struct {
	Reservation *handlers.ReservationHandler
	Watch       *handlers.WatchHandler
	Webhook     *handlers.WebhookHandler
	Mock        *handlers.MockWebhookHandler
}

// RegisterRoutes wires every endpoint onto the router.
func RegisterRoutes(r *gin.Engine, hb *HandlerBundle) {
	RegisterHealthRoute(r)
	RegisterReservationRoutes(r, hb)
	RegisterWebhookRoutes(r, hb)
	if !config.IsProduction() {
		RegisterTestRoutes(r, hb)
	}
}

// RegisterReservationRoutes registers the reservation lifecycle endpoints.
func RegisterReservationRoutes(r *gin.Engine, hb *HandlerBundle) {
	api := r.Group("/api/reservations")
	{
		api.POST("", hb.Reservation.Create)
		api.GET("", hb.Reservation.List)
		api.GET("/:id", hb.Reservation.Get)
		api.POST("/:id/start-call", hb.Reservation.StartCall)
		api.POST("/:id/cancel", hb.Reservation.Cancel)
		api.POST("/:id/sync", hb.Reservation.Sync)
		api.GET("/:id/watch", hb.Watch.Watch)
	}
}

// RegisterWebhookRoutes registers the inbound vendor webhook.
func RegisterWebhookRoutes(r *gin.Engine, hb *HandlerBundle) {
	api := r.Group("/api/webhook")
	{
		api.POST("/call-completed", hb.Webhook.CallCompleted)
	}
}

// RegisterTestRoutes registers development-only endpoints.
func RegisterTestRoutes(r *gin.Engine, hb *HandlerBundle) {
	api := r.Group("/api/test")
	{
		api.POST("/mock-call-complete", hb.Mock.CallComplete)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"message":  "Hi, I'm MoshiMoshi",
			"services": utils.GetHealthStatus(),
		})
	})
}
