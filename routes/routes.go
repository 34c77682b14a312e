package routes

import (
	"verda/auth"
	"verda/excursions"
	"verda/livechat"
	"verda/middleware"
	"verda/profile"
	"verda/ratelim"
	"verda/sessions"

	"github.com/julienschmidt/httprouter"
)

func AddAuthRoutes(router *httprouter.Router) {
	router.POST("/api/auth/register", ratelim.RateLimit(auth.Register))
	router.POST("/api/auth/login", ratelim.RateLimit(auth.Login))
}

// Session routes use OptionalAuth: anonymous chat is allowed, identity only
// enriches the dialogue context.
func AddSessionRoutes(router *httprouter.Router, hub *livechat.Hub) {
	router.POST("/api/sessions", middleware.OptionalAuth(sessions.EnsureSession))
	router.GET("/api/sessions/:id", middleware.OptionalAuth(sessions.GetSession))
	router.GET("/api/sessions/:id/messages", middleware.OptionalAuth(sessions.GetMessages))
	router.POST("/api/sessions/:id/messages", ratelim.RateLimit(middleware.OptionalAuth(sessions.PostMessage(hub))))
	router.DELETE("/api/sessions/:id/messages", middleware.OptionalAuth(sessions.ClearMessages))
	router.POST("/api/sessions/:id/phase", middleware.OptionalAuth(sessions.TransitionPhase))

	router.POST("/api/intent/parse", ratelim.RateLimit(sessions.ParseUtterance))

	router.GET("/ws/sessions/:id", livechat.WebSocketHandler(hub))
}

func AddExcursionRoutes(router *httprouter.Router) {
	router.POST("/api/excursions/plan", ratelim.RateLimit(middleware.Authenticate(excursions.PlanExcursion)))
	router.GET("/api/excursions", middleware.Authenticate(excursions.GetExcursions))
	router.GET("/api/excursions/:id", middleware.Authenticate(excursions.GetExcursion))
	router.DELETE("/api/excursions/:id", middleware.Authenticate(excursions.DeleteExcursion))
}

func AddProfileRoutes(router *httprouter.Router) {
	router.GET("/api/profile/preferences", middleware.Authenticate(profile.GetPreferences))
	router.PUT("/api/profile/preferences", middleware.Authenticate(profile.UpdatePreferences))
}
