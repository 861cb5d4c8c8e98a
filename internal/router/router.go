package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // import the Echo web framework to handle routing
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/iliyamo/idea-marketplace/internal/handler"    // import the handlers that implement business logic
    "github.com/iliyamo/idea-marketplace/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance: the health check and the Prometheus scrape
// endpoint.
func RegisterRoutes(e *echo.Echo) {
    // Load balancers and monitoring systems probe /healthz to verify
    // that the service is up and running.
    e.GET("/healthz", handler.Health)
    e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers all authentication-related routes and applies the
// necessary middleware.  Unauthenticated operations live under /v1/auth,
// while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
    // Operations that do not require an existing session.
    g := e.Group("/v1/auth")
    g.POST("/register", a.Register)
    g.POST("/login", a.Login)
    // Rotates the refresh token.
    g.POST("/refresh", a.Refresh)
    // Issues a new access token without rotating the refresh token.
    g.POST("/refresh-access", a.RefreshAccess)
    // Logout does not require JWT authentication: the handler accepts a
    // refresh token in the body or a bearer token in the header.
    g.POST("/logout", a.Logout)

    auth := e.Group("/v1")
    auth.Use(middleware.JWTAuth(jwtSecret))
    auth.Use(middleware.RequireRole("USER", "ADMIN"))
    auth.GET("/me", a.Me)

    // Alias outside the protected group so a refresh token alone can
    // terminate a session.
    e.POST("/v1/logout", a.Logout)
}

// RegisterIdeas registers the marketplace listing endpoints.  The browse
// feed is public and is the only route behind the response cache:
// every other route answers per user, and a shared cache would replay
// one account's response to another.
func RegisterIdeas(e *echo.Echo, h *handler.IdeaHandler, jwtSecret string, feedCache echo.MiddlewareFunc) {
    // Guests can browse the feed of for-sale ideas.
    if feedCache != nil {
        e.GET("/ideas", h.Feed, feedCache)
    } else {
        e.GET("/ideas", h.Feed)
    }

    g := e.Group(
        "/v1/ideas",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole("USER", "ADMIN"),
    )
    g.POST("", h.Publish)
    g.GET("/bought", h.Bought)
    g.GET("/sold", h.Sold)
    // Parameterized routes come after the fixed ones so /bought and
    // /sold are not captured as ids.
    g.GET("/:id", h.Get)
    g.POST("/:id/like", h.Like)
}

// RegisterPayments registers the purchase flow.  The webhook endpoint is
// unauthenticated by design: the provider signs each delivery and the
// handler verifies the signature itself.
func RegisterPayments(e *echo.Echo, h *handler.PaymentHandler, jwtSecret string) {
    e.POST("/payment/webhook", h.Webhook)

    g := e.Group(
        "/payment",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole("USER", "ADMIN"),
    )
    g.GET("/create", h.Create)
    g.GET("/get", h.Get)
    g.DELETE("/cancel", h.Cancel)
}

// RegisterAdmin registers oversight endpoints under /v1/admin, which
// require a valid JWT carrying the ADMIN role.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
    g := e.Group(
        "/v1/admin",
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole("ADMIN"),
    )
    g.GET("/payments", h.Payments)
}
