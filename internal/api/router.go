package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-llmlab/internal/archive"
	"go-llmlab/internal/auth"
	"go-llmlab/internal/brochure"
	"go-llmlab/internal/config"
	"go-llmlab/internal/llm"
	"go-llmlab/internal/tokens"
)

// Services bundles the collaborators the handlers call into.
type Services struct {
	Registry  *llm.Registry
	Discovery *llm.Discovery
	Manager   *llm.Manager
	Pages     brochure.Pages
	Tokens    *tokens.Inspector
	Store     *archive.Store
	Sessions  auth.Sessions
}

func SetupRouter(cfg *config.Config, svc *Services) *gin.Engine {
	if svc == nil {
		svc = &Services{}
	}
	if svc.Sessions == nil {
		svc.Sessions = auth.NewMemorySessions()
	}
	if svc.Tokens == nil {
		svc.Tokens = tokens.NewInspector()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	subpath := cfg.Server.Subpath // e.g. "/llmlab", always starts with '/'

	if subpath != "" && subpath != "/" {
		r.GET(subpath+"/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, subpath+"/health")
		})
	}

	authed := auth.AuthMiddleware(cfg, svc.Sessions, false)

	group := r.Group(subpath)
	{
		group.GET("/health", healthHandler)
		group.GET("/config", configHandler(cfg))
		group.GET("/llms", ListLLMsHandler(cfg, svc))

		// Setup: only if no users
		group.POST("/setup", SetupHandler())

		// Auth
		group.POST("/auth/login", LoginHandler(cfg, svc.Sessions))
		group.POST("/auth/logout", authed, LogoutHandler(svc.Sessions))
		group.GET("/auth/me", authed, MeHandler())

		// Admin: users
		group.POST("/users", auth.AuthMiddleware(cfg, svc.Sessions, true), CreateUserHandler())

		// --- Single-shot tools ---
		group.POST("/tokens", authed, TokensHandler(svc))
		group.POST("/summaries", authed, SummaryHandler(cfg, svc))
		group.POST("/brochures", authed, CreateBrochureHandler(cfg, svc))
		group.GET("/brochures/:id", authed, GetBrochureHandler(svc))

		// --- Conversations ---
		group.POST("/conversations", authed, CreateConversationHandler(cfg, svc))
		group.GET("/conversations", authed, ListConversationsHandler(svc))
		group.GET("/conversations/:id", authed, GetConversationHandler(svc))
		group.GET("/ws/conversations", authed, WSConversationHandler(cfg, svc))
	}
	return r
}

// requireUserID reads the authenticated user id and answers 401 when the
// auth middleware did not set one.
func requireUserID(c *gin.Context) (uint, bool) {
	id, ok := getUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "Not authenticated"}})
	}
	return id, ok
}

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	v, ok := c.Get("userId")
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
