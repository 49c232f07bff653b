package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-llmlab/internal/config"
)

var log = logrus.WithField("component", "api")

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("request")
	}
}

// GET /health
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

type backendView struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	URL      string `json:"url,omitempty"`
}

func backendViews(cfg *config.Config) []backendView {
	out := make([]backendView, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		out = append(out, backendView{Name: b.Name, Provider: b.Provider, Model: b.Model, URL: b.URL})
	}
	return out
}

// GET /config
func configHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only return non-sensitive config fields
		c.JSON(http.StatusOK, gin.H{
			"server": gin.H{
				"host":    cfg.Server.Host,
				"port":    cfg.Server.Port,
				"subpath": cfg.Server.Subpath,
			},
			"backends":     backendViews(cfg),
			"conversation": cfg.Conversation,
			"summary":      cfg.Summary,
			"brochure": gin.H{
				"backend":          cfg.Brochure.Backend,
				"link_backend":     cfg.Brochure.LinkBackend,
				"max_prompt_chars": cfg.Brochure.MaxPromptChars,
			},
		})
	}
}

// ListLLMsHandler returns the configured backends, the models each
// OpenAI-compatible endpoint reports and the local queue metrics.
func ListLLMsHandler(cfg *config.Config, svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := gin.H{"backends": backendViews(cfg)}
		if svc.Registry != nil {
			resp["registered"] = svc.Registry.Names()
		}
		if svc.Discovery != nil {
			for _, ep := range svc.Discovery.Endpoints() {
				if _, err := svc.Discovery.Models(c.Request.Context(), ep.BaseURL); err != nil {
					log.WithError(err).WithField("url", ep.BaseURL).Debug("model discovery failed")
				}
			}
			resp["endpoints"] = svc.Discovery.Endpoints()
		}
		if svc.Manager != nil {
			resp["queue"] = svc.Manager.GetMetrics()
		}
		c.JSON(http.StatusOK, resp)
	}
}
