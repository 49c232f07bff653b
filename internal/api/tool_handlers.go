package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"go-llmlab/internal/brochure"
	"go-llmlab/internal/config"
	"go-llmlab/internal/llm"
	"go-llmlab/internal/summary"
)

func (s *Services) backend(name string) (llm.Backend, error) {
	if s.Registry == nil {
		return nil, llm.ErrUnknownBackend
	}
	return s.Registry.Get(name)
}

type TokensRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

// TokensHandler tokenizes text for a model; unknown models use o200k_base.
func TokensHandler(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TokensRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
			badRequest(c, "text is required")
			return
		}
		if req.Model == "" {
			req.Model = "gpt-4o-mini"
		}
		toks, err := svc.Tokens.Inspect(req.Model, req.Text)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"model": req.Model, "count": len(toks), "tokens": toks})
	}
}

type SummaryRequest struct {
	URL     string `json:"url"`
	Backend string `json:"backend"`
}

func SummaryHandler(cfg *config.Config, svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SummaryRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
			badRequest(c, "url is required")
			return
		}
		name := req.Backend
		if name == "" {
			name = cfg.Summary.Backend
		}
		b, err := svc.backend(name)
		if err != nil {
			respondError(c, err)
			return
		}
		out, err := summary.New(svc.Pages, b).Summarize(c.Request.Context(), req.URL)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": req.URL, "backend": name, "summary": out})
	}
}

type BrochureRequest struct {
	Company string `json:"company"`
	URL     string `json:"url"`
}

// CreateBrochureHandler generates a brochure and archives it for the caller.
func CreateBrochureHandler(cfg *config.Config, svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BrochureRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Company) == "" || strings.TrimSpace(req.URL) == "" {
			badRequest(c, "company and url are required")
			return
		}
		userID, ok := requireUserID(c)
		if !ok {
			return
		}
		linker, err := svc.backend(cfg.Brochure.LinkBackend)
		if err != nil {
			respondError(c, err)
			return
		}
		writer, err := svc.backend(cfg.Brochure.Backend)
		if err != nil {
			respondError(c, err)
			return
		}
		gen := brochure.NewGenerator(svc.Pages, linker, writer, cfg.Brochure.MaxPromptChars)
		b, err := gen.CreateBrochure(c.Request.Context(), req.Company, req.URL)
		if err != nil {
			respondError(c, err)
			return
		}
		rec, err := svc.Store.SaveBrochure(c.Request.Context(), userID, b)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, rec)
	}
}

// GetBrochureHandler returns an archived brochure as JSON, or as markdown
// when the client asks for text/markdown.
func GetBrochureHandler(svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			badRequest(c, "Invalid brochure id")
			return
		}
		rec, err := svc.Store.GetBrochure(c.Request.Context(), uint(id))
		if err != nil {
			respondError(c, err)
			return
		}
		userID, ok := requireUserID(c)
		if !ok {
			return
		}
		if rec.UserID != userID && c.GetString("role") != "admin" {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "not found"}})
			return
		}
		if strings.Contains(c.GetHeader("Accept"), "text/markdown") {
			c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(rec.Markdown))
			return
		}
		var links []brochure.Link
		_ = json.Unmarshal(rec.Links, &links)
		c.JSON(http.StatusOK, gin.H{
			"id":        rec.ID,
			"company":   rec.Company,
			"url":       rec.URL,
			"markdown":  rec.Markdown,
			"links":     links,
			"createdAt": rec.CreatedAt,
		})
	}
}
