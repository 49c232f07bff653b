package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go-llmlab/internal/config"
)

var discoveryLog = logrus.WithField("component", "discovery")

// staleAfter is how long a model listing is served from cache.
const staleAfter = 5 * time.Minute

// Endpoint is the last known state of an OpenAI-compatible server.
type Endpoint struct {
	BaseURL     string      `json:"url"`
	Models      []ModelInfo `json:"models"`
	LastUpdated time.Time   `json:"last_updated"`
	IsOnline    bool        `json:"is_online"`
	ErrorCount  int         `json:"error_count"`
}

// ListModels fetches baseURL + "/models" (baseURL includes the /v1 prefix).
func ListModels(ctx context.Context, client *http.Client, baseURL, apiKey string) ([]ModelInfo, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/models", nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var result struct {
		Object string      `json:"object"`
		Data   []ModelInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	sort.Slice(result.Data, func(i, j int) bool { return result.Data[i].Name < result.Data[j].Name })
	return result.Data, nil
}

// Discovery caches model listings for a set of endpoints.
type Discovery struct {
	client *http.Client
	keys   map[string]string

	mu        sync.RWMutex
	endpoints map[string]*Endpoint
}

// NewDiscovery tracks the given base URLs; keys maps a base URL to its bearer token.
func NewDiscovery(keys map[string]string) *Discovery {
	d := &Discovery{
		client:    &http.Client{Timeout: 10 * time.Second},
		keys:      keys,
		endpoints: make(map[string]*Endpoint, len(keys)),
	}
	for url := range keys {
		d.endpoints[url] = &Endpoint{BaseURL: url}
	}
	return d
}

// Refresh re-fetches one endpoint and records whether it answered.
func (d *Discovery) Refresh(ctx context.Context, baseURL string) error {
	d.mu.RLock()
	key := d.keys[baseURL]
	d.mu.RUnlock()

	models, err := ListModels(ctx, d.client, baseURL, key)

	d.mu.Lock()
	defer d.mu.Unlock()
	ep, ok := d.endpoints[baseURL]
	if !ok {
		ep = &Endpoint{BaseURL: baseURL}
		d.endpoints[baseURL] = ep
	}
	if err != nil {
		ep.IsOnline = false
		ep.ErrorCount++
		discoveryLog.WithError(err).WithField("url", baseURL).Warn("model listing failed")
		return fmt.Errorf("failed to fetch models: %w", err)
	}
	ep.Models = models
	ep.IsOnline = true
	ep.ErrorCount = 0
	ep.LastUpdated = time.Now()
	discoveryLog.WithFields(logrus.Fields{"url": baseURL, "models": len(models)}).Debug("endpoint refreshed")
	return nil
}

// Models returns the cached listing, refreshing it when stale. Stale data
// is served if the refresh fails.
func (d *Discovery) Models(ctx context.Context, baseURL string) ([]ModelInfo, error) {
	d.mu.RLock()
	ep, ok := d.endpoints[baseURL]
	var cached []ModelInfo
	var fresh bool
	if ok {
		cached = append(cached, ep.Models...)
		fresh = ep.IsOnline && time.Since(ep.LastUpdated) < staleAfter
	}
	d.mu.RUnlock()

	if fresh {
		return cached, nil
	}
	if err := d.Refresh(ctx, baseURL); err != nil {
		if len(cached) > 0 {
			return cached, nil
		}
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]ModelInfo(nil), d.endpoints[baseURL].Models...), nil
}

// Endpoints returns a snapshot of every tracked endpoint.
func (d *Discovery) Endpoints() []Endpoint {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Endpoint, 0, len(d.endpoints))
	for _, ep := range d.endpoints {
		cp := *ep
		cp.Models = append([]ModelInfo(nil), ep.Models...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BaseURL < out[j].BaseURL })
	return out
}

const openAIBaseURL = "https://api.openai.com/v1"

// DiscoveryFor tracks every OpenAI-compatible endpoint among cfgs.
// Anthropic and Gemini backends have no /models listing in that shape.
func DiscoveryFor(cfgs []config.BackendConfig) *Discovery {
	keys := make(map[string]string)
	for _, c := range cfgs {
		base := c.URL
		switch c.Provider {
		case "openai":
			if base == "" {
				base = openAIBaseURL
			}
		case "ollama":
			if base == "" {
				base = OllamaBaseURL
			}
		case "local":
		default:
			continue
		}
		if base == "" {
			continue
		}
		if _, seen := keys[base]; !seen || keys[base] == "" {
			keys[base] = c.APIKey()
		}
	}
	return NewDiscovery(keys)
}
