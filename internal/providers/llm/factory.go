package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/factbot/internal/config"
	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/pkg/log"
)

type route struct {
	name      string
	match     func(modelID string) bool
	completer core.Completer
}

// Router picks a backend per call from the model id. The first matching route
// wins; ids nothing matches go to the fallback.
type Router struct {
	routes   []route
	fallback *route
}

func NewRouter() *Router {
	return &Router{}
}

func (r *Router) Handle(name string, match func(modelID string) bool, c core.Completer) *Router {
	r.routes = append(r.routes, route{name: name, match: match, completer: c})
	return r
}

func (r *Router) Fallback(name string, c core.Completer) *Router {
	r.fallback = &route{name: name, completer: c}
	return r
}

func (r *Router) Complete(ctx context.Context, history []core.Message, modelID string) (core.Completion, error) {
	rt, ok := r.pick(modelID)
	if !ok {
		return core.Completion{}, fmt.Errorf("no llm backend configured for model %q", modelID)
	}

	log.FromCtx(ctx).Debug().
		Str("backend", rt.name).
		Str("model", modelID).
		Msg("calling llm")
	return rt.completer.Complete(ctx, history, modelID)
}

func (r *Router) pick(modelID string) (route, bool) {
	for _, rt := range r.routes {
		if rt.match(modelID) {
			return rt, true
		}
	}
	if r.fallback != nil {
		return *r.fallback, true
	}
	return route{}, false
}

// IsAnthropicModel matches "claude-..." and "anthropic/claude-...".
func IsAnthropicModel(modelID string) bool {
	id := strings.ToLower(modelID)
	return strings.HasPrefix(id, "claude") || strings.HasPrefix(id, "anthropic/")
}

// IsHFRouterModel matches ids pinned to an inference provider, such as
// "meta-llama/Llama-3.1-8B-Instruct:sambanova".
func IsHFRouterModel(modelID string) bool {
	i := strings.LastIndex(modelID, ":")
	if i <= 0 || i == len(modelID)-1 {
		return false
	}
	suffix := modelID[i+1:]
	// OpenRouter uses ":free" and ":nitro" style variants on its own ids.
	switch suffix {
	case "free", "nitro", "floor", "online", "beta", "thinking", "extended":
		return false
	}
	return strings.Contains(modelID[:i], "/")
}

// NewProvider builds a Router from every backend that has credentials.
func NewProvider(ctx context.Context, cfg *config.LLMConfig) (*Router, error) {
	r := NewRouter()
	var enabled []string

	if cfg.AnthropicAPIKey != "" {
		r.Handle("anthropic", IsAnthropicModel, NewAnthropic(cfg.AnthropicAPIKey, cfg.Timeout))
		enabled = append(enabled, "anthropic")
	}
	if cfg.HFToken != "" {
		r.Handle("huggingface", IsHFRouterModel, NewHFRouter(cfg.HFRouterBaseURL, cfg.HFToken, cfg.Timeout))
		enabled = append(enabled, "huggingface")
	}
	if cfg.OpenRouterAPIKey != "" {
		r.Fallback("openrouter", NewOpenRouter(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.Timeout))
		enabled = append(enabled, "openrouter")
	} else if cfg.HFToken != "" {
		r.Fallback("huggingface", NewHFRouter(cfg.HFRouterBaseURL, cfg.HFToken, cfg.Timeout))
	}

	if len(enabled) == 0 {
		return nil, fmt.Errorf("no llm backend configured: set OPENROUTER_API_KEY, HF_TOKEN or ANTHROPIC_API_KEY")
	}

	log.FromCtx(ctx).Info().
		Strs("backends", enabled).
		Msg("starting llm router")
	return r, nil
}
