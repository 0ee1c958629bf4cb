package server

import (
	"context"

	"github.com/gin-gonic/gin"

	"handy/catalog/internal/domain"
	"handy/catalog/internal/invalidation"
	"handy/catalog/internal/permalink"
	"handy/catalog/internal/render"
)

// PathResolver maps a pretty URL to an item or category archive.
type PathResolver interface {
	Resolve(ctx context.Context, path string) (*permalink.Route, error)
}

// EventSink receives content mutation events from the host CMS.
type EventSink interface {
	Dispatch(ctx context.Context, ev invalidation.Event) error
}

// NonceVerifier checks the AJAX nonce posted by a filter bar.
type NonceVerifier interface {
	Verify(token, action string) error
}

type RouterConfig struct {
	Renderers  []*render.Renderer
	Paths      PathResolver
	Events     EventSink
	Nonces     NonceVerifier
	HookSecret string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(RequestID())
	r.Use(RequestLogger())
	r.Use(Recovery())

	h := newHandler(cfg)

	r.GET("/healthcheck", h.healthCheck)

	shortcodes := r.Group("/shortcode")
	{
		for _, rr := range cfg.Renderers {
			shortcodes.GET("/"+rr.Type().URLBase(), h.archive(rr))
		}
		shortcodes.GET("/filters/:type", h.filterBar)
	}

	r.POST("/ajax", h.ajax)

	if cfg.Paths != nil {
		for _, rr := range cfg.Renderers {
			r.GET("/"+rr.Type().URLBase()+"/*path", h.pretty(rr))
		}
	}

	if cfg.Events != nil {
		r.POST("/hooks/events", h.hookEvents)
	}

	return r
}

func rendererFor(renderers []*render.Renderer, ct domain.ContentType) *render.Renderer {
	for _, rr := range renderers {
		if rr.Type() == ct {
			return rr
		}
	}
	return nil
}
