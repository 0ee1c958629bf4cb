package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"handy/catalog/internal/domain"
	"handy/catalog/internal/filters"
	"handy/catalog/internal/invalidation"
	"handy/catalog/internal/permalink"
	"handy/catalog/internal/render"
	"handy/catalog/internal/repository"
)

const (
	HeaderHookSecret = "X-Handy-Hook-Secret"
	retryMessage     = "please try again"
	htmlContentType  = "text/html; charset=utf-8"
)

type handler struct {
	renderers  []*render.Renderer
	byAction   map[string]*render.Renderer
	paths      PathResolver
	events     EventSink
	nonces     NonceVerifier
	hookSecret string
}

func newHandler(cfg RouterConfig) *handler {
	h := &handler{
		renderers:  cfg.Renderers,
		byAction:   make(map[string]*render.Renderer, len(cfg.Renderers)),
		paths:      cfg.Paths,
		events:     cfg.Events,
		nonces:     cfg.Nonces,
		hookSecret: cfg.HookSecret,
	}
	for _, rr := range cfg.Renderers {
		h.byAction[render.Action(rr.Type())] = rr
	}
	return h
}

func (h *handler) healthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// archive serves the listing shortcode. Configuration errors come back as a
// rendered error block with status 200.
func (h *handler) archive(rr *render.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		out := rr.Render(c.Request.Context(), c.Request.URL.Query())
		c.Data(http.StatusOK, htmlContentType, []byte(out.HTML))
	}
}

func (h *handler) filterBar(c *gin.Context) {
	ct, ok := domain.ParseContentType(c.Param("type"))
	rr := rendererFor(h.renderers, ct)
	if !ok || rr == nil {
		c.String(http.StatusNotFound, "unknown content type")
		return
	}
	out := rr.RenderFilters(c.Request.Context(), c.Request.URL.Query())
	c.Data(http.StatusOK, htmlContentType, []byte(out.HTML))
}

type ajaxData struct {
	HTML                 string                     `json:"html"`
	UpdatedFilterOptions map[string][]render.Option `json:"updated_filter_options"`
	DisplayMode          domain.DisplayMode         `json:"display_mode"`
	Pagination           domain.PageMeta            `json:"pagination"`
}

type ajaxResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func ajaxFailure(c *gin.Context, status int) {
	c.JSON(status, ajaxResponse{Success: false, Data: gin.H{"message": retryMessage}})
}

// ajax handles filter changes posted by the filter bar script.
func (h *handler) ajax(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		log.Warnf("⚠️ Unreadable AJAX form: %v", err)
		ajaxFailure(c, http.StatusBadRequest)
		return
	}
	form := c.Request.PostForm
	if len(form) == 0 {
		form = c.Request.Form
	}

	action := form.Get(filters.FieldAction)
	rr, ok := h.byAction[action]
	if !ok {
		log.WithField("action", action).Warn("⚠️ Unknown AJAX action")
		ajaxFailure(c, http.StatusBadRequest)
		return
	}

	if h.nonces != nil {
		if err := h.nonces.Verify(form.Get(filters.FieldNonce), action); err != nil {
			log.WithField("action", action).Warnf("⚠️ Rejected AJAX request: %v", err)
			ajaxFailure(c, http.StatusForbidden)
			return
		}
	}

	out := rr.Render(c.Request.Context(), form)
	if out.Failed {
		ajaxFailure(c, http.StatusOK)
		return
	}
	c.JSON(http.StatusOK, ajaxResponse{
		Success: true,
		Data: ajaxData{
			HTML:                 out.Results,
			UpdatedFilterOptions: render.OptionsJSON(out.Options),
			DisplayMode:          out.Mode,
			Pagination:           out.Page,
		},
	})
}

// pretty serves /{type}/... URLs: item pages and category archives.
func (h *handler) pretty(rr *render.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		route, err := h.paths.Resolve(ctx, c.Request.URL.Path)
		if err != nil {
			log.WithField("path", c.Request.URL.Path).Errorf("❌ Path resolution failed: %v", err)
			c.String(http.StatusInternalServerError, "internal error")
			return
		}

		switch route.Kind {
		case permalink.RouteItem:
			html, err := rr.RenderItem(ctx, route.ItemID)
			if errors.Is(err, repository.ErrItemNotFound) {
				c.String(http.StatusNotFound, "not found")
				return
			}
			if err != nil {
				log.WithField("item_id", route.ItemID).Errorf("❌ Item page failed: %v", err)
				c.String(http.StatusInternalServerError, "internal error")
				return
			}
			c.Data(http.StatusOK, htmlContentType, []byte(html))

		case permalink.RouteArchive:
			raw := archiveValues(c.Request.URL.Query(), route.Context())
			out := rr.Render(ctx, raw)
			c.Data(http.StatusOK, htmlContentType, []byte(out.HTML))

		default:
			c.String(http.StatusNotFound, "not found")
		}
	}
}

// archiveValues pins the route's category boundary over whatever the query
// string says.
func archiveValues(query url.Values, boundary domain.ContextBoundary) url.Values {
	raw := make(url.Values, len(query)+2)
	for k, v := range query {
		raw[k] = v
	}
	raw.Del(filters.FieldContextCategory)
	raw.Del(filters.FieldContextSubcategory)
	if boundary.Category != "" {
		raw.Set(filters.FieldContextCategory, boundary.Category)
	}
	if boundary.Subcategory != "" {
		raw.Set(filters.FieldContextSubcategory, boundary.Subcategory)
	}
	return raw
}

func (h *handler) hookEvents(c *gin.Context) {
	if h.hookSecret == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "hooks are disabled"})
		return
	}
	given := c.GetHeader(HeaderHookSecret)
	if subtle.ConstantTimeCompare([]byte(given), []byte(h.hookSecret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid hook secret"})
		return
	}

	var ev invalidation.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := ev.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.events.Dispatch(c.Request.Context(), ev); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "event": ev.Type})
}
