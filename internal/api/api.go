// Package api exposes the storage engine over HTTP.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emberworks/ember-store/internal/engine"
	"github.com/emberworks/ember-store/pkg/model"
)

type Handler struct {
	Store engine.Store
	Types *model.Registry
}

// Register mounts the object routes on the given group.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/types", h.GetTypes)
	r.GET("/objects", h.GetObjects)
	r.GET("/objects/:type", h.GetObjects)
	r.GET("/objects/:type/:id", h.GetObject)
	r.POST("/objects/:type", h.CreateObject)
	r.PUT("/objects/:type/:id", h.UpdateObject)
	r.DELETE("/objects/:type/:id", h.DeleteObject)
	r.POST("/save", h.Save)
	r.POST("/reload", h.Reload)
	r.GET("/stats", h.GetStats)
}

func (h *Handler) registry() *model.Registry {
	if h.Types != nil {
		return h.Types
	}
	return model.Types
}

func (h *Handler) GetTypes(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry().Names())
}

func (h *Handler) GetObjects(c *gin.Context) {
	typeName := c.Param("type")
	records := make(map[string]map[string]any)
	for key, obj := range h.Store.All(typeName) {
		records[key] = obj.ToMap()
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) GetObject(c *gin.Context) {
	obj, ok := h.Store.Get(c.Param("type"), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		return
	}
	c.JSON(http.StatusOK, obj.ToMap())
}

func (h *Handler) CreateObject(c *gin.Context) {
	attrs := map[string]any{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&attrs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	obj, err := h.registry().New(c.Param("type"), attrs)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if err := h.Store.SaveObject(obj); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, obj.ToMap())
}

func (h *Handler) UpdateObject(c *gin.Context) {
	var attrs map[string]any
	if err := c.ShouldBindJSON(&attrs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The engine applies the update under its own lock and swaps in a
	// fresh instance; the registered object is never mutated while other
	// requests may be serializing it.
	obj, err := h.Store.Update(c.Param("type"), c.Param("id"), attrs)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, obj.ToMap())
}

// DeleteObject removes the object from the registry and persists the
// removal in the same request.
func (h *Handler) DeleteObject(c *gin.Context) {
	if !h.Store.Delete(c.Param("type"), c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
		return
	}
	if err := h.Store.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) Save(c *gin.Context) {
	if err := h.Store.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (h *Handler) Reload(c *gin.Context) {
	if err := h.Store.Reload(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}

func (h *Handler) GetStats(c *gin.Context) {
	counts := make(map[string]int)
	for _, name := range h.registry().Names() {
		counts[name] = h.Store.Count(name)
	}
	c.JSON(http.StatusOK, gin.H{
		"total":  h.Store.Count(""),
		"counts": counts,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidArgument), errors.Is(err, model.ErrUnknownType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
