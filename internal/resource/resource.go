// Package resource serves one collection of JSON documents as a REST
// resource. The users and sheep routers are both instances of it.
package resource

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TheBackpacker1/AHDProject/internal/db"
	httpx "github.com/TheBackpacker1/AHDProject/internal/http"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type Router struct {
	collection string
	store      db.Store
	logger     *zap.Logger
}

func New(collection string, store db.Store, logger *zap.Logger) *Router {
	return &Router{
		collection: collection,
		store:      store,
		logger:     logger.With(zap.String("collection", collection)),
	}
}

// Register implements httpx.Router.
func (rt *Router) Register(rg *gin.RouterGroup) {
	for _, root := range []string{"", "/"} {
		rg.GET(root, rt.list)
		rg.POST(root, rt.create)
	}
	rg.GET("/:id", rt.get)
	rg.PUT("/:id", rt.replace)
	rg.DELETE("/:id", rt.delete)
}

func (rt *Router) list(c *gin.Context) {
	limit := defaultLimit
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxLimit {
			limit = n
		}
	}

	docs, err := rt.store.List(c.Request.Context(), rt.collection, limit)
	if err != nil {
		rt.internalError(c, "list", err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (rt *Router) create(c *gin.Context) {
	fields, ok := objectBody(c)
	if !ok {
		return
	}

	doc, err := rt.store.Create(c.Request.Context(), rt.collection, fields)
	if err != nil {
		rt.internalError(c, "create", err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (rt *Router) get(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	doc, err := rt.store.Get(c.Request.Context(), rt.collection, id)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		rt.internalError(c, "get", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (rt *Router) replace(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	fields, ok := objectBody(c)
	if !ok {
		return
	}

	doc, err := rt.store.Replace(c.Request.Context(), rt.collection, id, fields)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		rt.internalError(c, "replace", err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (rt *Router) delete(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}

	err := rt.store.Delete(c.Request.Context(), rt.collection, id)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		rt.internalError(c, "delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Not leaking internal error details to the client
func (rt *Router) internalError(c *gin.Context, op string, err error) {
	rt.logger.Error("store operation failed", zap.String("op", op), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func documentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad id"})
		return uuid.Nil, false
	}
	return id, true
}

func objectBody(c *gin.Context) (map[string]any, bool) {
	body, _ := httpx.Body(c)
	fields, ok := body.(map[string]any)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object"})
		return nil, false
	}
	return fields, true
}
