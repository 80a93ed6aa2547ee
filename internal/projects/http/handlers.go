package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/devroom-labs/devroom-backend/internal/auth"
	"github.com/devroom-labs/devroom-backend/internal/filetree"
	"github.com/devroom-labs/devroom-backend/internal/projects"
	"github.com/devroom-labs/devroom-backend/internal/projects/domain"
	"github.com/gin-gonic/gin"
)

// ProjectStore is the repo surface the handlers need.
type ProjectStore interface {
	Create(ctx context.Context, userDBID, name string) (*domain.Project, error)
	GetByPublicID(ctx context.Context, userDBID, publicID string) (*domain.Project, error)
	AddMembers(ctx context.Context, userDBID, publicID string, memberIDs []string) (int, error)
	ListForUser(ctx context.Context, userDBID string) ([]domain.Project, error)
}

// TreeStore is the file tree surface the handlers need.
type TreeStore interface {
	Replace(ctx context.Context, projectID string, tree filetree.Tree) error
}

type Handler struct {
	store ProjectStore
	trees TreeStore
}

func NewHandler(store ProjectStore, trees TreeStore) *Handler {
	return &Handler{store: store, trees: trees}
}

// Register attaches project routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/create", h.create)
	rg.GET("/all", h.list)
	rg.GET("/get-project/:id", h.getProject)
	rg.PUT("/update-file-tree", h.updateFileTree)
	rg.PUT("/add-user", h.addUsers)
}

type createReq struct {
	Name string `json:"name"`
}

func (h *Handler) create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	userID := auth.UserDBID(c)
	p, err := h.store.Create(c.Request.Context(), userID, strings.TrimSpace(req.Name))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "project": p})
}

func (h *Handler) list(c *gin.Context) {
	userID := auth.UserDBID(c)
	items, err := h.store.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "projects": items})
}

func (h *Handler) getProject(c *gin.Context) {
	publicID := c.Param("id")
	userID := auth.UserDBID(c)

	p, err := h.store.GetByPublicID(c.Request.Context(), userID, publicID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "project": p})
}

type updateFileTreeReq struct {
	ProjectID string        `json:"projectId"`
	FileTree  filetree.Tree `json:"fileTree"`
}

func (h *Handler) updateFileTree(c *gin.Context) {
	var req updateFileTreeReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ProjectID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	userID := auth.UserDBID(c)
	if _, err := h.store.GetByPublicID(c.Request.Context(), userID, req.ProjectID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
		return
	}

	if err := h.trees.Replace(c.Request.Context(), req.ProjectID, req.FileTree); err != nil {
		var perr *filetree.PersistenceError
		if errors.As(err, &perr) {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "failed to persist file tree"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type addUsersReq struct {
	ProjectID string   `json:"projectId"`
	Users     []string `json:"users"`
}

func (h *Handler) addUsers(c *gin.Context) {
	var req addUsersReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ProjectID) == "" || len(req.Users) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid body"})
		return
	}

	userID := auth.UserDBID(c)
	added, err := h.store.AddMembers(c.Request.Context(), userID, req.ProjectID, req.Users)
	if err != nil {
		if errors.Is(err, projects.ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "added": added})
}
