package http

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Notifier surfaces sandbox readiness to the project's room. Implemented by
// the collaboration registry.
type Notifier interface {
	SandboxReady(projectID string, port int, url string)
}

type Handler struct {
	notifier       Notifier
	callbackSecret string
}

func NewHandler(notifier Notifier, callbackSecret string) *Handler {
	return &Handler{notifier: notifier, callbackSecret: callbackSecret}
}

// Register attaches the readiness callback route.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/ready", h.ready)
}

// ReadyCallbackBody is the payload a remote runner posts when the sandboxed
// process starts accepting traffic.
type ReadyCallbackBody struct {
	ProjectID string `json:"projectId"`
	Port      int    `json:"port"`
	URL       string `json:"url"`
}

// ready handles the runner-to-backend readiness callback, authenticated by
// header X-Sandbox-Callback-Secret (optional in dev if no secret is
// configured).
func (h *Handler) ready(c *gin.Context) {
	if h.callbackSecret != "" {
		secret := c.GetHeader("X-Sandbox-Callback-Secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(h.callbackSecret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized: invalid callback secret"})
			return
		}
	}

	var body ReadyCallbackBody
	if err := c.ShouldBindJSON(&body); err != nil {
		log.Printf("Sandbox callback JSON binding error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if body.ProjectID == "" || body.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "projectId and url are required"})
		return
	}

	h.notifier.SandboxReady(body.ProjectID, body.Port, body.URL)

	c.JSON(http.StatusOK, gin.H{"ok": true, "project_id": body.ProjectID})
}
