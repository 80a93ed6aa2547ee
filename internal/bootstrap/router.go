package bootstrap

import (
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/devroom-labs/devroom-backend/internal/api/http"
	"github.com/devroom-labs/devroom-backend/internal/api/http/middleware"
	"github.com/devroom-labs/devroom-backend/internal/auth"
	"github.com/devroom-labs/devroom-backend/internal/collab"
	"github.com/devroom-labs/devroom-backend/internal/filetree"
	"github.com/devroom-labs/devroom-backend/internal/projects"
	projecthttp "github.com/devroom-labs/devroom-backend/internal/projects/http"
	"github.com/devroom-labs/devroom-backend/internal/realtime"
	sandboxhttp "github.com/devroom-labs/devroom-backend/internal/sandbox/http"
	"github.com/devroom-labs/devroom-backend/internal/users"
)

type RouterDeps struct {
	ServiceName    string
	Version        string
	DB             *pgxpool.Pool
	Redis          *redis.Client
	AuthClient     *fbauth.Client
	Hub            *realtime.Hub
	Registry       *collab.Registry
	Trees          *filetree.Store
	CallbackSecret string
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.Default()
	r.Use(cors.Default())
	r.Use(middleware.RequestIDMiddleware())

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.DB, dep.Redis)
	healthHandler.RegisterRoutes(r)

	userRepo := users.NewRepo(dep.DB)
	projectRepo := projects.NewRepo(dep.DB)

	api := r.Group("/api/v1")
	api.Use(auth.WithUser(dep.AuthClient, userRepo))

	usersGroup := api.Group("/users")
	users.NewHandler(userRepo).Register(usersGroup)

	projectsGroup := api.Group("/projects")
	projecthttp.NewHandler(projectRepo, dep.Trees).Register(projectsGroup)

	// Websocket upgrades authenticate through the same middleware; tokens
	// arrive on the query string.
	ws := r.Group("/ws")
	ws.Use(auth.WithUser(dep.AuthClient, userRepo))
	wsHandler := realtime.NewWSHandler(dep.Hub, dep.Registry)
	ws.GET("", wsHandler.Serve)

	// Runner-to-backend callbacks use a shared secret, not user auth.
	internalGroup := r.Group("/internal/sandbox")
	sandboxhttp.NewHandler(dep.Registry, dep.CallbackSecret).Register(internalGroup)

	return r
}
