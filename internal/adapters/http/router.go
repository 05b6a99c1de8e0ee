package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkaras/huddle/internal/adapters/signal"
	"github.com/dkaras/huddle/internal/app"
	"github.com/dkaras/huddle/internal/config"
	"github.com/dkaras/huddle/internal/core"
	"github.com/dkaras/huddle/internal/domain"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// RoomExistsHandler serves the read-only existence check. It reads the
// directory straight through its lock with the same capacity constant
// as join, so the full flag can never drift from the join verdict.
func RoomExistsHandler(dir *core.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("roomId")
		status := dir.Status(domain.RoomID(roomID))
		if !status.Exists {
			c.JSON(http.StatusOK, gin.H{"roomExists": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"roomExists": true, "full": status.Full})
	}
}

// ICEServersHandler hands the configured STUN/TURN list to clients in
// the shape pion (and the browser API) expects.
func ICEServersHandler(cfg *config.Config) gin.HandlerFunc {
	servers := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, s := range cfg.ICEServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": servers})
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, coord *app.Coordinator, dir *core.Directory) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("HuddleSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/room-exists/:roomId", RoomExistsHandler(dir))
	api.GET("/ice-servers", ICEServersHandler(cfg))

	ctrl := signal.NewSignalWSController(coord, cfg)
	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("ct", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	return r
}
