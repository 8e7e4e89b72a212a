package http

import (
	"context"

	"github.com/dkeye/FrontDesk/internal/adapters/signal"
	"github.com/dkeye/FrontDesk/internal/app/orch"
	"github.com/dkeye/FrontDesk/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	sessionName = "FrontDeskSessions"
	tokenKey    = "client_token"
)

// ClientTokenMiddleware gives every client a stable id kept in its
// session cookie. The signaling hub uses it as the peer id, so a terminal
// that reconnects with its cookie jar keeps its address.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		token, _ := sess.Get(tokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			sess.Set(tokenKey, token)
			if err := sess.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(tokenKey, token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Server, o *orch.Orchestrator) *gin.Engine {
	switch cfg.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(cfg.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == gin.DebugMode {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	secret := cfg.Secret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn().Str("module", "adapters.http").Msg("no session secret configured, cookies will not survive a restart")
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	h := &handlers{orch: o}
	voip := r.Group("/api/voip")
	voip.GET("/rooms", h.listRooms)
	voip.GET("/receptionists", h.listReceptionists)
	voip.GET("/peers", h.listPeers)
	voip.PUT("/rooms/:slug/status", h.setRoomStatus)

	ws := signal.NewSignalWSController(o, signal.Options{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		QueueSize:      cfg.QueueSize,
		InitiateLimit:  cfg.InitiateLimit,
		InitiateWindow: cfg.InitiateWindow,
	})
	r.GET("/api/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("sid", c.GetString(tokenKey)).Msg("ws signal endpoint hit")
		ws.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("mode", gin.Mode()).Msg("router setup")
	return r
}
