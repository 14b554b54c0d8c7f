package routes

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cpesync/internal/config"
	"cpesync/internal/controllers"
	"cpesync/internal/metrics"
	"cpesync/internal/middleware"
	"cpesync/internal/store"
	"cpesync/internal/ws"
)

func Register(r *gin.Engine, st store.Store, hub *ws.Hub, cfg *config.Config) {
	tokenTTL, err := time.ParseDuration(cfg.TokenTTLMinutes + "m")
	if err != nil || tokenTTL == 0 {
		tokenTTL = 12 * time.Hour
	}
	maxUploadMB, err := strconv.ParseInt(cfg.MaxUploadMB, 10, 64)
	if err != nil || maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	maxUploadBytes := maxUploadMB << 20
	r.MaxMultipartMemory = maxUploadBytes

	authCtrl := &controllers.AuthController{
		Store:     st,
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  tokenTTL,
		AdminCode: cfg.AdminCode,
	}
	eventCtrl := &controllers.EventController{Store: st, Hub: hub}
	attCtrl := &controllers.AttendanceController{
		Store:          st,
		Hub:            hub,
		UploadDir:      cfg.UploadDir,
		MaxUploadBytes: maxUploadBytes,
	}
	acctCtrl := &controllers.AccountController{Store: st}

	r.Use(metrics.Middleware())
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Push channel; authentication happens via the in-band handshake.
	r.GET("/ws", ws.Handler(hub, wsAuthenticator(st, cfg.JWTSecret)))

	// Uploaded proof images are opaque references served back as-is.
	r.Static("/uploads", cfg.UploadDir)

	api := r.Group("/api")

	api.POST("/accounts", authCtrl.Register)

	limiter := middleware.NewTokenBucket(10, 30)
	sessions := api.Group("/sessions", limiter.Middleware())
	{
		sessions.POST("/student", authCtrl.StudentLogin)
		sessions.POST("/admin", authCtrl.AdminLogin)
	}

	// Student listing is the redacted projection and needs no session.
	api.GET("/events", eventCtrl.ListForStudents)

	authMW := middleware.Auth(st, cfg.JWTSecret)

	api.POST("/attendance", authMW, attCtrl.Submit)
	api.GET("/accounts/:id/attendance", authMW, middleware.RequireSelfOrAdmin("id"), attCtrl.HistoryForAccount)

	admin := api.Group("/admin", authMW, middleware.RequireAdmin())
	{
		admin.GET("/events", eventCtrl.ListForAdmin)
		admin.POST("/events", eventCtrl.Create)
		admin.PUT("/events/:id", eventCtrl.Update)
		admin.DELETE("/events/:id", eventCtrl.Delete)
		admin.GET("/events/:id/attendance", attCtrl.ListForEvent)
		admin.GET("/events/:id/export", attCtrl.ExportCSV)

		admin.PUT("/attendance/:id", attCtrl.UpdateStatus)

		admin.GET("/accounts", acctCtrl.List)
		admin.DELETE("/accounts/:id", acctCtrl.Delete)
	}
}

// wsAuthenticator turns a handshake token into a verified principal.
// Student principals must still exist in the store; the admin principal is
// not an account and is accepted on the token alone.
func wsAuthenticator(st store.Store, secret string) ws.Authenticator {
	return func(token string) (ws.Principal, error) {
		claims, err := middleware.ParseToken(secret, token)
		if err != nil {
			return ws.Principal{}, err
		}
		switch claims.Role {
		case middleware.RoleAdmin:
			return ws.Principal{Role: ws.RoleAdmin}, nil
		case middleware.RoleStudent:
			if _, err := st.AccountByID(context.Background(), claims.AccountID); err != nil {
				return ws.Principal{}, err
			}
			return ws.Principal{Role: ws.RoleStudent, AccountID: claims.AccountID}, nil
		default:
			return ws.Principal{}, errors.New("unknown role")
		}
	}
}
