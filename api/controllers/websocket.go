package controllers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/davemarrero/learnhub-backend/api/middleware"
	"github.com/davemarrero/learnhub-backend/internal/realtime"
	pkgauth "github.com/davemarrero/learnhub-backend/pkg/auth"
	"github.com/davemarrero/learnhub-backend/pkg/config"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Origin enforcement happens in the CORS layer; the socket accepts
	// the token as its credential.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Websocket upgrades the connection and runs the realtime session.
// Auth failures are reported with an application close code after the
// upgrade, because a browser client cannot read an HTTP 401 from a
// failed upgrade.
func Websocket(
	registry *realtime.Registry,
	enrollSvc realtime.EnrollmentChecker,
	progressSink realtime.ProgressSink,
	jwtCfg config.JWTConfig,
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			logg.Debug(r.Context(), "websocket upgrade failed")
			return
		}

		claims, authErr := authenticateSocket(r, jwtCfg)
		if authErr != nil {
			closeWithCode(conn, realtime.CloseCodeUnauthorized, "authentication failed")
			return
		}

		ctx := logg.WithUserID(r.Context(), claims.UserID.String())
		client := realtime.NewClient(conn, claims.UserID, registry, enrollSvc, progressSink, logg)
		client.Run(ctx)
	}
}

func authenticateSocket(r *http.Request, jwtCfg config.JWTConfig) (*pkgauth.AccessTokenClaims, error) {
	token := middleware.BearerToken(r)
	return pkgauth.ParseAccessToken(jwtCfg, token)
}

func closeWithCode(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}
