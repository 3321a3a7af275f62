package api

import (
	"context"
	"net/http"
	"time"

	"github.com/claudio-seo/claudio/internal/audit"
	"github.com/claudio-seo/claudio/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsMessageProgress = "progress"
	wsMessageResult   = "result"
	wsMessageError    = "error"

	wsWriteTimeout = 10 * time.Second
	wsReadLimit    = 64 << 10
)

var auditWebsocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsMessage is one server to client frame. Exactly one of the payload groups is set per Type.
type wsMessage struct {
	Type    string     `json:"type"`
	Percent int        `json:"percent,omitempty"`
	Message string     `json:"message,omitempty"`
	Audit   *auditView `json:"audit,omitempty"`
	Error   string     `json:"error,omitempty"`
	Status  int        `json:"status,omitempty"`
}

// auditWebsocket runs one audit per connection. The client sends the request as a
// JSON text frame; the server answers with progress frames followed by a single
// result or error frame and then closes. A client disconnect cancels the audit.
func (s *Server) auditWebsocket(c *gin.Context) {
	conn, err := auditWebsocketUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	entry := logging.WithContext(c.Request.Context())
	defer func() {
		if errClose := conn.Close(); errClose != nil {
			entry.Debugf("audit websocket: close connection: %v", errClose)
		}
	}()
	conn.SetReadLimit(wsReadLimit)

	var req audit.Request
	if err = conn.ReadJSON(&req); err != nil {
		entry.Warnf("audit websocket: read request: %v", err)
		_ = writeFrame(conn, wsMessage{Type: wsMessageError, Error: "invalid request: " + err.Error(), Status: http.StatusBadRequest})
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		// Frames after the request are discarded; only a read error, meaning the
		// client went away, cancels the audit.
		for {
			if _, _, errRead := conn.NextReader(); errRead != nil {
				cancel()
				return
			}
		}
	}()

	res, err := s.svc.Run(ctx, req, func(p audit.Progress) {
		if errWrite := writeFrame(conn, wsMessage{Type: wsMessageProgress, Percent: p.Percent, Message: p.Message}); errWrite != nil {
			entry.Debugf("audit websocket: write progress: %v", errWrite)
		}
	})
	if err != nil {
		_ = writeFrame(conn, wsMessage{Type: wsMessageError, Error: err.Error(), Status: statusFor(err)})
		return
	}
	logging.SetAuditID(c, res.ID)
	view := newAuditView(res)
	if err = writeFrame(conn, wsMessage{Type: wsMessageResult, Audit: &view}); err != nil {
		entry.Warnf("audit websocket: write result: %v", err)
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"), time.Now().Add(wsWriteTimeout))
}

func writeFrame(conn *websocket.Conn, msg wsMessage) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
