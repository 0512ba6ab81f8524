package remote

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tunehaven/tunehaven/internal/auth"
	"github.com/tunehaven/tunehaven/internal/httpx"
)

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler accepts sockets from the given origins. Requests without an
// Origin header (non-browser clients) are always accepted.
func NewHandler(hub *Hub, allowedOrigins []string, log *zap.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, origin)
			},
		},
		log: log,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	remote := r.Group("/remote")
	{
		remote.GET("/token", h.token)
		remote.GET("/ws", h.connect)
	}
}

func (h *Handler) token(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"token": h.hub.Issue()})
}

func (h *Handler) connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		httpx.InvalidField(c, "token", "token is required")
		return
	}
	role := Role(c.Query("role"))
	if role != RolePlayer && role != RoleController {
		httpx.InvalidField(c, "role", "role must be player or controller")
		return
	}
	if !h.hub.Valid(token) {
		httpx.InvalidField(c, "token", "is unknown or expired")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("remote upgrade failed", zap.Error(err))
		return
	}

	log := h.log.With(zap.String("role", string(role)), zap.Int64("user_id", auth.UserID(c)))
	cl := newClient(h.hub, conn, token, role, log)
	h.hub.join(cl)
	log.Debug("remote socket connected")

	go cl.writePump()
	cl.readPump()
}
