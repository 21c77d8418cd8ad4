package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat_backend/internal/realtime"
	"chat_backend/internal/security"
)

// Options configure the WebSocket endpoint.
type Options struct {
	AllowedOrigins []string
	// TrustQueryIdentity accepts ?userId= as identity when no token is sent.
	TrustQueryIdentity bool
	SendBuffer         int
	PingInterval       time.Duration
	MaxFrameBytes      int64
}

var errMissingToken = errors.New("missing bearer token")

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

// makeCheckOrigin accepts requests without an Origin header (non-browser
// clients) and browser requests from an allowed origin. "*" allows any.
func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	_, allowAll := allowed["*"]

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" || allowAll {
			return true
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token, nil
	}

	return "", errMissingToken
}

// resolveIdentity returns the user identity for the upgrade request. An empty
// identity means the connection is anonymous, which is allowed.
func resolveIdentity(r *http.Request, tokens *security.TokenService, trustQuery bool) (string, error) {
	tokenStr, err := extractTokenFromWSRequest(r)
	if errors.Is(err, errMissingToken) {
		if trustQuery {
			return strings.TrimSpace(r.URL.Query().Get("userId")), nil
		}
		return "", nil
	}
	if tokens == nil {
		return "", wsAuthError{status: http.StatusUnauthorized, msg: "token auth not configured"}
	}
	sub, err := tokens.Subject(tokenStr)
	if err != nil {
		return "", wsAuthError{status: http.StatusUnauthorized, msg: "invalid token"}
	}
	return sub, nil
}

// MakeHandler returns an HTTP handler for the /ws endpoint.
// Identity comes from a Bearer token (Authorization header,
// Sec-WebSocket-Protocol or ?token=), or from ?userId= when query identity is
// trusted. Every decoded frame is handed to the router; frames that fail to
// decode or that the router rejects are logged and dropped.
func MakeHandler(router *realtime.Router, tokens *security.TokenService, logger *slog.Logger, opts Options) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.MaxFrameBytes <= 0 {
		opts.MaxFrameBytes = 1 << 20
	}
	checkOrigin := makeCheckOrigin(opts.AllowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		userID, err := resolveIdentity(r, tokens, opts.TrustQueryIdentity)
		if err != nil {
			var authErr wsAuthError
			if errors.As(err, &authErr) {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		c := newClient(uuid.NewString(), conn, opts.SendBuffer)
		log := logger.With("conn", c.id, "user", userID)
		go c.writePump(opts.PingInterval)

		// Accepted events run to completion even if the peer goes away.
		ctx := context.WithoutCancel(r.Context())

		dispatch(ctx, router, c, realtime.Connect{UserID: userID}, log)
		defer func() {
			dispatch(ctx, router, c, realtime.Disconnect{}, log)
			c.Close()
		}()

		pongWait := opts.PingInterval * 2
		conn.SetReadLimit(opts.MaxFrameBytes)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug("ws: read failed", "err", err)
				}
				break
			}
			conn.SetReadDeadline(time.Now().Add(pongWait))

			ev, err := realtime.DecodeInbound(data)
			if err != nil {
				log.Warn("ws: drop malformed event", "err", err)
				continue
			}
			dispatch(ctx, router, c, ev, log)
		}
	}
}

// dispatch runs one event through the router. A panic in a handler is
// contained to the event that caused it.
func dispatch(ctx context.Context, router *realtime.Router, c *client, ev realtime.Inbound, log *slog.Logger) {
	defer func() {
		if p := recover(); p != nil {
			log.Error("ws: handler panic", "event", fmt.Sprintf("%T", ev), "panic", p)
		}
	}()
	if err := router.Handle(ctx, c, ev); err != nil {
		log.Warn("ws: drop event", "event", fmt.Sprintf("%T", ev), "err", err)
	}
}
