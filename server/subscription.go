package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/plateful/plateful/events"
	"github.com/plateful/plateful/utils"
	Logger "github.com/plateful/plateful/utils/log"
)

// subscribableTables are the change-feed topics clients may watch. The
// "notices" and "auth" events are pushed per-user and need no subscription.
var subscribableTables = []string{"posts", "comments", "likes", "bookmarks", "follows", "stories"}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The JWT middleware already authenticated the request.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleSubscribe streams change events to the client over a websocket.
// ?tables=posts,comments selects the tables to watch; events addressed
// directly to the user (notices, auth expiry) always come through.
func (s *Server) handleSubscribe(c *gin.Context) {
	sess := sessionFrom(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		Logger.Log.Warn("websocket upgrade failed: ", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	merged := make(chan events.ChangeEvent, 1)

	userCh, _ := s.Channels.AddNewConnection(ctx, sess.UserID)
	go forward(ctx, userCh, merged)

	for _, table := range strings.Split(c.Query("tables"), ",") {
		table = strings.TrimSpace(table)
		if table == "" {
			continue
		}
		if !utils.ContainsString(subscribableTables, table) {
			Logger.Log.Warn("ignore subscription to unknown table: ", table)
			continue
		}
		ch, err := s.Bus.Subscribe(ctx, table)
		if err != nil {
			Logger.Log.Warn("fail to subscribe table ", table, ": ", err)
			continue
		}
		go forward(ctx, ch, merged)
	}

	// Read pump only detects the peer going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case ev := <-merged:
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func forward(ctx context.Context, in <-chan events.ChangeEvent, out chan<- events.ChangeEvent) {
	for {
		select {
		case ev, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
