// Package server wires the lifecycle manager, the reconciler and the change
// feed behind the HTTP surface the screens call.
package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/plateful/plateful/auth"
	"github.com/plateful/plateful/errs"
	"github.com/plateful/plateful/events"
	"github.com/plateful/plateful/filestore"
	"github.com/plateful/plateful/reconciler"
	"github.com/plateful/plateful/stories"
	"github.com/plateful/plateful/store"
	Logger "github.com/plateful/plateful/utils/log"
)

// reconcilerIdleTTL bounds the per-user reconciler map: an entry idle this
// long holds no in-flight toggle and its seeded view state is stale anyway,
// so it is dropped and re-seeded on the user's next request.
const reconcilerIdleTTL = time.Hour

type reconcilerEntry struct {
	rec      *reconciler.Reconciler
	lastSeen time.Time
}

type Server struct {
	DB        *gorm.DB
	Manager   *stories.Manager
	Relations store.RelationStore
	Files     filestore.UploadedFileStore
	Bus       *events.Bus
	Channels  *events.UserChannels

	// One reconciler per user so the in-flight guard spans concurrent
	// requests from the same account.
	mu          sync.Mutex
	reconcilers map[string]*reconcilerEntry
	now         func() time.Time
}

func NewServer(db *gorm.DB, files filestore.UploadedFileStore, cache stories.SeenCache) *Server {
	relations := store.NewGormRelationStore(db)
	return &Server{
		DB:          db,
		Manager:     stories.NewManager(store.NewGormStoryStore(db), relations, cache),
		Relations:   relations,
		Files:       files,
		Bus:         events.NewBus(),
		Channels:    events.NewUserChannels(),
		reconcilers: make(map[string]*reconcilerEntry),
		now:         time.Now,
	}
}

func (s *Server) RegisterRoutes(router *gin.Engine) {
	router.GET("/feed", s.handleFeed)
	router.POST("/posts", s.handleCreatePost)
	router.DELETE("/posts/:id", s.handleDeletePost)
	router.GET("/posts/:id/comments", s.handleListComments)
	router.POST("/posts/:id/comments", s.handleAddComment)
	router.DELETE("/comments/:id", s.handleDeleteComment)

	router.POST("/posts/:id/like", s.toggleHandler(store.KindLike))
	router.POST("/posts/:id/bookmark", s.toggleHandler(store.KindBookmark))
	router.POST("/restaurants/:id/follow", s.toggleHandler(store.KindFollow))

	router.GET("/restaurants/:id", s.handleRestaurant)

	router.GET("/stories/tray", s.handleStoryTray)
	router.GET("/stories/:authorId", s.handleAuthorStories)
	router.POST("/stories", s.handleCreateStory)
	router.DELETE("/stories/:id", s.handleDeleteStory)
	router.POST("/stories/:id/seen", s.handleMarkSeen)

	router.GET("/subscribe", s.handleSubscribe)
}

// sessionFrom reads the session the JWT middleware established. The "sub"
// header carries the authenticated user id.
func sessionFrom(c *gin.Context) auth.Session {
	return auth.Session{
		UserID: c.Request.Header.Get("sub"),
		Token:  c.Request.Header.Get("token"),
	}
}

// reconcilerFor returns the user's reconciler, creating it on first use.
// Failure side effects surface through the user's change channels: a
// transient notice for rollbacks, an auth event that tells the client to
// re-authenticate.
func (s *Server) reconcilerFor(sess auth.Session) *reconciler.Reconciler {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	for id, entry := range s.reconcilers {
		if now.Sub(entry.lastSeen) > reconcilerIdleTTL {
			delete(s.reconcilers, id)
		}
	}

	if entry, ok := s.reconcilers[sess.UserID]; ok {
		entry.lastSeen = now
		return entry.rec
	}
	userID := sess.UserID
	r := reconciler.New(sess, s.Relations, reconciler.Options{
		OnNotice: func(msg string) {
			s.pushToUser(events.ChangeEvent{Table: "notices", Op: events.OpInsert, RowID: msg}, userID)
		},
		OnAuthExpired: func() {
			s.pushToUser(events.ChangeEvent{Table: "auth", Op: events.OpDelete, ActorID: userID}, userID)
		},
	})
	s.reconcilers[sess.UserID] = &reconcilerEntry{rec: r, lastSeen: now}
	return r
}

func (s *Server) pushToUser(ev events.ChangeEvent, userID string) {
	if err := s.Channels.PushToUser(ev, userID); err != nil {
		Logger.Log.Info("no listener for user event: ", err)
	}
}

func (s *Server) publish(ev events.ChangeEvent) {
	if err := s.Bus.Publish(ev); err != nil {
		Logger.Log.Warn("fail to publish change event: ", err)
	}
}

// statusOf maps the errs taxonomy onto HTTP statuses.
func statusOf(err error) int {
	switch errs.CodeOf(err) {
	case errs.CodeNotFound:
		return http.StatusNotFound
	case errs.CodeUnauthenticated:
		return http.StatusUnauthorized
	case errs.CodeConflict:
		return http.StatusConflict
	case errs.CodeNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{
		"code": errs.CodeOf(err),
		"msg":  err.Error(),
	})
}
