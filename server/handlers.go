package server

import (
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/plateful/plateful/errs"
	"github.com/plateful/plateful/events"
	"github.com/plateful/plateful/model"
	"github.com/plateful/plateful/store"
	"github.com/plateful/plateful/utils"
	Logger "github.com/plateful/plateful/utils/log"
)

const feedRefreshLimit = 30

// relationSnapshot reads the viewer's relation state for one post. Failures
// degrade to the inactive rendering, the feed itself must still load.
func (s *Server) relationSnapshot(c *gin.Context, userID, postID string) (liked, bookmarked bool, likeCount int64) {
	var err error
	liked, err = s.Relations.Exists(c.Request.Context(), store.Relation{Kind: store.KindLike, SubjectID: userID, ObjectID: postID})
	if err != nil {
		Logger.Log.Warn("fail to read like state for post ", postID, ": ", err)
	}
	bookmarked, err = s.Relations.Exists(c.Request.Context(), store.Relation{Kind: store.KindBookmark, SubjectID: userID, ObjectID: postID})
	if err != nil {
		Logger.Log.Warn("fail to read bookmark state for post ", postID, ": ", err)
	}
	likeCount, err = s.Relations.Count(c.Request.Context(), store.KindLike, postID)
	if err != nil {
		Logger.Log.Warn("fail to count likes for post ", postID, ": ", err)
	}
	return liked, bookmarked, likeCount
}

func (s *Server) handleFeed(c *gin.Context) {
	sess := sessionFrom(c)

	limit := feedRefreshLimit
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		limit = utils.Min(n, feedRefreshLimit)
	}

	var posts []model.Post
	res := s.DB.
		Preload("User").
		Preload("Restaurant").
		Order("cursor desc").
		Limit(limit).
		Find(&posts)
	if res.Error != nil {
		abortWithError(c, errs.Wrap(errs.CodeInternal, "fail to load feed", res.Error))
		return
	}

	rec := s.reconcilerFor(sess)
	items := make([]gin.H, 0, len(posts))
	for _, post := range posts {
		liked, bookmarked, likeCount := s.relationSnapshot(c, sess.UserID, post.Id)

		// Prime the reconciler so toggles start from what the screen shows.
		rec.Seed(store.KindLike, post.Id, liked, int(likeCount))
		rec.Seed(store.KindBookmark, post.Id, bookmarked, 0)

		items = append(items, gin.H{
			"id":             post.Id,
			"caption":        post.Caption,
			"imageUrl":       post.ImageUrl,
			"rating":         post.Rating,
			"createdAt":      post.CreatedAt,
			"author":         gin.H{"id": post.User.Id, "name": post.User.Name, "avatarUrl": post.User.AvatarUrl},
			"restaurant":     gin.H{"id": post.Restaurant.Id, "name": post.Restaurant.Name},
			"liked":          liked,
			"bookmarked":     bookmarked,
			"likeCount":      likeCount,
		})
	}
	c.JSON(http.StatusOK, gin.H{"posts": items})
}

func (s *Server) handleCreatePost(c *gin.Context) {
	sess := sessionFrom(c)

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "missing image"})
		return
	}
	defer file.Close()

	key := "posts/" + uuid.New().String() + path.Ext(header.Filename)
	storedKey, err := s.Files.Upload(key, file, header.Header.Get("Content-Type"))
	if err != nil {
		abortWithError(c, errs.Wrap(errs.CodeNetwork, "fail to upload post image", err))
		return
	}

	rating, _ := strconv.Atoi(c.PostForm("rating"))
	post := model.Post{
		Id:           uuid.New().String(),
		CreatedAt:    time.Now(),
		UserID:       sess.UserID,
		RestaurantID: c.PostForm("restaurant_id"),
		Caption:      c.PostForm("caption"),
		ImageUrl:     s.Files.GetUrlFromKey(storedKey),
		Rating:       rating,
	}
	if res := s.DB.Create(&post); res.Error != nil {
		abortWithError(c, errs.Wrap(errs.CodeInternal, "fail to create post", res.Error))
		return
	}

	s.publish(events.ChangeEvent{Table: "posts", Op: events.OpInsert, RowID: post.Id, ActorID: sess.UserID})
	c.JSON(http.StatusOK, gin.H{"id": post.Id, "imageUrl": post.ImageUrl})
}

func (s *Server) handleDeletePost(c *gin.Context) {
	sess := sessionFrom(c)
	postID := c.Param("id")

	res := s.DB.Where("id = ? AND user_id = ?", postID, sess.UserID).Delete(&model.Post{})
	if res.Error != nil {
		abortWithError(c, errs.Wrap(errs.CodeInternal, "fail to delete post", res.Error))
		return
	}
	if res.RowsAffected == 0 {
		abortWithError(c, errs.NotFound("post not found"))
		return
	}

	s.publish(events.ChangeEvent{Table: "posts", Op: events.OpDelete, RowID: postID, ActorID: sess.UserID})
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListComments(c *gin.Context) {
	var comments []model.Comment
	res := s.DB.
		Preload("User").
		Where("post_id = ?", c.Param("id")).
		Order("created_at asc").
		Find(&comments)
	if res.Error != nil {
		abortWithError(c, errs.Wrap(errs.CodeInternal, "fail to load comments", res.Error))
		return
	}

	items := make([]gin.H, 0, len(comments))
	for _, comment := range comments {
		items = append(items, gin.H{
			"id":        comment.Id,
			"content":   comment.Content,
			"createdAt": comment.CreatedAt,
			"author":    gin.H{"id": comment.User.Id, "name": comment.User.Name, "avatarUrl": comment.User.AvatarUrl},
		})
	}
	c.JSON(http.StatusOK, gin.H{"comments": items})
}

func (s *Server) handleAddComment(c *gin.Context) {
	sess := sessionFrom(c)

	var body struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
		return
	}

	comment := model.Comment{
		Id:        uuid.New().String(),
		CreatedAt: time.Now(),
		PostID:    c.Param("id"),
		UserID:    sess.UserID,
		Content:   body.Content,
	}
	if res := s.DB.Create(&comment); res.Error != nil {
		abortWithError(c, errs.Wrap(errs.CodeInternal, "fail to create comment", res.Error))
		return
	}

	s.publish(events.ChangeEvent{Table: "comments", Op: events.OpInsert, RowID: comment.Id, ActorID: sess.UserID})
	c.JSON(http.StatusOK, gin.H{"id": comment.Id})
}

func (s *Server) handleDeleteComment(c *gin.Context) {
	sess := sessionFrom(c)
	commentID := c.Param("id")

	res := s.DB.Where("id = ? AND user_id = ?", commentID, sess.UserID).Delete(&model.Comment{})
	if res.Error != nil {
		abortWithError(c, errs.Wrap(errs.CodeInternal, "fail to delete comment", res.Error))
		return
	}
	if res.RowsAffected == 0 {
		abortWithError(c, errs.NotFound("comment not found"))
		return
	}

	s.publish(events.ChangeEvent{Table: "comments", Op: events.OpDelete, RowID: commentID, ActorID: sess.UserID})
	c.Status(http.StatusNoContent)
}

// toggleHandler flips a like/bookmark/follow for the session user. The
// response is the settled local state; failure side effects (notice, auth
// redirect) travel through the user's change channels.
func (s *Server) toggleHandler(kind store.RelationKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)
		objectID := c.Param("id")

		rec := s.reconcilerFor(sess)
		if err := rec.EnsureSeeded(c.Request.Context(), kind, objectID); err != nil {
			abortWithError(c, err)
			return
		}

		before := rec.State(kind, objectID)
		st := rec.Toggle(c.Request.Context(), kind, objectID)

		// A rolled-back or dropped toggle settles where it started; there is
		// no mutation to announce then.
		if st.Active != before.Active {
			op := events.OpDelete
			if st.Active {
				op = events.OpInsert
			}
			s.publish(events.ChangeEvent{Table: string(kind) + "s", Op: op, RowID: objectID, ActorID: sess.UserID})
		}

		c.JSON(http.StatusOK, gin.H{"active": st.Active, "count": st.Count})
	}
}

func (s *Server) handleRestaurant(c *gin.Context) {
	restaurantID := c.Param("id")

	var restaurant model.Restaurant
	res := s.DB.Where("id = ?", restaurantID).First(&restaurant)
	if res.Error != nil {
		abortWithError(c, errs.NotFound("restaurant not found"))
		return
	}

	var reviewCount int64
	var avgRating float64
	s.DB.Model(&model.Post{}).Where("restaurant_id = ?", restaurantID).Count(&reviewCount)
	if reviewCount > 0 {
		s.DB.Model(&model.Post{}).Where("restaurant_id = ?", restaurantID).Select("avg(rating)").Scan(&avgRating)
	}
	followerCount, _ := s.Relations.Count(c.Request.Context(), store.KindFollow, restaurantID)

	c.JSON(http.StatusOK, gin.H{
		"id":            restaurant.Id,
		"name":          restaurant.Name,
		"address":       restaurant.Address,
		"cuisine":       restaurant.Cuisine,
		"imageUrl":      restaurant.ImageUrl,
		"reviewCount":   reviewCount,
		"avgRating":     avgRating,
		"followerCount": followerCount,
	})
}

func (s *Server) handleStoryTray(c *gin.Context) {
	sess := sessionFrom(c)
	now := time.Now()

	tray, err := s.Manager.ListActiveForFollowedAuthors(c.Request.Context(), sess.UserID, now)
	if err != nil {
		abortWithError(c, err)
		return
	}
	unseen, err := s.Manager.ComputeUnseenAuthors(c.Request.Context(), sess.UserID, now)
	if err != nil {
		abortWithError(c, err)
		return
	}

	entries := make([]gin.H, 0, len(tray))
	for _, entry := range tray {
		latest := entry.Stories[len(entry.Stories)-1]
		entries = append(entries, gin.H{
			"authorId":   entry.AuthorID,
			"coverUrl":   latest.ImageUrl,
			"storyCount": len(entry.Stories),
			"unseen":     unseen[entry.AuthorID],
		})
	}
	c.JSON(http.StatusOK, gin.H{"tray": entries})
}

func (s *Server) handleAuthorStories(c *gin.Context) {
	items, err := s.Manager.ListActiveForAuthor(c.Request.Context(), c.Param("authorId"), time.Now())
	if err != nil {
		abortWithError(c, err)
		return
	}

	out := make([]gin.H, 0, len(items))
	for _, story := range items {
		out = append(out, gin.H{
			"id":        story.Id,
			"imageUrl":  story.ImageUrl,
			"createdAt": story.CreatedAt,
			"expiresAt": story.ExpiresAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"stories": out})
}

func (s *Server) handleCreateStory(c *gin.Context) {
	sess := sessionFrom(c)

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "missing image"})
		return
	}
	defer file.Close()

	key := "stories/" + uuid.New().String() + path.Ext(header.Filename)
	storedKey, err := s.Files.Upload(key, file, header.Header.Get("Content-Type"))
	if err != nil {
		abortWithError(c, errs.Wrap(errs.CodeNetwork, "fail to upload story media", err))
		return
	}

	story, err := s.Manager.CreateStory(c.Request.Context(), sess.UserID, s.Files.GetUrlFromKey(storedKey), time.Now())
	if err != nil {
		abortWithError(c, err)
		return
	}

	s.publish(events.ChangeEvent{Table: "stories", Op: events.OpInsert, RowID: story.Id, ActorID: sess.UserID})
	c.JSON(http.StatusOK, gin.H{"id": story.Id, "imageUrl": story.ImageUrl, "expiresAt": story.ExpiresAt})
}

func (s *Server) handleDeleteStory(c *gin.Context) {
	sess := sessionFrom(c)
	storyID := c.Param("id")

	if err := s.Manager.DeleteStory(c.Request.Context(), storyID, sess.UserID); err != nil {
		abortWithError(c, err)
		return
	}

	s.publish(events.ChangeEvent{Table: "stories", Op: events.OpDelete, RowID: storyID, ActorID: sess.UserID})
	c.Status(http.StatusNoContent)
}

// handleMarkSeen is fire-and-forget from the client's point of view: seen
// tracking must never block playback, so this always answers 204.
func (s *Server) handleMarkSeen(c *gin.Context) {
	sess := sessionFrom(c)
	s.Manager.MarkSeen(c.Request.Context(), c.Param("id"), sess.UserID)
	c.Status(http.StatusNoContent)
}
