package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/microblog-api/internal/middleware"
	"github.com/microblog-api/internal/service"
	"github.com/microblog-api/pkg/response"
)

// TweetHandler handles tweet and comment API requests
type TweetHandler struct {
	tweetService *service.TweetService
}

// NewTweetHandler creates a new TweetHandler
func NewTweetHandler(tweetService *service.TweetService) *TweetHandler {
	return &TweetHandler{
		tweetService: tweetService,
	}
}

// CommentRequest is the body of comment create and update requests
type CommentRequest struct {
	Content string `json:"content"`
}

// CreateTweet handles tweet creation
// POST /tweets
func (h *TweetHandler) CreateTweet(c *gin.Context) {
	var req service.CreateTweetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, msgContentRequired)
		return
	}

	tweet, err := h.tweetService.CreateTweet(c.Request.Context(), middleware.GetUser(c), &req)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Created(c, tweet)
}

// ListTweets lists tweets
// GET /tweets?username=&sortBy=createdAt:desc&limit=10&skip=0
func (h *TweetHandler) ListTweets(c *gin.Context) {
	tweets, err := h.tweetService.ListTweets(c.Request.Context(), service.ListTweetsParams{
		Username: c.Query("username"),
		SortBy:   c.Query("sortBy"),
		Limit:    c.Query("limit"),
		Skip:     c.Query("skip"),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, tweets)
}

// GetTweet gets a single tweet
// GET /tweets/:id
func (h *TweetHandler) GetTweet(c *gin.Context) {
	tweet, err := h.tweetService.GetTweet(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, tweet)
}

// UpdateTweet patches the caller's own tweet
// PATCH /tweets/:id
func (h *TweetHandler) UpdateTweet(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	tweet, err := h.tweetService.UpdateTweet(c.Request.Context(), c.Param("id"), middleware.GetUser(c), patch)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, tweet)
}

// DeleteTweet deletes the caller's own tweet
// DELETE /tweets/:id
func (h *TweetHandler) DeleteTweet(c *gin.Context) {
	tweet, err := h.tweetService.DeleteTweet(c.Request.Context(), c.Param("id"), middleware.GetUser(c))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, tweet)
}

// AddComment comments on any tweet
// POST /tweets/:id/comments
func (h *TweetHandler) AddComment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	tweet, err := h.tweetService.AddComment(c.Request.Context(), c.Param("id"), middleware.GetUser(c), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, tweet)
}

// ListComments lists a tweet's comments
// GET /tweets/:id/comments?sortByOrder=asc&limit=10&skip=0
func (h *TweetHandler) ListComments(c *gin.Context) {
	comments, err := h.tweetService.ListComments(c.Request.Context(), c.Param("id"), service.ListCommentsParams{
		Order: c.Query("sortByOrder"),
		Limit: c.Query("limit"),
		Skip:  c.Query("skip"),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, comments)
}

// UpdateComment edits a comment under the caller's tweet
// PATCH /tweets/:id/comments/:commentId
func (h *TweetHandler) UpdateComment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	tweet, err := h.tweetService.UpdateComment(c.Request.Context(), c.Param("id"), c.Param("commentId"), middleware.GetUser(c), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, tweet)
}

// DeleteComment removes a comment under the caller's tweet
// DELETE /tweets/:id/comments/:commentId
func (h *TweetHandler) DeleteComment(c *gin.Context) {
	tweet, err := h.tweetService.DeleteComment(c.Request.Context(), c.Param("id"), c.Param("commentId"), middleware.GetUser(c))
	if err != nil {
		writeError(c, err)
		return
	}

	response.Success(c, tweet)
}

// RegisterRoutes registers tweet and comment routes
func (h *TweetHandler) RegisterRoutes(rg *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	tweets := rg.Group("/tweets")
	{
		tweets.GET("", h.ListTweets)
		tweets.GET("/:id", h.GetTweet)
		tweets.GET("/:id/comments", h.ListComments)
	}

	owned := tweets.Group("", authMiddleware)
	{
		owned.POST("", h.CreateTweet)
		owned.PATCH("/:id", h.UpdateTweet)
		owned.DELETE("/:id", h.DeleteTweet)
		owned.POST("/:id/comments", h.AddComment)
		owned.PATCH("/:id/comments/:commentId", h.UpdateComment)
		owned.DELETE("/:id/comments/:commentId", h.DeleteComment)
	}
}
