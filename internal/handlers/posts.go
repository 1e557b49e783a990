package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/threadly/backend/internal/cache"
	"github.com/threadly/backend/internal/models"
	"github.com/threadly/backend/internal/vote"
)

type PostHandler struct {
	db    *gorm.DB
	cache *cache.Store
}

func NewPostHandler(db *gorm.DB, cacheStore *cache.Store) *PostHandler {
	return &PostHandler{db: db, cache: cacheStore}
}

func (h *PostHandler) countComments(postID int) int {
	var n int64
	h.db.Model(&models.Comment{}).Where("post_id = ?", postID).Count(&n)
	return int(n)
}

// GetPosts returns a page of posts. Responses are cached under the posts
// prefix; any vote cast on a post blows the whole family away.
func (h *PostHandler) GetPosts(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "25"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 25
	}
	sort := c.DefaultQuery("sort", "new")

	key := cache.GenerateKey(vote.PostListPrefix, map[string]any{
		"page":  page,
		"limit": limit,
		"sort":  sort,
	})
	if cached, ok := h.cache.Get(key); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	order := "created_at desc"
	if sort == "top" {
		order = "score desc"
	}

	var posts []models.Post
	query := h.db.Preload("User").Order(order).Offset((page - 1) * limit).Limit(limit)
	if err := query.Find(&posts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}

	for i := range posts {
		posts[i].Comments = h.countComments(posts[i].ID)
	}

	// If no posts, return empty array not null
	if posts == nil {
		posts = []models.Post{}
	}

	h.cache.Set(key, posts, cache.DefaultTTL)
	c.JSON(http.StatusOK, posts)
}

// GetPost returns a single post by ID
func (h *PostHandler) GetPost(c *gin.Context) {
	postID := c.Param("id")
	var post models.Post

	if err := h.db.Preload("User").First(&post, postID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	post.Comments = h.countComments(post.ID)
	c.JSON(http.StatusOK, post)
}

// CreatePost creates a new post (PROTECTED - requires authentication)
func (h *PostHandler) CreatePost(c *gin.Context) {
	var input struct {
		Title string `json:"title" binding:"required"`
		Body  string `json:"body"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}

	authorID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	post := models.Post{
		Title:    input.Title,
		Body:     input.Body,
		AuthorID: authorID,
	}

	if err := h.db.Create(&post).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post"})
		return
	}

	// Reload with user information
	h.db.Preload("User").First(&post, post.ID)

	// Cached listings are stale the moment a post exists.
	h.cache.InvalidateByPrefix(vote.PostListPrefix)

	c.JSON(http.StatusCreated, post)
}
