package models

import (
	"time"
)

// FoodCategory classifies a review post.
type FoodCategory string

const (
	CategoryKorean   FoodCategory = "KOREAN"
	CategoryWestern  FoodCategory = "WESTERN"
	CategoryChinese  FoodCategory = "CHINESE"
	CategoryJapanese FoodCategory = "JAPANESE"
	CategoryCafe     FoodCategory = "CAFE"
	CategoryDessert  FoodCategory = "DESSERT"
)

// IsValidCategory checks if a category value is one of the known kinds.
func IsValidCategory(c string) bool {
	switch FoodCategory(c) {
	case CategoryKorean, CategoryWestern, CategoryChinese, CategoryJapanese, CategoryCafe, CategoryDessert:
		return true
	}
	return false
}

// ImageFormatURLs holds the WebP and JPEG URLs of one variant.
type ImageFormatURLs struct {
	WebP string `json:"webp"`
	JPEG string `json:"jpeg"`
}

// PostImage holds the stored variants of one uploaded image, each in
// both encoded formats.
type PostImage struct {
	Thumbnail ImageFormatURLs `json:"thumbnail"`
	Medium    ImageFormatURLs `json:"medium"`
	Large     ImageFormatURLs `json:"large"`
}

// FeedPost represents a food review post.
type FeedPost struct {
	ID            string        `json:"id" db:"id"`
	AuthorID      string        `json:"author_id" db:"author_id"`
	Title         string        `json:"title" db:"title"`
	Content       string        `json:"content" db:"content"`
	Location      *string       `json:"location,omitempty" db:"location"`
	Category      *FoodCategory `json:"category,omitempty" db:"category"`
	Tags          []string      `json:"tags" db:"tags"`
	Rating        *float64      `json:"rating,omitempty" db:"rating"`
	Images        []PostImage   `json:"images" db:"image_urls"`
	Likes         int           `json:"likes" db:"likes"`
	CommentsCount int           `json:"comments_count" db:"comments_count"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`

	// IsLikedByMe is derived per viewer, not stored.
	IsLikedByMe bool `json:"is_liked_by_me" db:"-"`
}

// Comment represents a comment on a post. Mentions reference other
// users called out in the comment body.
type Comment struct {
	ID        string    `json:"id" db:"id"`
	PostID    string    `json:"post_id" db:"post_id"`
	AuthorID  string    `json:"author_id" db:"author_id"`
	ParentID  *string   `json:"parent_id,omitempty" db:"parent_id"`
	Content   string    `json:"content" db:"content"`
	IsReply   bool      `json:"is_reply" db:"is_reply"`
	Mentions  []string  `json:"mentions,omitempty"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
