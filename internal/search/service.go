package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/load28/foodie/internal/models"
)

// Document is the post projection stored in the index. Image URLs and
// comment bodies stay out; search only needs the rankable fields.
type Document struct {
	ID            string    `json:"id"`
	AuthorID      string    `json:"author_id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Location      string    `json:"location,omitempty"`
	Category      string    `json:"category,omitempty"`
	Tags          []string  `json:"tags"`
	Rating        *float64  `json:"rating,omitempty"`
	Likes         int       `json:"likes"`
	CommentsCount int       `json:"comments_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// DocumentFromPost projects a post into its index document.
func DocumentFromPost(post *models.FeedPost) Document {
	doc := Document{
		ID:            post.ID,
		AuthorID:      post.AuthorID,
		Title:         post.Title,
		Content:       post.Content,
		Tags:          post.Tags,
		Rating:        post.Rating,
		Likes:         post.Likes,
		CommentsCount: post.CommentsCount,
		CreatedAt:     post.CreatedAt,
	}
	if post.Location != nil {
		doc.Location = *post.Location
	}
	if post.Category != nil {
		doc.Category = string(*post.Category)
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	return doc
}

// Hit is one search result with optional highlight fragments.
type Hit struct {
	Document   Document            `json:"document"`
	Score      float64             `json:"score"`
	Highlights map[string][]string `json:"highlights,omitempty"`
}

// Result is a page of search hits.
type Result struct {
	Total int64 `json:"total"`
	Hits  []Hit `json:"hits"`
}

// BulkResult accounts for a bulk indexing run item by item.
type BulkResult struct {
	Indexed int
	Failed  int
	Errors  []string
}

const bulkBatchSize = 500

// Service indexes post documents and executes queries.
type Service struct {
	client *Client
}

// NewService creates a search service.
func NewService(client *Client) *Service {
	return &Service{client: client}
}

// IndexPost writes one post document.
func (s *Service) IndexPost(ctx context.Context, post *models.FeedPost) error {
	doc := DocumentFromPost(post)
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	res, err := s.client.es.Index(
		s.client.index,
		bytes.NewReader(body),
		s.client.es.Index.WithDocumentID(doc.ID),
		s.client.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index post %s: %w", doc.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("indexing post %s returned %s: %s", doc.ID, res.Status(), readBody(res.Body))
	}
	return nil
}

// DeletePost removes a post document. A missing document is not an
// error; the post may never have been indexed.
func (s *Service) DeletePost(ctx context.Context, postID string) error {
	res, err := s.client.es.Delete(
		s.client.index,
		postID,
		s.client.es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to delete post %s from index: %w", postID, err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("deleting post %s returned %s", postID, res.Status())
	}
	return nil
}

// BulkIndex writes posts in batches of up to 500 with per-item
// accounting. It returns an error only when every item failed.
func (s *Service) BulkIndex(ctx context.Context, posts []*models.FeedPost) (*BulkResult, error) {
	result := &BulkResult{}
	if len(posts) == 0 {
		return result, nil
	}

	for start := 0; start < len(posts); start += bulkBatchSize {
		end := start + bulkBatchSize
		if end > len(posts) {
			end = len(posts)
		}
		if err := s.bulkBatch(ctx, posts[start:end], result); err != nil {
			return result, err
		}
	}

	if result.Indexed == 0 && result.Failed > 0 {
		return result, fmt.Errorf("bulk indexing failed for all %d documents", result.Failed)
	}
	return result, nil
}

func (s *Service) bulkBatch(ctx context.Context, posts []*models.FeedPost, result *BulkResult) error {
	var buf bytes.Buffer
	for _, post := range posts {
		doc := DocumentFromPost(post)
		meta := fmt.Sprintf(`{"index":{"_id":%q}}`, doc.ID)
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document %s: %w", doc.ID, err)
		}
		buf.WriteString(meta)
		buf.WriteByte('\n')
		buf.Write(body)
		buf.WriteByte('\n')
	}

	res, err := s.client.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.client.es.Bulk.WithIndex(s.client.index),
		s.client.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk request returned %s: %s", res.Status(), readBody(res.Body))
	}

	var bulkResp struct {
		Items []map[string]struct {
			Status int `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}

	for _, item := range bulkResp.Items {
		for _, op := range item {
			if op.Status >= 200 && op.Status < 300 {
				result.Indexed++
			} else {
				result.Failed++
				if op.Error != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", op.Error.Type, op.Error.Reason))
				}
			}
		}
	}
	return nil
}

// Search runs a relevance query over all posts. Text relevance is
// boosted by engagement: log1p(likes) and log1p(comments) feed a
// function score on top of the multi_match. An optional category
// narrows the result set, and ties in score break by recency.
func (s *Service) Search(ctx context.Context, query string, category *string, limit, offset int) (*Result, error) {
	inner := map[string]any{
		"bool": map[string]any{
			"must": []any{multiMatch(query)},
		},
	}
	if category != nil && *category != "" {
		inner["bool"].(map[string]any)["filter"] = []any{
			map[string]any{"term": map[string]any{"category": *category}},
		}
	}

	body := map[string]any{
		"query": map[string]any{
			"function_score": map[string]any{
				"query":      inner,
				"functions":  engagementFunctions(),
				"score_mode": "sum",
				"boost_mode": "sum",
			},
		},
		"sort": []any{
			map[string]any{"_score": map[string]any{"order": "desc"}},
			map[string]any{"created_at": map[string]any{"order": "desc"}},
		},
		"highlight": map[string]any{
			"fields": map[string]any{
				"title":   map[string]any{},
				"content": map[string]any{"fragment_size": 150, "number_of_fragments": 2},
			},
		},
		"track_total_hits": true,
	}
	return s.execute(ctx, body, limit, offset)
}

// SearchFriendPosts restricts the query to the given authors. With a
// query string, relevance is boosted by likes and a recency decay so
// fresh posts from friends rank first. Without one, the friends' posts
// come back newest first.
func (s *Service) SearchFriendPosts(ctx context.Context, query string, authorIDs []string, limit, offset int) (*Result, error) {
	if len(authorIDs) == 0 {
		return &Result{Hits: []Hit{}}, nil
	}

	authorFilter := map[string]any{"terms": map[string]any{"author_id": authorIDs}}

	if query == "" {
		body := map[string]any{
			"query": map[string]any{
				"bool": map[string]any{
					"filter": []any{authorFilter},
				},
			},
			"sort": []any{
				map[string]any{"created_at": map[string]any{"order": "desc"}},
			},
			"track_total_hits": true,
		}
		return s.execute(ctx, body, limit, offset)
	}

	functions := []map[string]any{
		{
			"script_score": map[string]any{
				"script": map[string]any{
					"source": "Math.log1p(doc['likes'].value) * 0.3",
				},
			},
		},
		{
			"gauss": map[string]any{
				"created_at": map[string]any{
					"origin": "now",
					"scale":  "7d",
					"decay":  0.5,
				},
			},
		},
	}

	body := map[string]any{
		"query": map[string]any{
			"function_score": map[string]any{
				"query": map[string]any{
					"bool": map[string]any{
						"must":   []any{multiMatch(query)},
						"filter": []any{authorFilter},
					},
				},
				"functions":  functions,
				"score_mode": "sum",
				"boost_mode": "sum",
			},
		},
		"highlight": map[string]any{
			"fields": map[string]any{
				"title":   map[string]any{},
				"content": map[string]any{"fragment_size": 150, "number_of_fragments": 2},
			},
		},
		"track_total_hits": true,
	}
	return s.execute(ctx, body, limit, offset)
}

func multiMatch(query string) map[string]any {
	return map[string]any{
		"multi_match": map[string]any{
			"query":         query,
			"fields":        []string{"title^5", "content^3", "location^2", "tags^4"},
			"fuzziness":     "AUTO",
			"prefix_length": 2,
		},
	}
}

func engagementFunctions() []map[string]any {
	return []map[string]any{
		{
			"script_score": map[string]any{
				"script": map[string]any{
					"source": "Math.log1p(doc['likes'].value) * 0.5",
				},
			},
		},
		{
			"script_score": map[string]any{
				"script": map[string]any{
					"source": "Math.log1p(doc['comments_count'].value) * 0.3",
				},
			},
		},
	}
}

func (s *Service) execute(ctx context.Context, body map[string]any, limit, offset int) (*Result, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	body["size"] = limit
	body["from"] = offset

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := s.client.es.Search(
		s.client.es.Search.WithContext(ctx),
		s.client.es.Search.WithIndex(s.client.Alias()),
		s.client.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search returned %s: %s", res.Status(), readBody(res.Body))
	}

	var searchResp struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Score     float64             `json:"_score"`
				Source    Document            `json:"_source"`
				Highlight map[string][]string `json:"highlight"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	result := &Result{
		Total: searchResp.Hits.Total.Value,
		Hits:  make([]Hit, 0, len(searchResp.Hits.Hits)),
	}
	for _, h := range searchResp.Hits.Hits {
		result.Hits = append(result.Hits, Hit{
			Document:   h.Source,
			Score:      h.Score,
			Highlights: h.Highlight,
		})
	}
	return result, nil
}
