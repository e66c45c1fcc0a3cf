// Package search indexes posts into Elasticsearch and serves queries.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/load28/foodie/internal/config"
)

// Client wraps an Elasticsearch client bound to one index.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// NewClient creates a search client.
func NewClient(cfg config.SearchConfig) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &Client{es: es, index: cfg.Index}, nil
}

// NewClientWithES wraps an existing client. This is primarily used for
// testing.
func NewClientWithES(es *elasticsearch.Client, index string) *Client {
	return &Client{es: es, index: index}
}

// Index returns the index name this client writes to.
func (c *Client) Index() string {
	return c.index
}

// Alias returns the read alias for the index.
func (c *Client) Alias() string {
	return c.index + "_alias"
}

// indexDefinition is the settings and mapping applied at bootstrap.
// Korean text goes through the nori analyzer; the autocomplete field
// carries an edge n-gram analyzer for prefix matching.
var indexDefinition = map[string]any{
	"settings": map[string]any{
		"number_of_shards":   3,
		"number_of_replicas": 1,
		"refresh_interval":   "5s",
		"max_result_window":  10000,
		"analysis": map[string]any{
			"tokenizer": map[string]any{
				"autocomplete_tokenizer": map[string]any{
					"type":        "edge_ngram",
					"min_gram":    2,
					"max_gram":    10,
					"token_chars": []string{"letter", "digit"},
				},
			},
			"analyzer": map[string]any{
				"korean": map[string]any{
					"type":      "custom",
					"tokenizer": "nori_tokenizer",
					"filter":    []string{"lowercase", "nori_part_of_speech"},
				},
				"autocomplete": map[string]any{
					"type":      "custom",
					"tokenizer": "autocomplete_tokenizer",
					"filter":    []string{"lowercase"},
				},
			},
		},
	},
	"mappings": map[string]any{
		"properties": map[string]any{
			"id":        map[string]any{"type": "keyword"},
			"author_id": map[string]any{"type": "keyword"},
			"title": map[string]any{
				"type":     "text",
				"analyzer": "korean",
				"fields": map[string]any{
					"autocomplete": map[string]any{
						"type":            "text",
						"analyzer":        "autocomplete",
						"search_analyzer": "standard",
					},
				},
			},
			"content":  map[string]any{"type": "text", "analyzer": "korean"},
			"location": map[string]any{"type": "text", "analyzer": "korean"},
			"category": map[string]any{"type": "keyword"},
			"tags":     map[string]any{"type": "keyword"},
			"likes":    map[string]any{"type": "integer"},
			"comments_count": map[string]any{
				"type": "integer",
			},
			"created_at": map[string]any{"type": "date"},
		},
	},
}

// EnsureIndex creates the index and its read alias when absent.
// Existing indexes are left untouched.
func (c *Client) EnsureIndex(ctx context.Context) error {
	exists, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer exists.Body.Close()
	if exists.StatusCode == 200 {
		return nil
	}

	body, err := json.Marshal(indexDefinition)
	if err != nil {
		return fmt.Errorf("failed to marshal index definition: %w", err)
	}

	res, err := c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index creation returned %s: %s", res.Status(), readBody(res.Body))
	}

	aliasRes, err := c.es.Indices.PutAlias(
		[]string{c.index},
		c.Alias(),
		c.es.Indices.PutAlias.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create alias: %w", err)
	}
	defer aliasRes.Body.Close()
	if aliasRes.IsError() {
		return fmt.Errorf("alias creation returned %s: %s", aliasRes.Status(), readBody(aliasRes.Body))
	}
	return nil
}

// Ping verifies the cluster is reachable.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping returned %s", res.Status())
	}
	return nil
}

func readBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	return string(data)
}
