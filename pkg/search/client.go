package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/davemarrero/learnhub-backend/pkg/config"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
)

// Client wraps the Elasticsearch connection used for course and
// content search.
type Client struct {
	es  *elasticsearch.Client
	cfg config.ElasticsearchConfig
}

// Pinger exposes the health-check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewClient builds the Elasticsearch client and verifies connectivity.
func NewClient(ctx context.Context, cfg config.ElasticsearchConfig, logg *logger.Logger) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("elasticsearch addresses are required")
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}

	client := &Client{es: es, cfg: cfg}
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("elasticsearch health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "elasticsearch client initialized")
	}

	return client, nil
}

// CourseIndex returns the configured course index name.
func (c *Client) CourseIndex() string {
	return c.cfg.CourseIndex
}

// ContentIndex returns the configured content index name.
func (c *Client) ContentIndex() string {
	return c.cfg.ContentIndex
}

// Ping verifies the cluster responds.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.es == nil {
		return errors.New("elasticsearch client not initialized")
	}
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping returned %s", res.Status())
	}
	return nil
}

// Index upserts a single document under the given index and id.
func (c *Client) Index(ctx context.Context, index, id string, doc any) error {
	if c == nil || c.es == nil {
		return errors.New("elasticsearch client not initialized")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal search document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       bytes.NewReader(raw),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index document: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("index document %s/%s: %s", index, id, responseError(res))
	}
	return nil
}

// Delete removes a document; a missing document is not an error.
func (c *Client) Delete(ctx context.Context, index, id string) error {
	if c == nil || c.es == nil {
		return errors.New("elasticsearch client not initialized")
	}
	req := esapi.DeleteRequest{Index: index, DocumentID: id}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete document %s/%s: %s", index, id, responseError(res))
	}
	return nil
}

// Search runs the provided query body against the index and returns
// the raw hits.
func (c *Client) Search(ctx context.Context, index string, query map[string]any) ([]json.RawMessage, error) {
	if c == nil || c.es == nil {
		return nil, errors.New("elasticsearch client not initialized")
	}
	raw, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("marshal search query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(raw)),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", index, responseError(res))
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	sources := make([]json.RawMessage, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		sources = append(sources, hit.Source)
	}
	return sources, nil
}

func responseError(res *esapi.Response) string {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return res.Status()
	}
	return fmt.Sprintf("%s: %s", res.Status(), msg)
}
