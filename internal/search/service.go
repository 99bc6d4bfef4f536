package search

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	pkgerrors "github.com/davemarrero/learnhub-backend/pkg/errors"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
	pkgsearch "github.com/davemarrero/learnhub-backend/pkg/search"
)

// Indexer is the slice of the Elasticsearch client this package uses.
type Indexer interface {
	Index(ctx context.Context, index, id string, doc any) error
	Delete(ctx context.Context, index, id string) error
	Search(ctx context.Context, index string, query map[string]any) ([]json.RawMessage, error)
	CourseIndex() string
	ContentIndex() string
}

var _ Indexer = (*pkgsearch.Client)(nil)

// Service exposes full-text search over courses and content.
type Service interface {
	SearchCourses(ctx context.Context, params CourseQuery) ([]CourseDocument, error)
	SearchContent(ctx context.Context, params ContentQuery) ([]ContentDocument, error)
	DeleteCourse(ctx context.Context, id uuid.UUID) error
	DeleteContent(ctx context.Context, id uuid.UUID) error
}

// CourseQuery carries the course search request.
type CourseQuery struct {
	Query      string
	Category   string
	Difficulty string
	Status     string
	Page       int
	Size       int
}

// ContentQuery carries the content search request.
type ContentQuery struct {
	Query       string
	CourseID    uuid.UUID
	ContentType string
	Page        int
	Size        int
}

type service struct {
	indexer Indexer
	logg    *logger.Logger
}

// NewService wires the search service.
func NewService(indexer Indexer, logg *logger.Logger) (Service, error) {
	if indexer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "search indexer required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{indexer: indexer, logg: logg}, nil
}

const defaultPageSize = 20

func (s *service) SearchCourses(ctx context.Context, params CourseQuery) ([]CourseDocument, error) {
	filters := make([]map[string]any, 0, 3)
	if params.Category != "" {
		filters = append(filters, termFilter("category", params.Category))
	}
	if params.Difficulty != "" {
		filters = append(filters, termFilter("difficulty", params.Difficulty))
	}
	status := params.Status
	if status == "" {
		// Learners only ever search the published catalog.
		status = "published"
	}
	filters = append(filters, termFilter("status", status))

	query := buildQuery(params.Query, []string{"title^3", "description^2", "instructor^2"}, filters, params.Page, params.Size)
	hits, err := s.indexer.Search(ctx, s.indexer.CourseIndex(), query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "search courses")
	}
	return decodeHits[CourseDocument](ctx, s.logg, hits), nil
}

func (s *service) SearchContent(ctx context.Context, params ContentQuery) ([]ContentDocument, error) {
	filters := make([]map[string]any, 0, 2)
	if params.CourseID != uuid.Nil {
		filters = append(filters, termFilter("course_id", params.CourseID.String()))
	}
	if params.ContentType != "" {
		filters = append(filters, termFilter("type", params.ContentType))
	}

	query := buildQuery(params.Query, []string{"title^3", "course_title^2"}, filters, params.Page, params.Size)
	hits, err := s.indexer.Search(ctx, s.indexer.ContentIndex(), query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "search content")
	}
	return decodeHits[ContentDocument](ctx, s.logg, hits), nil
}

func (s *service) DeleteCourse(ctx context.Context, id uuid.UUID) error {
	if err := s.indexer.Delete(ctx, s.indexer.CourseIndex(), id.String()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "delete course document")
	}
	return nil
}

func (s *service) DeleteContent(ctx context.Context, id uuid.UUID) error {
	if err := s.indexer.Delete(ctx, s.indexer.ContentIndex(), id.String()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "delete content document")
	}
	return nil
}

func buildQuery(text string, fields []string, filters []map[string]any, page, size int) map[string]any {
	var match map[string]any
	if text == "" {
		match = map[string]any{"match_all": map[string]any{}}
	} else {
		match = map[string]any{
			"multi_match": map[string]any{
				"query":     text,
				"fields":    fields,
				"type":      "best_fields",
				"fuzziness": "AUTO",
			},
		}
	}

	if size <= 0 || size > 100 {
		size = defaultPageSize
	}
	if page < 1 {
		page = 1
	}

	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must":   []map[string]any{match},
				"filter": filters,
			},
		},
		"from": (page - 1) * size,
		"size": size,
	}
}

func termFilter(field, value string) map[string]any {
	return map[string]any{"term": map[string]any{field: value}}
}

// decodeHits drops documents that fail to decode rather than failing
// the whole page; a single malformed document should not blank search.
func decodeHits[T any](ctx context.Context, logg *logger.Logger, hits []json.RawMessage) []T {
	docs := make([]T, 0, len(hits))
	for _, hit := range hits {
		var doc T
		if err := json.Unmarshal(hit, &doc); err != nil {
			logg.Error(ctx, "decode search hit", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}
