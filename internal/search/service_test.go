package search

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/davemarrero/learnhub-backend/pkg/errors"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
)

type stubIndexer struct {
	hits     []json.RawMessage
	err      error
	gotIndex string
	gotQuery map[string]any
	deleted  []string
}

func (s *stubIndexer) Index(context.Context, string, string, any) error { return nil }

func (s *stubIndexer) Delete(_ context.Context, index, id string) error {
	s.deleted = append(s.deleted, index+"/"+id)
	return s.err
}

func (s *stubIndexer) Search(_ context.Context, index string, query map[string]any) ([]json.RawMessage, error) {
	s.gotIndex = index
	s.gotQuery = query
	return s.hits, s.err
}

func (s *stubIndexer) CourseIndex() string  { return "learnhub-courses" }
func (s *stubIndexer) ContentIndex() string { return "learnhub-content" }

func newSearchService(t *testing.T, indexer Indexer) Service {
	t.Helper()
	svc, err := NewService(indexer, logger.New(logger.Options{ServiceName: "test"}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func queryBool(t *testing.T, query map[string]any) map[string]any {
	t.Helper()
	outer, ok := query["query"].(map[string]any)
	if !ok {
		t.Fatalf("missing query clause: %v", query)
	}
	boolClause, ok := outer["bool"].(map[string]any)
	if !ok {
		t.Fatalf("missing bool clause: %v", outer)
	}
	return boolClause
}

func TestSearchCoursesBuildsFuzzyQuery(t *testing.T) {
	indexer := &stubIndexer{}
	svc := newSearchService(t, indexer)

	_, err := svc.SearchCourses(context.Background(), CourseQuery{Query: "golang", Category: "programming"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if indexer.gotIndex != "learnhub-courses" {
		t.Fatalf("wrong index %q", indexer.gotIndex)
	}

	boolClause := queryBool(t, indexer.gotQuery)
	must := boolClause["must"].([]map[string]any)
	multi := must[0]["multi_match"].(map[string]any)
	if multi["query"] != "golang" || multi["fuzziness"] != "AUTO" {
		t.Fatalf("unexpected multi_match: %v", multi)
	}

	filters := boolClause["filter"].([]map[string]any)
	if len(filters) != 2 {
		t.Fatalf("expected category + status filters, got %v", filters)
	}
	statusTerm := filters[1]["term"].(map[string]any)
	if statusTerm["status"] != "published" {
		t.Fatalf("status filter must default to published: %v", statusTerm)
	}
}

func TestSearchCoursesEmptyQueryMatchesAll(t *testing.T) {
	indexer := &stubIndexer{}
	svc := newSearchService(t, indexer)

	if _, err := svc.SearchCourses(context.Background(), CourseQuery{}); err != nil {
		t.Fatalf("search: %v", err)
	}
	must := queryBool(t, indexer.gotQuery)["must"].([]map[string]any)
	if _, ok := must[0]["match_all"]; !ok {
		t.Fatalf("empty query must fall back to match_all: %v", must[0])
	}
}

func TestSearchPagingClamps(t *testing.T) {
	indexer := &stubIndexer{}
	svc := newSearchService(t, indexer)

	if _, err := svc.SearchContent(context.Background(), ContentQuery{Page: 3, Size: 500}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if indexer.gotQuery["size"] != 20 {
		t.Fatalf("oversized page must clamp to default, got %v", indexer.gotQuery["size"])
	}
	if indexer.gotQuery["from"] != 40 {
		t.Fatalf("from = %v, want 40", indexer.gotQuery["from"])
	}
}

func TestSearchContentScopesToCourse(t *testing.T) {
	indexer := &stubIndexer{}
	svc := newSearchService(t, indexer)
	courseID := uuid.New()

	if _, err := svc.SearchContent(context.Background(), ContentQuery{CourseID: courseID, ContentType: "video"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	filters := queryBool(t, indexer.gotQuery)["filter"].([]map[string]any)
	if len(filters) != 2 {
		t.Fatalf("expected course + type filters, got %v", filters)
	}
	courseTerm := filters[0]["term"].(map[string]any)
	if courseTerm["course_id"] != courseID.String() {
		t.Fatalf("course filter missing: %v", courseTerm)
	}
}

func TestSearchDropsMalformedHits(t *testing.T) {
	good, _ := json.Marshal(CourseDocument{ID: uuid.New().String(), Title: "Go Basics"})
	indexer := &stubIndexer{hits: []json.RawMessage{good, json.RawMessage(`{"title": 42}`)}}
	svc := newSearchService(t, indexer)

	docs, err := svc.SearchCourses(context.Background(), CourseQuery{Query: "go"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(docs) != 1 || docs[0].Title != "Go Basics" {
		t.Fatalf("malformed hit should be dropped, got %v", docs)
	}
}

func TestSearchUpstreamErrorSurfaces(t *testing.T) {
	indexer := &stubIndexer{err: errors.New("cluster red")}
	svc := newSearchService(t, indexer)

	_, err := svc.SearchCourses(context.Background(), CourseQuery{Query: "go"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestDeleteRoutesToRightIndex(t *testing.T) {
	indexer := &stubIndexer{}
	svc := newSearchService(t, indexer)
	id := uuid.New()

	if err := svc.DeleteCourse(context.Background(), id); err != nil {
		t.Fatalf("delete course: %v", err)
	}
	if err := svc.DeleteContent(context.Background(), id); err != nil {
		t.Fatalf("delete content: %v", err)
	}
	if indexer.deleted[0] != "learnhub-courses/"+id.String() || indexer.deleted[1] != "learnhub-content/"+id.String() {
		t.Fatalf("unexpected deletes: %v", indexer.deleted)
	}
}
