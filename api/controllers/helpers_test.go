package controllers

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/davemarrero/learnhub-backend/api/middleware"
	"github.com/davemarrero/learnhub-backend/internal/content"
	"github.com/davemarrero/learnhub-backend/internal/courses"
	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	pkgerrors "github.com/davemarrero/learnhub-backend/pkg/errors"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx, ok := req.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || routeCtx == nil {
		routeCtx = chi.NewRouteContext()
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	}
	routeCtx.URLParams.Add(key, value)
	return req
}

func asActor(req *http.Request, userID uuid.UUID, role string) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, role)
	return req.WithContext(ctx)
}

type stubContentService struct {
	createFn func(ctx context.Context, params content.CreateParams) (*models.CourseContent, error)
	getFn    func(ctx context.Context, id uuid.UUID) (*models.CourseContent, error)
	listFn   func(ctx context.Context, courseID uuid.UUID) ([]models.CourseContent, error)
	deleteFn func(ctx context.Context, id uuid.UUID) error
}

func (s *stubContentService) Create(ctx context.Context, params content.CreateParams) (*models.CourseContent, error) {
	if s.createFn != nil {
		return s.createFn(ctx, params)
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "create not stubbed")
}

func (s *stubContentService) Get(ctx context.Context, id uuid.UUID) (*models.CourseContent, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "content not found")
}

func (s *stubContentService) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]models.CourseContent, error) {
	if s.listFn != nil {
		return s.listFn(ctx, courseID)
	}
	return nil, nil
}

func (s *stubContentService) Delete(ctx context.Context, id uuid.UUID) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, id)
	}
	return nil
}

func (s *stubContentService) MarkProcessing(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubContentService) PublishProcessingResult(ctx context.Context, id uuid.UUID, result content.ProcessingResult) error {
	return nil
}

func (s *stubContentService) MarkProcessingFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return nil
}

func (s *stubContentService) SetPreviewURL(ctx context.Context, id uuid.UUID, previewURL string) error {
	return nil
}

type stubCourseService struct {
	getFn func(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

func (s *stubCourseService) Get(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "course not found")
}

func (s *stubCourseService) Create(ctx context.Context, params courses.CreateParams) (*models.Course, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "create not stubbed")
}

func (s *stubCourseService) GetWithContents(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	return s.Get(ctx, id)
}

func (s *stubCourseService) List(ctx context.Context, params courses.ListParams) (*courses.ListResult, error) {
	return &courses.ListResult{}, nil
}

func (s *stubCourseService) Update(ctx context.Context, id uuid.UUID, params courses.UpdateParams) (*models.Course, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "update not stubbed")
}

func (s *stubCourseService) Publish(ctx context.Context, id, instructorID uuid.UUID) error {
	return nil
}

func (s *stubCourseService) Archive(ctx context.Context, id, instructorID uuid.UUID) error {
	return nil
}

func (s *stubCourseService) Delete(ctx context.Context, id, instructorID uuid.UUID) error {
	return nil
}

type stubEnrollService struct {
	isEnrolledFn func(ctx context.Context, userID, courseID uuid.UUID) (bool, error)
}

func (s *stubEnrollService) IsEnrolled(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	if s.isEnrolledFn != nil {
		return s.isEnrolledFn(ctx, userID, courseID)
	}
	return false, nil
}

func (s *stubEnrollService) Enroll(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "enroll not stubbed")
}

func (s *stubEnrollService) Unenroll(ctx context.Context, userID, courseID uuid.UUID) error {
	return nil
}

func (s *stubEnrollService) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error) {
	return nil, nil
}

func (s *stubEnrollService) ListUserIDsByCourse(ctx context.Context, courseID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}
