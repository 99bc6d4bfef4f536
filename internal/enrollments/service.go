package enrollments

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	pkgerrors "github.com/davemarrero/learnhub-backend/pkg/errors"
)

// Service manages course enrollments and answers access checks for
// streaming and realtime subscriptions.
type Service interface {
	Enroll(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error)
	Unenroll(ctx context.Context, userID, courseID uuid.UUID) error
	IsEnrolled(ctx context.Context, userID, courseID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error)
	ListUserIDsByCourse(ctx context.Context, courseID uuid.UUID) ([]uuid.UUID, error)
}

type service struct {
	repo Repository
}

// NewService wires enrollment dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "enrollments repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Enroll(ctx context.Context, userID, courseID uuid.UUID) (*models.Enrollment, error) {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user and course ids required")
	}

	row := &models.Enrollment{UserID: userID, CourseID: courseID}
	if err := s.repo.Create(ctx, row); err != nil {
		if isUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "already enrolled")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create enrollment")
	}
	return row, nil
}

func (s *service) Unenroll(ctx context.Context, userID, courseID uuid.UUID) error {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user and course ids required")
	}
	affected, err := s.repo.Delete(ctx, userID, courseID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete enrollment")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "enrollment not found")
	}
	return nil
}

func (s *service) IsEnrolled(ctx context.Context, userID, courseID uuid.UUID) (bool, error) {
	if userID == uuid.Nil || courseID == uuid.Nil {
		return false, nil
	}
	exists, err := s.repo.Exists(ctx, userID, courseID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check enrollment")
	}
	return exists, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Enrollment, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list enrollments")
	}
	return rows, nil
}

func (s *service) ListUserIDsByCourse(ctx context.Context, courseID uuid.UUID) ([]uuid.UUID, error) {
	if courseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "course id required")
	}
	ids, err := s.repo.ListUserIDsByCourse(ctx, courseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list enrolled users")
	}
	return ids, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
