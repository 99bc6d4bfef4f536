package notes

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	pkgerrors "github.com/davemarrero/learnhub-backend/pkg/errors"
)

// Service manages a student's private lesson notes.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.Note, error)
	ListByContent(ctx context.Context, userID, contentID uuid.UUID) ([]models.Note, error)
	Update(ctx context.Context, userID, noteID uuid.UUID, body string) (*models.Note, error)
	Delete(ctx context.Context, userID, noteID uuid.UUID) error
}

// CreateParams describes a new note pinned to a moment in a lesson.
type CreateParams struct {
	UserID           uuid.UUID
	ContentID        uuid.UUID
	Body             string
	TimestampSeconds float64
}

type service struct {
	repo Repository
}

// NewService wires note dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notes repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, params CreateParams) (*models.Note, error) {
	if params.UserID == uuid.Nil || params.ContentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user and content ids required")
	}
	if params.Body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "note body required")
	}
	if params.TimestampSeconds < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "timestamp cannot be negative")
	}

	note := &models.Note{
		UserID:           params.UserID,
		ContentID:        params.ContentID,
		Body:             params.Body,
		TimestampSeconds: params.TimestampSeconds,
	}
	if err := s.repo.Create(ctx, note); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create note")
	}
	return note, nil
}

func (s *service) ListByContent(ctx context.Context, userID, contentID uuid.UUID) ([]models.Note, error) {
	if userID == uuid.Nil || contentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user and content ids required")
	}
	notes, err := s.repo.ListByContent(ctx, userID, contentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notes")
	}
	return notes, nil
}

func (s *service) Update(ctx context.Context, userID, noteID uuid.UUID, body string) (*models.Note, error) {
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "note body required")
	}
	note, err := s.ownedNote(ctx, userID, noteID)
	if err != nil {
		return nil, err
	}
	note.Body = body
	if err := s.repo.Update(ctx, note); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update note")
	}
	return note, nil
}

func (s *service) Delete(ctx context.Context, userID, noteID uuid.UUID) error {
	note, err := s.ownedNote(ctx, userID, noteID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, note.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete note")
	}
	return nil
}

func (s *service) ownedNote(ctx context.Context, userID, noteID uuid.UUID) (*models.Note, error) {
	if userID == uuid.Nil || noteID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user and note ids required")
	}
	note, err := s.repo.GetByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "note not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get note")
	}
	if note.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "note belongs to another user")
	}
	return note, nil
}
