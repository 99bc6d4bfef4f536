package content

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davemarrero/learnhub-backend/pkg/db/models"
	dbtypes "github.com/davemarrero/learnhub-backend/pkg/db/types"
	"github.com/davemarrero/learnhub-backend/pkg/enums"
	pkgerrors "github.com/davemarrero/learnhub-backend/pkg/errors"
)

// Service owns the content metadata lifecycle: creation at upload
// time, the processing-status transitions driven by the worker, and
// the published rendition set the playback endpoints read.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.CourseContent, error)
	Get(ctx context.Context, id uuid.UUID) (*models.CourseContent, error)
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]models.CourseContent, error)
	Delete(ctx context.Context, id uuid.UUID) error
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	PublishProcessingResult(ctx context.Context, id uuid.UUID, result ProcessingResult) error
	MarkProcessingFailed(ctx context.Context, id uuid.UUID, reason string) error
	SetPreviewURL(ctx context.Context, id uuid.UUID, previewURL string) error
}

type service struct {
	repo Repository
}

// CreateParams describes a new lesson artifact.
type CreateParams struct {
	CourseID    uuid.UUID
	Title       string
	ContentType enums.ContentType
	FileURL     string
	FileSize    int64
	Position    int
}

// ProcessingResult is the worker's publish payload: the complete
// rendition set plus probe metadata for one finished transcode run.
type ProcessingResult struct {
	ProcessedURLs map[string]string
	ThumbnailURL  string
	PreviewURL    string
	VideoMetadata *dbtypes.VideoMetadata
}

// NewService wires content dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "content repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, params CreateParams) (*models.CourseContent, error) {
	if params.CourseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "course id required")
	}
	if params.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if !params.ContentType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid content type")
	}
	if params.FileURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file url required")
	}

	row := &models.CourseContent{
		CourseID:    params.CourseID,
		Title:       params.Title,
		ContentType: params.ContentType,
		FileURL:     params.FileURL,
		FileSize:    params.FileSize,
		Position:    params.Position,
	}
	if params.ContentType == enums.ContentTypeVideo {
		row.Meta = dbtypes.ContentMeta{ProcessingStatus: enums.ProcessingStatusPending.String()}
	}

	if err := s.repo.Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create content")
	}
	return row, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.CourseContent, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content id required")
	}
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "content not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "get content")
	}
	return row, nil
}

func (s *service) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]models.CourseContent, error) {
	if courseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "course id required")
	}
	rows, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list contents")
	}
	return rows, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "content id required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete content")
	}
	return nil
}

func (s *service) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "content id required")
	}
	return s.replaceMeta(ctx, id, dbtypes.ContentMeta{
		ProcessingStatus: enums.ProcessingStatusProcessing.String(),
	})
}

// PublishProcessingResult atomically replaces the metadata blob with
// the finished rendition set. Re-running a publish (retried task,
// duplicate delivery) lands the same terminal state.
func (s *service) PublishProcessingResult(ctx context.Context, id uuid.UUID, result ProcessingResult) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "content id required")
	}
	if len(result.ProcessedURLs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "processed urls required")
	}
	return s.replaceMeta(ctx, id, dbtypes.ContentMeta{
		ProcessedURLs:    result.ProcessedURLs,
		ThumbnailURL:     result.ThumbnailURL,
		PreviewURL:       result.PreviewURL,
		VideoMetadata:    result.VideoMetadata,
		ProcessingStatus: enums.ProcessingStatusCompleted.String(),
	})
}

func (s *service) MarkProcessingFailed(ctx context.Context, id uuid.UUID, reason string) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "content id required")
	}
	return s.replaceMeta(ctx, id, dbtypes.ContentMeta{
		ProcessingStatus: enums.ProcessingStatusFailed.String(),
		ProcessingError:  reason,
	})
}

// SetPreviewURL rewrites the metadata blob with the preview attached.
// The preview job runs after the main publish, so read-modify-write
// here races only with a concurrent re-publish, which wins anyway.
func (s *service) SetPreviewURL(ctx context.Context, id uuid.UUID, previewURL string) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "content id required")
	}
	if previewURL == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "preview url required")
	}
	row, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	meta := row.Meta
	meta.PreviewURL = previewURL
	return s.replaceMeta(ctx, id, meta)
}

func (s *service) replaceMeta(ctx context.Context, id uuid.UUID, meta dbtypes.ContentMeta) error {
	affected, err := s.repo.ReplaceMeta(ctx, id, meta)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update content metadata")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "content not found")
	}
	return nil
}
