package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/google/uuid"

	"github.com/vortexplay/arena-server/repositories"
	"github.com/vortexplay/arena-server/storage"
)

// EvidenceService attaches uploaded files to disputes. Objects land in
// storage under disputes/<dispute-id>/<random>.<ext>, and the key is
// appended to the dispute's evidence list.
type EvidenceService interface {
	Upload(ctx context.Context, disputeID, actorUserID int, filename, contentType string, r io.Reader) (string, error)
	PublicURL(key string) string
}

type evidenceService struct {
	disputeRepo repositories.DisputeRepository
	uploader    storage.FileUploader
	logger      *slog.Logger
}

func NewEvidenceService(disputeRepo repositories.DisputeRepository, uploader storage.FileUploader, logger *slog.Logger) EvidenceService {
	return &evidenceService{
		disputeRepo: disputeRepo,
		uploader:    uploader,
		logger:      logger,
	}
}

func (s *evidenceService) Upload(ctx context.Context, disputeID, actorUserID int, filename, contentType string, r io.Reader) (string, error) {
	// The uploader is optional wiring; without it the endpoint degrades to a
	// typed error instead of accepting files it has nowhere to put.
	if s.uploader == nil {
		return "", ErrStorageDisabled
	}

	dispute, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repositories.ErrDisputeNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if dispute.ReporterID != actorUserID {
		return "", ErrForbidden
	}

	key := fmt.Sprintf("disputes/%d/%s%s", disputeID, uuid.NewString(), path.Ext(filename))
	result, err := s.uploader.Upload(ctx, key, contentType, r)
	if err != nil {
		return "", fmt.Errorf("failed to store evidence for dispute %d: %w", disputeID, err)
	}

	if err := s.disputeRepo.AddEvidence(ctx, disputeID, result.Key); err != nil {
		// The object is orphaned if the row update fails; drop it again.
		if delErr := s.uploader.Delete(ctx, result.Key); delErr != nil {
			s.logger.Error("failed to clean up orphaned evidence object",
				slog.String("key", result.Key),
				slog.Any("error", delErr))
		}
		return "", err
	}

	s.logger.Info("evidence attached",
		slog.Int("dispute_id", disputeID),
		slog.String("key", result.Key))
	return result.Key, nil
}

func (s *evidenceService) PublicURL(key string) string {
	if s.uploader == nil {
		return ""
	}
	return s.uploader.GetPublicURL(key)
}
