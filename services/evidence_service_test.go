package services

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortexplay/arena-server/models"
	"github.com/vortexplay/arena-server/storage"
)

type fakeUploader struct {
	objects map[string]string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{objects: make(map[string]string)}
}

func (u *fakeUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	u.objects[key] = string(data)
	return &storage.UploadResult{Key: key, Location: "https://cdn.example.com/" + key}, nil
}

func (u *fakeUploader) Delete(ctx context.Context, key string) error {
	delete(u.objects, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

func seedDispute(t *testing.T, repo *fakeDisputeRepo, reporterID int) *models.Dispute {
	t.Helper()
	d := &models.Dispute{
		MatchID:     1,
		ReporterID:  reporterID,
		Category:    models.DisputeWrongResult,
		Description: "score was entered backwards",
		Status:      models.DisputePending,
	}
	require.NoError(t, repo.Create(context.Background(), nil, d))
	return d
}

func TestEvidenceUploadAttachesKey(t *testing.T) {
	disputes := newFakeDisputeRepo()
	uploader := newFakeUploader()
	svc := NewEvidenceService(disputes, uploader, testLogger())

	d := seedDispute(t, disputes, 101)

	key, err := svc.Upload(context.Background(), d.ID, 101, "screenshot.png", "image/png", strings.NewReader("pixels"))
	require.NoError(t, err)
	assert.Contains(t, uploader.objects, key)

	stored, err := disputes.GetByID(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{key}, stored.EvidenceKeys)

	_, err = svc.Upload(context.Background(), d.ID, 202, "other.png", "image/png", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrForbidden, "only the reporter may attach evidence")
}

func TestEvidenceUploadWithoutStorageConfigured(t *testing.T) {
	disputes := newFakeDisputeRepo()
	svc := NewEvidenceService(disputes, nil, testLogger())

	d := seedDispute(t, disputes, 101)

	_, err := svc.Upload(context.Background(), d.ID, 101, "screenshot.png", "image/png", strings.NewReader("pixels"))
	assert.ErrorIs(t, err, ErrStorageDisabled)
	assert.Empty(t, svc.PublicURL("disputes/1/whatever.png"))
}
