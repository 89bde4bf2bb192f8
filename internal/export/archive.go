package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/letsee/debate-backend/internal/models"
	"github.com/letsee/debate-backend/pkg/apperr"
	"github.com/letsee/debate-backend/pkg/storage"
)

var ErrArchiveDisabled = apperr.New(apperr.KindNotFound, "export archive not configured")

// ObjectStore is the subset of *storage.S3 the archive uses.
type ObjectStore interface {
	Upload(ctx context.Context, obj storage.Object, body io.Reader) error
	PresignedDownloadURL(ctx context.Context, key string) (string, error)
}

// Archived describes an uploaded report.
type Archived struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Archive uploads reports and returns presigned download links.
type Archive struct {
	store  ObjectStore
	now    func() time.Time
	logger *zap.Logger
}

// NewArchive creates an archive over store. A nil store yields an archive
// whose Put always fails with ErrArchiveDisabled.
func NewArchive(store ObjectStore, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{store: store, now: time.Now, logger: logger}
}

// Enabled reports whether an object store is configured.
func (a *Archive) Enabled() bool { return a != nil && a.store != nil }

// Put renders s, uploads it and signs a download link.
func (a *Archive) Put(ctx context.Context, s *models.Session) (*Archived, error) {
	if !a.Enabled() {
		return nil, ErrArchiveDisabled
	}
	now := a.now()
	key := storage.ExportKey(s.ID, now)
	body := Report(s) + Stamp(now)
	obj := storage.Object{
		Key:          key,
		ContentType:  ContentType,
		DownloadName: Filename(s.ID),
		Metadata:     map[string]string{"session-id": s.ID, "status": string(s.Status)},
	}
	if err := a.store.Upload(ctx, obj, strings.NewReader(body)); err != nil {
		return nil, fmt.Errorf("archive %s: %w", s.ID, err)
	}
	url, err := a.store.PresignedDownloadURL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", s.ID, err)
	}
	a.logger.Info("report archived", zap.String("session_id", s.ID), zap.String("key", key))
	return &Archived{Key: key, URL: url}, nil
}
