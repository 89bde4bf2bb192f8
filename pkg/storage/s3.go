package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// FolderExports is the key prefix for transcript exports.
const FolderExports = "exports"

const defaultPresignExpire = 15 * time.Minute

// S3Config holds S3 client configuration. Empty credentials fall back to the
// default AWS chain (env, shared config, instance role).
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ExportsBucket        string
	PresignExpireMinutes int
	// Endpoint targets an S3-compatible store such as MinIO; it implies path-style addressing.
	Endpoint string
}

// Object describes an upload. DownloadName becomes the Content-Disposition filename.
type Object struct {
	Key          string
	ContentType  string
	DownloadName string
	Metadata     map[string]string
}

// S3 uploads exports and signs download links for them.
type S3 struct {
	presign  *s3.PresignClient
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client for the exports bucket.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ExportsBucket == "" {
		return nil, fmt.Errorf("s3: exports bucket not set")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Info("s3 export archive ready",
		zap.String("region", cfg.Region),
		zap.String("bucket", cfg.ExportsBucket),
		zap.String("endpoint", cfg.Endpoint),
		zap.Bool("static_credentials", cfg.AccessKeyID != ""))
	return &S3{
		presign:  s3.NewPresignClient(client),
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// ExportKey returns the object key for a session export:
// exports/{session_id}/{unix_seconds}.txt.
func ExportKey(sessionID string, at time.Time) string {
	return path.Join(FolderExports, sessionID, fmt.Sprintf("%d.txt", at.Unix()))
}

// PresignExpire returns how long signed links stay valid.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return defaultPresignExpire
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// Upload streams body into the exports bucket.
func (s *S3) Upload(ctx context.Context, obj Object, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, putInput(s.cfg.ExportsBucket, obj, body))
	if err != nil {
		return fmt.Errorf("upload %s: %w", obj.Key, err)
	}
	s.logger.Debug("export uploaded", zap.String("key", obj.Key))
	return nil
}

// PresignedDownloadURL returns a signed GET URL for key.
func (s *S3) PresignedDownloadURL(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.ExportsBucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.PresignExpire()))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

func putInput(bucket string, obj Object, body io.Reader) *s3.PutObjectInput {
	in := &s3.PutObjectInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(obj.Key),
		Body:     body,
		Metadata: obj.Metadata,
	}
	if obj.ContentType != "" {
		in.ContentType = aws.String(obj.ContentType)
	}
	if obj.DownloadName != "" {
		in.ContentDisposition = aws.String(mime.FormatMediaType("attachment", map[string]string{"filename": obj.DownloadName}))
	}
	return in
}
