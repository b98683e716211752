// Package assets stores uploaded files in S3, gated by the assets quota.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/tileboardhq/tileboard/pkg/identity"
	"github.com/tileboardhq/tileboard/pkg/logger"
	"github.com/tileboardhq/tileboard/pkg/models"
	"github.com/tileboardhq/tileboard/pkg/plans"
	"github.com/tileboardhq/tileboard/pkg/quota"
	"gorm.io/gorm"
)

// ErrNotFound reports a missing asset for the calling subject
var ErrNotFound = errors.New("asset not found")

// LimitError reports a quota denial on upload
type LimitError struct {
	Decision quota.Decision
}

func (e *LimitError) Error() string { return e.Decision.Reason }

// ObjectStore is the slice of the S3 client the service uses
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Service uploads dashboard assets. Member uploads get a durable
// metadata row; guest uploads live only under the guest's key prefix
// and age out with the retention policy on the bucket.
type Service struct {
	db     *gorm.DB
	store  ObjectStore
	bucket string
	gate   *quota.Gate
	logger logger.Logger
}

// NewService creates an asset service
func NewService(db *gorm.DB, store ObjectStore, bucket string, gate *quota.Gate, log logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		db:     db,
		store:  store,
		bucket: bucket,
		gate:   gate,
		logger: log,
	}
}

// Upload stores a file and records it against the subject's asset quota
func (s *Service) Upload(ctx context.Context, id identity.Identity, dashboardID, fileName, contentType string, size int64, body io.Reader) (*models.Asset, error) {
	decision, err := s.gate.CheckLimit(ctx, id, plans.KindAssets)
	if err != nil && !decision.Allowed {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &LimitError{Decision: decision}
	}

	key := s.objectKey(id, fileName)

	_, err = s.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload asset: %w", err)
	}

	asset := &models.Asset{
		ID:          uuid.NewString(),
		UserID:      id.SubjectID(),
		DashboardID: dashboardID,
		Key:         key,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   size,
		CreatedAt:   time.Now(),
	}

	if id.IsMember() {
		if err := s.db.WithContext(ctx).Create(asset).Error; err != nil {
			return nil, fmt.Errorf("failed to record asset: %w", err)
		}
	}

	if err := s.gate.IncrementUsage(ctx, id, plans.KindAssets, 1); err != nil {
		s.logger.Error("failed to record asset usage",
			"subject", id.SubjectID(), "error", err)
	}

	return asset, nil
}

// List returns a member's assets, optionally filtered by dashboard
func (s *Service) List(ctx context.Context, userID, dashboardID string) ([]models.Asset, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if dashboardID != "" {
		q = q.Where("dashboard_id = ?", dashboardID)
	}

	var assets []models.Asset
	if err := q.Order("created_at DESC").Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}

// Delete removes a member's asset from the bucket and the metadata store
func (s *Service) Delete(ctx context.Context, userID, assetID string) error {
	var asset models.Asset
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", assetID, userID).
		First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load asset: %w", err)
	}

	_, err = s.store.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(asset.Key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete asset object: %w", err)
	}

	if err := s.db.WithContext(ctx).Delete(&asset).Error; err != nil {
		return fmt.Errorf("failed to delete asset record: %w", err)
	}
	return nil
}

func (s *Service) objectKey(id identity.Identity, fileName string) string {
	prefix := "members"
	if !id.IsMember() {
		prefix = "guests"
	}
	return path.Join(prefix, id.SubjectID(), uuid.NewString()+"-"+path.Base(fileName))
}
