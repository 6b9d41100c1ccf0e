// Package s3 presigns avatar uploads against an S3-compatible bucket.
package s3

import (
	"context"
	"fmt"
	"strings"
	"time"

	"darim/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var _ domain.AvatarStorage = (*AvatarStore)(nil)

const uploadExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
)

// Options locate the bucket. Endpoint and the static keys are optional; when
// the keys are empty the default AWS credential chain applies.
type Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// PublicURL is the base under which uploaded objects are served.
	PublicURL string
}

// AvatarStore hands out presigned PUT URLs for avatar images.
type AvatarStore struct {
	presign   *s3.PresignClient
	bucket    string
	publicURL string
	now       func() time.Time
}

// New builds the S3 client once.
func New(ctx context.Context, opts Options) (*AvatarStore, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := opts.PublicURL
	if publicURL == "" {
		publicURL = defaultPublicURL(opts)
	}
	return &AvatarStore{
		presign:   s3.NewPresignClient(client),
		bucket:    opts.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}, nil
}

func defaultPublicURL(opts Options) string {
	if opts.Endpoint != "" {
		return strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
}

func avatarKey(userID int64) string {
	return fmt.Sprintf("avatars/%d/%s", userID, uuid.NewString())
}

// PresignAvatarUpload returns a PUT URL for a fresh object key and the URL the
// object will be served from.
func (a *AvatarStore) PresignAvatarUpload(ctx context.Context, userID int64) (*domain.AvatarUpload, error) {
	key := avatarKey(userID)
	req, err := presignPutObject(a.presign, ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(uploadExpiry))
	if err != nil {
		return nil, fmt.Errorf("presign put %s: %w", key, err)
	}
	return &domain.AvatarUpload{
		UploadURL: req.URL,
		AvatarURL: a.publicURL + "/" + key,
		ExpiresAt: a.now().Add(uploadExpiry).UTC(),
	}, nil
}
