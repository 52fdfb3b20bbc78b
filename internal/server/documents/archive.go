// Package documents archives the original uploads behind a report in
// S3-compatible object storage. Objects are sealed with the field cipher
// key before they leave the process.
package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/medreport/internal/common"
	"github.com/google/uuid"
)

// ErrDisabled is returned by constructors when no bucket is configured.
var ErrDisabled = errors.New("documents: archive disabled")

const contentTypeMeta = "original-content-type"

// maxDeleteBatch is the DeleteObjects limit.
const maxDeleteBatch = 1000

// Sealer encrypts and decrypts object bodies.
type Sealer interface {
	SealBytes(data []byte) ([]byte, error)
	OpenBytes(data []byte) ([]byte, error)
}

// objectStore is the subset of *s3.Client used here.
type objectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

var (
	loadAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return config.LoadDefaultConfig(ctx, optFns...)
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Options locate the bucket. BaseEndpoint is set for MinIO and other
// S3-compatible servers and switches to path-style addressing.
type Options struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// Document is a decrypted archived object.
type Document struct {
	Key         string
	ContentType string
	Data        []byte
}

type Archive struct {
	client objectStore
	bucket string
	sealer Sealer
	now    func() time.Time
}

// New connects to the bucket described by opts.
func New(ctx context.Context, opts Options, sealer Sealer) (*Archive, error) {
	if opts.Bucket == "" {
		return nil, ErrDisabled
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := loadAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("documents: load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return newArchive(client, opts.Bucket, sealer), nil
}

func newArchive(client objectStore, bucket string, sealer Sealer) *Archive {
	return &Archive{client: client, bucket: bucket, sealer: sealer, now: time.Now}
}

func userPrefix(userID string) string {
	return "users/" + userID + "/"
}

// NewKey returns users/<userID>/<yyyy>/<mm>/<uuid>.
func (a *Archive) NewKey(userID string) string {
	d := a.now().UTC()
	return fmt.Sprintf("%s%04d/%02d/%s", userPrefix(userID), d.Year(), int(d.Month()), uuid.New())
}

// Put seals data and stores it under a fresh key owned by userID.
func (a *Archive) Put(ctx context.Context, userID string, data []byte, contentType string) (string, error) {
	sealed, err := a.sealer.SealBytes(data)
	if err != nil {
		return "", fmt.Errorf("documents: seal: %w", err)
	}

	key := a.NewKey(userID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
		ContentType:   aws.String("application/octet-stream"),
		Metadata:      map[string]string{contentTypeMeta: contentType},
	})
	if err != nil {
		return "", fmt.Errorf("documents: put %s: %w", key, err)
	}
	return key, nil
}

// Get returns the decrypted object at key. Keys outside userID's prefix
// are reported as common.ErrorNotFound.
func (a *Archive) Get(ctx context.Context, userID, key string) (*Document, error) {
	if !strings.HasPrefix(key, userPrefix(userID)) {
		return nil, common.ErrorNotFound
	}

	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("documents: get %s: %w", key, err)
	}
	defer out.Body.Close()

	sealed, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("documents: read %s: %w", key, err)
	}
	data, err := a.sealer.OpenBytes(sealed)
	if err != nil {
		return nil, fmt.Errorf("documents: open %s: %w", key, err)
	}
	return &Document{Key: key, ContentType: out.Metadata[contentTypeMeta], Data: data}, nil
}

// DeleteUser removes every object under users/<userID>/ and returns how
// many keys were deleted.
func (a *Archive) DeleteUser(ctx context.Context, userID string) (int, error) {
	prefix := userPrefix(userID)
	p := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	})

	deleted := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("documents: list %s: %w", prefix, err)
		}

		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		for len(ids) > 0 {
			n := min(len(ids), maxDeleteBatch)
			out, err := a.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(a.bucket),
				Delete: &types.Delete{Objects: ids[:n], Quiet: aws.Bool(true)},
			})
			if err != nil {
				return deleted, fmt.Errorf("documents: delete under %s: %w", prefix, err)
			}
			deleted += n - len(out.Errors)
			if len(out.Errors) > 0 {
				return deleted, fmt.Errorf("documents: delete under %s: %d objects failed: %s",
					prefix, len(out.Errors), aws.ToString(out.Errors[0].Message))
			}
			ids = ids[n:]
		}
	}
	return deleted, nil
}
