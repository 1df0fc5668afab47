package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// etagMetaKey 是对象 metadata 中保存上游 ETag 的键；S3 自身的 ETag 是内容摘要，不能混用。
const etagMetaKey = "upstream-etag"

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// s3Store 把条目保存为 <prefix>/<registry>/<path>.body 对象。
type s3Store struct {
	bucket   string
	prefix   string
	client   s3API
	uploader s3Uploader
}

// NewS3Store 使用默认 AWS 凭证链连接 bucket，并在启动时做一次访问检查。
func NewS3Store(ctx context.Context, bucket, prefix string) (Store, error) {
	if bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(options *s3.Options) {
		options.DisableLogOutputChecksumValidationSkipped = true
	})
	if _, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(1),
	}); err != nil {
		return nil, fmt.Errorf("access s3 bucket %s: %w", bucket, err)
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.Concurrency = 4
		u.LeavePartsOnError = false
	})
	return newS3Store(bucket, prefix, client, uploader), nil
}

func newS3Store(bucket, prefix string, client s3API, uploader s3Uploader) *s3Store {
	return &s3Store{
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		client:   client,
		uploader: uploader,
	}
}

func (s *s3Store) Get(ctx context.Context, locator Locator) (*ReadResult, error) {
	key, err := s.objectKey(locator)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get s3 object %s: %w", key, err)
	}

	entry := Entry{
		Locator:  locator,
		FilePath: "s3://" + s.bucket + "/" + key,
		ETag:     out.Metadata[etagMetaKey],
	}
	if out.ContentLength != nil {
		entry.SizeBytes = *out.ContentLength
	}
	if out.LastModified != nil {
		entry.ModTime = *out.LastModified
	}
	return &ReadResult{Entry: entry, Reader: out.Body}, nil
}

func (s *s3Store) Put(ctx context.Context, locator Locator, body io.Reader, opts PutOptions) (*Entry, error) {
	key, err := s.objectKey(locator)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	modTime := opts.ModTime
	if modTime.IsZero() {
		modTime = time.Now().UTC()
	}
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata: map[string]string{
			etagMetaKey: opts.ETag,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload s3 object %s: %w", key, err)
	}

	return &Entry{
		Locator:   locator,
		FilePath:  "s3://" + s.bucket + "/" + key,
		SizeBytes: int64(len(data)),
		ModTime:   modTime,
		ETag:      opts.ETag,
	}, nil
}

func (s *s3Store) Remove(ctx context.Context, locator Locator) error {
	key, err := s.objectKey(locator)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil && !isS3NotFound(err) {
		return fmt.Errorf("delete s3 object %s: %w", key, err)
	}
	return nil
}

func (s *s3Store) objectKey(locator Locator) (string, error) {
	if locator.Registry == "" {
		return "", errors.New("registry name required")
	}
	rel := strings.TrimPrefix(path.Clean("/"+locator.Path), "/")
	if rel == "" {
		rel = "root"
	}
	key := path.Join(locator.Registry, rel) + bodySuffix
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}
	return key, nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
