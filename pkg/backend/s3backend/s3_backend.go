// Package s3backend adapts an S3 bucket to the backend.Backend interface,
// so it can sit behind the multiplexer next to any other backend.
package s3backend

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/zerkella/blobmux/pkg/backend"
	"github.com/zerkella/blobmux/pkg/blob"
	"github.com/zerkella/blobmux/pkg/util"
)

func convertS3Error(err error) error {
	if err == nil {
		return nil
	}
	if awsErr, ok := err.(awserr.Error); ok {
		switch awsErr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return status.Errorf(codes.NotFound, awsErr.Message())
		}
	}
	return err
}

// Backend stores blobs as objects in a single S3 bucket, keyed by
// keyPrefix+key.
type Backend struct {
	s3         *s3.S3
	uploader   *s3manager.Uploader
	bucketName *string
	keyPrefix  string
}

// NewSession builds an AWS session for the given region, optionally
// pointed at a non-AWS S3-compatible endpoint (for local development
// against minio or similar).
func NewSession(region, endpointURL string) (*session.Session, error) {
	cfg := aws.NewConfig()
	if region != "" {
		cfg = cfg.WithRegion(region)
	}
	if endpointURL != "" {
		cfg = cfg.WithEndpoint(endpointURL).WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, util.StatusWrap(err, "s3: new session")
	}
	return sess, nil
}

// New creates a Backend over bucketName using sess, an AWS session
// configured the way every other client of this module's caller already
// configures one (region, credentials, endpoint overrides for testing
// against a local S3-compatible server).
func New(sess *session.Session, bucketName, keyPrefix string) *Backend {
	return &Backend{
		s3:         s3.New(sess),
		uploader:   s3manager.NewUploader(sess),
		bucketName: aws.String(bucketName),
		keyPrefix:  keyPrefix,
	}
}

func (b *Backend) objectKey(key string) *string {
	return aws.String(b.keyPrefix + key)
}

// Get implements backend.Backend.
func (b *Backend) Get(ctx context.Context, key string) (blob.GetData, bool, error) {
	result, err := b.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: b.bucketName,
		Key:    b.objectKey(key),
	})
	if err != nil {
		err = convertS3Error(err)
		if status.Code(err) == codes.NotFound {
			return blob.GetData{}, false, nil
		}
		return blob.GetData{}, false, util.StatusWrap(err, "s3 get")
	}
	defer result.Body.Close()
	data, err := io.ReadAll(result.Body)
	if err != nil {
		return blob.GetData{}, false, util.StatusWrap(err, "s3 get: read body")
	}
	if result.LastModified != nil {
		return blob.NewGetDataWithCTime(data, *result.LastModified), true, nil
	}
	return blob.NewGetData(data), true, nil
}

// Put implements backend.Backend.
func (b *Backend) Put(ctx context.Context, key string, value blob.Blob) error {
	_, err := b.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: b.bucketName,
		Key:    b.objectKey(key),
		Body:   bytes.NewReader(value),
	})
	if err != nil {
		return util.StatusWrap(convertS3Error(err), "s3 put")
	}
	return nil
}

// IsPresent implements backend.Backend.
func (b *Backend) IsPresent(ctx context.Context, key string) (bool, error) {
	_, err := b.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: b.bucketName,
		Key:    b.objectKey(key),
	})
	if err != nil {
		err = convertS3Error(err)
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, util.StatusWrap(err, "s3 head")
	}
	return true, nil
}

var _ backend.Backend = (*Backend)(nil)
