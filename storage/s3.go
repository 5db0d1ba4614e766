package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/ruteri/tee-secure-signer/interfaces"
)

// S3Store keeps one private object per key in an S3 or S3-compatible bucket.
type S3Store struct {
	client     *s3.S3
	bucketName string
	prefix     string
	log        *slog.Logger
}

// NewS3Store creates an S3 store. Empty accessKey and secretKey fall back to
// the default AWS credential chain.
func NewS3Store(bucketName, prefix, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Store, error) {
	cfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Store{
		client:     s3.New(sess),
		bucketName: bucketName,
		prefix:     strings.Trim(prefix, "/"),
		log:        log,
	}, nil
}

func (s *S3Store) Get(ctx context.Context, key string) (string, error) {
	objectKey := s.objectKey(key)

	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return "", interfaces.ErrNotFound
		}
		s.log.Error("Failed to get object from S3",
			slog.String("bucket", s.bucketName),
			slog.String("key", objectKey),
			"err", err)
		return "", fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read object body: %w", err)
	}
	return string(data), nil
}

func (s *S3Store) Put(ctx context.Context, key string, value string) error {
	objectKey := s.objectKey(key)

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucketName),
		Key:                  aws.String(objectKey),
		Body:                 strings.NewReader(value),
		ACL:                  aws.String(s3.ObjectCannedACLPrivate),
		ServerSideEncryption: aws.String(s3.ServerSideEncryptionAes256),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object to S3: %w", err)
	}

	s.log.Debug("Stored value in S3", slog.String("bucket", s.bucketName), slog.String("key", objectKey))
	return nil
}

// Delete relies on S3 treating deletion of a missing object as success.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}
	return nil
}

func (s *S3Store) Name() string {
	return fmt.Sprintf("s3-%s", s.bucketName)
}

func (s *S3Store) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}
