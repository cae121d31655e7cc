// Package clients holds the object storage gateway and the HTTP helpers the
// core consumes. Storage is S3-compatible; everything is addressed by bucket
// key and handed out as short-lived signed URLs.
package clients

import (
	"bytes"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// ObjectStore is the storage gateway contract consumed by the worker and the
// lifecycle service.
type ObjectStore interface {
	PresignGet(key string, expiry time.Duration) (string, error)
	PresignPut(key, contentType string, expiry time.Duration) (string, error)
	Put(key string, body []byte, contentType string) error
}

type S3Store struct {
	s3     *s3.S3
	bucket string
}

type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

func NewS3Store(opts S3Options) (*S3Store, error) {
	cfg := aws.NewConfig().WithRegion(opts.Region)
	if opts.Endpoint != "" {
		// S3-compatible store (MinIO etc) needs path-style addressing.
		cfg = cfg.WithEndpoint(opts.Endpoint).WithS3ForcePathStyle(true)
	}
	if opts.AccessKey != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, ""))
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}
	return &S3Store{s3: s3.New(sess), bucket: opts.Bucket}, nil
}

func (c *S3Store) PresignGet(key string, expiry time.Duration) (string, error) {
	req, _ := c.s3.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	return req.Presign(expiry)
}

func (c *S3Store) PresignPut(key, contentType string, expiry time.Duration) (string, error) {
	req, _ := c.s3.PutObjectRequest(&s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	return req.Presign(expiry)
}

func (c *S3Store) Put(key string, body []byte, contentType string) error {
	_, err := c.s3.PutObject(&s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %q: %w", key, err)
	}
	return nil
}
