package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Options agrupa la configuración de un bucket S3 o compatible (MinIO).
type S3Options struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// S3Storage guarda imágenes en un bucket y devuelve su URL pública.
type S3Storage struct {
	client  objectAPI
	bucket  string
	baseURL string
}

func NewS3Storage(ctx context.Context, opts S3Options) (*S3Storage, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Storage(client, opts), nil
}

func newS3Storage(client objectAPI, opts S3Options) *S3Storage {
	baseURL := strings.TrimRight(opts.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = "s3://" + opts.Bucket
	}
	return &S3Storage{client: client, bucket: opts.Bucket, baseURL: baseURL}
}

func (s *S3Storage) Save(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	// El SDK necesita un cuerpo con Seek para calcular el checksum sin TLS.
	if _, ok := body.(io.ReadSeeker); !ok {
		buf, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		body = bytes.NewReader(buf)
	}
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(clean),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", err
	}
	return s.baseURL + "/" + clean, nil
}

func (s *S3Storage) Delete(ctx context.Context, ref string) error {
	if !strings.HasPrefix(ref, s.baseURL+"/") {
		return ErrInvalidKey
	}
	key := strings.TrimPrefix(ref, s.baseURL+"/")
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}
