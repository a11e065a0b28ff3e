package s3

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"meme-studio/core"
)

// objectAPI is the part of the S3 client the store uses.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// s3Store keeps images as objects under a key prefix. The delete handle is
// the object key.
type s3Store struct {
	client    objectAPI
	bucket    string
	publicURL string
}

// NewStore creates a new S3-based image store. publicURL is the base the
// objects are reachable at; it defaults to the bucket's virtual-hosted URL.
func NewStore(bucketName, publicURL string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}
	return newStore(s3.NewFromConfig(cfg), bucketName, publicURL)
}

func newStore(client objectAPI, bucketName, publicURL string) *s3Store {
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.amazonaws.com", bucketName)
	}
	return &s3Store{
		client:    client,
		bucket:    bucketName,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

func (s *s3Store) Upload(ctx context.Context, data []byte, title string) (*core.StoredImage, error) {
	contentType, err := core.ValidateStoredImage(data)
	if err != nil {
		return nil, err
	}
	key := "memes/" + strings.ToLower(ulid.Make().String()) + core.ImageExtension(contentType)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %v", err)
	}

	logrus.WithFields(logrus.Fields{"bucket": s.bucket, "key": key}).Info("Image uploaded to S3")
	return &core.StoredImage{URL: s.publicURL + "/" + key, DeleteHandle: key}, nil
}

func (s *s3Store) Delete(ctx context.Context, handle string) error {
	if !strings.HasPrefix(handle, "memes/") {
		return fmt.Errorf("invalid delete handle %q", handle)
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(handle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete image %s: %v", handle, err)
	}
	return nil
}
