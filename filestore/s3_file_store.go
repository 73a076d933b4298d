package filestore

import (
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

const (
	DevS3Bucket     = "plateful-dev-media"
	ProdS3Bucket    = "plateful-media"
	defaultS3Region = "us-west-1"
)

type S3FileStore struct {
	bucket    string
	urlPrefix string
	uploader  *s3manager.Uploader
}

// NewS3FileStore builds a store writing to the given bucket. urlPrefix is
// the CDN or bucket prefix public urls are built from.
func NewS3FileStore(bucket string, urlPrefix string) (*S3FileStore, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = defaultS3Region
	}
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, err
	}

	return &S3FileStore{
		bucket:    bucket,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/") + "/",
		uploader:  s3manager.NewUploader(sess),
	}, nil
}

func (s *S3FileStore) Upload(path string, body io.Reader, contentType string) (string, error) {
	_, err := s.uploader.Upload(&s3manager.UploadInput{
		ACL:         aws.String("public-read"),
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(path),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

func (s *S3FileStore) GetUrlFromKey(key string) string {
	return s.urlPrefix + key
}
