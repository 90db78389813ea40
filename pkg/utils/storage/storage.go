package storage

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Client wraps the R2 bucket that holds user media: recorded audio
// clips waiting for transcription and profile avatars.
type Client struct {
	s3      *s3.Client
	bucket  string
	cdnBase string
}

type Config struct {
	AccountID string
	AccessKey string
	SecretKey string
	Bucket    string
	CDNBase   string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %v", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
		o.UsePathStyle = true
		o.Region = "auto"
	})

	return &Client{
		s3:      client,
		bucket:  cfg.Bucket,
		cdnBase: strings.TrimSuffix(cfg.CDNBase, "/"),
	}, nil
}

// UploadAudioClip stores a recorded clip under the user's folder and
// returns its public URL.
func (c *Client) UploadAudioClip(ctx context.Context, file *multipart.FileHeader, username string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("could not open file: %v", err)
	}
	defer src.Close()

	key := c.objectKey("users", username, "clips", file.Filename)

	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        src,
		ContentType: aws.String(file.Header.Get("Content-Type")),
	})
	if err != nil {
		return "", fmt.Errorf("could not upload clip: %v", err)
	}

	return c.cdnBase + "/" + key, nil
}

// UploadAvatar stores an already-processed avatar image.
func (c *Client) UploadAvatar(ctx context.Context, data *bytes.Buffer, contentType, username, filename string) (string, error) {
	key := c.objectKey("users", username, "avatar", filename)

	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data.Bytes()),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("could not upload avatar: %v", err)
	}

	return c.cdnBase + "/" + key, nil
}

// Delete removes an object by its public URL.
func (c *Client) Delete(ctx context.Context, fullURL string) error {
	key := strings.TrimPrefix(fullURL, c.cdnBase+"/")

	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("could not delete object: %v", err)
	}
	return nil
}

// objectKey builds a URL-safe path with a collision-free filename.
func (c *Client) objectKey(parts ...string) string {
	filename := parts[len(parts)-1]
	ext := filepath.Ext(filename)
	unique := fmt.Sprintf("%d-%s%s", time.Now().UnixNano(), uuid.New().String(), ext)

	safe := make([]string, 0, len(parts))
	for _, p := range parts[:len(parts)-1] {
		safe = append(safe, slug.Make(p))
	}
	safe = append(safe, unique)
	return strings.Join(safe, "/")
}
