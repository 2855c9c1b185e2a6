package upload

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ethpandaops/testoor/pkg/config"
	"github.com/sirupsen/logrus"
)

// defaultKeyPrefix roots run artifacts in the bucket when the config
// does not set one.
const defaultKeyPrefix = "testoor/runs"

// s3Uploader implements Uploader for S3-compatible storage.
type s3Uploader struct {
	log    logrus.FieldLogger
	cfg    *config.UploadConfig
	client *s3.Client
}

var _ Uploader = (*s3Uploader)(nil)

// NewS3Uploader creates an uploader from the given configuration.
func NewS3Uploader(
	log logrus.FieldLogger,
	cfg *config.UploadConfig,
) (Uploader, error) {
	return &s3Uploader{
		log:    log.WithField("component", "s3-uploader"),
		cfg:    cfg,
		client: s3.New(s3.Options{}, s3Options(cfg)),
	}, nil
}

// s3Options maps the upload config onto SDK client options. Static
// credentials and a custom endpoint cover S3-compatible stores like
// MinIO; everything left unset falls through to the SDK defaults.
func s3Options(cfg *config.UploadConfig) func(*s3.Options) {
	return func(o *s3.Options) {
		o.Region = cfg.Region
		if o.Region == "" {
			o.Region = "us-east-1"
		}

		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}

		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}

		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, "",
			)
		}
	}
}

// Preflight verifies S3 connectivity by writing a small test object.
func (u *s3Uploader) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("testoor write test: %s", time.Now().UTC().Format(time.RFC3339))

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(".testoor-write-test"),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("writing test object to s3://%s: %w", u.cfg.Bucket, err)
	}

	return nil
}

// Upload walks resultsDir and uploads every file, keyed under the run
// ID so consecutive runs never overwrite each other's artifacts.
func (u *s3Uploader) Upload(ctx context.Context, resultsDir, runID string) error {
	prefix := u.runPrefix(runID)

	var count int

	err := filepath.WalkDir(resultsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(resultsDir, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}

		key := prefix + "/" + filepath.ToSlash(rel)

		if err := u.putFile(ctx, path, key); err != nil {
			return fmt.Errorf("uploading %s: %w", rel, err)
		}

		count++

		return nil
	})
	if err != nil {
		return fmt.Errorf("walking results directory %s: %w", resultsDir, err)
	}

	u.log.WithFields(logrus.Fields{
		"files":  count,
		"run_id": runID,
		"bucket": u.cfg.Bucket,
		"prefix": prefix,
	}).Info("Run artifacts uploaded")

	return nil
}

// putFile uploads a single artifact.
func (u *s3Uploader) putFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer func() { _ = f.Close() }()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentTypeFor(localPath)),
	}

	if u.cfg.StorageClass != "" {
		input.StorageClass = s3types.StorageClass(u.cfg.StorageClass)
	}

	if u.cfg.ACL != "" {
		input.ACL = s3types.ObjectCannedACL(u.cfg.ACL)
	}

	u.log.WithField("key", key).Debug("Uploading artifact")

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("PutObject: %w", err)
	}

	return nil
}

// runPrefix builds the object key prefix for one run.
func (u *s3Uploader) runPrefix(runID string) string {
	prefix := u.cfg.Prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	return strings.TrimRight(prefix, "/") + "/" + runID
}

// contentTypeFor picks a MIME type for an artifact. Test logs get a
// fixed type: host mime tables disagree on ".log" and the artifacts
// are plain text by construction.
func contentTypeFor(path string) string {
	switch ext := filepath.Ext(path); ext {
	case "":
		return "application/octet-stream"
	case ".log":
		return "text/plain; charset=utf-8"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}

		return "application/octet-stream"
	}
}
