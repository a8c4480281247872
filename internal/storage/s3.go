package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"
)

// ObjectPutter is the subset of the S3 API used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader copies issued certificates and reports to an S3 bucket.
type Uploader struct {
	client      ObjectPutter
	bucket      string
	concurrency int
	logger      *slog.Logger
}

// NewS3Uploader loads the AWS credential chain (environment, profile, IAM
// role) and returns an uploader for bucket.
func NewS3Uploader(ctx context.Context, region, bucket string, concurrency int, logger *slog.Logger) (*Uploader, error) {
	opts := []func(*config.LoadOptions) error{config.WithRetryMaxAttempts(3)}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewUploader(s3.NewFromConfig(cfg), bucket, concurrency, logger), nil
}

// NewUploader wraps an existing client.
func NewUploader(client ObjectPutter, bucket string, concurrency int, logger *slog.Logger) *Uploader {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{client: client, bucket: bucket, concurrency: concurrency, logger: logger}
}

// UploadFile puts a single local file under key.
func (u *Uploader) UploadFile(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          io.Reader(file),
		ContentLength: aws.Int64(info.Size()),
	}
	if ct := mime.TypeByExtension(filepath.Ext(localPath)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s to s3://%s/%s: %w", localPath, u.bucket, key, err)
	}
	return nil
}

// UploadDir uploads every regular file below dir whose extension is in
// exts (all files when exts is empty), keyed as prefix/relative/path.
// It returns the number of files uploaded. A missing dir uploads nothing.
func (u *Uploader) UploadDir(ctx context.Context, dir, prefix string, exts ...string) (int, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		u.logger.Info("Nothing to upload.", "dir", dir)
		return 0, nil
	}

	var files []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !matchExt(p, exts) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for _, p := range files {
		p := p
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return 0, err
		}
		key := path.Join(prefix, filepath.ToSlash(rel))
		g.Go(func() error {
			if err := u.UploadFile(gctx, p, key); err != nil {
				return err
			}
			u.logger.Debug("Uploaded file.", "bucket", u.bucket, "key", key)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	u.logger.Info("Upload completed.", "bucket", u.bucket, "prefix", prefix, "files", len(files))
	return len(files), nil
}

func matchExt(p string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(p))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
