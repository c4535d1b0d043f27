package mediasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/treehillstudio/filedownload/code/go/fdl.net/core/common"
	"github.com/treehillstudio/filedownload/code/go/fdl.net/fdlcore/config"
)

// S3 serves files from an S3 or S3-compatible bucket. Object keys mirror the
// canonical paths, directories are modelled with the "/" delimiter.
type S3 struct {
	client    *s3.Client
	bucket    string
	region    string
	endpoint  string
	keyPrefix string
	excludes  map[string]bool
}

// NewS3 builds the client from static credentials and an optional custom
// endpoint (path-style for MinIO and friends). The bucket must already exist.
func NewS3(ctx context.Context, cfg config.Config) (*S3, error) {
	opts := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}
	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, common.NewErrorf("s3_config", "%v", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	excludes := make(map[string]bool, len(cfg.ExcludeScan))
	for _, name := range cfg.ExcludeScan {
		if name = strings.TrimSpace(name); name != "" {
			excludes[name] = true
		}
	}

	return &S3{
		client:    client,
		bucket:    cfg.S3Bucket,
		region:    cfg.S3Region,
		endpoint:  strings.TrimSuffix(cfg.S3Endpoint, "/"),
		keyPrefix: strings.Trim(cfg.S3KeyPrefix, "/"),
		excludes:  excludes,
	}, nil
}

func (s *S3) Caps() Capabilities {
	return Capabilities{
		CanObjectURL: true,
		CanList:      true,
		CanFileSize:  true,
		CanContents:  true,
		CanCreate:    true,
		CanRemove:    true,
	}
}

func (s *S3) Separator() string {
	return "/"
}

func (s *S3) Canonicalize(p string) (string, error) {
	norm := strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	for _, seg := range strings.Split(norm, "/") {
		if seg == ".." {
			return "", common.NewErrorf("invalid_path", "cannot resolve %v", p)
		}
	}
	cleaned := path.Clean("/" + norm)
	if strings.HasSuffix(p, "/") && cleaned != "/" {
		cleaned += "/"
	}
	return cleaned, nil
}

func (s *S3) key(p string) string {
	p = strings.TrimPrefix(p, "/")
	if s.keyPrefix == "" {
		return p
	}
	return s.keyPrefix + "/" + p
}

func (s *S3) List(ctx context.Context, dir string) ([]FileInfo, error) {
	prefix := s.key(dir)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var out []FileInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, common.NewErrorf("dir_open", "listing %v: %v", dir, err)
		}
		for _, cp := range page.CommonPrefixes {
			full := aws.ToString(cp.Prefix)
			name := path.Base(strings.TrimSuffix(full, "/"))
			if s.excludes[name] {
				continue
			}
			out = append(out, FileInfo{
				Name:     name,
				FullPath: "/" + strings.TrimPrefix(full, s.keyPrefixSlash()),
				IsDir:    true,
			})
		}
		for _, obj := range page.Contents {
			full := aws.ToString(obj.Key)
			if full == prefix {
				continue
			}
			name := path.Base(full)
			if s.excludes[name] {
				continue
			}
			out = append(out, FileInfo{
				Name:     name,
				FullPath: "/" + strings.TrimPrefix(full, s.keyPrefixSlash()),
				Size:     aws.ToInt64(obj.Size),
				ModTime:  aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}

func (s *S3) keyPrefixSlash() string {
	if s.keyPrefix == "" {
		return ""
	}
	return s.keyPrefix + "/"
}

func (s *S3) Stat(ctx context.Context, p string) (*FileInfo, error) {
	if strings.HasSuffix(p, "/") {
		return &FileInfo{Name: path.Base(strings.TrimSuffix(p, "/")), FullPath: p, IsDir: true}, nil
	}
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.NewErrorf("stat_failed", "%v", err)
	}
	return &FileInfo{
		Name:     path.Base(p),
		FullPath: p,
		Size:     aws.ToInt64(head.ContentLength),
		ModTime:  aws.ToTime(head.LastModified),
	}, nil
}

// spoolFile is a downloaded object parked on local disk. Close removes it.
type spoolFile struct {
	*os.File
	path string
}

func (f *spoolFile) Close() error {
	err := f.File.Close()
	os.Remove(f.path)
	return err
}

func (s *S3) OpenForRead(ctx context.Context, p string) (io.ReadCloser, int64, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, 0, common.ErrNotFound
		}
		return nil, 0, common.NewErrorf("file_open", "%v", err)
	}
	defer result.Body.Close()

	spoolPath := filepath.Join(os.TempDir(), "fdlspool-"+uuid.New().String())
	f, err := os.OpenFile(spoolPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return nil, 0, common.NewErrorf("file_open", "spooling: %v", err)
	}
	size, err := io.Copy(f, result.Body)
	if err != nil {
		f.Close()
		os.Remove(spoolPath)
		return nil, 0, common.NewErrorf("file_open", "spooling: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(spoolPath)
		return nil, 0, common.NewErrorf("file_open", "spooling: %v", err)
	}
	return &spoolFile{File: f, path: spoolPath}, size, nil
}

func (s *S3) Write(ctx context.Context, p string, r io.Reader) error {
	key := s.key(p)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return common.NewError("file_exists", "destination already exists")
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return common.NewErrorf("file_write", "%v", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return common.NewErrorf("file_write", "%v", err)
	}
	return nil
}

func (s *S3) Delete(ctx context.Context, p string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(p)),
	})
	if err != nil {
		return common.NewErrorf("file_delete", "%v", err)
	}
	return nil
}

func (s *S3) ObjectURL(p string) (string, error) {
	key := s.key(p)
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key), nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}
