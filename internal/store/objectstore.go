package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/claudio-seo/claudio/internal/logging"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	recordObject = "record.json"
	docxObject   = "report.docx"
	xlsxObject   = "tasks.xlsx"

	docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ObjectStoreConfig captures configuration for the S3-compatible audit store.
type ObjectStoreConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	Prefix    string
	UseSSL    bool
	PathStyle bool
}

// ObjectStore keeps each audit under <prefix>/<id>/ as record.json plus its documents.
type ObjectStore struct {
	client *minio.Client
	cfg    ObjectStoreConfig
}

// ResolveEndpoint accepts host[:port] or a full http(s) URL and returns the bare
// endpoint together with the TLS setting implied by the scheme.
func ResolveEndpoint(raw string, defaultSSL bool) (string, bool, error) {
	endpoint := strings.TrimSpace(raw)
	useSSL := defaultSSL
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return "", false, fmt.Errorf("object store: parse endpoint %q: %w", raw, err)
		}
		switch strings.ToLower(parsed.Scheme) {
		case "http":
			useSSL = false
		case "https":
			useSSL = true
		default:
			return "", false, fmt.Errorf("object store: unsupported scheme %q (only http and https are allowed)", parsed.Scheme)
		}
		if parsed.Host == "" {
			return "", false, fmt.Errorf("object store: endpoint %q is missing host information", raw)
		}
		endpoint = parsed.Host
	}
	return strings.TrimRight(endpoint, "/"), useSSL, nil
}

// NewObjectStore initializes an object storage backed audit store.
func NewObjectStore(cfg ObjectStoreConfig) (*ObjectStore, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.AccessKey = strings.TrimSpace(cfg.AccessKey)
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")

	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object store: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store: bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("object store: access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("object store: secret key is required")
	}

	options := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.PathStyle {
		options.BucketLookup = minio.BucketLookupPath
	}
	client, err := minio.New(cfg.Endpoint, options)
	if err != nil {
		return nil, fmt.Errorf("object store: create client: %w", err)
	}
	return &ObjectStore{client: client, cfg: cfg}, nil
}

// EnsureBucket creates the target bucket when missing.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("object store: check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err = s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
		return fmt.Errorf("object store: create bucket: %w", err)
	}
	return nil
}

// Save uploads the documents first and the record last, so a listed record
// always has its documents in place.
func (s *ObjectStore) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("object store: record id is required")
	}
	if err := s.putObject(ctx, s.key(rec.ID, docxObject), rec.ReportDocx, docxContentType); err != nil {
		return err
	}
	if err := s.putObject(ctx, s.key(rec.ID, xlsxObject), rec.TasksXlsx, xlsxContentType); err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("object store: marshal record: %w", err)
	}
	return s.putObject(ctx, s.key(rec.ID, recordObject), payload, "application/json")
}

// Get downloads the record with id and its documents.
func (s *ObjectStore) Get(ctx context.Context, id string) (*Record, error) {
	if strings.ContainsAny(id, "/\\") || id == "" {
		return nil, ErrNotFound
	}
	payload, err := s.getObject(ctx, s.key(id, recordObject))
	if err != nil {
		return nil, err
	}
	rec := &Record{}
	if err = json.Unmarshal(payload, rec); err != nil {
		return nil, fmt.Errorf("object store: decode record %s: %w", id, err)
	}
	if rec.ReportDocx, err = s.optionalObject(ctx, s.key(id, docxObject)); err != nil {
		return nil, err
	}
	if rec.TasksXlsx, err = s.optionalObject(ctx, s.key(id, xlsxObject)); err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns summaries newest first.
func (s *ObjectStore) List(ctx context.Context, limit int) ([]Summary, error) {
	prefix := s.cfg.Prefix
	if prefix != "" {
		prefix += "/"
	}
	var out []Summary
	for object := range s.client.ListObjects(ctx, s.cfg.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("object store: list objects: %w", object.Err)
		}
		if !strings.HasSuffix(object.Key, "/"+recordObject) {
			continue
		}
		payload, err := s.getObject(ctx, object.Key)
		if err != nil {
			logging.WithContext(ctx).WithError(err).Warnf("object store: skip %s", object.Key)
			continue
		}
		rec := &Record{}
		if err = json.Unmarshal(payload, rec); err != nil {
			logging.WithContext(ctx).WithError(err).Warnf("object store: skip malformed %s", object.Key)
			continue
		}
		sum := rec.Summarize()
		sum.HasTasks = rec.Type == "full"
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ObjectStore) putObject(ctx context.Context, key string, data []byte, contentType string) error {
	if len(data) == 0 {
		return nil
	}
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("object store: put object %s: %w", key, err)
	}
	return nil
}

func (s *ObjectStore) getObject(ctx context.Context, key string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		if isObjectNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("object store: fetch %s: %w", key, err)
	}
	defer func() { _ = object.Close() }()
	data, err := io.ReadAll(object)
	if err != nil {
		if isObjectNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("object store: read %s: %w", key, err)
	}
	return data, nil
}

func (s *ObjectStore) optionalObject(ctx context.Context, key string) ([]byte, error) {
	data, err := s.getObject(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return data, err
}

func (s *ObjectStore) key(id, name string) string {
	key := id + "/" + name
	if s.cfg.Prefix == "" {
		return key
	}
	return s.cfg.Prefix + "/" + key
}

func isObjectNotFound(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound {
		return true
	}
	switch resp.Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return true
	}
	return false
}
