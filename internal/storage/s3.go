// Package storage archives raw post records to S3-compatible object storage.
package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Saul-Punybz/tweetwatch/internal/config"
	"github.com/Saul-Punybz/tweetwatch/internal/models"
)

// Client wraps an S3-compatible object storage client.
type Client struct {
	s3     *s3.Client
	bucket string
	now    func() time.Time
}

// Archive holds the stored artifacts for one post.
type Archive struct {
	Raw  json.RawMessage `json:"raw"`
	Meta *ArchiveMeta    `json:"meta"`
}

// ArchiveMeta records metadata about an archived post.
type ArchiveMeta struct {
	PostID     string    `json:"post_id"`
	Account    string    `json:"account"`
	URL        string    `json:"url,omitempty"`
	ArchivedAt time.Time `json:"archived_at"`
	RawHash    string    `json:"raw_hash_sha256"`
	RawSize    int       `json:"raw_size"`
}

// NewClient creates a storage client for any S3-compatible endpoint. An
// empty endpoint yields a disabled client whose uploads are no-ops.
func NewClient(ctx context.Context, cfg config.S3Config) (*Client, error) {
	if cfg.Endpoint == "" {
		slog.Warn("S3 endpoint not configured, post archive disabled")
		return &Client{bucket: cfg.Bucket, now: time.Now}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = &cfg.Endpoint
		o.UsePathStyle = true
	})

	return &Client{
		s3:     client,
		bucket: cfg.Bucket,
		now:    time.Now,
	}, nil
}

// Configured returns true if the S3 client has a valid connection configured.
func (c *Client) Configured() bool {
	return c != nil && c.s3 != nil
}

func archivePrefix(account, postID string) string {
	return fmt.Sprintf("posts/%s/%s", account, postID)
}

// ArchivePost uploads the post's raw record (gzipped) and a metadata file.
func (c *Client) ArchivePost(ctx context.Context, p models.Post) error {
	if !c.Configured() {
		slog.Debug("post archive not configured, skipping upload", "post_id", p.ID)
		return nil
	}

	raw, err := json.Marshal(p.Raw)
	if err != nil {
		return fmt.Errorf("storage: marshal raw: %w", err)
	}
	compressed, err := gzipCompress(raw)
	if err != nil {
		return fmt.Errorf("storage: compress raw: %w", err)
	}

	meta := ArchiveMeta{
		PostID:     p.ID,
		Account:    p.Account,
		URL:        p.URL,
		ArchivedAt: c.now().UTC(),
		RawHash:    sha256sum(raw),
		RawSize:    len(raw),
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal meta: %w", err)
	}

	prefix := archivePrefix(p.Account, p.ID)
	uploads := []struct {
		key  string
		body []byte
	}{
		{prefix + "/raw.json.gz", compressed},
		{prefix + "/meta.json", metaJSON},
	}
	for _, u := range uploads {
		key := u.key
		if _, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
			Bucket: &c.bucket,
			Key:    &key,
			Body:   bytes.NewReader(u.body),
		}); err != nil {
			return fmt.Errorf("storage: upload %s: %w", key, err)
		}
		slog.Debug("archive uploaded", "key", key, "size", len(u.body))
	}

	return nil
}

// GetArchive retrieves the archived raw record and metadata for a post.
func (c *Client) GetArchive(ctx context.Context, account, postID string) (*Archive, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("storage: not configured")
	}

	prefix := archivePrefix(account, postID)

	rawData, err := c.getObject(ctx, prefix+"/raw.json.gz")
	if err != nil {
		return nil, err
	}
	raw, err := gzipDecompress(rawData)
	if err != nil {
		return nil, fmt.Errorf("storage: decompress raw: %w", err)
	}

	metaData, err := c.getObject(ctx, prefix+"/meta.json")
	if err != nil {
		return nil, err
	}
	var meta ArchiveMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, fmt.Errorf("storage: unmarshal meta: %w", err)
	}

	return &Archive{Raw: raw, Meta: &meta}, nil
}

func (c *Client) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", key, err)
	}
	return data, nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
