// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

// Package storage uploads visitor photos and generated gate passes to
// S3-compatible object storage. Objects are keyed
// {folder}/{timestamp}_{sanitized-name} so repeated uploads for the
// same visitor never collide.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nktu/gatekeeper/internal/config"
	"github.com/nktu/gatekeeper/internal/logging"
	"github.com/nktu/gatekeeper/internal/metrics"
)

// Client wraps the S3 client with bucket and URL configuration.
type Client struct {
	mc            *minio.Client
	bucket        string
	publicBaseURL string
	useSSL        bool
	endpoint      string
}

// New creates an object storage client. It does not touch the network;
// call EnsureBucket during startup to verify connectivity.
func New(cfg *config.StorageConfig) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &Client{
		mc:            mc,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		useSSL:        cfg.UseSSL,
		endpoint:      cfg.Endpoint,
	}, nil
}

// EnsureBucket verifies the bucket exists, creating it when missing.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", c.bucket, err)
	}
	if exists {
		return nil
	}

	if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", c.bucket, err)
	}
	logging.Info().Str("bucket", c.bucket).Msg("Created storage bucket")
	return nil
}

// Upload stores data under {folder}/{timestamp}_{sanitized fileName}
// and returns the public URL of the object.
func (c *Client) Upload(ctx context.Context, folder, fileName string, data []byte, contentType string) (string, error) {
	key := BuildObjectKey(folder, fileName, time.Now())

	_, err := c.mc.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	metrics.RecordStorageUpload(folder, int64(len(data)), err)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	logging.Debug().
		Str("key", key).
		Int("size", len(data)).
		Msg("Uploaded object")

	return c.ObjectURL(key), nil
}

// ObjectURL returns the externally reachable URL for an object key.
// PublicBaseURL takes precedence; otherwise the URL is derived from
// the endpoint.
func (c *Client) ObjectURL(key string) string {
	if c.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", c.publicBaseURL, c.bucket, key)
	}
	scheme := "http"
	if c.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, c.endpoint, c.bucket, key)
}

// unsafeKeyChars matches everything that is not safe in an object key.
var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// BuildObjectKey builds the {folder}/{timestamp}_{sanitized-name} key.
// Whitespace and special characters in the name collapse to a single
// underscore.
func BuildObjectKey(folder, fileName string, now time.Time) string {
	sanitized := unsafeKeyChars.ReplaceAllString(strings.TrimSpace(fileName), "_")
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		sanitized = "file"
	}
	return fmt.Sprintf("%s/%d_%s", strings.Trim(folder, "/"), now.UnixMilli(), sanitized)
}
