// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tadagpt/conversation-gateway/pkg/archive"
	"github.com/tadagpt/conversation-gateway/pkg/provider"
)

func init() {
	archive.Providers.Register("s3", func(ctx context.Context, params provider.Params) (archive.Archive, error) {
		bucket, err := params.Require("bucket")
		if err != nil {
			return nil, fmt.Errorf("s3 archive: %w", err)
		}
		return New(ctx, Options{
			Bucket:   bucket,
			Region:   params.String("region", ""),
			Prefix:   params.String("prefix", "transcripts/"),
			Endpoint: params.String("endpoint", ""),
		})
	})
}

// compile-time check
var _ archive.Archive = (*Store)(nil)

// Options configures the S3 backend.
type Options struct {
	Bucket   string // required
	Region   string // e.g. "us-east-1"
	Prefix   string // key prefix, e.g. "transcripts/"
	Endpoint string // custom endpoint for MinIO compatibility
}

// Store keeps transcripts in S3 (or MinIO).
//
// Object layout:
//
//	<prefix><client_id>/<conversation_id>.json
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates an S3-backed Store.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 archive: bucket is required")
	}

	optFns := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Opts := []func(*s3.Options){}
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true // required for MinIO
		})
	}

	return &Store{
		client: s3.NewFromConfig(cfg, s3Opts...),
		bucket: opts.Bucket,
		prefix: opts.Prefix,
	}, nil
}

func (s *Store) key(clientID, conversationID string) (string, error) {
	key, err := archive.Key(clientID, conversationID)
	if err != nil {
		return "", err
	}
	return s.prefix + key, nil
}

func (s *Store) Put(ctx context.Context, t *archive.Transcript) error {
	if err := t.Validate(); err != nil {
		return err
	}
	key, _ := s.key(t.ClientID, t.ConversationID)

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put transcript: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, clientID, conversationID string) (*archive.Transcript, error) {
	key, err := s.key(clientID, conversationID)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("transcript %s: %w", key, archive.ErrNotFound)
		}
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	defer out.Body.Close()

	var t archive.Transcript
	if err := json.NewDecoder(out.Body).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", key, err)
	}
	return &t, nil
}

// Delete removes the transcript object. S3 deletes are idempotent, so
// existence is checked first to report ErrNotFound.
func (s *Store) Delete(ctx context.Context, clientID, conversationID string) error {
	key, err := s.key(clientID, conversationID)
	if err != nil {
		return err
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("transcript %s: %w", key, archive.ErrNotFound)
		}
		return fmt.Errorf("head transcript: %w", err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, clientID string) ([]string, error) {
	if _, err := archive.Key(clientID, "x"); err != nil {
		return nil, err
	}
	prefix := s.prefix + clientID + "/"

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	ids := []string{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if strings.Contains(name, "/") || !strings.HasSuffix(name, ".json") {
				continue
			}
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op for the S3 store.
func (s *Store) Close(_ context.Context) error {
	return nil
}

// isNotFound checks whether the error indicates a missing S3 object.
func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	// Some S3-compatible services return a generic "NotFound" status.
	return strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "NotFound")
}
