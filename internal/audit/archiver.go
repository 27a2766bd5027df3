package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jconeo117/receptionist-agent/pkg/logging"
)

// S3API is the subset of the S3 client used by Archiver.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ExportResult describes one archive export.
type ExportResult struct {
	Key     string `json:"key"`
	Entries int    `json:"entries"`
}

// Archiver exports security events to S3 as JSON Lines. With no bucket it is a no-op.
type Archiver struct {
	trail    Trail
	bucket   string
	s3Client S3API
	logger   *logging.Logger
}

func NewArchiver(trail Trail, s3Client S3API, bucket string, logger *logging.Logger) *Archiver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Archiver{trail: trail, bucket: bucket, s3Client: s3Client, logger: logger}
}

// Enabled returns true if archival is configured.
func (a *Archiver) Enabled() bool {
	return a != nil && a.bucket != "" && a.s3Client != nil && a.trail != nil
}

// Export writes the security events of [from, to] for tenantID (blank means
// every tenant) to audit/<tenant>/<yyyy>/<mm>/<dd>/<from>-<to>.jsonl.
func (a *Archiver) Export(ctx context.Context, tenantID string, from, to time.Time) (ExportResult, error) {
	if !a.Enabled() {
		return ExportResult{}, nil
	}
	if to.Before(from) {
		return ExportResult{}, fmt.Errorf("audit: export window end %s before start %s", to, from)
	}

	entries, err := a.trail.QuerySecurity(ctx, tenantID, from, to)
	if err != nil {
		return ExportResult{}, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return ExportResult{}, fmt.Errorf("audit: encode entry %s: %w", e.ID, err)
		}
	}

	key := archiveKey(tenantID, from.UTC(), to.UTC())
	_, err = a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return ExportResult{}, fmt.Errorf("audit: s3 put %s: %w", key, err)
	}

	a.logger.Info("exported security audit to S3", "tenant_id", tenantID, "s3_key", key, "entries", len(entries))
	return ExportResult{Key: key, Entries: len(entries)}, nil
}

func archiveKey(tenantID string, from, to time.Time) string {
	tenant := strings.ToLower(strings.TrimSpace(tenantID))
	if tenant == "" {
		tenant = "all"
	}
	const stamp = "20060102T150405Z"
	return fmt.Sprintf("audit/%s/%d/%02d/%02d/%s-%s.jsonl",
		tenant, from.Year(), from.Month(), from.Day(), from.Format(stamp), to.Format(stamp))
}
