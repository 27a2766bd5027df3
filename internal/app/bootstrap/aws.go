package bootstrap

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/jconeo117/receptionist-agent/internal/audit"
	appconfig "github.com/jconeo117/receptionist-agent/internal/config"
	"github.com/jconeo117/receptionist-agent/pkg/logging"
)

// LoadAWSConfig builds the SDK config, using static credentials when both
// keys are set and the default chain otherwise.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return config.LoadDefaultConfig(ctx, loaders...)
}

// NewS3Client creates an S3 client. An endpoint override (LocalStack, MinIO)
// switches to path-style addressing.
func NewS3Client(awsCfg aws.Config, endpointOverride string) *s3.Client {
	endpoint := strings.TrimSpace(endpointOverride)
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

// BuildArchiver wires the S3 audit archive. It returns a disabled archiver
// when no bucket is configured or AWS config cannot be loaded.
func BuildArchiver(ctx context.Context, cfg *appconfig.Config, trail audit.Trail, logger *logging.Logger) *audit.Archiver {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || strings.TrimSpace(cfg.AuditArchiveBucket) == "" {
		return audit.NewArchiver(trail, nil, "", logger)
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Warn("audit archive disabled: aws config", "error", err)
		return audit.NewArchiver(trail, nil, "", logger)
	}
	logger.Info("audit archive enabled", "bucket", cfg.AuditArchiveBucket)
	return audit.NewArchiver(trail, NewS3Client(awsCfg, cfg.AWSEndpointOverride), cfg.AuditArchiveBucket, logger)
}
