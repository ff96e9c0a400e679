package s3store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// DefaultRoleDuration is how long assumed role credentials stay valid.
const DefaultRoleDuration = time.Hour

// Options configures the S3 client used by Store.
type Options struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string

	// AssumeRoleARN, when set, signs with credentials obtained from STS
	// instead of the base credentials.
	AssumeRoleARN string
	RoleDuration  time.Duration

	UsePathStyle bool
}

// NewClient builds an S3 client for AWS or an S3 compatible endpoint.
func NewClient(ctx context.Context, opts Options) (*s3.Client, error) {
	region := opts.Region
	if region == "" {
		region = "auto"
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	if opts.AssumeRoleARN != "" {
		duration := opts.RoleDuration
		if duration <= 0 {
			duration = DefaultRoleDuration
		}
		cfg.Credentials = aws.NewCredentialsCache(&AssumeRoleProvider{
			Client:   sts.NewFromConfig(cfg),
			RoleARN:  opts.AssumeRoleARN,
			Duration: duration,
		})
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
		// R2 and most S3 compatible stores reject the SDK's default checksum headers
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	}), nil
}

// STSAPI is the subset of the STS client used by AssumeRoleProvider.
type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

var _ STSAPI = (*sts.Client)(nil)

// AssumeRoleProvider retrieves short lived credentials for RoleARN.
// Wrap it in aws.NewCredentialsCache so STS is only called on expiry.
type AssumeRoleProvider struct {
	Client   STSAPI
	RoleARN  string
	Duration time.Duration
}

func (p *AssumeRoleProvider) Retrieve(ctx context.Context) (aws.Credentials, error) {
	if p.RoleARN == "" {
		return aws.Credentials{}, errors.New("role ARN cannot be empty")
	}

	sessionName := fmt.Sprintf("sharedrop-session-%d", time.Now().Unix())

	out, err := p.Client.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(p.RoleARN),
		RoleSessionName: aws.String(sessionName),
		DurationSeconds: aws.Int32(int32(p.Duration / time.Second)),
	})
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("failed to assume role %s: %w", p.RoleARN, err)
	}
	if out.Credentials == nil {
		return aws.Credentials{}, fmt.Errorf("assume role %s returned no credentials", p.RoleARN)
	}

	return aws.Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		Source:          "AssumeRoleProvider",
		CanExpire:       true,
		Expires:         aws.ToTime(out.Credentials.Expiration),
	}, nil
}
