// Package publish makes a finished image available: launch permission for
// other accounts, and its id written to S3 for downstream consumers.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dwsmith1983/amipatch/internal/metrics"
)

var imageIDPattern = regexp.MustCompile(`(?i)^ami-\w+$`)

// EC2API is the subset of the EC2 client used to share images.
type EC2API interface {
	ModifyImageAttribute(ctx context.Context, params *ec2.ModifyImageAttributeInput, optFns ...func(*ec2.Options)) (*ec2.ModifyImageAttributeOutput, error)
}

// S3API is the subset of the S3 client used to record image ids.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher shares images and records their ids. Its methods report the
// result as a line of text for the operator report and never fail.
type Publisher struct {
	ec2    EC2API
	s3     S3API
	logger *slog.Logger
}

// New creates a Publisher.
func New(ec2Client EC2API, s3Client S3API, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{ec2: ec2Client, s3: s3Client, logger: logger}
}

// ValidImageID reports whether id looks like an AMI id.
func ValidImageID(id string) bool {
	return imageIDPattern.MatchString(id)
}

// Share grants launch permission on imageID to every account in one call.
func (p *Publisher) Share(ctx context.Context, imageID string, accounts []string) string {
	if !ValidImageID(imageID) {
		p.logger.Error("AMI not shared: no AMI id", "imageId", imageID)
		return "AMI not shared: [No AMI ID]"
	}
	if len(accounts) == 0 {
		p.logger.Warn("AMI not shared: no accounts configured", "imageId", imageID)
		return "AMI not shared: [No accounts configured]"
	}

	_, err := p.ec2.ModifyImageAttribute(ctx, &ec2.ModifyImageAttributeInput{
		ImageId:       aws.String(imageID),
		Attribute:     aws.String("launchPermission"),
		OperationType: ec2types.OperationTypeAdd,
		UserIds:       accounts,
	})
	if err != nil {
		metrics.PublishFailures.Add(1)
		p.logger.Error("AMI not shared", "imageId", imageID, "error", err)
		return fmt.Sprintf("AMI not shared: %v", err)
	}

	p.logger.Info("AMI shared", "imageId", imageID, "accounts", accounts)
	return fmt.Sprintf("AMI [%s] shared with accounts: %v", imageID, accounts)
}

// ObjectKey returns the key imageID is written under. A key ending in "/"
// is treated as a folder and gets "<imageID>.txt" appended.
func ObjectKey(key, imageID string) string {
	if strings.HasSuffix(key, "/") {
		return key + imageID + ".txt"
	}
	return key
}

// Store writes imageID as the body of an object in bucket.
func (p *Publisher) Store(ctx context.Context, imageID, bucket, key string) string {
	if !ValidImageID(imageID) {
		p.logger.Error("AMI id not written to S3: no AMI id", "imageId", imageID)
		return "AMI ID not written to S3: [No AMI ID]"
	}

	key = ObjectKey(key, imageID)
	_, err := p.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(imageID),
		ContentType: aws.String("text/plain"),
		ACL:         s3types.ObjectCannedACLBucketOwnerFullControl,
	})
	if err != nil {
		metrics.PublishFailures.Add(1)
		p.logger.Error("AMI id not written to S3", "imageId", imageID, "bucket", bucket, "key", key, "error", err)
		return fmt.Sprintf("AMI ID not written to S3: %v", err)
	}

	p.logger.Info("AMI id written to S3", "imageId", imageID, "bucket", bucket, "key", key)
	return fmt.Sprintf("AMI ID [%s] written to s3://%s/%s", imageID, bucket, key)
}
