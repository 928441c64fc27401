// Package image picks the base AMI that the next patch build starts from.
package image

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/dwsmith1983/amipatch/pkg/types"
)

// EC2API is the subset of the EC2 client used by the selector.
type EC2API interface {
	DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
}

// STSAPI is the subset of the STS client used to resolve the owner account.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Selector finds the most recent image matching a name pattern, falling back
// to a fixed image id.
type Selector struct {
	ec2     EC2API
	sts     STSAPI
	pattern string
	// fallback is looked up by exact id when the pattern matches nothing.
	fallback string
	logger   *slog.Logger
}

// NewSelector creates a Selector. An empty pattern skips the name lookup; an
// empty fallback disables the fallback.
func NewSelector(ec2Client EC2API, stsClient STSAPI, pattern, fallback string, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		ec2:      ec2Client,
		sts:      stsClient,
		pattern:  pattern,
		fallback: fallback,
		logger:   logger,
	}
}

// Select returns the base image to patch. ok is false when neither the
// pattern nor the fallback yields an image; that is a normal outcome.
func (s *Selector) Select(ctx context.Context) (img types.Image, ok bool, err error) {
	s.logger.Info("selecting base image", "pattern", s.pattern, "defaultAmiId", s.fallback)

	if s.pattern != "" {
		img, ok, err = s.latestMatching(ctx)
		if err != nil {
			return types.Image{}, false, err
		}
		if ok {
			return img, true, nil
		}
	}

	if s.fallback == "" {
		s.logger.Error("neither matching images nor DEFAULT_AMI_ID found")
		return types.Image{}, false, nil
	}

	s.logger.Info("no matching images, checking DEFAULT_AMI_ID", "defaultAmiId", s.fallback)
	out, err := s.ec2.DescribeImages(ctx, &ec2.DescribeImagesInput{
		ImageIds: []string{s.fallback},
	})
	if err != nil || out == nil || len(out.Images) == 0 {
		s.logger.Error("DEFAULT_AMI_ID can not be found", "defaultAmiId", s.fallback, "error", err)
		return types.Image{}, false, nil
	}
	return fromEC2(out.Images[0]), true, nil
}

// latestMatching lists images owned by the caller's account whose name
// matches the pattern and returns the newest one.
func (s *Selector) latestMatching(ctx context.Context) (types.Image, bool, error) {
	ident, err := s.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return types.Image{}, false, fmt.Errorf("resolving account: %w", err)
	}
	account := aws.ToString(ident.Account)
	s.logger.Info("account resolved", "arn", aws.ToString(ident.Arn))

	var images []types.Image
	p := ec2.NewDescribeImagesPaginator(s.ec2, &ec2.DescribeImagesInput{
		Owners: []string{account},
		Filters: []ec2types.Filter{
			{
				Name:   aws.String("name"),
				Values: []string{s.pattern},
			},
		},
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return types.Image{}, false, fmt.Errorf("describing images: %w", err)
		}
		for _, im := range page.Images {
			images = append(images, fromEC2(im))
		}
	}

	if len(images) == 0 {
		return types.Image{}, false, nil
	}

	img := Latest(images)
	s.logger.Info("image picked for updating",
		"candidates", len(images), "name", img.Name, "imageId", img.ID)
	return img, true, nil
}

// Latest returns the image with the greatest CreationDate. EC2 creation
// dates are fixed-width ISO-8601 UTC, so string order is time order.
// images must be non-empty.
func Latest(images []types.Image) types.Image {
	sorted := make([]types.Image, len(images))
	copy(sorted, images)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreationDate < sorted[j].CreationDate
	})
	return sorted[len(sorted)-1]
}

func fromEC2(im ec2types.Image) types.Image {
	return types.Image{
		ID:           aws.ToString(im.ImageId),
		Name:         aws.ToString(im.Name),
		CreationDate: aws.ToString(im.CreationDate),
	}
}
