package lambda

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/dwsmith1983/amipatch/internal/alert"
	"github.com/dwsmith1983/amipatch/internal/automation"
	"github.com/dwsmith1983/amipatch/internal/image"
	"github.com/dwsmith1983/amipatch/internal/publish"
)

// EC2API is every EC2 call the handler makes, across components.
type EC2API interface {
	image.EC2API
	automation.EC2API
	publish.EC2API
}

// Deps holds the AWS clients shared by every invocation in a container.
// Configuration is not part of Deps; it is read per invocation.
type Deps struct {
	EC2        EC2API
	SSM        automation.SSMAPI
	SNS        alert.SNSAPI
	S3         publish.S3API
	STS        image.STSAPI
	HTTPClient *http.Client
	Logger     *slog.Logger
	// Level is adjusted per invocation from LOG_LEVEL.
	Level *slog.LevelVar
	// Environ supplies the environment in os.Environ form.
	Environ func() []string
}

// Init creates the AWS clients from the default credential chain.
func Init(ctx context.Context) (*Deps, error) {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &Deps{
		EC2:        ec2.NewFromConfig(cfg),
		SSM:        ssm.NewFromConfig(cfg),
		SNS:        sns.NewFromConfig(cfg),
		S3:         s3.NewFromConfig(cfg),
		STS:        sts.NewFromConfig(cfg),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logger,
		Level:      level,
		Environ:    os.Environ,
	}, nil
}

var (
	deps     *Deps
	depsOnce sync.Once
	depsErr  error
)

// GetDeps returns the container-wide Deps, creating them on first use.
func GetDeps() (*Deps, error) {
	depsOnce.Do(func() {
		deps, depsErr = Init(context.Background())
	})
	return deps, depsErr
}
