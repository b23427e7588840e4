// Package aws implements the cloud side of the control plane boundary over
// the AWS SDK. All provider errors are classified here before they cross
// upward; callers never inspect raw AWS error text.
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-logr/logr"
)

// Client implements controlplane.CloudAPI using the AWS APIs.
type Client struct {
	cfn    *cloudformation.Client
	ec2    *ec2.Client
	eks    *eks.Client
	elb    *elbv2.Client
	iam    *iam.Client
	s3     *s3.Client
	region string
	logger logr.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the structured logger used for provider calls.
func WithLogger(logger logr.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client bound to one region, resolving credentials
// through the default chain (environment, shared config, instance profile).
func NewClient(ctx context.Context, region string, opts ...ClientOption) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws configuration: %w", err)
	}

	c := &Client{
		cfn:    cloudformation.NewFromConfig(cfg),
		ec2:    ec2.NewFromConfig(cfg),
		eks:    eks.NewFromConfig(cfg),
		elb:    elbv2.NewFromConfig(cfg),
		iam:    iam.NewFromConfig(cfg),
		s3:     s3.NewFromConfig(cfg),
		region: region,
		logger: logr.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func str(s *string) string {
	return awssdk.ToString(s)
}
