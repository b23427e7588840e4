package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/imamik/ekstack/internal/controlplane"
)

// ObserveBucket implements controlplane.CloudAPI.
func (c *Client) ObserveBucket(ctx context.Context, name string) (controlplane.ResourceObservation, error) {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: awssdk.String(name),
	})
	if err != nil {
		return controlplane.ResourceObservation{
			Kind: "bucket", ID: name, Status: controlplane.StatusNotFound,
		}, classify("observe bucket", err)
	}
	return controlplane.ResourceObservation{
		Kind:   "bucket",
		ID:     name,
		Exists: true,
		Status: controlplane.StatusActive,
	}, nil
}

// CreateBucket implements controlplane.CloudAPI. BucketAlreadyOwnedByYou
// classifies as a conflict (success for the caller); BucketAlreadyExists
// means the global name is taken by another account and stays fatal.
func (c *Client) CreateBucket(ctx context.Context, name string) error {
	c.logger.Info("creating bucket", "name", name)
	input := &s3.CreateBucketInput{
		Bucket: awssdk.String(name),
	}
	// us-east-1 rejects an explicit location constraint.
	if c.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(c.region),
		}
	}
	_, err := c.s3.CreateBucket(ctx, input)
	return classify("create bucket", err)
}
