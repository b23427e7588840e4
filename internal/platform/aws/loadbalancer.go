package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"

	"github.com/imamik/ekstack/internal/controlplane"
)

// ObserveLoadBalancers implements controlplane.CloudAPI.
func (c *Client) ObserveLoadBalancers(ctx context.Context) ([]controlplane.LoadBalancerObservation, error) {
	var observations []controlplane.LoadBalancerObservation

	paginator := elbv2.NewDescribeLoadBalancersPaginator(c.elb, &elbv2.DescribeLoadBalancersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify("observe load balancers", err)
		}
		for _, lb := range page.LoadBalancers {
			obs := controlplane.LoadBalancerObservation{
				ARN:  str(lb.LoadBalancerArn),
				Name: str(lb.LoadBalancerName),
			}
			if lb.State != nil {
				obs.State = string(lb.State.Code)
			}
			for _, az := range lb.AvailabilityZones {
				obs.Subnets = append(obs.Subnets, str(az.SubnetId))
			}
			observations = append(observations, obs)
		}
	}
	return observations, nil
}

// DeleteLoadBalancer implements controlplane.CloudAPI.
func (c *Client) DeleteLoadBalancer(ctx context.Context, arn string) error {
	c.logger.Info("deleting load balancer", "arn", arn)
	_, err := c.elb.DeleteLoadBalancer(ctx, &elbv2.DeleteLoadBalancerInput{
		LoadBalancerArn: awssdk.String(arn),
	})
	return classify("delete load balancer", err)
}
