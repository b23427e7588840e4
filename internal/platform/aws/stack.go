package aws

import (
	"context"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/imamik/ekstack/internal/controlplane"
)

// ObserveStack implements controlplane.CloudAPI. When the stack is in a
// deletion state the member resources still in flight are reported too, so
// the reclamation engine can target its forced cleanup.
func (c *Client) ObserveStack(ctx context.Context, name string) (controlplane.StackObservation, error) {
	out, err := c.cfn.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: awssdk.String(name),
	})
	if err != nil {
		return controlplane.StackObservation{Name: name}, classify("observe stack", err)
	}
	if len(out.Stacks) == 0 {
		return controlplane.StackObservation{Name: name},
			controlplane.NewError(controlplane.ClassNotFound, "observe stack", errStackMissing(name))
	}

	stack := out.Stacks[0]
	obs := controlplane.StackObservation{
		Name:                  name,
		Exists:                true,
		Status:                string(stack.StackStatus),
		TerminationProtection: awssdk.ToBool(stack.EnableTerminationProtection),
		Outputs:               make(map[string]string, len(stack.Outputs)),
	}
	for _, o := range stack.Outputs {
		obs.Outputs[str(o.OutputKey)] = str(o.OutputValue)
	}

	if strings.HasPrefix(obs.Status, "DELETE_") {
		obs.StuckResources = c.stuckResources(ctx, name)
	}
	return obs, nil
}

// stuckResources lists member resources that have not finished deleting.
// A listing failure degrades to an empty result; the stack observation
// itself stays valid.
func (c *Client) stuckResources(ctx context.Context, name string) []controlplane.StackResource {
	out, err := c.cfn.DescribeStackResources(ctx, &cloudformation.DescribeStackResourcesInput{
		StackName: awssdk.String(name),
	})
	if err != nil {
		c.logger.V(1).Info("cannot list stack resources", "stack", name, "error", err)
		return nil
	}

	var stuck []controlplane.StackResource
	for _, r := range out.StackResources {
		status := string(r.ResourceStatus)
		if status != "DELETE_FAILED" && status != "DELETE_IN_PROGRESS" {
			continue
		}
		stuck = append(stuck, controlplane.StackResource{
			LogicalID:  str(r.LogicalResourceId),
			PhysicalID: str(r.PhysicalResourceId),
			Type:       str(r.ResourceType),
			Status:     status,
		})
	}
	return stuck
}

// CreateStack implements controlplane.CloudAPI. Stacks are created with
// termination protection enabled; teardown lifts it explicitly.
func (c *Client) CreateStack(ctx context.Context, spec controlplane.StackSpec) error {
	params := make([]cfntypes.Parameter, 0, len(spec.Parameters))
	for k, v := range spec.Parameters {
		params = append(params, cfntypes.Parameter{
			ParameterKey:   awssdk.String(k),
			ParameterValue: awssdk.String(v),
		})
	}
	tags := make([]cfntypes.Tag, 0, len(spec.Tags))
	for k, v := range spec.Tags {
		tags = append(tags, cfntypes.Tag{Key: awssdk.String(k), Value: awssdk.String(v)})
	}

	c.logger.Info("creating stack", "name", spec.Name)
	_, err := c.cfn.CreateStack(ctx, &cloudformation.CreateStackInput{
		StackName:                   awssdk.String(spec.Name),
		TemplateBody:                awssdk.String(spec.TemplateBody),
		Parameters:                  params,
		Tags:                        tags,
		Capabilities:                []cfntypes.Capability{cfntypes.CapabilityCapabilityNamedIam},
		EnableTerminationProtection: awssdk.Bool(true),
	})
	return classify("create stack", err)
}

// DeleteStack implements controlplane.CloudAPI.
func (c *Client) DeleteStack(ctx context.Context, name string) error {
	c.logger.Info("deleting stack", "name", name)
	_, err := c.cfn.DeleteStack(ctx, &cloudformation.DeleteStackInput{
		StackName: awssdk.String(name),
	})
	return classify("delete stack", err)
}

// SetStackTerminationProtection implements controlplane.CloudAPI.
func (c *Client) SetStackTerminationProtection(ctx context.Context, name string, enabled bool) error {
	_, err := c.cfn.UpdateTerminationProtection(ctx, &cloudformation.UpdateTerminationProtectionInput{
		StackName:                   awssdk.String(name),
		EnableTerminationProtection: awssdk.Bool(enabled),
	})
	return classify("set stack termination protection", err)
}

type errStackMissing string

func (e errStackMissing) Error() string {
	return "stack " + string(e) + " does not exist"
}
