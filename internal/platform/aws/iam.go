package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/imamik/ekstack/internal/controlplane"
)

// ObserveRole implements controlplane.CloudAPI. Attached policies are
// reported as attachments so the health gate can verify the binding.
func (c *Client) ObserveRole(ctx context.Context, name string) (controlplane.ResourceObservation, error) {
	out, err := c.iam.GetRole(ctx, &iam.GetRoleInput{
		RoleName: awssdk.String(name),
	})
	if err != nil {
		return controlplane.ResourceObservation{
			Kind: "role", ID: name, Status: controlplane.StatusNotFound,
		}, classify("observe role", err)
	}

	obs := controlplane.ResourceObservation{
		Kind:   "role",
		ID:     name,
		Exists: true,
		Status: controlplane.StatusActive,
		Detail: map[string]string{"arn": str(out.Role.Arn)},
	}

	attached, err := c.iam.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: awssdk.String(name),
	})
	if err != nil {
		return obs, classify("list role policies", err)
	}
	for _, p := range attached.AttachedPolicies {
		obs.Attachments = append(obs.Attachments, controlplane.Attachment{
			Kind: "policy",
			ID:   str(p.PolicyArn),
		})
	}
	return obs, nil
}

// CreateRole implements controlplane.CloudAPI. The role, the policy, and
// the attachment are each idempotent on their own, so a partially created
// binding from an interrupted run completes here instead of failing.
func (c *Client) CreateRole(ctx context.Context, spec controlplane.RoleSpec) error {
	c.logger.Info("creating role", "name", spec.Name, "policy", spec.PolicyName)

	_, err := c.iam.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 awssdk.String(spec.Name),
		AssumeRolePolicyDocument: awssdk.String(spec.TrustPolicy),
	})
	if err = classify("create role", err); err != nil && !controlplane.IsConflict(err) {
		return err
	}

	policyARN, err := c.ensurePolicy(ctx, spec.PolicyName, spec.PolicyDocument)
	if err != nil {
		return err
	}

	_, err = c.iam.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  awssdk.String(spec.Name),
		PolicyArn: awssdk.String(policyARN),
	})
	if err = classify("attach role policy", err); err != nil && !controlplane.IsConflict(err) {
		return err
	}
	return nil
}

// ensurePolicy creates the policy or resolves the ARN of the existing one.
func (c *Client) ensurePolicy(ctx context.Context, name, document string) (string, error) {
	out, err := c.iam.CreatePolicy(ctx, &iam.CreatePolicyInput{
		PolicyName:     awssdk.String(name),
		PolicyDocument: awssdk.String(document),
	})
	if err == nil {
		return str(out.Policy.Arn), nil
	}
	if cerr := classify("create policy", err); !controlplane.IsConflict(cerr) {
		return "", cerr
	}

	list, err := c.iam.ListPolicies(ctx, &iam.ListPoliciesInput{
		Scope: iamtypes.PolicyScopeTypeLocal,
	})
	if err != nil {
		return "", classify("list policies", err)
	}
	for _, p := range list.Policies {
		if str(p.PolicyName) == name {
			return str(p.Arn), nil
		}
	}
	return "", controlplane.NewError(controlplane.ClassNotFound, "resolve policy", errPolicyMissing(name))
}

type errPolicyMissing string

func (e errPolicyMissing) Error() string {
	return "policy " + string(e) + " exists but was not found in listing"
}
