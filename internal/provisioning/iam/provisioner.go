// Package iam provisions the service-account role binding for bucket access.
package iam

import (
	"fmt"

	"github.com/imamik/ekstack/internal/controlplane"
	"github.com/imamik/ekstack/internal/evidence"
	"github.com/imamik/ekstack/internal/health"
	"github.com/imamik/ekstack/internal/provisioning"
)

// Provisioner ensures the application role exists with its bucket policy.
type Provisioner struct{}

// NewProvisioner creates the iam phase.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements provisioning.Phase.
func (p *Provisioner) Name() string { return "iam" }

// Run implements provisioning.Phase.
func (p *Provisioner) Run(ctx *provisioning.Context) (*evidence.Phase, error) {
	rec := ctx.Evidence.Begin(p.Name())
	defer ctx.Evidence.Finish(rec)

	cfg := ctx.Config

	// The trust policy references the cluster's OIDC issuer; without an
	// ACTIVE cluster the binding cannot be expressed.
	cluster, err := ctx.Control.ObserveCluster(ctx, cfg.ClusterName)
	if err != nil || !health.ClusterActive(cluster).Healthy {
		rec.Observe(cluster)
		rec.Block(evidence.DependencyUnmet("CLUSTER_UNHEALTHY", "cluster",
			fmt.Sprintf("cluster %s is not ACTIVE", cfg.ClusterName)))
		return rec, nil
	}

	bucket, err := ctx.Control.ObserveBucket(ctx, cfg.Bucket)
	if err != nil || !health.BucketReady(bucket).Healthy {
		rec.Observe(bucket)
		rec.Block(evidence.DependencyUnmet("BUCKET_UNHEALTHY", "storage",
			fmt.Sprintf("bucket %s does not exist", cfg.Bucket)))
		return rec, nil
	}

	role, err := ctx.Control.ObserveRole(ctx, cfg.IAM.RoleName)
	if err != nil && !controlplane.IsNotFound(err) {
		rec.Block(evidence.Fatal("ROLE_OBSERVE_FAILED",
			fmt.Sprintf("cannot observe role %s: %v", cfg.IAM.RoleName, err),
			fmt.Sprintf("aws iam get-role --role-name %s", cfg.IAM.RoleName)))
		return rec, nil
	}
	rec.Observe(role)

	if gate := health.RoleBound(role, cfg.IAM.PolicyName); gate.Healthy {
		rec.Status = evidence.StatusSkip
		rec.Existed = true
		rec.Ready = true
		return rec, nil
	}

	spec := controlplane.RoleSpec{
		Name:           cfg.IAM.RoleName,
		PolicyName:     cfg.IAM.PolicyName,
		PolicyDocument: bucketPolicy(cfg.Bucket),
		TrustPolicy:    trustPolicy(cluster.Detail["oidcIssuer"], cfg.Namespace, cfg.IAM.ServiceAccount),
	}
	if err := ctx.Control.CreateRole(ctx, spec); err != nil && !controlplane.IsConflict(err) {
		rec.Block(evidence.Fatal("ROLE_CREATE_FAILED",
			fmt.Sprintf("role %s creation failed: %v", cfg.IAM.RoleName, err),
			fmt.Sprintf("aws iam get-role --role-name %s", cfg.IAM.RoleName)))
		return rec, nil
	}
	rec.Created = !role.Exists
	rec.Repaired = role.Exists // existed without the policy attached

	final, err := ctx.Control.ObserveRole(ctx, cfg.IAM.RoleName)
	if err == nil {
		rec.Observe(final)
	}
	if gate := health.RoleBound(final, cfg.IAM.PolicyName); !gate.Healthy {
		rec.Block(evidence.Fatal("ROLE_NOT_BOUND", gate.Reason,
			fmt.Sprintf("aws iam list-attached-role-policies --role-name %s", cfg.IAM.RoleName)))
		return rec, nil
	}

	rec.Ready = true
	switch {
	case rec.Created:
		rec.Status = evidence.StatusCreated
	case rec.Repaired:
		rec.Status = evidence.StatusRepaired
	default:
		rec.Status = evidence.StatusSkip
	}
	return rec, nil
}

func bucketPolicy(bucket string) string {
	return fmt.Sprintf(`{
  "Version": "2012-10-17",
  "Statement": [{
    "Effect": "Allow",
    "Action": ["s3:GetObject", "s3:PutObject", "s3:ListBucket"],
    "Resource": ["arn:aws:s3:::%s", "arn:aws:s3:::%s/*"]
  }]
}`, bucket, bucket)
}

func trustPolicy(oidcIssuer, namespace, serviceAccount string) string {
	return fmt.Sprintf(`{
  "Version": "2012-10-17",
  "Statement": [{
    "Effect": "Allow",
    "Principal": {"Federated": "%s"},
    "Action": "sts:AssumeRoleWithWebIdentity",
    "Condition": {"StringEquals": {"%s:sub": "system:serviceaccount:%s:%s"}}
  }]
}`, oidcIssuer, oidcIssuer, namespace, serviceAccount)
}
