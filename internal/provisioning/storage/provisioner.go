// Package storage provisions the artifact bucket.
package storage

import (
	"fmt"

	"github.com/imamik/ekstack/internal/controlplane"
	"github.com/imamik/ekstack/internal/evidence"
	"github.com/imamik/ekstack/internal/health"
	"github.com/imamik/ekstack/internal/provisioning"
)

// Provisioner ensures the artifact bucket exists and is owned.
type Provisioner struct{}

// NewProvisioner creates the storage phase.
func NewProvisioner() *Provisioner {
	return &Provisioner{}
}

// Name implements provisioning.Phase.
func (p *Provisioner) Name() string { return "storage" }

// Run implements provisioning.Phase.
func (p *Provisioner) Run(ctx *provisioning.Context) (*evidence.Phase, error) {
	rec := ctx.Evidence.Begin(p.Name())
	defer ctx.Evidence.Finish(rec)

	bucket := ctx.Config.Bucket

	obs, err := ctx.Control.ObserveBucket(ctx, bucket)
	if err != nil && !controlplane.IsNotFound(err) {
		rec.Block(evidence.Fatal("BUCKET_OBSERVE_FAILED",
			fmt.Sprintf("cannot observe bucket %s: %v", bucket, err),
			fmt.Sprintf("aws s3api head-bucket --bucket %s", bucket)))
		return rec, nil
	}
	rec.Observe(obs)

	if gate := health.BucketReady(obs); gate.Healthy {
		rec.Status = evidence.StatusSkip
		rec.Existed = true
		rec.Ready = true
		return rec, nil
	}

	if err := ctx.Control.CreateBucket(ctx, bucket); err != nil {
		if controlplane.IsConflict(err) {
			// Already owned by us: created between observe and act.
			rec.Existed = true
		} else {
			rec.Block(evidence.Fatal("BUCKET_CREATE_FAILED",
				fmt.Sprintf("bucket %s creation failed: %v", bucket, err),
				fmt.Sprintf("aws s3api create-bucket --bucket %s --region %s", bucket, ctx.Config.Region)))
			return rec, nil
		}
	} else {
		rec.Created = true
	}

	final, err := ctx.Control.ObserveBucket(ctx, bucket)
	if err == nil {
		rec.Observe(final)
	}
	if gate := health.BucketReady(final); !gate.Healthy {
		rec.Block(evidence.Fatal("BUCKET_NOT_READY", gate.Reason,
			fmt.Sprintf("aws s3api head-bucket --bucket %s", bucket)))
		return rec, nil
	}

	rec.Ready = true
	if rec.Created {
		rec.Status = evidence.StatusCreated
	} else {
		rec.Status = evidence.StatusSkip
	}
	return rec, nil
}
