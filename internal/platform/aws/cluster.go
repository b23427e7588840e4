package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"

	"github.com/imamik/ekstack/internal/controlplane"
)

// ObserveCluster implements controlplane.CloudAPI.
func (c *Client) ObserveCluster(ctx context.Context, name string) (controlplane.ResourceObservation, error) {
	out, err := c.eks.DescribeCluster(ctx, &eks.DescribeClusterInput{
		Name: awssdk.String(name),
	})
	if err != nil {
		return controlplane.ResourceObservation{
			Kind: "cluster", ID: name, Status: controlplane.StatusNotFound,
		}, classify("observe cluster", err)
	}

	cluster := out.Cluster
	obs := controlplane.ResourceObservation{
		Kind:   "cluster",
		ID:     name,
		Exists: true,
		Status: clusterStatus(cluster.Status),
		Detail: map[string]string{
			"version":  str(cluster.Version),
			"endpoint": str(cluster.Endpoint),
		},
	}
	if cluster.Identity != nil && cluster.Identity.Oidc != nil {
		obs.Detail["oidcIssuer"] = str(cluster.Identity.Oidc.Issuer)
	}
	if cluster.ResourcesVpcConfig != nil {
		obs.Detail["vpcId"] = str(cluster.ResourcesVpcConfig.VpcId)
	}
	return obs, nil
}

// CreateCluster implements controlplane.CloudAPI.
func (c *Client) CreateCluster(ctx context.Context, spec controlplane.ClusterSpec) error {
	c.logger.Info("creating cluster", "name", spec.Name)
	input := &eks.CreateClusterInput{
		Name:    awssdk.String(spec.Name),
		RoleArn: awssdk.String(spec.RoleARN),
		ResourcesVpcConfig: &ekstypes.VpcConfigRequest{
			SubnetIds: spec.SubnetIDs,
		},
	}
	if spec.Version != "" {
		input.Version = awssdk.String(spec.Version)
	}
	_, err := c.eks.CreateCluster(ctx, input)
	return classify("create cluster", err)
}

// DeleteCluster implements controlplane.CloudAPI.
func (c *Client) DeleteCluster(ctx context.Context, name string) error {
	c.logger.Info("deleting cluster", "name", name)
	_, err := c.eks.DeleteCluster(ctx, &eks.DeleteClusterInput{
		Name: awssdk.String(name),
	})
	return classify("delete cluster", err)
}

// ObserveNodeGroup implements controlplane.CloudAPI.
func (c *Client) ObserveNodeGroup(ctx context.Context, cluster, name string) (controlplane.ResourceObservation, error) {
	out, err := c.eks.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{
		ClusterName:   awssdk.String(cluster),
		NodegroupName: awssdk.String(name),
	})
	if err != nil {
		return controlplane.ResourceObservation{
			Kind: "nodegroup", ID: name, Status: controlplane.StatusNotFound,
		}, classify("observe node group", err)
	}

	group := out.Nodegroup
	return controlplane.ResourceObservation{
		Kind:   "nodegroup",
		ID:     name,
		Exists: true,
		Status: nodegroupStatus(group.Status),
		Detail: map[string]string{
			"cluster":  str(group.ClusterName),
			"nodeRole": str(group.NodeRole),
		},
	}, nil
}

// CreateNodeGroup implements controlplane.CloudAPI.
func (c *Client) CreateNodeGroup(ctx context.Context, spec controlplane.NodeGroupSpec) error {
	c.logger.Info("creating node group", "cluster", spec.ClusterName, "name", spec.Name)
	_, err := c.eks.CreateNodegroup(ctx, &eks.CreateNodegroupInput{
		ClusterName:   awssdk.String(spec.ClusterName),
		NodegroupName: awssdk.String(spec.Name),
		NodeRole:      awssdk.String(spec.RoleARN),
		Subnets:       spec.SubnetIDs,
		InstanceTypes: []string{spec.InstanceType},
		ScalingConfig: &ekstypes.NodegroupScalingConfig{
			MinSize:     awssdk.Int32(int32(spec.MinSize)),
			MaxSize:     awssdk.Int32(int32(spec.MaxSize)),
			DesiredSize: awssdk.Int32(int32(spec.DesiredSize)),
		},
	})
	return classify("create node group", err)
}

// DeleteNodeGroup implements controlplane.CloudAPI.
func (c *Client) DeleteNodeGroup(ctx context.Context, cluster, name string) error {
	c.logger.Info("deleting node group", "cluster", cluster, "name", name)
	_, err := c.eks.DeleteNodegroup(ctx, &eks.DeleteNodegroupInput{
		ClusterName:   awssdk.String(cluster),
		NodegroupName: awssdk.String(name),
	})
	return classify("delete node group", err)
}

func clusterStatus(s ekstypes.ClusterStatus) controlplane.Status {
	switch s {
	case ekstypes.ClusterStatusActive:
		return controlplane.StatusActive
	case ekstypes.ClusterStatusCreating, ekstypes.ClusterStatusPending, ekstypes.ClusterStatusUpdating:
		return controlplane.StatusCreating
	case ekstypes.ClusterStatusDeleting:
		return controlplane.StatusDeleting
	case ekstypes.ClusterStatusFailed:
		return controlplane.StatusFailed
	}
	return controlplane.StatusUnknown
}

func nodegroupStatus(s ekstypes.NodegroupStatus) controlplane.Status {
	switch s {
	case ekstypes.NodegroupStatusActive:
		return controlplane.StatusActive
	case ekstypes.NodegroupStatusCreating, ekstypes.NodegroupStatusUpdating:
		return controlplane.StatusCreating
	case ekstypes.NodegroupStatusDeleting:
		return controlplane.StatusDeleting
	case ekstypes.NodegroupStatusCreateFailed, ekstypes.NodegroupStatusDeleteFailed, ekstypes.NodegroupStatusDegraded:
		return controlplane.StatusFailed
	}
	return controlplane.StatusUnknown
}
