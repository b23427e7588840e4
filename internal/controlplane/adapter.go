package controlplane

import "context"

// ClusterSpec describes the managed cluster to create.
type ClusterSpec struct {
	Name      string
	Version   string
	RoleARN   string
	SubnetIDs []string
}

// NodeGroupSpec describes the managed node group to create.
type NodeGroupSpec struct {
	ClusterName  string
	Name         string
	RoleARN      string
	InstanceType string
	MinSize      int
	MaxSize      int
	DesiredSize  int
	SubnetIDs    []string
}

// RoleSpec describes the IAM role binding to create.
type RoleSpec struct {
	Name           string
	PolicyName     string
	PolicyDocument string
	TrustPolicy    string
}

// StackSpec describes the provider stack to create.
type StackSpec struct {
	Name         string
	TemplateBody string
	Parameters   map[string]string
	Tags         map[string]string
}

// ReleaseSpec describes a workload release to install or upgrade.
type ReleaseSpec struct {
	Name      string
	Namespace string
	RepoURL   string
	Chart     string
	Version   string
	Values    map[string]interface{}
}

// CloudAPI groups the cloud-provider resource operations.
// Implemented by platform/aws.Client.
type CloudAPI interface {
	// ObserveCluster reports the managed cluster's existence and status.
	ObserveCluster(ctx context.Context, name string) (ResourceObservation, error)
	CreateCluster(ctx context.Context, spec ClusterSpec) error
	DeleteCluster(ctx context.Context, name string) error

	ObserveNodeGroup(ctx context.Context, cluster, name string) (ResourceObservation, error)
	CreateNodeGroup(ctx context.Context, spec NodeGroupSpec) error
	DeleteNodeGroup(ctx context.Context, cluster, name string) error

	ObserveBucket(ctx context.Context, name string) (ResourceObservation, error)
	CreateBucket(ctx context.Context, name string) error

	ObserveRole(ctx context.Context, name string) (ResourceObservation, error)
	CreateRole(ctx context.Context, spec RoleSpec) error

	ObserveStack(ctx context.Context, name string) (StackObservation, error)
	CreateStack(ctx context.Context, spec StackSpec) error
	DeleteStack(ctx context.Context, name string) error
	SetStackTerminationProtection(ctx context.Context, name string, enabled bool) error

	// ObserveNetworkResource reports a network resource together with its
	// live attachments (network interfaces, route-table associations, NAT
	// gateways, gateway attachments, security groups).
	ObserveNetworkResource(ctx context.Context, kind, id string) (ResourceObservation, error)
	// ForceDeleteNetworkResource detaches and deletes one network resource,
	// including any provider-side prerequisites for that kind.
	ForceDeleteNetworkResource(ctx context.Context, kind, id string) error
	DisassociateRouteTable(ctx context.Context, associationID string) error

	ObserveLoadBalancers(ctx context.Context) ([]LoadBalancerObservation, error)
	DeleteLoadBalancer(ctx context.Context, arn string) error
}

// ReleaseAPI groups the workload release operations.
// Implemented by platform/helm.Client.
type ReleaseAPI interface {
	ObserveWorkloadRelease(ctx context.Context, name, namespace string) (ReleaseObservation, error)
	// CreateOrUpgradeWorkloadRelease is idempotent: installing an already
	// installed release upgrades it in place.
	CreateOrUpgradeWorkloadRelease(ctx context.Context, spec ReleaseSpec) error
	RollbackWorkloadRelease(ctx context.Context, name, namespace string) error
	// DeleteWorkloadRelease treats an already absent release as success.
	DeleteWorkloadRelease(ctx context.Context, name, namespace string) error
}

// WorkloadAPI groups in-cluster observation and diagnostics.
// Implemented by platform/k8s.Client.
type WorkloadAPI interface {
	ObservePods(ctx context.Context, namespace, labelSelector string) ([]PodObservation, error)
	ObserveNodes(ctx context.Context) ([]NodeObservation, error)
	CaptureDiagnostics(ctx context.Context, namespace, labelSelector string) (Diagnostics, error)
	LookupDNSRecord(ctx context.Context, fqdn string) (bool, []string, error)
}

// Adapter is the complete resource control plane consumed by the core.
type Adapter interface {
	CloudAPI
	ReleaseAPI
	WorkloadAPI
}

type bundle struct {
	CloudAPI
	ReleaseAPI
	WorkloadAPI
}

// Bundle combines per-concern implementations into one Adapter.
func Bundle(cloud CloudAPI, releases ReleaseAPI, workloads WorkloadAPI) Adapter {
	return &bundle{cloud, releases, workloads}
}
