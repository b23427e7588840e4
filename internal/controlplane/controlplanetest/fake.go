// Package controlplanetest provides an in-memory control plane for tests.
//
// World simulates the external resource control plane with instant
// convergence: created resources become ACTIVE immediately and in-cluster
// observations follow the installed releases. Tests mutate the maps directly
// to stage partial prior state, inject errors per operation via Fail, and
// assert call counts via Calls. Scenario-specific behavior (stuck deletions,
// slow convergence) is added by embedding *World and overriding methods.
package controlplanetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/imamik/ekstack/internal/controlplane"
)

// World is a stateful fake controlplane.Adapter.
type World struct {
	mu sync.Mutex

	Stacks     map[string]*controlplane.StackObservation
	Clusters   map[string]*controlplane.ResourceObservation
	NodeGroups map[string]*controlplane.ResourceObservation
	Buckets    map[string]bool
	Roles      map[string]*controlplane.ResourceObservation
	Releases   map[string]*controlplane.ReleaseObservation
	Network    map[string]*controlplane.ResourceObservation
	Nodes      []controlplane.NodeObservation
	Balancers  []controlplane.LoadBalancerObservation
	DNSRecords map[string]bool

	// MinNodes is how many ready nodes appear once a node group is ACTIVE.
	MinNodes int
	// ReadyPods is how many ready pods ObservePods reports per selector
	// once the owning namespace has a deployed release.
	ReadyPods int

	// Fail injects an error for a named operation ("CreateCluster", ...).
	Fail map[string]error
	// Calls counts invocations per operation.
	Calls map[string]int
}

// NewWorld creates an empty world with instant-convergence defaults.
func NewWorld() *World {
	return &World{
		Stacks:     make(map[string]*controlplane.StackObservation),
		Clusters:   make(map[string]*controlplane.ResourceObservation),
		NodeGroups: make(map[string]*controlplane.ResourceObservation),
		Buckets:    make(map[string]bool),
		Roles:      make(map[string]*controlplane.ResourceObservation),
		Releases:   make(map[string]*controlplane.ReleaseObservation),
		Network:    make(map[string]*controlplane.ResourceObservation),
		DNSRecords: make(map[string]bool),
		MinNodes:   1,
		ReadyPods:  3,
		Fail:       make(map[string]error),
		Calls:      make(map[string]int),
	}
}

// ErrNotFound is the provider error carried by not-found observations.
var ErrNotFound = errors.New("resource not found")

func (w *World) op(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Calls[name]++
	return w.Fail[name]
}

// CallCount returns how many times the named operation ran.
func (w *World) CallCount(name string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Calls[name]
}

// --- stacks ---

// ObserveStack implements controlplane.CloudAPI.
func (w *World) ObserveStack(_ context.Context, name string) (controlplane.StackObservation, error) {
	if err := w.op("ObserveStack"); err != nil {
		return controlplane.StackObservation{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.Stacks[name]; ok {
		return *s, nil
	}
	return controlplane.StackObservation{Name: name},
		controlplane.NewError(controlplane.ClassNotFound, "observe stack", ErrNotFound)
}

// CreateStack implements controlplane.CloudAPI.
func (w *World) CreateStack(_ context.Context, spec controlplane.StackSpec) error {
	if err := w.op("CreateStack"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.Stacks[spec.Name]; ok {
		return controlplane.NewError(controlplane.ClassConflict, "create stack", errors.New("AlreadyExistsException"))
	}
	w.Stacks[spec.Name] = &controlplane.StackObservation{
		Name:   spec.Name,
		Exists: true,
		Status: "CREATE_COMPLETE",
		Outputs: map[string]string{
			"VpcId":            "vpc-0001",
			"SubnetIds":        "subnet-1,subnet-2,subnet-3,subnet-4",
			"PrivateSubnetIds": "subnet-3,subnet-4",
			"ClusterRoleArn":   "arn:aws:iam::123456789012:role/cluster",
			"NodeRoleArn":      "arn:aws:iam::123456789012:role/node",
		},
	}
	return nil
}

// DeleteStack implements controlplane.CloudAPI.
func (w *World) DeleteStack(_ context.Context, name string) error {
	if err := w.op("DeleteStack"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.Stacks[name]; !ok {
		return controlplane.NewError(controlplane.ClassConflict, "delete stack", ErrNotFound)
	}
	delete(w.Stacks, name)
	return nil
}

// SetStackTerminationProtection implements controlplane.CloudAPI.
func (w *World) SetStackTerminationProtection(_ context.Context, name string, enabled bool) error {
	if err := w.op("SetStackTerminationProtection"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.Stacks[name]; ok {
		s.TerminationProtection = enabled
	}
	return nil
}

// --- cluster ---

// ObserveCluster implements controlplane.CloudAPI.
func (w *World) ObserveCluster(_ context.Context, name string) (controlplane.ResourceObservation, error) {
	if err := w.op("ObserveCluster"); err != nil {
		return controlplane.ResourceObservation{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if c, ok := w.Clusters[name]; ok {
		return *c, nil
	}
	return controlplane.ResourceObservation{Kind: "cluster", ID: name, Status: controlplane.StatusNotFound},
		controlplane.NewError(controlplane.ClassNotFound, "observe cluster", ErrNotFound)
}

// CreateCluster implements controlplane.CloudAPI.
func (w *World) CreateCluster(_ context.Context, spec controlplane.ClusterSpec) error {
	if err := w.op("CreateCluster"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.Clusters[spec.Name]; ok {
		return controlplane.NewError(controlplane.ClassConflict, "create cluster", errors.New("ResourceInUseException"))
	}
	w.Clusters[spec.Name] = &controlplane.ResourceObservation{
		Kind: "cluster", ID: spec.Name, Exists: true, Status: controlplane.StatusActive,
		Detail: map[string]string{"oidcIssuer": "oidc.eks.test/" + spec.Name},
	}
	return nil
}

// DeleteCluster implements controlplane.CloudAPI.
func (w *World) DeleteCluster(_ context.Context, name string) error {
	if err := w.op("DeleteCluster"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.Clusters, name)
	return nil
}

// --- node groups ---

// ObserveNodeGroup implements controlplane.CloudAPI.
func (w *World) ObserveNodeGroup(_ context.Context, cluster, name string) (controlplane.ResourceObservation, error) {
	if err := w.op("ObserveNodeGroup"); err != nil {
		return controlplane.ResourceObservation{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if g, ok := w.NodeGroups[cluster+"/"+name]; ok {
		return *g, nil
	}
	return controlplane.ResourceObservation{Kind: "nodegroup", ID: name, Status: controlplane.StatusNotFound},
		controlplane.NewError(controlplane.ClassNotFound, "observe node group", ErrNotFound)
}

// CreateNodeGroup implements controlplane.CloudAPI. The configured number of
// ready worker nodes registers as soon as the group exists.
func (w *World) CreateNodeGroup(_ context.Context, spec controlplane.NodeGroupSpec) error {
	if err := w.op("CreateNodeGroup"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	key := spec.ClusterName + "/" + spec.Name
	if _, ok := w.NodeGroups[key]; ok {
		return controlplane.NewError(controlplane.ClassConflict, "create node group", errors.New("ResourceInUseException"))
	}
	w.NodeGroups[key] = &controlplane.ResourceObservation{
		Kind: "nodegroup", ID: spec.Name, Exists: true, Status: controlplane.StatusActive,
		Detail: map[string]string{"nodeRole": spec.RoleARN},
	}
	for i := len(w.Nodes); i < w.MinNodes; i++ {
		w.Nodes = append(w.Nodes, controlplane.NodeObservation{
			Name:  fmt.Sprintf("node-%d", i),
			Ready: true,
		})
	}
	return nil
}

// DeleteNodeGroup implements controlplane.CloudAPI.
func (w *World) DeleteNodeGroup(_ context.Context, cluster, name string) error {
	if err := w.op("DeleteNodeGroup"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.NodeGroups, cluster+"/"+name)
	w.Nodes = nil
	return nil
}

// --- storage ---

// ObserveBucket implements controlplane.CloudAPI.
func (w *World) ObserveBucket(_ context.Context, name string) (controlplane.ResourceObservation, error) {
	if err := w.op("ObserveBucket"); err != nil {
		return controlplane.ResourceObservation{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Buckets[name] {
		return controlplane.ResourceObservation{Kind: "bucket", ID: name, Exists: true, Status: controlplane.StatusActive}, nil
	}
	return controlplane.ResourceObservation{Kind: "bucket", ID: name, Status: controlplane.StatusNotFound},
		controlplane.NewError(controlplane.ClassNotFound, "observe bucket", ErrNotFound)
}

// CreateBucket implements controlplane.CloudAPI.
func (w *World) CreateBucket(_ context.Context, name string) error {
	if err := w.op("CreateBucket"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Buckets[name] {
		return controlplane.NewError(controlplane.ClassConflict, "create bucket", errors.New("BucketAlreadyOwnedByYou"))
	}
	w.Buckets[name] = true
	return nil
}

// --- iam ---

// ObserveRole implements controlplane.CloudAPI.
func (w *World) ObserveRole(_ context.Context, name string) (controlplane.ResourceObservation, error) {
	if err := w.op("ObserveRole"); err != nil {
		return controlplane.ResourceObservation{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if r, ok := w.Roles[name]; ok {
		return *r, nil
	}
	return controlplane.ResourceObservation{Kind: "role", ID: name, Status: controlplane.StatusNotFound},
		controlplane.NewError(controlplane.ClassNotFound, "observe role", ErrNotFound)
}

// CreateRole implements controlplane.CloudAPI.
func (w *World) CreateRole(_ context.Context, spec controlplane.RoleSpec) error {
	if err := w.op("CreateRole"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Roles[spec.Name] = &controlplane.ResourceObservation{
		Kind: "role", ID: spec.Name, Exists: true, Status: controlplane.StatusActive,
		Attachments: []controlplane.Attachment{
			{Kind: "policy", ID: "arn:aws:iam::123456789012:policy/" + spec.PolicyName},
		},
	}
	return nil
}

// --- network ---

// ObserveNetworkResource implements controlplane.CloudAPI.
func (w *World) ObserveNetworkResource(_ context.Context, kind, id string) (controlplane.ResourceObservation, error) {
	if err := w.op("ObserveNetworkResource"); err != nil {
		return controlplane.ResourceObservation{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if r, ok := w.Network[kind+"/"+id]; ok {
		return *r, nil
	}
	return controlplane.ResourceObservation{Kind: kind, ID: id, Status: controlplane.StatusNotFound},
		controlplane.NewError(controlplane.ClassNotFound, "observe network resource", ErrNotFound)
}

// ForceDeleteNetworkResource implements controlplane.CloudAPI. Deleting a
// resource removes it from every other resource's attachment list.
func (w *World) ForceDeleteNetworkResource(_ context.Context, kind, id string) error {
	if err := w.op("ForceDeleteNetworkResource"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.Network[kind+"/"+id]; !ok {
		return controlplane.NewError(controlplane.ClassConflict, "force delete", ErrNotFound)
	}
	delete(w.Network, kind+"/"+id)
	w.detachLocked(id)
	return nil
}

// DisassociateRouteTable implements controlplane.CloudAPI.
func (w *World) DisassociateRouteTable(_ context.Context, associationID string) error {
	if err := w.op("DisassociateRouteTable"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.detachLocked(associationID)
	return nil
}

func (w *World) detachLocked(id string) {
	for _, r := range w.Network {
		// Observations handed out earlier share the old backing array, so
		// filter into a fresh slice instead of compacting in place.
		kept := make([]controlplane.Attachment, 0, len(r.Attachments))
		for _, att := range r.Attachments {
			if att.ID != id {
				kept = append(kept, att)
			}
		}
		r.Attachments = kept
	}
}

// ObserveLoadBalancers implements controlplane.CloudAPI.
func (w *World) ObserveLoadBalancers(_ context.Context) ([]controlplane.LoadBalancerObservation, error) {
	if err := w.op("ObserveLoadBalancers"); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]controlplane.LoadBalancerObservation, len(w.Balancers))
	copy(out, w.Balancers)
	return out, nil
}

// DeleteLoadBalancer implements controlplane.CloudAPI.
func (w *World) DeleteLoadBalancer(_ context.Context, arn string) error {
	if err := w.op("DeleteLoadBalancer"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.Balancers[:0]
	for _, lb := range w.Balancers {
		if lb.ARN != arn {
			kept = append(kept, lb)
		}
	}
	w.Balancers = kept
	return nil
}

// --- releases ---

// ObserveWorkloadRelease implements controlplane.ReleaseAPI.
func (w *World) ObserveWorkloadRelease(_ context.Context, name, namespace string) (controlplane.ReleaseObservation, error) {
	if err := w.op("ObserveWorkloadRelease"); err != nil {
		return controlplane.ReleaseObservation{}, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if r, ok := w.Releases[namespace+"/"+name]; ok {
		return *r, nil
	}
	return controlplane.ReleaseObservation{Name: name, Namespace: namespace, Status: controlplane.ReleaseUninstalled},
		controlplane.NewError(controlplane.ClassNotFound, "observe release", ErrNotFound)
}

// CreateOrUpgradeWorkloadRelease implements controlplane.ReleaseAPI.
// Installing the ingress controller provisions an active load balancer in
// the stack subnets; installing external-dns publishes all DNS records.
func (w *World) CreateOrUpgradeWorkloadRelease(_ context.Context, spec controlplane.ReleaseSpec) error {
	if err := w.op("CreateOrUpgradeWorkloadRelease"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	key := spec.Namespace + "/" + spec.Name
	revision := 1
	if r, ok := w.Releases[key]; ok {
		revision = r.Revision + 1
	}
	w.Releases[key] = &controlplane.ReleaseObservation{
		Name: spec.Name, Namespace: spec.Namespace, Exists: true,
		Status: controlplane.ReleaseDeployed, Revision: revision,
	}
	if strings.Contains(spec.Name, "ingress") {
		w.Balancers = append(w.Balancers, controlplane.LoadBalancerObservation{
			ARN: "arn:aws:elasticloadbalancing:lb/" + spec.Name, Name: spec.Name,
			State: "active", Subnets: []string{"subnet-1", "subnet-2"},
		})
	}
	if strings.Contains(spec.Name, "dns") {
		for fqdn := range w.DNSRecords {
			w.DNSRecords[fqdn] = true
		}
	}
	return nil
}

// RollbackWorkloadRelease implements controlplane.ReleaseAPI.
func (w *World) RollbackWorkloadRelease(_ context.Context, name, namespace string) error {
	if err := w.op("RollbackWorkloadRelease"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if r, ok := w.Releases[namespace+"/"+name]; ok {
		r.Status = controlplane.ReleaseDeployed
		r.Revision++
	}
	return nil
}

// DeleteWorkloadRelease implements controlplane.ReleaseAPI.
func (w *World) DeleteWorkloadRelease(_ context.Context, name, namespace string) error {
	if err := w.op("DeleteWorkloadRelease"); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.Releases[namespace+"/"+name]; !ok {
		return controlplane.NewError(controlplane.ClassConflict, "delete release", ErrNotFound)
	}
	delete(w.Releases, namespace+"/"+name)
	return nil
}

// --- in-cluster observation ---

// ObservePods implements controlplane.WorkloadAPI. Pods are derived from the
// deployed releases in the namespace: ReadyPods ready pods per selector.
func (w *World) ObservePods(_ context.Context, namespace, _ string) ([]controlplane.PodObservation, error) {
	if err := w.op("ObservePods"); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	deployed := false
	for key, r := range w.Releases {
		if strings.HasPrefix(key, namespace+"/") && r.Status == controlplane.ReleaseDeployed {
			deployed = true
		}
	}
	if !deployed {
		return nil, nil
	}
	pods := make([]controlplane.PodObservation, w.ReadyPods)
	for i := range pods {
		pods[i] = controlplane.PodObservation{Name: fmt.Sprintf("pod-%d", i), Ready: true, Phase: "Running"}
	}
	return pods, nil
}

// ObserveNodes implements controlplane.WorkloadAPI.
func (w *World) ObserveNodes(_ context.Context) ([]controlplane.NodeObservation, error) {
	if err := w.op("ObserveNodes"); err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]controlplane.NodeObservation, len(w.Nodes))
	copy(out, w.Nodes)
	return out, nil
}

// CaptureDiagnostics implements controlplane.WorkloadAPI.
func (w *World) CaptureDiagnostics(_ context.Context, namespace, selector string) (controlplane.Diagnostics, error) {
	if err := w.op("CaptureDiagnostics"); err != nil {
		return controlplane.Diagnostics{}, err
	}
	return controlplane.Diagnostics{
		Events: []string{fmt.Sprintf("synthetic event for %s %s", namespace, selector)},
	}, nil
}

// LookupDNSRecord implements controlplane.WorkloadAPI.
func (w *World) LookupDNSRecord(_ context.Context, fqdn string) (bool, []string, error) {
	if err := w.op("LookupDNSRecord"); err != nil {
		return false, nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.DNSRecords[fqdn] {
		return true, []string{"192.0.2.10"}, nil
	}
	return false, nil, nil
}

var _ controlplane.Adapter = (*World)(nil)
