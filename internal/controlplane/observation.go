// Package controlplane defines the typed boundary between the core and the
// external resource control plane.
//
// Every external resource kind has one typed observe/create/delete surface;
// cloud, Helm, and Kubernetes implementations live under internal/platform
// and are injected where needed. Observations are always freshly fetched and
// never cached across phases or runs.
package controlplane

import "strings"

// Status is the normalized lifecycle state of an external resource.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusCreating Status = "CREATING"
	StatusDeleting Status = "DELETING"
	StatusFailed   Status = "FAILED"
	StatusNotFound Status = "NOT_FOUND"
	StatusUnknown  Status = "UNKNOWN"
)

// Terminal reports whether the status can no longer change on its own.
func (s Status) Terminal() bool {
	switch s {
	case StatusActive, StatusFailed, StatusNotFound:
		return true
	}
	return false
}

// ResourceObservation is a point-in-time view of one external resource.
type ResourceObservation struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Exists bool   `json:"exists"`
	Status Status `json:"status"`

	// Detail carries provider-specific fields (stack outputs, VPC id, ...).
	Detail map[string]string `json:"detail,omitempty"`

	// Attachments lists resources the provider reports as attached to this
	// one. The reclamation engine walks these instead of a declared graph.
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment identifies a resource attached to an observed one.
type Attachment struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// ReleaseStatus is the normalized state of a workload release.
type ReleaseStatus string

const (
	ReleaseDeployed    ReleaseStatus = "deployed"
	ReleaseFailed      ReleaseStatus = "failed"
	ReleasePending     ReleaseStatus = "pending"
	ReleaseUninstalled ReleaseStatus = "uninstalled"
	ReleaseUnknown     ReleaseStatus = "unknown"
)

// Degraded reports whether the release needs repair before it can serve.
func (s ReleaseStatus) Degraded() bool {
	return s == ReleaseFailed || s == ReleasePending
}

// ReleaseObservation is a point-in-time view of one workload release.
type ReleaseObservation struct {
	Name      string        `json:"name"`
	Namespace string        `json:"namespace"`
	Exists    bool          `json:"exists"`
	Status    ReleaseStatus `json:"status"`
	Revision  int           `json:"revision"`
}

// PodObservation is a point-in-time view of one pod.
type PodObservation struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	Phase string `json:"phase"`
}

// NodeObservation is a point-in-time view of one worker node.
type NodeObservation struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

// LoadBalancerObservation is a point-in-time view of one load balancer.
type LoadBalancerObservation struct {
	ARN     string   `json:"arn"`
	Name    string   `json:"name"`
	State   string   `json:"state"`
	Subnets []string `json:"subnets"`
}

// StackResource is one resource inside a stack, as reported by the provider.
type StackResource struct {
	LogicalID  string `json:"logicalId"`
	PhysicalID string `json:"physicalId"`
	Type       string `json:"type"`
	Status     string `json:"status"`
}

// StackObservation is a point-in-time view of one provider stack.
type StackObservation struct {
	Name                  string `json:"name"`
	Exists                bool   `json:"exists"`
	Status                string `json:"status"`
	TerminationProtection bool   `json:"terminationProtection"`

	// Outputs holds the stack's declared outputs (VpcId, SubnetIds, ...).
	Outputs map[string]string `json:"outputs,omitempty"`

	// StuckResources lists resources in DELETE_FAILED or DELETE_IN_PROGRESS.
	StuckResources []StackResource `json:"stuckResources,omitempty"`
}

// AsResource views the stack as a generic resource observation for evidence.
func (s StackObservation) AsResource() ResourceObservation {
	status := StatusUnknown
	switch {
	case !s.Exists:
		status = StatusNotFound
	case s.Status == "CREATE_COMPLETE" || s.Status == "UPDATE_COMPLETE":
		status = StatusActive
	case strings.HasSuffix(s.Status, "_IN_PROGRESS") && strings.HasPrefix(s.Status, "DELETE"):
		status = StatusDeleting
	case strings.HasSuffix(s.Status, "_IN_PROGRESS"):
		status = StatusCreating
	case strings.HasSuffix(s.Status, "_FAILED") || strings.HasPrefix(s.Status, "ROLLBACK"):
		status = StatusFailed
	}
	return ResourceObservation{
		Kind:   "stack",
		ID:     s.Name,
		Exists: s.Exists,
		Status: status,
		Detail: map[string]string{"stackStatus": s.Status},
	}
}

// Diagnostics captures recent events and logs attached to a failed phase.
type Diagnostics struct {
	Events []string          `json:"events,omitempty"`
	Logs   map[string]string `json:"logs,omitempty"`
}
