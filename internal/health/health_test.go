package health

import (
	"strings"
	"testing"

	"github.com/imamik/ekstack/internal/controlplane"
)

func TestStackComplete(t *testing.T) {
	tests := []struct {
		name    string
		obs     controlplane.StackObservation
		healthy bool
		reason  string
	}{
		{"absent", controlplane.StackObservation{Name: "net"}, false, "not found"},
		{"complete", controlplane.StackObservation{Name: "net", Exists: true, Status: "CREATE_COMPLETE"}, true, ""},
		{"updated", controlplane.StackObservation{Name: "net", Exists: true, Status: "UPDATE_COMPLETE"}, true, ""},
		{"converging", controlplane.StackObservation{Name: "net", Exists: true, Status: "CREATE_IN_PROGRESS"}, false, "converging"},
		{"rolled back", controlplane.StackObservation{Name: "net", Exists: true, Status: "ROLLBACK_COMPLETE"}, false, "ROLLBACK_COMPLETE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StackComplete(tt.obs)
			if got.Healthy != tt.healthy {
				t.Errorf("healthy = %v, want %v (%s)", got.Healthy, tt.healthy, got.Reason)
			}
			if !tt.healthy && !strings.Contains(got.Reason, tt.reason) {
				t.Errorf("reason %q does not mention %q", got.Reason, tt.reason)
			}
		})
	}
}

func TestClusterActive(t *testing.T) {
	creating := controlplane.ResourceObservation{Kind: "cluster", ID: "demo", Exists: true, Status: controlplane.StatusCreating}
	if got := ClusterActive(creating); got.Healthy || !strings.Contains(got.Reason, "CREATING") {
		t.Errorf("expected unhealthy CREATING reason, got %+v", got)
	}

	active := creating
	active.Status = controlplane.StatusActive
	if got := ClusterActive(active); !got.Healthy {
		t.Errorf("expected healthy, got %+v", got)
	}
}

func TestNodesReady(t *testing.T) {
	if got := NodesReady(nil, 1); got.Healthy || !strings.Contains(got.Reason, "no worker nodes") {
		t.Errorf("expected no-nodes reason, got %+v", got)
	}

	nodes := []controlplane.NodeObservation{
		{Name: "node-a", Ready: true},
		{Name: "node-b", Ready: false},
		{Name: "node-c", Ready: false},
	}
	got := NodesReady(nodes, 3)
	if got.Healthy {
		t.Fatal("expected unhealthy")
	}
	if !strings.Contains(got.Reason, "1 of 3") || !strings.Contains(got.Reason, "node-b") {
		t.Errorf("reason must carry counts and names, got %q", got.Reason)
	}

	if got := NodesReady(nodes, 1); !got.Healthy {
		t.Errorf("one ready node satisfies min=1, got %+v", got)
	}
}

func TestRoleBound(t *testing.T) {
	obs := controlplane.ResourceObservation{
		Kind: "role", ID: "demo-app", Exists: true, Status: controlplane.StatusActive,
		Attachments: []controlplane.Attachment{{Kind: "policy", ID: "arn:aws:iam::123:policy/demo-bucket-access"}},
	}
	if got := RoleBound(obs, "demo-bucket-access"); !got.Healthy {
		t.Errorf("expected bound, got %+v", got)
	}
	if got := RoleBound(obs, "other-policy"); got.Healthy || !strings.Contains(got.Reason, "not attached") {
		t.Errorf("expected unattached reason, got %+v", got)
	}
}

func TestRolloutReady(t *testing.T) {
	pods := []controlplane.PodObservation{
		{Name: "api-0", Ready: false, Phase: "Pending"},
		{Name: "api-1", Ready: false, Phase: "Pending"},
		{Name: "api-2", Ready: false, Phase: "Pending"},
	}
	got := RolloutReady(pods, 3)
	if got.Healthy || got.Reason != "0 of 3 expected replicas ready" {
		t.Errorf("unexpected result: %+v", got)
	}

	pods[0].Ready = true
	pods[1].Ready = true
	pods[2].Ready = true
	if got := RolloutReady(pods, 3); !got.Healthy {
		t.Errorf("expected healthy, got %+v", got)
	}
}

func TestReleaseDeployed(t *testing.T) {
	rel := controlplane.ReleaseObservation{Name: "api", Namespace: "apps", Exists: true, Status: controlplane.ReleaseFailed}
	if got := ReleaseDeployed(rel); got.Healthy || !strings.Contains(got.Reason, "failed") {
		t.Errorf("expected failed reason, got %+v", got)
	}
}

func TestIngressProvisioned(t *testing.T) {
	lbs := []controlplane.LoadBalancerObservation{
		{ARN: "arn:lb/1", State: "provisioning", Subnets: []string{"subnet-a"}},
	}
	if got := IngressProvisioned(lbs, []string{"subnet-a"}); got.Healthy {
		t.Error("provisioning load balancer must not pass the gate")
	}

	lbs[0].State = "active"
	if got := IngressProvisioned(lbs, []string{"subnet-a"}); !got.Healthy {
		t.Errorf("expected healthy, got %+v", got)
	}
	if got := IngressProvisioned(lbs, []string{"subnet-z"}); got.Healthy {
		t.Error("load balancer outside the stack subnets must not pass")
	}
}

func TestDNSReady(t *testing.T) {
	got := DNSReady("app.demo.example.com", false)
	if got.Healthy || !strings.Contains(got.Reason, "app.demo.example.com") {
		t.Errorf("expected absent-record reason with fqdn, got %+v", got)
	}
	if got := DNSReady("app.demo.example.com", true); !got.Healthy {
		t.Errorf("expected healthy, got %+v", got)
	}
}
