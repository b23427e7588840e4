package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
clusterName: demo
region: eu-west-1
namespace: apps
bucket: demo-artifacts
domain: demo.example.com
workloads:
  - name: api
    chart: api
    repoUrl: https://charts.example.com
    replicas: 3
    selector: app=api
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stack.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadFile_Valid(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.ClusterName != "demo" {
		t.Errorf("expected clusterName demo, got %q", cfg.ClusterName)
	}
	if cfg.Region != "eu-west-1" {
		t.Errorf("expected region eu-west-1, got %q", cfg.Region)
	}
	if len(cfg.Workloads) != 1 || cfg.Workloads[0].Replicas != 3 {
		t.Errorf("unexpected workloads: %+v", cfg.Workloads)
	}
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Network.StackName != "demo-network" {
		t.Errorf("expected derived stack name demo-network, got %q", cfg.Network.StackName)
	}
	if cfg.Network.CIDR != "10.0.0.0/16" {
		t.Errorf("expected default CIDR, got %q", cfg.Network.CIDR)
	}
	if cfg.Nodes.GroupName != "demo-workers" {
		t.Errorf("expected derived node group name, got %q", cfg.Nodes.GroupName)
	}
	if cfg.Nodes.MinNodes != 1 || cfg.Nodes.MaxNodes != 3 || cfg.Nodes.DesiredNodes != 1 {
		t.Errorf("unexpected node sizing defaults: %+v", cfg.Nodes)
	}
	if cfg.Workloads[0].Namespace != "apps" {
		t.Errorf("expected workload namespace inherited from descriptor, got %q", cfg.Workloads[0].Namespace)
	}
	if cfg.Ingress.Hostname != "app.demo.example.com" {
		t.Errorf("expected derived ingress hostname, got %q", cfg.Ingress.Hostname)
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	if _, err := LoadFile(writeConfig(t, "clusterName: [unclosed")); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{
		ClusterName: "Bad_Name",
		Network:     NetworkConfig{CIDR: "not-a-cidr"},
		Nodes:       NodesConfig{MinNodes: 2, MaxNodes: 1, DesiredNodes: 5},
		Workloads:   []ReleaseConfig{{Name: "api"}},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	for _, want := range []string{"clusterName", "cidr", "maxNodes", "chart is required", "region"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got: %v", want, err)
		}
	}
}

func TestValidate_DuplicateWorkloads(t *testing.T) {
	cfg := &Config{
		ClusterName: "demo",
		Region:      "eu-west-1",
		Network:     NetworkConfig{CIDR: "10.0.0.0/16"},
		Nodes:       NodesConfig{MinNodes: 1, MaxNodes: 2, DesiredNodes: 1},
		Workloads: []ReleaseConfig{
			{Name: "api", Namespace: "apps", Chart: "api"},
			{Name: "api", Namespace: "apps", Chart: "api"},
		},
	}

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "declared twice") {
		t.Fatalf("expected duplicate workload error, got: %v", err)
	}
}

func TestLoadTimeouts_Defaults(t *testing.T) {
	tm := LoadTimeouts()

	if tm.StuckThreshold != 5*time.Minute {
		t.Errorf("expected 5m stuck threshold, got %v", tm.StuckThreshold)
	}
	if tm.PollInterval != 10*time.Second {
		t.Errorf("expected 10s poll interval, got %v", tm.PollInterval)
	}
}

func TestLoadTimeouts_EnvOverride(t *testing.T) {
	t.Setenv("EKSTACK_STUCK_THRESHOLD", "90s")
	t.Setenv("EKSTACK_POLL_INTERVAL", "garbage")

	tm := LoadTimeouts()

	if tm.StuckThreshold != 90*time.Second {
		t.Errorf("expected overridden threshold 90s, got %v", tm.StuckThreshold)
	}
	if tm.PollInterval != 10*time.Second {
		t.Errorf("expected fallback to default on bad value, got %v", tm.PollInterval)
	}
}
