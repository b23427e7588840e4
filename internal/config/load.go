package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and parses the environment descriptor from a YAML file.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills derived and optional fields.
func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = "eu-central-1"
	}
	if c.Namespace == "" {
		c.Namespace = "default"
	}
	if c.Network.StackName == "" {
		c.Network.StackName = c.ClusterName + "-network"
	}
	if c.Network.CIDR == "" {
		c.Network.CIDR = "10.0.0.0/16"
	}
	if c.Nodes.GroupName == "" {
		c.Nodes.GroupName = c.ClusterName + "-workers"
	}
	if c.Nodes.InstanceType == "" {
		c.Nodes.InstanceType = "m5.large"
	}
	if c.Nodes.MinNodes == 0 {
		c.Nodes.MinNodes = 1
	}
	if c.Nodes.MaxNodes == 0 {
		c.Nodes.MaxNodes = 3
	}
	if c.Nodes.DesiredNodes == 0 {
		c.Nodes.DesiredNodes = c.Nodes.MinNodes
	}
	if c.IAM.RoleName == "" {
		c.IAM.RoleName = c.ClusterName + "-app"
	}
	if c.IAM.PolicyName == "" {
		c.IAM.PolicyName = c.ClusterName + "-bucket-access"
	}
	if c.IAM.ServiceAccount == "" {
		c.IAM.ServiceAccount = "app"
	}
	for i := range c.Workloads {
		if c.Workloads[i].Namespace == "" {
			c.Workloads[i].Namespace = c.Namespace
		}
		if c.Workloads[i].Replicas == 0 {
			c.Workloads[i].Replicas = 1
		}
	}
	if c.Ingress.Controller.Namespace == "" {
		c.Ingress.Controller.Namespace = "ingress-nginx"
	}
	if c.Ingress.DNS.Namespace == "" {
		c.Ingress.DNS.Namespace = "kube-system"
	}
	if c.Ingress.Hostname == "" && c.Domain != "" {
		c.Ingress.Hostname = "app." + c.Domain
	}
}
