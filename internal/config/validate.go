package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
)

var nameRE = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Validate checks the descriptor for internally consistent, usable values.
// All problems are reported at once.
func (c *Config) Validate() error {
	var errs []error

	if c.ClusterName == "" {
		errs = append(errs, errors.New("clusterName is required"))
	} else if !nameRE.MatchString(c.ClusterName) {
		errs = append(errs, fmt.Errorf("clusterName %q must be a lowercase DNS label", c.ClusterName))
	}

	if c.Region == "" {
		errs = append(errs, errors.New("region is required"))
	}

	if _, _, err := net.ParseCIDR(c.Network.CIDR); err != nil {
		errs = append(errs, fmt.Errorf("network.cidr %q is not a valid CIDR: %w", c.Network.CIDR, err))
	}

	if c.Nodes.MinNodes < 1 {
		errs = append(errs, fmt.Errorf("nodes.minNodes must be at least 1, got %d", c.Nodes.MinNodes))
	}
	if c.Nodes.MaxNodes < c.Nodes.MinNodes {
		errs = append(errs, fmt.Errorf("nodes.maxNodes (%d) must not be below nodes.minNodes (%d)",
			c.Nodes.MaxNodes, c.Nodes.MinNodes))
	}
	if c.Nodes.DesiredNodes < c.Nodes.MinNodes || c.Nodes.DesiredNodes > c.Nodes.MaxNodes {
		errs = append(errs, fmt.Errorf("nodes.desiredNodes (%d) must be within [%d, %d]",
			c.Nodes.DesiredNodes, c.Nodes.MinNodes, c.Nodes.MaxNodes))
	}

	seen := make(map[string]bool)
	for _, w := range c.Workloads {
		if w.Name == "" {
			errs = append(errs, errors.New("workloads[].name is required"))
			continue
		}
		if seen[w.Namespace+"/"+w.Name] {
			errs = append(errs, fmt.Errorf("workload %s/%s is declared twice", w.Namespace, w.Name))
		}
		seen[w.Namespace+"/"+w.Name] = true
		if w.Chart == "" {
			errs = append(errs, fmt.Errorf("workload %s: chart is required", w.Name))
		}
	}

	if c.Ingress.Hostname != "" && c.Domain == "" {
		errs = append(errs, errors.New("ingress.hostname is set but domain is empty"))
	}

	return errors.Join(errs...)
}
