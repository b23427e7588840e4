package config

import (
	"os"
	"time"
)

// Timeouts holds the upper bound for every long-running external wait.
// Each value can be overridden via an environment variable; on timeout the
// operation is abandoned locally and reported, never killed server-side.
type Timeouts struct {
	StackCreate    time.Duration // CloudFormation stack creation
	StackDelete    time.Duration // CloudFormation stack deletion
	ClusterCreate  time.Duration // EKS cluster creation
	ClusterDelete  time.Duration // EKS cluster deletion
	NodesReady     time.Duration // worker node readiness
	ReleaseRollout time.Duration // workload rollout readiness
	DNSPropagation time.Duration // ingress DNS record propagation
	PollInterval   time.Duration // convergence poll interval
	StuckThreshold time.Duration // DELETE_IN_PROGRESS age before forced cleanup
}

// LoadTimeouts loads timeout configuration from environment variables.
// If a variable is not set or invalid, the default is used.
//
// Environment Variables:
//   - EKSTACK_TIMEOUT_STACK_CREATE (default: 15m)
//   - EKSTACK_TIMEOUT_STACK_DELETE (default: 20m)
//   - EKSTACK_TIMEOUT_CLUSTER_CREATE (default: 25m)
//   - EKSTACK_TIMEOUT_CLUSTER_DELETE (default: 15m)
//   - EKSTACK_TIMEOUT_NODES_READY (default: 10m)
//   - EKSTACK_TIMEOUT_RELEASE_ROLLOUT (default: 10m)
//   - EKSTACK_TIMEOUT_DNS_PROPAGATION (default: 5m)
//   - EKSTACK_POLL_INTERVAL (default: 10s)
//   - EKSTACK_STUCK_THRESHOLD (default: 5m)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		StackCreate:    parseDuration("EKSTACK_TIMEOUT_STACK_CREATE", 15*time.Minute),
		StackDelete:    parseDuration("EKSTACK_TIMEOUT_STACK_DELETE", 20*time.Minute),
		ClusterCreate:  parseDuration("EKSTACK_TIMEOUT_CLUSTER_CREATE", 25*time.Minute),
		ClusterDelete:  parseDuration("EKSTACK_TIMEOUT_CLUSTER_DELETE", 15*time.Minute),
		NodesReady:     parseDuration("EKSTACK_TIMEOUT_NODES_READY", 10*time.Minute),
		ReleaseRollout: parseDuration("EKSTACK_TIMEOUT_RELEASE_ROLLOUT", 10*time.Minute),
		DNSPropagation: parseDuration("EKSTACK_TIMEOUT_DNS_PROPAGATION", 5*time.Minute),
		PollInterval:   parseDuration("EKSTACK_POLL_INTERVAL", 10*time.Second),
		StuckThreshold: parseDuration("EKSTACK_STUCK_THRESHOLD", 5*time.Minute),
	}
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}
