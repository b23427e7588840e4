// Package config defines the environment descriptor that drives a run.
//
// The descriptor is the sole input to every forward and teardown run. It is
// loaded once, validated, and passed by reference into every component;
// nothing in the core mutates it after load.
package config

// Config is the environment descriptor for one target stack.
type Config struct {
	ClusterName    string `yaml:"clusterName"`
	Region         string `yaml:"region"`
	Namespace      string `yaml:"namespace"`
	Bucket         string `yaml:"bucket"`
	Domain         string `yaml:"domain"`
	CertificateARN string `yaml:"certificateArn"`
	HostedZoneID   string `yaml:"hostedZoneId"`

	// KubeconfigPath points at the kubeconfig for the target cluster.
	// Written by `aws eks update-kubeconfig` after the cluster phase.
	KubeconfigPath string `yaml:"kubeconfigPath"`

	Network   NetworkConfig   `yaml:"network"`
	Nodes     NodesConfig     `yaml:"nodes"`
	IAM       IAMConfig       `yaml:"iam"`
	Workloads []ReleaseConfig `yaml:"workloads"`
	Ingress   IngressConfig   `yaml:"ingress"`
}

// NetworkConfig describes the CloudFormation network stack.
type NetworkConfig struct {
	StackName string `yaml:"stackName"`
	CIDR      string `yaml:"cidr"`
	// TemplateFile is the path to the CloudFormation template body.
	TemplateFile string `yaml:"templateFile"`
}

// NodesConfig describes the managed node group.
type NodesConfig struct {
	GroupName    string `yaml:"groupName"`
	InstanceType string `yaml:"instanceType"`
	MinNodes     int    `yaml:"minNodes"`
	MaxNodes     int    `yaml:"maxNodes"`
	DesiredNodes int    `yaml:"desiredNodes"`
}

// IAMConfig describes the service-account role binding for bucket access.
type IAMConfig struct {
	RoleName       string `yaml:"roleName"`
	PolicyName     string `yaml:"policyName"`
	ServiceAccount string `yaml:"serviceAccount"`
}

// ReleaseConfig describes one Helm release managed by the pipeline.
type ReleaseConfig struct {
	Name      string `yaml:"name"`
	Namespace string `yaml:"namespace"`
	RepoURL   string `yaml:"repoUrl"`
	Chart     string `yaml:"chart"`
	Version   string `yaml:"version"`
	// ValuesFile is an optional YAML values file merged into the release.
	ValuesFile string `yaml:"valuesFile"`
	// Selector is the pod label selector used for rollout readiness.
	Selector string `yaml:"selector"`
	// Replicas is the expected ready replica count for the rollout gate.
	Replicas int `yaml:"replicas"`
}

// IngressConfig describes the ingress controller and DNS management releases.
type IngressConfig struct {
	Controller ReleaseConfig `yaml:"controller"`
	DNS        ReleaseConfig `yaml:"dns"`
	// Hostname is the DNS record the ingress phase gates on.
	Hostname string `yaml:"hostname"`
}
