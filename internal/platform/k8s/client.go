// Package k8s implements in-cluster observation and diagnostics over
// client-go, plus DNS record lookups for the ingress gate.
package k8s

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/imamik/ekstack/internal/controlplane"
)

// Client implements controlplane.WorkloadAPI.
type Client struct {
	clientset kubernetes.Interface
	resolver  *net.Resolver
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithResolver sets a custom DNS resolver (useful for testing).
func WithResolver(r *net.Resolver) ClientOption {
	return func(c *Client) {
		c.resolver = r
	}
}

// WithClientset sets a custom clientset (useful for testing).
func WithClientset(cs kubernetes.Interface) ClientOption {
	return func(c *Client) {
		c.clientset = cs
	}
}

// NewClient creates a workload client from a kubeconfig path.
func NewClient(kubeconfigPath string, opts ...ClientOption) (*Client, error) {
	c := &Client{resolver: net.DefaultResolver}
	for _, opt := range opts {
		opt(c)
	}
	if c.clientset == nil {
		restConfig, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load kubeconfig %s: %w", kubeconfigPath, err)
		}
		c.clientset, err = kubernetes.NewForConfig(restConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
		}
	}
	return c, nil
}

// ObservePods implements controlplane.WorkloadAPI.
func (c *Client) ObservePods(ctx context.Context, namespace, labelSelector string) ([]controlplane.PodObservation, error) {
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return nil, controlplane.NewError(controlplane.ClassTransient, "observe pods", err)
	}

	observations := make([]controlplane.PodObservation, 0, len(pods.Items))
	for _, pod := range pods.Items {
		observations = append(observations, controlplane.PodObservation{
			Name:  pod.Name,
			Ready: podReady(&pod),
			Phase: string(pod.Status.Phase),
		})
	}
	return observations, nil
}

func podReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady {
			return cond.Status == corev1.ConditionTrue
		}
	}
	return false
}

// ObserveNodes implements controlplane.WorkloadAPI.
func (c *Client) ObserveNodes(ctx context.Context) ([]controlplane.NodeObservation, error) {
	nodes, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, controlplane.NewError(controlplane.ClassTransient, "observe nodes", err)
	}

	observations := make([]controlplane.NodeObservation, 0, len(nodes.Items))
	for _, node := range nodes.Items {
		ready := false
		for _, cond := range node.Status.Conditions {
			if cond.Type == corev1.NodeReady && cond.Status == corev1.ConditionTrue {
				ready = true
			}
		}
		observations = append(observations, controlplane.NodeObservation{
			Name:  node.Name,
			Ready: ready,
		})
	}
	return observations, nil
}

// CaptureDiagnostics implements controlplane.WorkloadAPI: recent warning
// events in the namespace plus log tails from unready matching pods.
func (c *Client) CaptureDiagnostics(ctx context.Context, namespace, labelSelector string) (controlplane.Diagnostics, error) {
	diag := controlplane.Diagnostics{Logs: make(map[string]string)}

	events, err := c.clientset.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{
		Limit: 20,
	})
	if err != nil {
		return diag, controlplane.NewError(controlplane.ClassTransient, "capture diagnostics", err)
	}
	for _, ev := range events.Items {
		if ev.Type == corev1.EventTypeNormal {
			continue
		}
		diag.Events = append(diag.Events,
			fmt.Sprintf("%s %s/%s: %s", ev.Reason, ev.InvolvedObject.Kind, ev.InvolvedObject.Name, ev.Message))
	}

	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return diag, nil
	}
	captured := 0
	for _, pod := range pods.Items {
		if podReady(&pod) || captured >= 3 {
			continue
		}
		diag.Logs[pod.Name] = c.tailLogs(ctx, namespace, pod.Name)
		captured++
	}
	return diag, nil
}

func (c *Client) tailLogs(ctx context.Context, namespace, pod string) string {
	tail := int64(20)
	req := c.clientset.CoreV1().Pods(namespace).GetLogs(pod, &corev1.PodLogOptions{
		TailLines: &tail,
	})
	stream, err := req.Stream(ctx)
	if err != nil {
		return fmt.Sprintf("logs unavailable: %v", err)
	}
	defer func() {
		_ = stream.Close()
	}()

	data, err := io.ReadAll(stream)
	if err != nil {
		return fmt.Sprintf("logs unavailable: %v", err)
	}
	return string(data)
}

// LookupDNSRecord implements controlplane.WorkloadAPI. A name that does not
// resolve yet is not an error; the ingress gate polls until it appears.
func (c *Client) LookupDNSRecord(ctx context.Context, fqdn string) (bool, []string, error) {
	addrs, err := c.resolver.LookupHost(ctx, fqdn)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && (dnsErr.IsNotFound || dnsErr.IsTemporary) {
			return false, nil, nil
		}
		return false, nil, controlplane.NewError(controlplane.ClassTransient, "lookup dns record", err)
	}
	return len(addrs) > 0, addrs, nil
}
