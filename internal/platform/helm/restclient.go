package helm

import (
	"fmt"
	"sync"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

// restClientGetter satisfies the RESTClientGetter contract the Helm action
// configuration requires, resolving everything from kubeconfig bytes held in
// memory. The REST config and discovery client are built once under the
// mutex; Helm asks for them repeatedly per action and discovery is expensive.
type restClientGetter struct {
	kubeconfig []byte
	namespace  string

	mu         sync.Mutex
	restConfig *rest.Config
	discovery  discovery.CachedDiscoveryInterface
}

func newRESTClientGetter(kubeconfig []byte, namespace string) *restClientGetter {
	return &restClientGetter{kubeconfig: kubeconfig, namespace: namespace}
}

// clientConfig parses the kubeconfig bytes and pins the getter's namespace
// over whatever the current context declares.
func (g *restClientGetter) clientConfig() (clientcmd.ClientConfig, error) {
	raw, err := clientcmd.Load(g.kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse kubeconfig: %w", err)
	}

	overrides := &clientcmd.ConfigOverrides{}
	if g.namespace != "" {
		overrides.Context.Namespace = g.namespace
	}
	return clientcmd.NewDefaultClientConfig(*raw, overrides), nil
}

// ToRESTConfig implements genericclioptions.RESTClientGetter.
func (g *restClientGetter) ToRESTConfig() (*rest.Config, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.restConfigLocked()
}

func (g *restClientGetter) restConfigLocked() (*rest.Config, error) {
	if g.restConfig != nil {
		return g.restConfig, nil
	}

	cc, err := g.clientConfig()
	if err != nil {
		return nil, err
	}
	cfg, err := cc.ClientConfig()
	if err != nil {
		return nil, err
	}
	g.restConfig = cfg
	return cfg, nil
}

// ToDiscoveryClient implements genericclioptions.RESTClientGetter.
func (g *restClientGetter) ToDiscoveryClient() (discovery.CachedDiscoveryInterface, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.discovery != nil {
		return g.discovery, nil
	}

	restConfig, err := g.restConfigLocked()
	if err != nil {
		return nil, err
	}
	dc, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, err
	}
	g.discovery = memory.NewMemCacheClient(dc)
	return g.discovery, nil
}

// ToRESTMapper implements genericclioptions.RESTClientGetter.
func (g *restClientGetter) ToRESTMapper() (meta.RESTMapper, error) {
	dc, err := g.ToDiscoveryClient()
	if err != nil {
		return nil, err
	}
	return restmapper.NewDeferredDiscoveryRESTMapper(dc), nil
}

// ToRawKubeConfigLoader implements genericclioptions.RESTClientGetter. The
// contract has no error return; an unparsable kubeconfig surfaces when Helm
// resolves the namespace from the empty config.
func (g *restClientGetter) ToRawKubeConfigLoader() clientcmd.ClientConfig {
	cc, err := g.clientConfig()
	if err != nil {
		return clientcmd.NewDefaultClientConfig(clientcmdapi.Config{}, &clientcmd.ConfigOverrides{})
	}
	return cc
}
