package helm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKubeconfig = `apiVersion: v1
kind: Config
clusters:
- cluster:
    server: https://127.0.0.1:6443
  name: test
contexts:
- context:
    cluster: test
    user: admin
    namespace: default
  name: test
current-context: test
users:
- name: admin
  user:
    token: secret
`

func TestRESTClientGetterAppliesNamespaceOverride(t *testing.T) {
	g := newRESTClientGetter([]byte(testKubeconfig), "app")

	ns, _, err := g.ToRawKubeConfigLoader().Namespace()
	require.NoError(t, err)
	assert.Equal(t, "app", ns)
}

func TestRESTClientGetterKeepsContextNamespaceByDefault(t *testing.T) {
	g := newRESTClientGetter([]byte(testKubeconfig), "")

	ns, _, err := g.ToRawKubeConfigLoader().Namespace()
	require.NoError(t, err)
	assert.Equal(t, "default", ns)
}

func TestRESTClientGetterBuildsRESTConfigOnce(t *testing.T) {
	g := newRESTClientGetter([]byte(testKubeconfig), "app")

	first, err := g.ToRESTConfig()
	require.NoError(t, err)
	second, err := g.ToRESTConfig()
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "https://127.0.0.1:6443", first.Host)
}

func TestRESTClientGetterRejectsGarbageKubeconfig(t *testing.T) {
	g := newRESTClientGetter([]byte("{not yaml"), "app")

	_, err := g.ToRESTConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse kubeconfig")
}
