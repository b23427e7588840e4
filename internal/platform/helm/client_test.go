package helm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChartRef(t *testing.T) {
	tests := []struct {
		name    string
		repoURL string
		chart   string
		want    string
		wantOCI bool
	}{
		{
			name:    "http repo uses bare chart name",
			repoURL: "https://charts.example.com",
			chart:   "api",
			want:    "api",
		},
		{
			name:    "oci repo builds full reference",
			repoURL: "oci://registry.example.com/charts",
			chart:   "api",
			want:    "oci://registry.example.com/charts/api",
			wantOCI: true,
		},
		{
			name:    "oci repo with trailing slash",
			repoURL: "oci://registry.example.com/charts/",
			chart:   "api",
			want:    "oci://registry.example.com/charts/api",
			wantOCI: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, oci := chartRef(tt.repoURL, tt.chart)
			assert.Equal(t, tt.want, ref)
			assert.Equal(t, tt.wantOCI, oci)
		})
	}
}

func TestRegistryClientBuiltOnce(t *testing.T) {
	c := NewClient([]byte(testKubeconfig))

	first, err := c.registryClient()
	require.NoError(t, err)
	second, err := c.registryClient()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestWithTimeout(t *testing.T) {
	c := NewClient([]byte(testKubeconfig), WithTimeout(time.Minute))
	assert.Equal(t, time.Minute, c.timeout)
}
