package drift

import (
	"testing"

	"github.com/cuemby/transctrl/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSpec() *types.InstanceSpec {
	return &types.InstanceSpec{
		ID:         "seed1",
		ConfigPath: "/mnt/seed1/config",
		DataPath:   "/mnt/seed1/data",
		WatchPath:  "/mnt/seed1/watch",
		WebPort:    9091,
		DataPort:   51413,
	}
}

func matchingObserved() *types.ManagedContainer {
	return &types.ManagedContainer{
		Mounts: map[string]string{
			types.MountConfig:    "/mnt/seed1/config",
			types.MountDownloads: "/mnt/seed1/data",
			types.MountWatch:     "/mnt/seed1/watch",
		},
		PortBindings:     map[string]int{types.PortWeb: 9091, types.PortData: 51413},
		Image:            "linuxserver/transmission:latest",
		MemoryLimitBytes: 512 * 1024 * 1024,
		CPUQuota:         50000,
	}
}

func TestNeedsRecreation(t *testing.T) {
	cfg := Config{DefaultMemLimit: "512m", DefaultCPUQuota: 50000}

	tests := []struct {
		name    string
		mutate  func(*types.ManagedContainer)
		want    bool
		wantErr bool
	}{
		{name: "identical state", mutate: func(c *types.ManagedContainer) {}, want: false},
		{
			name:   "config mount drifted",
			mutate: func(c *types.ManagedContainer) { c.Mounts[types.MountConfig] = "/mnt/other/config" },
			want:   true,
		},
		{
			name:   "web port drifted",
			mutate: func(c *types.ManagedContainer) { c.PortBindings[types.PortWeb] = 9999 },
			want:   true,
		},
		{
			name:   "image tag drifted",
			mutate: func(c *types.ManagedContainer) { c.Image = "linuxserver/transmission:4.0" },
			want:   true,
		},
		{
			name:   "empty observed image tolerated",
			mutate: func(c *types.ManagedContainer) { c.Image = "" },
			want:   false,
		},
		{
			name:   "memory drifted",
			mutate: func(c *types.ManagedContainer) { c.MemoryLimitBytes = 256 * 1024 * 1024 },
			want:   true,
		},
		{
			name:   "cpu quota drifted",
			mutate: func(c *types.ManagedContainer) { c.CPUQuota = 10000 },
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observed := matchingObserved()
			tt.mutate(observed)

			got, err := NeedsRecreation(observed, baseSpec(), cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNeedsRecreation_SpecOverridesDefaults(t *testing.T) {
	cfg := Config{DefaultMemLimit: "512m", DefaultCPUQuota: 50000}
	spec := baseSpec()
	spec.ResourceLimits = &types.ResourceLimits{Memory: "1g", CPUQuota: 100000}

	observed := matchingObserved()
	observed.MemoryLimitBytes = 512 * 1024 * 1024 // matches default, not spec override

	drifted, err := NeedsRecreation(observed, spec, cfg)
	require.NoError(t, err)
	assert.True(t, drifted)
}

func TestNeedsRecreation_InvalidDefaultMemory(t *testing.T) {
	cfg := Config{DefaultMemLimit: "not-a-size", DefaultCPUQuota: 50000}
	_, err := NeedsRecreation(matchingObserved(), baseSpec(), cfg)
	assert.Error(t, err)
}

func TestParseMemory(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "512m", want: 512 * 1024 * 1024},
		{in: "1g", want: 1024 * 1024 * 1024},
		{in: "2048k", want: 2048 * 1024},
		{in: "1048576", want: 1048576},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "5x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMemory(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
