// Package drift implements the pure comparison between an observed
// container and the InstanceSpec it is supposed to satisfy.
package drift

import (
	"fmt"

	"github.com/cuemby/transctrl/pkg/types"
	"github.com/docker/go-units"
)

// Config supplies the defaults used when a spec omits resource limits.
type Config struct {
	DefaultMemLimit string
	DefaultCPUQuota int64
}

// NeedsRecreation returns true if any compared field differs between the
// observed container and the spec. Image reference comparison tolerates an
// empty/unknown observed image (digest-only records) by treating it as a
// match.
func NeedsRecreation(observed *types.ManagedContainer, spec *types.InstanceSpec, cfg Config) (bool, error) {
	if observed.Mounts[types.MountConfig] != spec.ConfigPath {
		return true, nil
	}
	if observed.Mounts[types.MountDownloads] != spec.DataPath {
		return true, nil
	}
	if observed.Mounts[types.MountWatch] != spec.WatchPath {
		return true, nil
	}

	if observed.PortBindings[types.PortWeb] != spec.WebPort {
		return true, nil
	}
	if observed.PortBindings[types.PortData] != spec.DataPort {
		return true, nil
	}

	tag := spec.ImageTag
	if tag == "" {
		tag = "latest"
	}
	wantImage := fmt.Sprintf("linuxserver/transmission:%s", tag)
	if observed.Image != "" && observed.Image != wantImage {
		return true, nil
	}

	memStr := cfg.DefaultMemLimit
	var cpuQuota int64 = cfg.DefaultCPUQuota
	if spec.ResourceLimits != nil {
		if spec.ResourceLimits.Memory != "" {
			memStr = spec.ResourceLimits.Memory
		}
		if spec.ResourceLimits.CPUQuota != 0 {
			cpuQuota = spec.ResourceLimits.CPUQuota
		}
	}

	wantMem, err := ParseMemory(memStr)
	if err != nil {
		return false, fmt.Errorf("instance %s: %w", spec.ID, err)
	}
	if observed.MemoryLimitBytes != wantMem {
		return true, nil
	}
	if observed.CPUQuota != cpuQuota {
		return true, nil
	}

	return false, nil
}

// ParseMemory parses a memory string with an optional trailing k/K, m/M, or
// g/G unit (powers of 1024) into a byte count. An absent unit is raw bytes.
// An unparseable string is returned as an error rather than silently
// causing drift.
func ParseMemory(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty memory string")
	}
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid memory string %q: %w", s, err)
	}
	return n, nil
}
