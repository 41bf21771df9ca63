// Package types defines the data model shared by every component of the
// controller: the desired-state request shape, the view the runtime driver
// projects an observed container into, and the results handed back over RPC.
package types

import "time"

// ResourceLimits caps the memory and CPU a container may use. A zero value
// for either field means "use the configured default" rather than "no limit".
type ResourceLimits struct {
	Memory   string `json:"memory,omitempty"`
	CPUQuota int64  `json:"cpu_quota,omitempty"`
}

// InstanceSpec is the desired configuration of one Transmission container.
type InstanceSpec struct {
	ID             string          `json:"id"`
	ConfigPath     string          `json:"config_path"`
	DataPath       string          `json:"data_path"`
	WatchPath      string          `json:"watch_path"`
	WebPort        int             `json:"web_port"`
	DataPort       int             `json:"data_port"`
	ImageTag       string          `json:"image_tag,omitempty"`
	ResourceLimits *ResourceLimits `json:"resource_limits,omitempty"`
}

// DesiredState is an ordered collection of InstanceSpecs submitted in one
// Reconcile request.
type DesiredState struct {
	Instances []*InstanceSpec `json:"instances"`
}

// ContainerRuntimeState mirrors the runtime's notion of a container's
// lifecycle state.
type ContainerRuntimeState string

const (
	StateRunning    ContainerRuntimeState = "running"
	StateExited     ContainerRuntimeState = "exited"
	StateCreated    ContainerRuntimeState = "created"
	StateRestarting ContainerRuntimeState = "restarting"
	StatePaused     ContainerRuntimeState = "paused"
	StateDead       ContainerRuntimeState = "dead"
	StateOther      ContainerRuntimeState = "other"
)

// ManagedContainer is the observed state of a runtime container carrying the
// transctrl.managed=true label. Only the fields the core consults are kept.
type ManagedContainer struct {
	ContainerID      string
	Labels           map[string]string
	Mounts           map[string]string // destination ("/config", "/downloads", "/watch") -> host source path
	PortBindings     map[string]int    // "9091/tcp", "51413/tcp" -> host port (0 if absent/unparseable)
	Image            string
	MemoryLimitBytes int64
	CPUQuota         int64
	State            ContainerRuntimeState
}

// InstanceID returns the transctrl.instance-id label, or "" if unset.
func (c *ManagedContainer) InstanceID() string {
	if c == nil {
		return ""
	}
	return c.Labels["transctrl.instance-id"]
}

// IsManaged reports whether the container carries the ownership label. The
// core must never create, destroy, or inspect a container for which this is
// false.
func (c *ManagedContainer) IsManaged() bool {
	return c != nil && c.Labels["transctrl.managed"] == "true"
}

// InstanceState is the RPC-facing lifecycle projection of a container.
type InstanceState string

const (
	InstanceCreating InstanceState = "CREATING"
	InstanceRunning  InstanceState = "RUNNING"
	InstanceStopped  InstanceState = "STOPPED"
	InstanceError    InstanceState = "ERROR"
)

// InstanceStatus is the per-instance status returned by GetStatus/GetInstance.
type InstanceStatus struct {
	ID             string        `json:"id"`
	ContainerID    string        `json:"container_id"`
	Status         InstanceState `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	ActualWebPort  int           `json:"actual_web_port"`
	ActualDataPort int           `json:"actual_data_port"`
}

// CurrentState is the full set of managed instances observed at call time.
type CurrentState struct {
	Instances []*InstanceStatus `json:"instances"`
}

// ReconcileResult aggregates the outcome of one reconciliation.
type ReconcileResult struct {
	CreatedCount   int      `json:"created_count"`
	DestroyedCount int      `json:"destroyed_count"`
	UnchangedCount int      `json:"unchanged_count"`
	RecreatedCount int      `json:"recreated_count"`
	Errors         []string `json:"errors"`
}

// Labels fixed by the runtime-driver contract. They are the only keys the
// core ever reads or writes; ownership and created-at are never compared
// for drift.
const (
	LabelManaged    = "transctrl.managed"
	LabelInstanceID = "transctrl.instance-id"
	LabelCreatedAt  = "transctrl.created-at"
)

// Mount destinations the runtime driver binds into every container.
const (
	MountConfig    = "/config"
	MountDownloads = "/downloads"
	MountWatch     = "/watch"
)

// Container ports exposed by the linuxserver/transmission image.
const (
	PortWeb  = "9091/tcp"
	PortData = "51413/tcp"
)
