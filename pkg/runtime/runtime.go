// Package runtime defines the container-runtime contract the core depends
// on and a Docker-backed implementation of it. The core never talks to the
// runtime directly; it only ever sees this interface, so the reconciler,
// drift detector, and controller service are fully testable against an
// in-memory fake.
package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/cuemby/transctrl/pkg/types"
)

// ErrNotManaged is returned when an operation targets a container lacking
// the transctrl.managed=true label. It is a programmer error: the ownership
// invariant must never be violated by any call path.
var ErrNotManaged = errors.New("container is not managed by transctrl")

// ErrNotFound is returned when a container referenced by id or instance id
// does not exist.
var ErrNotFound = errors.New("container not found")

// CreateConfig carries the fixed container parameters applied to every
// instance, independent of the per-spec fields already on
// types.InstanceSpec.
type CreateConfig struct {
	Env            map[string]string
	RestartPolicy  string
	CapDrop        []string
	CapAdd         []string
	SecurityOpt    []string
	NetworkMode    string
	DefaultMem     string
	DefaultCPU     int64
	ImageNamespace string // "linuxserver/transmission"
}

// DefaultCreateConfig returns the fixed parameters every managed container
// is created with.
func DefaultCreateConfig(defaultMem string, defaultCPU int64) CreateConfig {
	return CreateConfig{
		Env:            map[string]string{"PUID": "1000", "PGID": "1000", "TZ": "UTC"},
		RestartPolicy:  "unless-stopped",
		CapDrop:        []string{"ALL"},
		CapAdd:         []string{"CHOWN", "SETGID", "SETUID"},
		SecurityOpt:    []string{"no-new-privileges=true"},
		NetworkMode:    "bridge",
		DefaultMem:     defaultMem,
		DefaultCPU:     defaultCPU,
		ImageNamespace: "linuxserver/transmission",
	}
}

// Driver is the capability surface the core consumes from the container
// runtime. Every method's ownership semantics are documented on the method.
type Driver interface {
	// ListManaged returns every container (including stopped ones) that
	// carries transctrl.managed=true.
	ListManaged(ctx context.Context) ([]*types.ManagedContainer, error)

	// GetManagedByInstanceID returns the single managed container for the
	// given instance id, or ErrNotFound.
	GetManagedByInstanceID(ctx context.Context, instanceID string) (*types.ManagedContainer, error)

	// CreateAndStart creates and starts a new container for spec, tagged
	// with the ownership and created-at labels. It never mutates an
	// existing container.
	CreateAndStart(ctx context.Context, spec *types.InstanceSpec, cfg CreateConfig) (*types.ManagedContainer, error)

	// Stop requests a graceful stop of container with the given grace
	// period. container.IsManaged() must be true; Stop re-checks it and
	// returns ErrNotManaged otherwise rather than touching the runtime.
	Stop(ctx context.Context, container *types.ManagedContainer, grace time.Duration) error

	// Remove force-removes container. Like Stop, it re-checks ownership
	// before issuing anything to the runtime.
	Remove(ctx context.Context, container *types.ManagedContainer) error
}
