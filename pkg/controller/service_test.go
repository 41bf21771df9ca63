package controller

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/cuemby/transctrl/pkg/drift"
	"github.com/cuemby/transctrl/pkg/ratelimit"
	"github.com/cuemby/transctrl/pkg/reconciler"
	"github.com/cuemby/transctrl/pkg/runtime"
	"github.com/cuemby/transctrl/pkg/types"
	"github.com/cuemby/transctrl/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver is a minimal in-memory runtime.Driver for exercising Service
// without a Docker daemon.
type fakeDriver struct {
	containers []*types.ManagedContainer
	listErr    error
	getErr     error
}

func (f *fakeDriver) ListManaged(ctx context.Context) ([]*types.ManagedContainer, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.containers, nil
}

func (f *fakeDriver) GetManagedByInstanceID(ctx context.Context, instanceID string) (*types.ManagedContainer, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, c := range f.containers {
		if c.InstanceID() == instanceID {
			return c, nil
		}
	}
	return nil, runtime.ErrNotFound
}

func (f *fakeDriver) CreateAndStart(ctx context.Context, spec *types.InstanceSpec, cfg runtime.CreateConfig) (*types.ManagedContainer, error) {
	c := &types.ManagedContainer{
		ContainerID: spec.ID + "-c",
		Labels: map[string]string{
			types.LabelManaged:    "true",
			types.LabelInstanceID: spec.ID,
			types.LabelCreatedAt:  time.Now().UTC().Format(time.RFC3339),
		},
		PortBindings: map[string]int{types.PortWeb: spec.WebPort, types.PortData: spec.DataPort},
		State:        types.StateRunning,
	}
	f.containers = append(f.containers, c)
	return c, nil
}

func (f *fakeDriver) Stop(ctx context.Context, c *types.ManagedContainer, grace time.Duration) error {
	return nil
}

func (f *fakeDriver) Remove(ctx context.Context, c *types.ManagedContainer) error {
	return nil
}

func testService(t *testing.T, d *fakeDriver, limiter *ratelimit.Limiter) *Service {
	t.Helper()
	base := t.TempDir()
	vcfg := validator.Config{AllowedMountBase: base}
	rec := reconciler.New(d, reconciler.Config{
		Validator: vcfg,
		Drift:     drift.Config{DefaultMemLimit: "512m", DefaultCPUQuota: 50000},
		Create:    runtime.DefaultCreateConfig("512m", 50000),
	}, nil)
	if limiter == nil {
		limiter = ratelimit.New(0, 0)
	}
	return New(d, rec, limiter, vcfg, nil)
}

func TestService_Reconcile_RejectsWhenRateLimited(t *testing.T) {
	d := &fakeDriver{}
	svc := testService(t, d, ratelimit.New(1, time.Minute))

	ds := &types.DesiredState{}
	_, err := svc.Reconcile(context.Background(), ds)
	require.NoError(t, err)

	_, err = svc.Reconcile(context.Background(), ds)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestService_Reconcile_ReportsInvalidSpecsWithoutAborting(t *testing.T) {
	d := &fakeDriver{}
	svc := testService(t, d, nil)

	ds := &types.DesiredState{
		Instances: []*types.InstanceSpec{
			{ID: "bad id", WebPort: 9091, DataPort: 51413},
		},
	}

	result, err := svc.Reconcile(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 0, result.CreatedCount)
	require.Len(t, result.Errors, 1)
}

func TestService_Reconcile_CreatesValidInstance(t *testing.T) {
	d := &fakeDriver{}
	base := t.TempDir()
	configPath, dataPath, watchPath := base+"/config", base+"/data", base+"/watch"
	for _, p := range []string{configPath, dataPath, watchPath} {
		require.NoError(t, os.MkdirAll(p, 0o755))
	}

	vcfg := validator.Config{AllowedMountBase: base}
	rec := reconciler.New(d, reconciler.Config{
		Validator: vcfg,
		Drift:     drift.Config{DefaultMemLimit: "512m", DefaultCPUQuota: 50000},
		Create:    runtime.DefaultCreateConfig("512m", 50000),
	}, nil)
	svc := New(d, rec, ratelimit.New(0, 0), vcfg, nil)

	ds := &types.DesiredState{
		Instances: []*types.InstanceSpec{
			{ID: "seed1", ConfigPath: configPath, DataPath: dataPath, WatchPath: watchPath, WebPort: 9091, DataPort: 51413},
		},
	}

	result, err := svc.Reconcile(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CreatedCount)
	assert.Empty(t, result.Errors)
}

func TestService_GetStatus_ProjectsEveryContainer(t *testing.T) {
	d := &fakeDriver{containers: []*types.ManagedContainer{
		{
			ContainerID:  "c1",
			Labels:       map[string]string{types.LabelManaged: "true", types.LabelInstanceID: "seed1"},
			PortBindings: map[string]int{types.PortWeb: 9091, types.PortData: 51413},
			State:        types.StateRunning,
		},
		{
			ContainerID:  "c2",
			Labels:       map[string]string{types.LabelManaged: "true", types.LabelInstanceID: "seed2"},
			PortBindings: map[string]int{types.PortWeb: 9092, types.PortData: 51414},
			State:        types.StateExited,
		},
	}}
	svc := testService(t, d, nil)

	state, err := svc.GetStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, state.Instances, 2)
}

func TestService_GetStatus_PropagatesDriverError(t *testing.T) {
	d := &fakeDriver{listErr: errors.New("docker daemon unreachable")}
	svc := testService(t, d, nil)

	_, err := svc.GetStatus(context.Background())
	assert.Error(t, err)
}

func TestService_GetInstance_Found(t *testing.T) {
	d := &fakeDriver{containers: []*types.ManagedContainer{
		{
			ContainerID:  "c1",
			Labels:       map[string]string{types.LabelManaged: "true", types.LabelInstanceID: "seed1"},
			PortBindings: map[string]int{types.PortWeb: 9091, types.PortData: 51413},
			State:        types.StateRunning,
		},
	}}
	svc := testService(t, d, nil)

	inst, err := svc.GetInstance(context.Background(), "seed1")
	require.NoError(t, err)
	assert.Equal(t, "seed1", inst.ID)
	assert.Equal(t, types.InstanceRunning, inst.Status)
}

func TestService_GetInstance_NotFound(t *testing.T) {
	d := &fakeDriver{}
	svc := testService(t, d, nil)

	_, err := svc.GetInstance(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestProjectState(t *testing.T) {
	tests := []struct {
		in   types.ContainerRuntimeState
		want types.InstanceState
	}{
		{types.StateRunning, types.InstanceRunning},
		{types.StateExited, types.InstanceStopped},
		{types.StatePaused, types.InstanceStopped},
		{types.StateDead, types.InstanceError},
		{types.StateCreated, types.InstanceCreating},
		{types.StateRestarting, types.InstanceCreating},
		{types.ContainerRuntimeState("unknown"), types.InstanceError},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, projectState(tt.in))
		})
	}
}
