// Package controller implements the RPC-facing operations (Reconcile,
// GetStatus, GetInstance) on top of the reconciler and runtime driver.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/transctrl/pkg/audit"
	"github.com/cuemby/transctrl/pkg/log"
	"github.com/cuemby/transctrl/pkg/metrics"
	"github.com/cuemby/transctrl/pkg/ratelimit"
	"github.com/cuemby/transctrl/pkg/reconciler"
	"github.com/cuemby/transctrl/pkg/runtime"
	"github.com/cuemby/transctrl/pkg/types"
	"github.com/cuemby/transctrl/pkg/validator"
	"github.com/rs/zerolog"
)

// ErrRateLimited is returned by Reconcile when the sliding window is full.
// The API layer maps it to codes.ResourceExhausted.
var ErrRateLimited = errors.New("reconcile rate limit exceeded")

// ErrInstanceNotFound is returned by GetInstance for an unknown id.
var ErrInstanceNotFound = errors.New("instance not found")

// Service implements the three controller operations exposed over RPC.
type Service struct {
	runtime    runtime.Driver
	reconciler *reconciler.Reconciler
	limiter    *ratelimit.Limiter
	validator  validator.Config
	audit      *audit.Logger
	logger     zerolog.Logger
}

// New wires a Service from its already-constructed dependencies.
func New(rt runtime.Driver, rec *reconciler.Reconciler, limiter *ratelimit.Limiter, vcfg validator.Config, al *audit.Logger) *Service {
	return &Service{
		runtime:    rt,
		reconciler: rec,
		limiter:    limiter,
		validator:  vcfg,
		audit:      al,
		logger:     log.WithComponent("controller"),
	}
}

// Reconcile validates the batch, enforces the rate limit, and drives the
// runtime toward the requested desired state. Invalid specs are dropped
// from the batch and reported as errors rather than aborting the whole
// request.
func (s *Service) Reconcile(ctx context.Context, ds *types.DesiredState) (*types.ReconcileResult, error) {
	if !s.limiter.Allow() {
		metrics.RateLimitRejectionsTotal.Inc()
		if s.audit != nil {
			s.audit.RateLimitRejected()
		}
		return nil, ErrRateLimited
	}

	timer := metrics.NewTimer()
	valid, verrs := validator.ValidateBatch(ds, s.validator)

	result := s.reconciler.Reconcile(ctx, valid)
	for _, verr := range verrs {
		result.Errors = append(result.Errors, verr.Error())
	}
	timer.ObserveDuration(metrics.ReconcileDuration)

	metrics.InstancesCreatedTotal.Add(float64(result.CreatedCount))
	metrics.InstancesDestroyedTotal.Add(float64(result.DestroyedCount))
	metrics.InstancesRecreatedTotal.Add(float64(result.RecreatedCount))
	outcome := "success"
	if len(result.Errors) > 0 {
		outcome = "partial_error"
	}
	metrics.ReconcileTotal.WithLabelValues(outcome).Inc()

	if s.audit != nil {
		s.audit.Reconcile(len(ds.Instances))
	}
	s.logger.Info().
		Int("created", result.CreatedCount).
		Int("destroyed", result.DestroyedCount).
		Int("unchanged", result.UnchangedCount).
		Int("recreated", result.RecreatedCount).
		Int("errors", len(result.Errors)).
		Msg("reconcile complete")

	return result, nil
}

// GetStatus returns the projected status of every managed container,
// independent of any desired state.
func (s *Service) GetStatus(ctx context.Context) (*types.CurrentState, error) {
	containers, err := s.runtime.ListManaged(ctx)
	if err != nil {
		return nil, fmt.Errorf("list managed containers: %w", err)
	}

	cs := &types.CurrentState{Instances: make([]*types.InstanceStatus, 0, len(containers))}
	for _, c := range containers {
		cs.Instances = append(cs.Instances, projectStatus(c))
	}
	return cs, nil
}

// GetInstance returns the projected status of a single instance.
func (s *Service) GetInstance(ctx context.Context, instanceID string) (*types.InstanceStatus, error) {
	c, err := s.runtime.GetManagedByInstanceID(ctx, instanceID)
	if err != nil {
		if errors.Is(err, runtime.ErrNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("get instance %s: %w", instanceID, err)
	}
	return projectStatus(c), nil
}

// projectStatus maps an observed container onto the RPC-facing InstanceStatus
// shape.
func projectStatus(c *types.ManagedContainer) *types.InstanceStatus {
	status := &types.InstanceStatus{
		ID:             c.InstanceID(),
		ContainerID:    c.ContainerID,
		Status:         projectState(c.State),
		ActualWebPort:  c.PortBindings[types.PortWeb],
		ActualDataPort: c.PortBindings[types.PortData],
	}

	if createdAt := c.Labels[types.LabelCreatedAt]; createdAt != "" {
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			status.CreatedAt = t
		}
	}

	return status
}

func projectState(s types.ContainerRuntimeState) types.InstanceState {
	switch s {
	case types.StateRunning:
		return types.InstanceRunning
	case types.StateExited, types.StatePaused:
		return types.InstanceStopped
	case types.StateCreated, types.StateRestarting:
		return types.InstanceCreating
	default:
		return types.InstanceError
	}
}
