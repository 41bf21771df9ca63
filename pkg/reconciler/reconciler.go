// Package reconciler computes and executes the action plan that drives the
// observed container set toward a DesiredState.
package reconciler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/transctrl/pkg/audit"
	"github.com/cuemby/transctrl/pkg/drift"
	"github.com/cuemby/transctrl/pkg/log"
	"github.com/cuemby/transctrl/pkg/runtime"
	"github.com/cuemby/transctrl/pkg/types"
	"github.com/cuemby/transctrl/pkg/validator"
	"github.com/rs/zerolog"
)

// StopGrace is the fixed stop timeout the destroy phase uses.
const StopGrace = 10 * time.Second

// Config holds the policy values the reconciler needs from the rest of the
// spec it does not own directly: the validator's mount-base policy, the
// drift detector's resource defaults, and the runtime driver's fixed
// container parameters.
type Config struct {
	Validator validator.Config
	Drift     drift.Config
	Create    runtime.CreateConfig
}

// Reconciler drives the runtime toward a desired set of InstanceSpecs.
type Reconciler struct {
	runtime runtime.Driver
	cfg     Config
	logger  zerolog.Logger
	audit   *audit.Logger
}

// New creates a Reconciler. audit may be nil to disable audit events.
func New(rt runtime.Driver, cfg Config, al *audit.Logger) *Reconciler {
	return &Reconciler{
		runtime: rt,
		cfg:     cfg,
		logger:  log.WithComponent("reconciler"),
		audit:   al,
	}
}

// plan is the transient partition of ids computed at the start of a
// reconciliation.
type plan struct {
	destroy   []*types.ManagedContainer
	create    []*types.InstanceSpec
	recreate  map[string]bool // instance id -> true, subset of create
	unchanged int
}

// Reconcile runs one end-to-end reconciliation: observe, plan, destroy
// phase, create phase, aggregate. It never returns an error itself — a
// catastrophic failure of the initial observation is reported as the sole
// entry of ReconcileResult.Errors with every counter left at zero.
func (r *Reconciler) Reconcile(ctx context.Context, specs []*types.InstanceSpec) *types.ReconcileResult {
	result := &types.ReconcileResult{}

	observed, err := r.runtime.ListManaged(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Global reconciliation error: %v", err))
		return result
	}

	observedByID := make(map[string]*types.ManagedContainer, len(observed))
	for _, c := range observed {
		if id := c.InstanceID(); id != "" {
			observedByID[id] = c
		}
	}

	p, planErrs := r.buildPlan(specs, observedByID)
	result.Errors = append(result.Errors, planErrs...)
	result.UnchangedCount = p.unchanged

	// Destroy phase strictly precedes create phase so a recreation that
	// reuses a host port does not race itself.
	for _, c := range p.destroy {
		if err := ctx.Err(); err != nil {
			break
		}
		instanceID := c.InstanceID()
		if !c.IsManaged() {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", instanceID, runtime.ErrNotManaged))
			continue
		}
		if err := r.runtime.Stop(ctx, c, StopGrace); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to destroy %s: %v", instanceID, err))
			continue
		}
		if err := r.runtime.Remove(ctx, c); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to destroy %s: %v", instanceID, err))
			continue
		}
		result.DestroyedCount++
		r.logger.Info().Str("instance_id", instanceID).Msg("destroyed container")
		if r.audit != nil {
			r.audit.InstanceDestroyed(instanceID)
		}
	}

	for _, spec := range p.create {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := validator.Validate(spec, r.cfg.Validator); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if _, err := r.runtime.CreateAndStart(ctx, spec, r.cfg.Create); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to create %s: %v", spec.ID, err))
			continue
		}
		result.CreatedCount++
		r.logger.Info().Str("instance_id", spec.ID).Msg("created container")
		if p.recreate[spec.ID] {
			result.RecreatedCount++
			if r.audit != nil {
				r.audit.InstanceRecreated(spec.ID)
			}
		} else if r.audit != nil {
			r.audit.InstanceCreated(spec.ID)
		}
	}

	return result
}

// buildPlan partitions desired/observed ids into create, destroy, recreate,
// and keep buckets. Creates and the destroy half of recreations follow spec
// order; observed containers absent from specs are destroyed after them, in
// instance-id order.
//
// A spec whose drift check cannot be evaluated (e.g. an unparseable resource
// limit) is reported as a per-spec error and skipped — it never aborts the
// rest of the batch.
func (r *Reconciler) buildPlan(specs []*types.InstanceSpec, observedByID map[string]*types.ManagedContainer) (*plan, []string) {
	p := &plan{recreate: map[string]bool{}}
	var errs []string

	desiredIDs := make(map[string]bool, len(specs))
	for _, spec := range specs {
		desiredIDs[spec.ID] = true

		observed, exists := observedByID[spec.ID]
		if !exists {
			p.create = append(p.create, spec)
			continue
		}

		drifted, err := drift.NeedsRecreation(observed, spec, r.cfg.Drift)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if drifted {
			p.destroy = append(p.destroy, observed)
			p.create = append(p.create, spec)
			p.recreate[spec.ID] = true
		} else {
			p.unchanged++
		}
	}

	orphanIDs := make([]string, 0, len(observedByID))
	for id := range observedByID {
		if !desiredIDs[id] {
			orphanIDs = append(orphanIDs, id)
		}
	}
	sort.Strings(orphanIDs)
	for _, id := range orphanIDs {
		p.destroy = append(p.destroy, observedByID[id])
	}

	return p, errs
}
