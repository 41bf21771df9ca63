// Package validator rejects malformed or unsafe InstanceSpecs before they
// can reach the container runtime. Validate never performs anything beyond
// stat-like existence checks; it has no other side effects.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/cuemby/transctrl/pkg/types"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Kind classifies why a spec was rejected.
type Kind string

const (
	KindInvalidID     Kind = "invalid_id"
	KindInvalidPath   Kind = "invalid_path"
	KindInvalidPort   Kind = "invalid_port"
	KindDuplicateID   Kind = "duplicate_id"
	KindDuplicatePort Kind = "duplicate_port"
)

// Error is returned for any validation failure. It always names the
// offending instance so callers can surface it in ReconcileResult.Errors
// without string parsing.
type Error struct {
	Kind       Kind
	InstanceID string
	Detail     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.InstanceID, e.Detail)
}

// Config holds the host-level policy Validate checks specs against.
type Config struct {
	// AllowedMountBase is the required string prefix of every mount path.
	// The check is a raw string-prefix comparison on the normalized
	// absolute path; it does not resolve symlinks, so a symlink under the
	// base pointing outside it is not caught. This mirrors the upstream
	// behavior and is documented rather than hardened.
	AllowedMountBase string
}

// Validate enforces the single-spec rules, in order: id shape, path safety,
// and port range. It performs no I/O beyond a stat-like existence check on
// each path attribute.
func Validate(spec *types.InstanceSpec, cfg Config) error {
	if !idPattern.MatchString(spec.ID) || strings.HasPrefix(spec.ID, "-") {
		return &Error{Kind: KindInvalidID, InstanceID: spec.ID, Detail: fmt.Sprintf("invalid instance id %q", spec.ID)}
	}

	for _, pa := range []struct {
		name string
		path string
	}{
		{"config_path", spec.ConfigPath},
		{"data_path", spec.DataPath},
		{"watch_path", spec.WatchPath},
	} {
		if err := validatePath(spec.ID, pa.name, pa.path, cfg.AllowedMountBase); err != nil {
			return err
		}
	}

	if spec.WebPort < 1024 || spec.WebPort > 65535 {
		return &Error{Kind: KindInvalidPort, InstanceID: spec.ID, Detail: fmt.Sprintf("web_port out of range: %d", spec.WebPort)}
	}
	if spec.DataPort < 1024 || spec.DataPort > 65535 {
		return &Error{Kind: KindInvalidPort, InstanceID: spec.ID, Detail: fmt.Sprintf("data_port out of range: %d", spec.DataPort)}
	}
	if spec.WebPort == spec.DataPort {
		return &Error{Kind: KindInvalidPort, InstanceID: spec.ID, Detail: "web_port and data_port must be different"}
	}

	return nil
}

func validatePath(instanceID, attr, path, allowedBase string) error {
	if !strings.HasPrefix(path, "/") {
		return &Error{Kind: KindInvalidPath, InstanceID: instanceID, Detail: fmt.Sprintf("%s must be an absolute path: %s", attr, path)}
	}
	if !strings.HasPrefix(filepath.Clean(path), allowedBase) {
		return &Error{Kind: KindInvalidPath, InstanceID: instanceID, Detail: fmt.Sprintf("%s must be under %s: %s", attr, allowedBase, path)}
	}
	if _, err := os.Stat(path); err != nil {
		return &Error{Kind: KindInvalidPath, InstanceID: instanceID, Detail: fmt.Sprintf("%s does not exist: %s", attr, path)}
	}
	return nil
}

// ValidateBatch validates every spec in ds against Validate, plus the
// batch-level uniqueness invariants: distinct ids, and distinct
// (web_port, data_port) host ports across the whole request. Specs that
// fail any check are dropped from valid and their error appended to errs;
// other specs still proceed. Order is preserved.
func ValidateBatch(ds *types.DesiredState, cfg Config) (valid []*types.InstanceSpec, errs []error) {
	seenIDs := make(map[string]bool, len(ds.Instances))
	seenPorts := make(map[int]string, len(ds.Instances)*2)

	for _, spec := range ds.Instances {
		if seenIDs[spec.ID] {
			errs = append(errs, &Error{Kind: KindDuplicateID, InstanceID: spec.ID, Detail: "duplicate instance id in request"})
			continue
		}
		if owner, ok := seenPorts[spec.WebPort]; ok {
			errs = append(errs, &Error{Kind: KindDuplicatePort, InstanceID: spec.ID, Detail: fmt.Sprintf("web_port %d already used by %s", spec.WebPort, owner)})
			continue
		}
		if owner, ok := seenPorts[spec.DataPort]; ok {
			errs = append(errs, &Error{Kind: KindDuplicatePort, InstanceID: spec.ID, Detail: fmt.Sprintf("data_port %d already used by %s", spec.DataPort, owner)})
			continue
		}
		if err := Validate(spec, cfg); err != nil {
			errs = append(errs, err)
			continue
		}

		seenIDs[spec.ID] = true
		seenPorts[spec.WebPort] = spec.ID
		seenPorts[spec.DataPort] = spec.ID
		valid = append(valid, spec)
	}

	return valid, errs
}
