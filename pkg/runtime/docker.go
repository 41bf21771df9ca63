package runtime

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cuemby/transctrl/pkg/drift"
	"github.com/cuemby/transctrl/pkg/types"
	"github.com/distribution/reference"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// DockerDriver implements Driver against a real Docker daemon.
type DockerDriver struct {
	cli *client.Client
}

// NewDockerDriver dials the Docker daemon at host (e.g.
// "unix:///var/run/docker.sock", the DOCKER_HOST setting).
func NewDockerDriver(host string) (*DockerDriver, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	} else {
		opts = append(opts, client.FromEnv)
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to docker at %s: %w", host, err)
	}
	return &DockerDriver{cli: cli}, nil
}

// Close releases the underlying client connection.
func (d *DockerDriver) Close() error {
	return d.cli.Close()
}

func managedFilter(extra ...filters.KeyValuePair) filters.Args {
	args := filters.NewArgs(filters.Arg("label", types.LabelManaged+"=true"))
	for _, kv := range extra {
		args.Add(kv.Key, kv.Value)
	}
	return args
}

func (d *DockerDriver) ListManaged(ctx context.Context) ([]*types.ManagedContainer, error) {
	summaries, err := d.cli.ContainerList(ctx, dockercontainer.ListOptions{
		All:     true,
		Filters: managedFilter(),
	})
	if err != nil {
		return nil, fmt.Errorf("list managed containers: %w", err)
	}

	out := make([]*types.ManagedContainer, 0, len(summaries))
	for _, s := range summaries {
		mc, err := d.inspect(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("inspect %s: %w", s.ID, err)
		}
		if !mc.IsManaged() {
			continue
		}
		out = append(out, mc)
	}
	return out, nil
}

func (d *DockerDriver) GetManagedByInstanceID(ctx context.Context, instanceID string) (*types.ManagedContainer, error) {
	summaries, err := d.cli.ContainerList(ctx, dockercontainer.ListOptions{
		All: true,
		Filters: managedFilter(filters.KeyValuePair{
			Key:   "label",
			Value: types.LabelInstanceID + "=" + instanceID,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("list container for instance %s: %w", instanceID, err)
	}
	if len(summaries) == 0 {
		return nil, ErrNotFound
	}

	mc, err := d.inspect(ctx, summaries[0].ID)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", summaries[0].ID, err)
	}
	if !mc.IsManaged() {
		return nil, ErrNotFound
	}
	return mc, nil
}

func (d *DockerDriver) inspect(ctx context.Context, containerID string) (*types.ManagedContainer, error) {
	info, err := d.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return nil, err
	}

	mc := &types.ManagedContainer{
		ContainerID:  info.ID,
		Labels:       map[string]string{},
		Mounts:       map[string]string{},
		PortBindings: map[string]int{},
		State:        types.StateOther,
	}

	if info.Config != nil {
		mc.Labels = info.Config.Labels
		mc.Image = info.Config.Image
	}

	for _, m := range info.Mounts {
		mc.Mounts[string(m.Destination)] = m.Source
	}

	if info.HostConfig != nil {
		for _, port := range []string{types.PortWeb, types.PortData} {
			bindings, ok := info.HostConfig.PortBindings[nat.Port(port)]
			if !ok || len(bindings) == 0 {
				continue
			}
			hp, err := strconv.Atoi(bindings[0].HostPort)
			if err != nil {
				continue
			}
			mc.PortBindings[port] = hp
		}
		mc.MemoryLimitBytes = info.HostConfig.Memory
		mc.CPUQuota = info.HostConfig.CPUQuota
	}

	if info.State != nil {
		mc.State = runtimeState(info.State.Status)
	}

	return mc, nil
}

func runtimeState(status string) types.ContainerRuntimeState {
	switch types.ContainerRuntimeState(status) {
	case types.StateRunning, types.StateExited, types.StateCreated, types.StateRestarting, types.StatePaused, types.StateDead:
		return types.ContainerRuntimeState(status)
	default:
		return types.StateOther
	}
}

func (d *DockerDriver) CreateAndStart(ctx context.Context, spec *types.InstanceSpec, cfg CreateConfig) (*types.ManagedContainer, error) {
	tag := spec.ImageTag
	if tag == "" {
		tag = "latest"
	}
	image := fmt.Sprintf("%s:%s", cfg.ImageNamespace, tag)
	named, err := reference.ParseNormalizedNamed(image)
	if err != nil {
		return nil, fmt.Errorf("instance %s: invalid image reference %q: %w", spec.ID, image, err)
	}
	// Keep the familiar form ("linuxserver/transmission:<tag>"): the daemon
	// stores Config.Image as given, and drift compares against that form.
	image = reference.FamiliarString(reference.TagNameOnly(named))

	webPort, err := nat.NewPort("tcp", "9091")
	if err != nil {
		return nil, err
	}
	dataPort, err := nat.NewPort("tcp", "51413")
	if err != nil {
		return nil, err
	}

	memLimit := cfg.DefaultMem
	var cpuQuota int64 = cfg.DefaultCPU
	if spec.ResourceLimits != nil {
		if spec.ResourceLimits.Memory != "" {
			memLimit = spec.ResourceLimits.Memory
		}
		if spec.ResourceLimits.CPUQuota != 0 {
			cpuQuota = spec.ResourceLimits.CPUQuota
		}
	}
	memBytes, err := drift.ParseMemory(memLimit)
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", spec.ID, err)
	}

	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}

	labels := map[string]string{
		types.LabelManaged:    "true",
		types.LabelInstanceID: spec.ID,
		types.LabelCreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	containerCfg := &dockercontainer.Config{
		Image:  image,
		Env:    env,
		Labels: labels,
		ExposedPorts: nat.PortSet{
			webPort:  struct{}{},
			dataPort: struct{}{},
		},
	}

	hostCfg := &dockercontainer.HostConfig{
		Mounts: []mount.Mount{
			{Type: mount.TypeBind, Source: spec.ConfigPath, Target: types.MountConfig},
			{Type: mount.TypeBind, Source: spec.DataPath, Target: types.MountDownloads},
			{Type: mount.TypeBind, Source: spec.WatchPath, Target: types.MountWatch},
		},
		PortBindings: nat.PortMap{
			webPort:  []nat.PortBinding{{HostPort: strconv.Itoa(spec.WebPort)}},
			dataPort: []nat.PortBinding{{HostPort: strconv.Itoa(spec.DataPort)}},
		},
		RestartPolicy: dockercontainer.RestartPolicy{Name: dockercontainer.RestartPolicyMode(cfg.RestartPolicy)},
		Resources: dockercontainer.Resources{
			Memory:   memBytes,
			CPUQuota: cpuQuota,
		},
		CapDrop:     cfg.CapDrop,
		CapAdd:      cfg.CapAdd,
		SecurityOpt: cfg.SecurityOpt,
		NetworkMode: dockercontainer.NetworkMode(cfg.NetworkMode),
	}

	name := fmt.Sprintf("transctrl-%s", spec.ID)
	created, err := d.cli.ContainerCreate(ctx, containerCfg, hostCfg, &network.NetworkingConfig{}, nil, name)
	if err != nil {
		return nil, fmt.Errorf("create container %s: %w", name, err)
	}

	if err := d.cli.ContainerStart(ctx, created.ID, dockercontainer.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container %s: %w", name, err)
	}

	return d.inspect(ctx, created.ID)
}

func (d *DockerDriver) Stop(ctx context.Context, c *types.ManagedContainer, grace time.Duration) error {
	if !c.IsManaged() {
		return ErrNotManaged
	}
	seconds := int(grace.Seconds())
	return d.cli.ContainerStop(ctx, c.ContainerID, dockercontainer.StopOptions{Timeout: &seconds})
}

func (d *DockerDriver) Remove(ctx context.Context, c *types.ManagedContainer) error {
	if !c.IsManaged() {
		return ErrNotManaged
	}
	return d.cli.ContainerRemove(ctx, c.ContainerID, dockercontainer.RemoveOptions{Force: true})
}
