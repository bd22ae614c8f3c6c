package engine

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/volume"

	"github.com/containai/cai/internal/common"
)

// InspectContainer returns the raw container inspect result via the Docker
// SDK, connecting through the named context's endpoint.
func (a *Adapter) InspectContainer(ctx context.Context, contextName, nameOrID string) (container.InspectResponse, error) {
	cli, err := a.sdkClientForContext(ctx, contextName)
	if err != nil {
		return container.InspectResponse{}, fmt.Errorf("connect to context %s: %w", contextName, err)
	}
	defer cli.Close()
	return cli.ContainerInspect(ctx, nameOrID)
}

// ListContainersByLabel lists all containers (running or not) carrying the
// given label=value filter.
func (a *Adapter) ListContainersByLabel(ctx context.Context, contextName, label, value string) ([]container.Summary, error) {
	cli, err := a.sdkClientForContext(ctx, contextName)
	if err != nil {
		return nil, fmt.Errorf("connect to context %s: %w", contextName, err)
	}
	defer cli.Close()

	f := filters.NewArgs()
	if value != "" {
		f.Add("label", fmt.Sprintf("%s=%s", label, value))
	} else {
		f.Add("label", label)
	}

	return cli.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
}

// VolumeExists probes whether a named volume exists in the given context.
func (a *Adapter) VolumeExists(ctx context.Context, contextName, name string) (bool, error) {
	cli, err := a.sdkClientForContext(ctx, contextName)
	if err != nil {
		return false, fmt.Errorf("connect to context %s: %w", contextName, err)
	}
	defer cli.Close()

	_, err = cli.VolumeInspect(ctx, name)
	if err != nil {
		return false, nil
	}
	return true, nil
}

// EnsureVolume creates the named volume if it does not already exist.
func (a *Adapter) EnsureVolume(ctx context.Context, contextName, name string) error {
	cli, err := a.sdkClientForContext(ctx, contextName)
	if err != nil {
		return fmt.Errorf("connect to context %s: %w", contextName, err)
	}
	defer cli.Close()

	if _, err := cli.VolumeInspect(ctx, name); err == nil {
		return nil
	}
	_, err = cli.VolumeCreate(ctx, volume.CreateOptions{Name: name})
	return err
}

// ListManagedContainers lists every container carrying containai.managed=true.
func (a *Adapter) ListManagedContainers(ctx context.Context, contextName string) ([]container.Summary, error) {
	return a.ListContainersByLabel(ctx, contextName, common.LabelPrefix+"managed", "true")
}

// RemoveContainer force-removes a container by ID or name.
func (a *Adapter) RemoveContainer(ctx context.Context, contextName, nameOrID string) error {
	cli, err := a.sdkClientForContext(ctx, contextName)
	if err != nil {
		return fmt.Errorf("connect to context %s: %w", contextName, err)
	}
	defer cli.Close()
	return cli.ContainerRemove(ctx, nameOrID, container.RemoveOptions{Force: true})
}

// StopContainer stops a running container.
func (a *Adapter) StopContainer(ctx context.Context, contextName, nameOrID string) error {
	cli, err := a.sdkClientForContext(ctx, contextName)
	if err != nil {
		return fmt.Errorf("connect to context %s: %w", contextName, err)
	}
	defer cli.Close()
	return cli.ContainerStop(ctx, nameOrID, container.StopOptions{})
}

// ListImages lists every image on the engine.
func (a *Adapter) ListImages(ctx context.Context, contextName string) ([]image.Summary, error) {
	cli, err := a.sdkClientForContext(ctx, contextName)
	if err != nil {
		return nil, fmt.Errorf("connect to context %s: %w", contextName, err)
	}
	defer cli.Close()
	return cli.ImageList(ctx, image.ListOptions{All: true})
}

// RemoveImage force-removes an image by ID and returns any error the engine
// reports (the caller already filtered to repositories it owns).
func (a *Adapter) RemoveImage(ctx context.Context, contextName, id string) error {
	cli, err := a.sdkClientForContext(ctx, contextName)
	if err != nil {
		return fmt.Errorf("connect to context %s: %w", contextName, err)
	}
	defer cli.Close()
	_, err = cli.ImageRemove(ctx, id, image.RemoveOptions{Force: true})
	return err
}

