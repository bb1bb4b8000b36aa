package browser

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const (
	browserlessPort  = "3000/tcp"
	containerDataDir = "/data"
)

// DockerLauncher runs each browser in its own browserless/chrome container
// and drives it over the DevTools websocket
type DockerLauncher struct {
	client *client.Client
	opts   Options
}

// NewDockerLauncher connects to the docker daemon from the environment
func NewDockerLauncher(opts Options) (*DockerLauncher, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if opts.Image == "" {
		opts.Image = "browserless/chrome:latest"
	}

	return &DockerLauncher{
		client: cli,
		opts:   opts,
	}, nil
}

func (d *DockerLauncher) Name() string { return "docker" }

func (d *DockerLauncher) Launch(ctx context.Context, sessionID, userDataDir string) (*Instance, error) {
	containerConfig, hostConfig := d.containerSpec(sessionID, userDataDir)

	resp, err := d.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil,
		fmt.Sprintf("smiles-browser-%s", sessionID[:8]))
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	if err := d.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		d.removeContainer(resp.ID)
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	inspect, err := d.client.ContainerInspect(ctx, resp.ID)
	if err != nil {
		d.removeContainer(resp.ID)
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}

	bindings := inspect.NetworkSettings.Ports[browserlessPort]
	if len(bindings) == 0 {
		d.removeContainer(resp.ID)
		return nil, fmt.Errorf("container %s exposes no DevTools port", resp.ID[:12])
	}
	port := bindings[0].HostPort

	if err := waitForBrowserReady(ctx, port); err != nil {
		d.removeContainer(resp.ID)
		return nil, fmt.Errorf("browser failed to become ready: %w", err)
	}

	connectURL := fmt.Sprintf("ws://127.0.0.1:%s", port)
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(), connectURL, chromedp.NoModifyURL)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		d.removeContainer(resp.ID)
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	containerID := resp.ID
	return &Instance{
		Ctx:         browserCtx,
		ConnectURL:  connectURL,
		ContainerID: containerID,
		close: func(ctx context.Context) error {
			cancelBrowser()
			cancelAlloc()
			return d.stopContainer(ctx, containerID)
		},
	}, nil
}

// containerSpec describes the container for one session. A non-empty
// userDataDir is mounted and made the browser's profile directory.
func (d *DockerLauncher) containerSpec(sessionID, userDataDir string) (*container.Config, *container.HostConfig) {
	containerConfig := &container.Config{
		Image: d.opts.Image,
		Labels: map[string]string{
			"session-id": sessionID,
			"managed-by": "smiles-flights",
		},
		Env: []string{
			"CONNECTION_TIMEOUT=-1",
			"MAX_CONCURRENT_SESSIONS=1",
			"PREBOOT_CHROME=true",
			"KEEP_ALIVE=true",
			"EXIT_ON_HEALTH_FAILURE=false",
			"DEFAULT_USER_AGENT=" + d.opts.UserAgent,
			"DEFAULT_STEALTH=true",
			"DEFAULT_BLOCK_ADS=true",
		},
		ExposedPorts: nat.PortSet{
			browserlessPort: struct{}{},
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			browserlessPort: []nat.PortBinding{
				{
					HostIP:   "127.0.0.1",
					HostPort: "0",
				},
			},
		},
		AutoRemove: false,
	}
	if userDataDir != "" {
		containerConfig.Env = append(containerConfig.Env, "DEFAULT_USER_DATA_DIR="+containerDataDir)
		hostConfig.Mounts = []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: userDataDir,
				Target: containerDataDir,
			},
		}
	}

	return containerConfig, hostConfig
}

func (d *DockerLauncher) stopContainer(ctx context.Context, containerID string) error {
	timeout := 10
	if err := d.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	if err := d.client.ContainerRemove(ctx, containerID, container.RemoveOptions{}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// removeContainer cleans up a container that never became usable
func (d *DockerLauncher) removeContainer(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := d.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		log.Printf("⚠️ Failed to remove container %s: %v", containerID[:12], err)
	}
}

// EnsureImage pulls the browser image if it is not present locally
func (d *DockerLauncher) EnsureImage(ctx context.Context) error {
	images, err := d.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return err
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == d.opts.Image {
				return nil
			}
		}
	}

	reader, err := d.client.ImagePull(ctx, d.opts.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

// Close releases the docker client
func (d *DockerLauncher) Close() error {
	return d.client.Close()
}

// waitForBrowserReady polls the /json/version endpoint until it answers
func waitForBrowserReady(ctx context.Context, port string) error {
	url := fmt.Sprintf("http://127.0.0.1:%s/json/version", port)
	maxRetries := 20 // 10 seconds total (20 * 500ms)

	for i := 0; i < maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				// Give the websocket endpoint a moment after HTTP comes up
				time.Sleep(500 * time.Millisecond)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	return fmt.Errorf("browser did not become ready after %d retries", maxRetries)
}
