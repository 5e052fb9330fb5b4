package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// Pool keeps pre-warmed containers with the workspace root mounted, so a
// stage does not pay for container start-up.
//
// Containers are single use: the executor removes every container it took
// once the process is done. Removal is also how a timed out process tree is
// killed.
type Pool struct {
	cli        *client.Client
	config     Config
	logger     *slog.Logger
	containers chan string
	done       chan struct{}
	wg         sync.WaitGroup
	startDone  sync.Once
	stopDone   sync.Once
}

// NewPool initializes a new container pool wrapper.
func NewPool(cli *client.Client, cfg Config, logger *slog.Logger) *Pool {
	size := cfg.PoolSize
	if size <= 0 {
		size = 1
	}
	return &Pool{
		cli:        cli,
		config:     cfg,
		logger:     logger,
		containers: make(chan string, size),
		done:       make(chan struct{}),
	}
}

// Start begins filling the pool with fresh containers in the background.
func (p *Pool) Start() {
	p.startDone.Do(func() {
		p.logger.Info("starting container pool manager",
			slog.Int("poolSize", cap(p.containers)),
			slog.String("image", p.config.Image),
			slog.String("mountRoot", p.config.MountRoot),
		)
		p.wg.Add(1)
		go p.manager()
	})
}

// Stop shuts down the manager and removes every pre-warmed container.
func (p *Pool) Stop() {
	p.stopDone.Do(func() {
		p.logger.Info("shutting down container pool")
		close(p.done)
		p.wg.Wait()

		for {
			select {
			case id := <-p.containers:
				p.Remove(id)
			default:
				return
			}
		}
	})
}

// GetContainer returns a ready-to-use container ID from the pool.
// It blocks until one is available or the context is canceled.
func (p *Pool) GetContainer(ctx context.Context) (string, error) {
	select {
	case id := <-p.containers:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// manager keeps the pool at capacity.
func (p *Pool) manager() {
	defer p.wg.Done()

	for {
		select {
		case <-p.done:
			return
		default:
		}

		if len(p.containers) >= cap(p.containers) {
			select {
			case <-p.done:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		id, err := p.createContainer()
		if err != nil {
			p.logger.Error("failed to create pre-warmed container", slog.String("error", err.Error()))
			select {
			case <-p.done:
				return
			case <-time.After(time.Second):
			}
			continue
		}

		select {
		case p.containers <- id:
		case <-p.done:
			p.Remove(id)
			return
		}
	}
}

// createContainer starts an idle container with the workspace root mounted
// read-write at the same path.
func (p *Pool) createContainer() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hostConfig := &container.HostConfig{
		NetworkMode: container.NetworkMode(p.config.NetworkMode),
		Resources: container.Resources{
			Memory:   p.config.MemoryLimit,
			NanoCPUs: int64(p.config.CPULimit * 1e9),
		},
		Binds:      []string{p.config.MountRoot + ":" + p.config.MountRoot},
		AutoRemove: false,
	}

	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image:      p.config.Image,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: p.config.MountRoot,
		User:       p.config.User,
		Tty:        false,
	}, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("docker: ContainerCreate failed: %w", err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.Remove(resp.ID)
		return "", fmt.Errorf("docker: ContainerStart failed: %w", err)
	}

	return resp.ID, nil
}

// Remove force removes a container by ID, killing anything still running in it.
func (p *Pool) Remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		p.logger.Error("failed to remove container", slog.String("id", id), slog.String("error", err.Error()))
	}
}
