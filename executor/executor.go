// Package executor 驱动一次部署的生命周期：
// 写出 docker-compose 文件并启动容器，探测存储就绪，再把推荐配置发布到配置中心。
package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rushteam/recflow/compiler"
	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/flow"
	"github.com/rushteam/recflow/probe"
	"github.com/rushteam/recflow/store"
)

// DefaultComposeFile 是默认写出的 compose 文件名。
const DefaultComposeFile = "docker-compose.yml"

// Option 配置 Executor。
type Option func(*Executor)

func WithRunner(r Runner) Option {
	return func(e *Executor) { e.runner = r }
}

func WithComposeFile(path string) Option {
	return func(e *Executor) {
		if path != "" {
			e.composeFile = path
		}
	}
}

func WithKeyPath(p store.KeyPath) Option {
	return func(e *Executor) { e.keyPath = p }
}

// WithStatus 设置初始状态，用于接管由其它进程启动的部署。
func WithStatus(s Status) Option {
	return func(e *Executor) { e.status = s }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithProbe 在发布配置前探测存储服务，host 为宿主机地址。
func WithProbe(host string, opts probe.Options) Option {
	return func(e *Executor) {
		e.probe = true
		e.probeHost = host
		e.probeOpts = opts
	}
}

// Executor 管理一个 flow 的部署。所有操作串行执行。
type Executor struct {
	mu     sync.Mutex
	gen    *compiler.Generator
	store  core.ConfigStore
	status Status

	runner      Runner
	composeFile string
	keyPath     store.KeyPath
	logger      zerolog.Logger

	probe     bool
	probeHost string
	probeOpts probe.Options
}

// New 创建 Executor。gen 与 s 只在 Up 与 Reload 中使用，仅执行 Down 时可为 nil。
func New(gen *compiler.Generator, s core.ConfigStore, opts ...Option) *Executor {
	e := &Executor{
		gen:         gen,
		store:       s,
		status:      StatusInit,
		runner:      &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr},
		composeFile: DefaultComposeFile,
		keyPath:     store.DefaultKeyPath(),
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Status 返回当前状态。
func (e *Executor) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Up 生成产物并启动部署。编译失败时不启动任何容器，状态不变。
func (e *Executor) Up(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.up(ctx)
}

func (e *Executor) up(ctx context.Context) error {
	compose, err := e.gen.DockerCompose()
	if err != nil {
		return err
	}
	serverConfig, err := e.gen.ServerConfig()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(e.composeFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("executor: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(e.composeFile, []byte(compose), 0o644); err != nil {
		return fmt.Errorf("executor: write compose file: %w", err)
	}

	if err := e.compose(ctx, "up", "-d"); err != nil {
		e.setStatus(StatusComposeUpFail)
		return err
	}
	e.setStatus(StatusComposeUpSuccess)

	if e.probe {
		doc, err := e.gen.Topology()
		if err != nil {
			return err
		}
		opts := e.probeOpts
		opts.Logger = e.logger
		if _, err := probe.Run(ctx, probe.TargetsFromTopology(e.gen.Flow(), doc, e.probeHost), opts); err != nil {
			return err
		}
	}

	if err := store.Publish(ctx, e.store, e.keyPath, serverConfig); err != nil {
		return err
	}
	e.setStatus(StatusServiceConfigSuccess)
	e.logger.Info().Str("store", e.store.Name()).Str("key", e.keyPath.String()).Msg("online flow up success")
	return nil
}

// Down 停止部署；部署未启动时返回 CONFIG_STATE 错误。
func (e *Executor) Down(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.down(ctx)
}

func (e *Executor) down(ctx context.Context) error {
	if !e.status.Up() {
		return core.ConfigStateError(core.ModuleExecutor, "executor: online flow is not up (status %s)", e.status)
	}
	if err := e.compose(ctx, "down"); err != nil {
		e.setStatus(StatusServiceDownFail)
		return err
	}
	e.setStatus(StatusServiceDownSuccess)
	e.logger.Info().Msg("online flow down success")
	return nil
}

// Reload 用新的 flow 替换部署：先停止（未启动时跳过），再启动。
// 新 flow 校验失败时保持原部署不变。
func (e *Executor) Reload(ctx context.Context, f *flow.OnlineFlow, opts ...compiler.Option) error {
	gen, err := compiler.NewGenerator(f, opts...)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.Up() {
		if err := e.down(ctx); err != nil {
			return err
		}
	}
	e.gen = gen
	if err := e.up(ctx); err != nil {
		return err
	}
	e.logger.Info().Msg("online flow reload success")
	return nil
}

func (e *Executor) compose(ctx context.Context, args ...string) error {
	args = append([]string{"-f", e.composeFile}, args...)
	code, err := e.runner.Run(ctx, "docker-compose", args...)
	if err != nil {
		return fmt.Errorf("executor: docker-compose %s: %w", args[2], err)
	}
	if code != 0 {
		return fmt.Errorf("executor: docker-compose %s exited with code %d", args[2], code)
	}
	return nil
}

func (e *Executor) setStatus(s Status) {
	e.status = s
	e.logger.Debug().Str("status", s.String()).Msg(s.Message())
}
