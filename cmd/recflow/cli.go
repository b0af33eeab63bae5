package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/recflow/compiler"
	"github.com/rushteam/recflow/config"
	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/executor"
	"github.com/rushteam/recflow/flow"
	"github.com/rushteam/recflow/pipeline"
	"github.com/rushteam/recflow/pkg/logger"
	"github.com/rushteam/recflow/probe"
	"github.com/rushteam/recflow/store"
)

// ExitError 携带进程退出码。
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) error {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

const usage = `
recflow - compile recommendation flows into docker-compose and engine configs.

Usage:
  recflow [options] <command> [command options]

Commands:
  compile   write docker-compose and server config files
  publish   publish the server config to the config store
  up        start containers, probe storage and publish the server config
  down      stop containers started by up
  probe     check that the storage services of a flow are reachable
  demo      print a bundled demo flow

Options:
`

type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	out    io.Writer
}

// run 是可测试的入口：解析全局参数与子命令并执行。
func run(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("recflow", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprint(out, usage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "Path to a config file (yaml, json or toml).")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error.")
	logFormat := fs.String("log-format", "", "Log format: console or json.")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return usageError("%s", err)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return usageError("no command given")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return usageError("%s", err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFormat != "" {
		cfg.LogFormat = *logFormat
	}
	if err := cfg.Validate(); err != nil {
		return usageError("%s", err)
	}
	a := &app{cfg: cfg, logger: logger.New(cfg.LogLevel, cfg.LogFormat, os.Stderr), out: out}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "compile":
		return a.compile(rest)
	case "publish":
		return a.publish(ctx, rest)
	case "up":
		return a.up(ctx, rest)
	case "down":
		return a.down(ctx, rest)
	case "probe":
		return a.probeServices(ctx, rest)
	case "demo":
		return a.demo(rest)
	default:
		return usageError("unknown command %q", cmd)
	}
}

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("recflow "+name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func parse(fs *flag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return true, nil
		}
		return false, usageError("%s", err)
	}
	return false, nil
}

// loadFlow 按扩展名选择 JSON 或 YAML 解析。
func loadFlow(path string) (*flow.OnlineFlow, error) {
	if path == "" {
		return nil, usageError("flow file is required (-flow or %s_FLOW_FILE)", config.EnvPrefix)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return flow.LoadFromJSON(path)
	}
	return flow.LoadFromYAML(path)
}

func (a *app) generator(path, format string) (*compiler.Generator, error) {
	f, err := loadFlow(path)
	if err != nil {
		return nil, err
	}
	return compiler.NewGenerator(f,
		compiler.WithLogger(a.logger),
		compiler.WithFormat(pipeline.Format(format)),
	)
}

func (a *app) compile(args []string) error {
	fs := a.flagSet("compile")
	flowFile := fs.String("flow", a.cfg.FlowFile, "Flow file (.yaml or .json).")
	outDir := fs.String("out", a.cfg.OutputDir, "Output directory.")
	format := fs.String("format", a.cfg.Format, "Server config format: yaml or json.")
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	if *format != string(pipeline.FormatYAML) && *format != string(pipeline.FormatJSON) {
		return usageError("format must be yaml or json, got %q", *format)
	}
	gen, err := a.generator(*flowFile, *format)
	if err != nil {
		return err
	}
	compose, err := gen.DockerCompose()
	if err != nil {
		return err
	}
	serverConfig, err := gen.ServerConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", *outDir, err)
	}
	files := []struct{ name, content string }{
		{filepath.Base(a.cfg.ComposeFile), compose},
		{"server_config." + *format, serverConfig},
	}
	for _, file := range files {
		path := filepath.Join(*outDir, file.name)
		if err := os.WriteFile(path, []byte(file.content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintln(a.out, path)
	}
	return nil
}

// openStore 打开配置中心，返回的 close 函数只记录关闭错误。
func (a *app) openStore(ctx context.Context) (core.ConfigStore, func(), error) {
	s, err := store.Open(ctx, a.cfg.Store.StoreOptions())
	if err != nil {
		return nil, nil, err
	}
	return s, func() {
		if err := s.Close(); err != nil {
			a.logger.Warn().Err(err).Str("store", s.Name()).Msg("close store")
		}
	}, nil
}

func (a *app) publish(ctx context.Context, args []string) error {
	fs := a.flagSet("publish")
	flowFile := fs.String("flow", a.cfg.FlowFile, "Flow file (.yaml or .json).")
	format := fs.String("format", a.cfg.Format, "Server config format: yaml or json.")
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	gen, err := a.generator(*flowFile, *format)
	if err != nil {
		return err
	}
	serverConfig, err := gen.ServerConfig()
	if err != nil {
		return err
	}
	s, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	path := a.cfg.Store.KeyPath()
	if err := store.Publish(ctx, s, path, serverConfig); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "published %s to %s\n", path, s.Name())
	return nil
}

func (a *app) up(ctx context.Context, args []string) error {
	fs := a.flagSet("up")
	flowFile := fs.String("flow", a.cfg.FlowFile, "Flow file (.yaml or .json).")
	format := fs.String("format", a.cfg.Format, "Server config format: yaml or json.")
	withProbe := fs.Bool("probe", a.cfg.Probe.Enabled, "Probe storage services before publishing.")
	wait := fs.Bool("wait", false, "Stay in foreground and run down on interrupt.")
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	gen, err := a.generator(*flowFile, *format)
	if err != nil {
		return err
	}
	s, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []executor.Option{
		executor.WithComposeFile(a.cfg.ComposeFile),
		executor.WithKeyPath(a.cfg.Store.KeyPath()),
		executor.WithLogger(a.logger),
	}
	if *withProbe {
		opts = append(opts, executor.WithProbe(a.cfg.Probe.Host, a.cfg.Probe.ProbeOptions()))
	}
	e := executor.New(gen, s, opts...)
	if err := e.Up(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, e.Status())
	if !*wait {
		return nil
	}

	<-ctx.Done()
	// ctx 已取消，down 使用独立的超时
	downCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := e.Down(downCtx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, e.Status())
	return nil
}

// down 只依赖 compose 文件，不需要 flow。
func (a *app) down(ctx context.Context, args []string) error {
	fs := a.flagSet("down")
	composeFile := fs.String("compose-file", a.cfg.ComposeFile, "docker-compose file written by up.")
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	e := executor.New(nil, nil,
		executor.WithComposeFile(*composeFile),
		executor.WithLogger(a.logger),
		executor.WithStatus(executor.StatusServiceConfigSuccess),
	)
	if err := e.Down(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, e.Status())
	return nil
}

func (a *app) probeServices(ctx context.Context, args []string) error {
	fs := a.flagSet("probe")
	flowFile := fs.String("flow", a.cfg.FlowFile, "Flow file (.yaml or .json).")
	host := fs.String("host", a.cfg.Probe.Host, "Host the container ports are published on.")
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	gen, err := a.generator(*flowFile, a.cfg.Format)
	if err != nil {
		return err
	}
	doc, err := gen.Topology()
	if err != nil {
		return err
	}
	opts := a.cfg.Probe.ProbeOptions()
	opts.Logger = a.logger
	results, err := probe.Run(ctx, probe.TargetsFromTopology(gen.Flow(), doc, *host), opts)
	for _, r := range results {
		state := "ok"
		if r.Err != nil {
			state = r.Err.Error()
		}
		fmt.Fprintf(a.out, "%-24s %-8s %-22s %s (%s)\n", r.Target.Key, r.Target.Engine, r.Target.Addr(), state,
			r.Elapsed.Round(time.Millisecond))
	}
	return err
}

var demos = map[string]func() *flow.OnlineFlow{
	"jpa":       flow.DemoJPAFlow,
	"movielens": flow.DemoMovielensFlow,
}

func (a *app) demo(args []string) error {
	fs := a.flagSet("demo")
	name := fs.String("name", "movielens", "Demo flow: jpa or movielens.")
	output := fs.String("o", "", "Write to file instead of stdout.")
	if help, err := parse(fs, args); help || err != nil {
		return err
	}
	build, ok := demos[*name]
	if !ok {
		return usageError("unknown demo %q, want jpa or movielens", *name)
	}
	data, err := flow.Marshal(build())
	if err != nil {
		return err
	}
	if *output == "" {
		_, err = a.out.Write(data)
		return err
	}
	return os.WriteFile(*output, data, 0o644)
}
