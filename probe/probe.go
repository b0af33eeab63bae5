// Package probe 在编排启动后检查基础设施服务是否就绪。
//
// 每种引擎对应一个 Checker，通过 Register 注册；未注册的引擎回退为 TCP 探测。
// 扩展引擎（如 milvus）位于独立模块，import 后在 init 中注册。
package probe

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pkg/omap"
)

// 默认参数
const (
	DefaultTimeout       = 5 * time.Second
	DefaultMaxConcurrent = 4
)

// Target 是一个待探测的服务。
type Target struct {
	Key         string // service key，例如 mongo_mongo
	Engine      string
	Host        string
	Port        int
	Collections []string
	Environment *omap.Map[string]
}

// Addr 返回 host:port。
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Checker 检查一个服务是否可用，未就绪时返回错误。
type Checker interface {
	Check(ctx context.Context, t Target) error
}

// CheckerFunc 把函数适配为 Checker。
type CheckerFunc func(ctx context.Context, t Target) error

func (f CheckerFunc) Check(ctx context.Context, t Target) error { return f(ctx, t) }

var (
	checkers   = make(map[string]Checker)
	checkersMu sync.RWMutex
)

// Register 注册引擎的探测逻辑，重复注册时覆盖。
// 建议在扩展包的 init 中调用，例如：func init() { probe.Register("milvus", checker) }
func Register(engine string, c Checker) {
	if engine == "" || c == nil {
		return
	}
	checkersMu.Lock()
	defer checkersMu.Unlock()
	checkers[strings.ToLower(engine)] = c
}

// Lookup 返回引擎的 Checker，未注册时返回 TCP 探测。
func Lookup(engine string) Checker {
	checkersMu.RLock()
	defer checkersMu.RUnlock()
	if c, ok := checkers[strings.ToLower(engine)]; ok {
		return c
	}
	return CheckerFunc(CheckTCP)
}

// SupportedEngines 返回已注册的引擎列表（排序）。
func SupportedEngines() []string {
	checkersMu.RLock()
	defer checkersMu.RUnlock()
	out := make([]string, 0, len(checkers))
	for e := range checkers {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Result 是单个服务的探测结果。
type Result struct {
	Target  Target
	Err     error
	Elapsed time.Duration
}

// Options 控制一次探测。
type Options struct {
	Timeout       time.Duration // 单个服务的超时
	MaxConcurrent int           // 最大并发数
	Logger        zerolog.Logger
}

// Run 并发探测所有服务，按输入顺序返回结果。
// 任一服务未就绪时返回 UNAVAILABLE 错误，结果中包含每个服务的状态。
func Run(ctx context.Context, targets []Target, opts Options) ([]Result, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	results := make([]Result, len(targets))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.MaxConcurrent)
	for i, t := range targets {
		i, t := i, t
		eg.Go(func() error {
			checkCtx, cancel := context.WithTimeout(egCtx, opts.Timeout)
			defer cancel()
			start := time.Now()
			err := Lookup(t.Engine).Check(checkCtx, t)
			results[i] = Result{Target: t, Err: err, Elapsed: time.Since(start)}
			ev := opts.Logger.Debug()
			if err != nil {
				ev = opts.Logger.Warn().Err(err)
			}
			ev.Str("service", t.Key).Str("addr", t.Addr()).Dur("elapsed", results[i].Elapsed).Msg("probe")
			// 单个服务失败不取消其它探测
			return nil
		})
	}
	_ = eg.Wait()

	var failed []string
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Target.Key)
		}
	}
	if len(failed) > 0 {
		return results, core.NewDomainError(core.ModuleProbe, core.ErrorCodeUnavailable,
			fmt.Sprintf("probe: services not ready: %s", strings.Join(failed, ", ")))
	}
	return results, nil
}
