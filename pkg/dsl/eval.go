package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境：flow 为规范化后的部署描述（map/list 结构）
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("flow", cel.DynType),
	)
}

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Eval 是 flow 校验规则的解释器，使用 CEL (Common Expression Language) 实现。
//
// 表达式语法（CEL 标准语法）：
//   - 存在性：has(flow.rank_models)
//   - 数量：size(flow.cf_models) <= 4
//   - 全称：flow.cf_models.all(m, m.source.serviceName.startsWith("mongo_"))
//   - 字段：flow.random_model.bound >= 100
//
// 同一表达式只编译一次，编译结果按表达式缓存。
type Eval struct {
	vars map[string]any
	env  *cel.Env

	mu    sync.Mutex
	progs map[string]cel.Program
}

// NewEval 创建解释器，flow 需为 map[string]any / []any / 标量组成的结构。
func NewEval(flow map[string]any) (*Eval, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	return &Eval{
		vars:  map[string]any{"flow": flow},
		env:   env,
		progs: make(map[string]cel.Program),
	}, nil
}

// Evaluate 执行表达式并返回布尔结果；空表达式视为 true。
func (e *Eval) Evaluate(expr string) (bool, error) {
	if expr == "" {
		return true, nil
	}
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(e.vars)
	if err != nil {
		return false, fmt.Errorf("eval error: %v", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

func (e *Eval) program(expr string) (cel.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, ok := e.progs[expr]; ok {
		return prg, nil
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %v", issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %v", err)
	}
	e.progs[expr] = prg
	return prg, nil
}

// Failure 描述一条未通过的规则。
type Failure struct {
	Expr string
	Err  error // 非 nil 表示编译或执行失败，否则表示结果为 false
}

func (f Failure) String() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Expr, f.Err)
	}
	return fmt.Sprintf("%s: evaluated to false", f.Expr)
}

// CheckAll 依次执行全部规则，返回第一条失败的规则。
func (e *Eval) CheckAll(exprs []string) (*Failure, bool) {
	for _, expr := range exprs {
		ok, err := e.Evaluate(expr)
		if err != nil {
			return &Failure{Expr: expr, Err: err}, false
		}
		if !ok {
			return &Failure{Expr: expr}, false
		}
	}
	return nil, true
}
