// Package recflow 把声明式的推荐 flow 编译为可部署的产物。
//
// 设计要点：
// - Flow-first: 数据源、召回、排序与基础设施服务都在一个 OnlineFlow 中声明
// - 规范化一次: 默认值与引用校验集中在 flow.Normalize，编译器只读规范化结果
// - 确定性输出: 同一 flow 多次编译得到逐字节相同的 docker-compose 与配置文档
package recflow

import (
	"github.com/rushteam/recflow/compiler"
	"github.com/rushteam/recflow/flow"
)

// 轻量 facade：便于直接 import "recflow" 使用核心抽象。
type (
	Flow      = flow.OnlineFlow
	Generator = compiler.Generator
	Option    = compiler.Option
)

// Compile 规范化 flow 并一次性生成 docker-compose 与推荐配置文本。
func Compile(f *Flow, opts ...Option) (compose, serverConfig string, err error) {
	gen, err := compiler.NewGenerator(f, opts...)
	if err != nil {
		return "", "", err
	}
	if compose, err = gen.DockerCompose(); err != nil {
		return "", "", err
	}
	if serverConfig, err = gen.ServerConfig(); err != nil {
		return "", "", err
	}
	return compose, serverConfig, nil
}
