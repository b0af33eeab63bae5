// Package topology 由规范化的 flow 生成容器拓扑（docker-compose 文档）。
//
// 拓扑中的服务依次为：flow 声明的基础设施服务、额外容器、recommend 门面服务，
// 以及（没有以 model 开头的服务时）默认的模型推理容器。门面服务通过
// <KEY>_HOST / <KEY>_PORT 环境变量定位其它服务，不依赖额外的服务发现。
package topology

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/flow"
	"github.com/rushteam/recflow/pkg/omap"
)

const (
	// ComposeVersion 是输出的 docker-compose 文件版本
	ComposeVersion = "3.5"

	FacadeKey   = "recommend"
	FacadeImage = "dmetasoul/recommend-service-11:1.0"
	FacadePort  = 13013

	ModelKey   = "model"
	ModelImage = "swr.cn-southwest-2.myhuaweicloud.com/dmetasoul-public/metaspore-serving-release:cpu-v1.0.1"
	ModelPort  = 50000
)

// Service 是拓扑中的一个容器。
type Service struct {
	Key           string
	ContainerName string
	Image         string
	Environment   *omap.Map[string]
	Ports         []int
}

// Port 返回第一个端口，没有端口时返回 0。
func (s *Service) Port() int {
	if len(s.Ports) == 0 {
		return 0
	}
	return s.Ports[0]
}

// Canonical 输出 container_name, image, environment, ports。
func (s *Service) Canonical() *omap.Map[any] {
	m := omap.New[any]().
		Set("container_name", s.ContainerName).
		Set("image", s.Image)
	if s.Environment.Len() > 0 {
		env := omap.New[any]()
		s.Environment.Range(func(k, v string) bool {
			env.Set(k, v)
			return true
		})
		m.Set("environment", env)
	}
	if len(s.Ports) > 0 {
		ports := make([]any, 0, len(s.Ports))
		for _, p := range s.Ports {
			ports = append(ports, fmt.Sprintf("%d:%d", p, p))
		}
		m.Set("ports", ports)
	}
	return m
}

// Document 是容器拓扑。
type Document struct {
	Services *omap.Map[*Service]
}

// Service 按 key 查找容器。
func (d *Document) Service(key string) (*Service, bool) {
	return d.Services.Get(key)
}

// Facade 返回 recommend 门面服务。
func (d *Document) Facade() (*Service, bool) {
	return d.Service(FacadeKey)
}

func (d *Document) Canonical() *omap.Map[any] {
	services := omap.New[any]()
	d.Services.Range(func(k string, s *Service) bool {
		services.Set(k, s.Canonical())
		return true
	})
	return omap.New[any]().Set("version", ComposeVersion).Set("services", services)
}

// Render 输出 docker-compose YAML（2 空格缩进）。
func (d *Document) Render() (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d.Canonical()); err != nil {
		return "", fmt.Errorf("topology: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("topology: encode: %w", err)
	}
	return buf.String(), nil
}

// Build 由规范化的 flow 生成容器拓扑。
func Build(f *flow.OnlineFlow) (*Document, error) {
	doc := &Document{Services: omap.New[*Service]()}
	f.Services.Range(func(key string, info *flow.ServiceInfo) bool {
		engine := flow.InferEngine(key, info.Image)
		image := info.Image
		if image == "" {
			image = engine.DefaultImage()
		}
		doc.add(key, image, info.Environment, []int{engine.DefaultPort()})
		return true
	})
	f.Dockers.Range(func(key string, info *flow.DockerInfo) bool {
		doc.add(key, info.Image, info.Environment, dockerPorts(key, info))
		return true
	})
	if !doc.Services.Has(FacadeKey) {
		doc.add(FacadeKey, FacadeImage, nil, []int{FacadePort})
	}
	if !hasModel(doc) {
		doc.add(ModelKey, ModelImage, nil, []int{ModelPort})
	}

	facade, ok := doc.Facade()
	if !ok {
		return nil, core.ConfigStateError(core.ModuleTopology, "topology: container_%s_service init fail", FacadeKey)
	}
	doc.Services.Range(func(key string, s *Service) bool {
		if key == FacadeKey || len(s.Ports) == 0 {
			return true
		}
		facade.Environment.Set(flow.EnvName(key)+"_HOST", key)
		facade.Environment.Set(flow.EnvName(key)+"_PORT", strconv.Itoa(s.Port()))
		return true
	})
	return doc, nil
}

func (d *Document) add(key, image string, env *omap.Map[string], ports []int) {
	e := env.Clone()
	if e == nil {
		e = omap.New[string]()
	}
	d.Services.Set(key, &Service{
		Key:           key,
		ContainerName: "container_" + key + "_service",
		Image:         image,
		Environment:   e,
		Ports:         ports,
	})
}

// ModelServiceKey 返回模型推理容器的 key：第一个以 model 开头的服务，否则为默认的 model。
func ModelServiceKey(f *flow.OnlineFlow) string {
	for _, key := range f.Services.Keys() {
		if strings.HasPrefix(key, ModelKey) {
			return key
		}
	}
	for _, key := range f.Dockers.Keys() {
		if strings.HasPrefix(key, ModelKey) {
			return key
		}
	}
	return ModelKey
}

func hasModel(d *Document) bool {
	for _, key := range d.Services.Keys() {
		if strings.HasPrefix(key, ModelKey) {
			return true
		}
	}
	return false
}

// dockerPorts 返回额外容器的端口：显式声明优先，其次按 key 推断门面/模型/已知引擎的默认端口。
func dockerPorts(key string, info *flow.DockerInfo) []int {
	if len(info.Ports) > 0 {
		return append([]int(nil), info.Ports...)
	}
	switch {
	case key == FacadeKey:
		return []int{FacadePort}
	case strings.HasPrefix(key, ModelKey):
		return []int{ModelPort}
	}
	if e, ok := flow.EngineOfImage(info.Image); ok {
		return []int{e.DefaultPort()}
	}
	return nil
}
