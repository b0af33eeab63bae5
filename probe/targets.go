package probe

import (
	"github.com/rushteam/recflow/flow"
	"github.com/rushteam/recflow/topology"
)

// TargetsFromTopology 为 flow 中的每个基础设施服务生成探测目标。
// 容器端口映射到宿主机，host 为空时使用 localhost。
// 门面与模型容器依赖发布后的配置，不在此探测。
func TargetsFromTopology(f *flow.OnlineFlow, doc *topology.Document, host string) []Target {
	if host == "" {
		host = "localhost"
	}
	var out []Target
	for _, key := range f.Services.Keys() {
		svc, ok := doc.Service(key)
		if !ok || svc.Port() == 0 {
			continue
		}
		info, _ := f.Service(key)
		out = append(out, Target{
			Key:         key,
			Engine:      string(flow.InferEngine(key, info.Image)),
			Host:        host,
			Port:        svc.Port(),
			Collections: append([]string(nil), info.Collection...),
			Environment: info.Environment,
		})
	}
	return out
}
