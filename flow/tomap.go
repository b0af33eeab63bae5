package flow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ToMap 把 flow 转为 map[string]any / []any 组成的通用结构（用于 CEL 规则求值）。
// key 与 YAML 字段名一致，例如 flow.cf_models[0].source.serviceName。
func (f *OnlineFlow) ToMap() (map[string]any, error) {
	data, err := Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("flow: encode: %w", err)
	}
	out := make(map[string]any)
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("flow: decode: %w", err)
	}
	return out, nil
}
