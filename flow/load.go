package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFromYAML 从 YAML 文件加载 flow（未规范化）。
func LoadFromYAML(path string) (*OnlineFlow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse yaml %s: %w", path, err)
	}
	return f, nil
}

// LoadFromJSON 从 JSON 文件加载 flow。
// JSON 文档同时是合法的 YAML，解析走同一条保序路径。
func LoadFromJSON(path string) (*OnlineFlow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("parse json %s: invalid json", path)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse json %s: %w", path, err)
	}
	return f, nil
}

// Parse 解析 YAML/JSON 字节，map 与字段列表保持文档顺序；未知字段视为错误。
func Parse(data []byte) (*OnlineFlow, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f OnlineFlow
	if err := dec.Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Marshal 把 flow 序列化为 YAML（2 空格缩进）。
func Marshal(f *OnlineFlow) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
