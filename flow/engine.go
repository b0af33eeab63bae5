package flow

import (
	"strings"
	"unicode"
)

// Engine 是基础设施服务的引擎类型，决定 service key 前缀、默认镜像、端口与特征源类型。
type Engine string

const (
	EngineMongo  Engine = "mongo"
	EngineRedis  Engine = "redis"
	EngineMySQL  Engine = "mysql"
	EngineMilvus Engine = "milvus"
)

// 未能从镜像或名称推断时的默认引擎（存储类）。
const DefaultEngine = EngineMongo

var engines = []Engine{EngineMongo, EngineRedis, EngineMySQL, EngineMilvus}

type engineInfo struct {
	image      string
	port       int
	sourceKind string
}

var engineInfos = map[Engine]engineInfo{
	EngineMongo:  {image: "mongo:6.0.1", port: 27017, sourceKind: "MongoDB"},
	EngineRedis:  {image: "redis:7.0", port: 6379, sourceKind: "Redis"},
	EngineMySQL:  {image: "mysql:8.0", port: 3306, sourceKind: "JDBC"},
	EngineMilvus: {image: "milvusdb/milvus:v2.2.0", port: 19530},
}

// Engines 返回所有已知引擎。
func Engines() []Engine {
	return append([]Engine(nil), engines...)
}

// Prefix 返回 service key 的规范前缀，例如 "mongo_"。
func (e Engine) Prefix() string { return string(e) + "_" }

func (e Engine) DefaultImage() string { return engineInfos[e].image }

func (e Engine) DefaultPort() int { return engineInfos[e].port }

// SourceKind 返回特征服务中的 source kind；向量库不作为特征源，返回空串。
func (e Engine) SourceKind() string { return engineInfos[e].sourceKind }

func (e Engine) Known() bool {
	_, ok := engineInfos[e]
	return ok
}

// EngineOfImage 从镜像名推断引擎，忽略仓库路径与 tag，例如 "milvusdb/milvus:v2.2.0" → milvus。
func EngineOfImage(image string) (Engine, bool) {
	if image == "" {
		return "", false
	}
	base := image
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	base = strings.ToLower(base)
	for _, e := range engines {
		if strings.HasPrefix(base, string(e)) {
			return e, true
		}
	}
	return "", false
}

// EngineOfName 从 service 名前缀推断引擎。
func EngineOfName(name string) (Engine, bool) {
	lower := strings.ToLower(name)
	for _, e := range engines {
		if strings.HasPrefix(lower, string(e)) {
			return e, true
		}
	}
	return "", false
}

// InferEngine 优先按镜像，其次按名称推断，都失败时返回 DefaultEngine。
func InferEngine(name, image string) Engine {
	if e, ok := EngineOfImage(image); ok {
		return e
	}
	if e, ok := EngineOfName(name); ok {
		return e
	}
	return DefaultEngine
}

// CanonicalKey 返回带引擎前缀的 service key；已带前缀时原样返回。
func CanonicalKey(e Engine, name string) string {
	if strings.HasPrefix(name, e.Prefix()) {
		return name
	}
	return e.Prefix() + name
}

// EnvName 把 service key 转为环境变量名前缀：大写，非字母数字替换为下划线。
func EnvName(key string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, key)
}
