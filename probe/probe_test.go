package probe

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/flow"
	"github.com/rushteam/recflow/pkg/omap"
	"github.com/rushteam/recflow/topology"
)

func listen(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func TestCheckTCP(t *testing.T) {
	host, port := listen(t)
	assert.NoError(t, CheckTCP(context.Background(), Target{Host: host, Port: port}))
	assert.Error(t, CheckTCP(context.Background(), Target{Host: "127.0.0.1", Port: closedPort(t)}))
}

func TestRegistry(t *testing.T) {
	assert.Subset(t, SupportedEngines(), []string{"mongo", "mysql", "redis"})

	var called atomic.Bool
	Register("Kafka", CheckerFunc(func(ctx context.Context, t Target) error {
		called.Store(true)
		return nil
	}))
	require.NoError(t, Lookup("kafka").Check(context.Background(), Target{}))
	assert.True(t, called.Load())

	// 未注册引擎回退为 TCP
	assert.Error(t, Lookup("unknown").Check(context.Background(), Target{Host: "127.0.0.1", Port: closedPort(t)}))
}

func TestRun(t *testing.T) {
	var inflight, peak atomic.Int32
	Register("fake-ok", CheckerFunc(func(ctx context.Context, t Target) error {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return nil
	}))
	Register("fake-slow", CheckerFunc(func(ctx context.Context, t Target) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	Register("fake-bad", CheckerFunc(func(ctx context.Context, t Target) error {
		return errors.New("boom")
	}))

	var targets []Target
	for _, key := range []string{"a", "b", "c", "d", "e"} {
		targets = append(targets, Target{Key: key, Engine: "fake-ok", Host: "h", Port: 1})
	}
	results, err := Run(context.Background(), targets, Options{MaxConcurrent: 2})
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, "c", results[2].Target.Key)
	assert.LessOrEqual(t, peak.Load(), int32(2))

	targets = append(targets,
		Target{Key: "slow", Engine: "fake-slow", Host: "h", Port: 1},
		Target{Key: "bad", Engine: "fake-bad", Host: "h", Port: 1},
	)
	results, err = Run(context.Background(), targets, Options{Timeout: 20 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, core.IsUnavailable(err))
	assert.Contains(t, err.Error(), "slow, bad")
	assert.ErrorIs(t, results[5].Err, context.DeadlineExceeded)
	assert.NoError(t, results[0].Err)
}

func TestTargetsFromTopology(t *testing.T) {
	f := flow.DemoJPAFlow()
	f.Services.Set("redis_cache", &flow.ServiceInfo{Environment: omap.New[string]().Set("REDIS_PASSWORD", "pw")})
	normalized, err := flow.Normalize(f)
	require.NoError(t, err)
	doc, err := topology.Build(normalized)
	require.NoError(t, err)

	targets := TargetsFromTopology(normalized, doc, "")
	require.Len(t, targets, 2)
	assert.Equal(t, Target{
		Key: "mongo_mongo", Engine: "mongo", Host: "localhost", Port: 27017,
		Collections: []string{"jpa"}, Environment: normalized.Services.Value("mongo_mongo").Environment,
	}, targets[0])
	assert.Equal(t, "redis", targets[1].Engine)
	assert.Equal(t, "localhost:6379", targets[1].Addr())
	assert.Equal(t, "pw", targets[1].Environment.Value("REDIS_PASSWORD"))
}

func TestMySQLDSN(t *testing.T) {
	target := Target{Host: "localhost", Port: 3306}
	assert.Equal(t, "root:example@tcp(localhost:3306)/shop?charset=utf8mb4&parseTime=True", MySQLDSN(target, "shop"))

	target.Environment = omap.New[string]().Set("MYSQL_USER", "app").Set("MYSQL_PASSWORD", "secret")
	assert.Equal(t, "app:secret@tcp(localhost:3306)/?charset=utf8mb4&parseTime=True", MySQLDSN(target, ""))
}

func TestCheckRedis_Unavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := CheckRedis(ctx, Target{Host: "127.0.0.1", Port: closedPort(t)})
	assert.ErrorContains(t, err, "redis ping")
}
