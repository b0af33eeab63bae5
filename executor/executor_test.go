package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recflow/compiler"
	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/flow"
	"github.com/rushteam/recflow/store"
)

type fakeRunner struct {
	mu    sync.Mutex
	codes map[string]int // 子命令 → 退出码
	err   error
	calls []string
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	if r.err != nil {
		return -1, r.err
	}
	return r.codes[args[2]], nil
}

func newExecutor(t *testing.T, r Runner) (*Executor, *store.MemoryStore, string) {
	t.Helper()
	g, err := compiler.NewGenerator(flow.DemoJPAFlow())
	require.NoError(t, err)
	s := store.NewMemoryStore()
	file := filepath.Join(t.TempDir(), "deploy", "docker-compose.yml")
	return New(g, s, WithRunner(r), WithComposeFile(file)), s, file
}

func TestExecutor_UpDown(t *testing.T) {
	r := &fakeRunner{}
	e, s, file := newExecutor(t, r)
	ctx := context.Background()
	assert.Equal(t, StatusInit, e.Status())

	require.NoError(t, e.Up(ctx))
	assert.Equal(t, StatusServiceConfigSuccess, e.Status())
	assert.Equal(t, []string{"docker-compose -f " + file + " up -d"}, r.calls)

	compose, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(compose), "version: \"3.5\"\n"))

	published, err := s.Get(ctx, "config/recommend/data")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(published), "feature-service:\n"))

	require.NoError(t, e.Down(ctx))
	assert.Equal(t, StatusServiceDownSuccess, e.Status())
	assert.Equal(t, "docker-compose -f "+file+" down", r.calls[1])

	// 已停止后再次 down
	err = e.Down(ctx)
	assert.True(t, core.IsConfigState(err))
}

func TestExecutor_UpFail(t *testing.T) {
	r := &fakeRunner{codes: map[string]int{"up": 1}}
	e, s, _ := newExecutor(t, r)
	err := e.Up(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with code 1")
	assert.Equal(t, StatusComposeUpFail, e.Status())
	assert.Empty(t, s.Keys(""))

	assert.True(t, core.IsConfigState(e.Down(context.Background())))
}

func TestExecutor_DownFail(t *testing.T) {
	r := &fakeRunner{codes: map[string]int{"down": 2}}
	e, _, _ := newExecutor(t, r)
	require.NoError(t, e.Up(context.Background()))
	require.Error(t, e.Down(context.Background()))
	assert.Equal(t, StatusServiceDownFail, e.Status())
}

func TestExecutor_RunnerError(t *testing.T) {
	r := &fakeRunner{err: errors.New("docker-compose: not found")}
	e, _, _ := newExecutor(t, r)
	err := e.Up(context.Background())
	assert.ErrorContains(t, err, "not found")
	assert.Equal(t, StatusComposeUpFail, e.Status())
}

func TestExecutor_Reload(t *testing.T) {
	r := &fakeRunner{}
	e, s, file := newExecutor(t, r)
	ctx := context.Background()
	require.NoError(t, e.Up(ctx))

	require.NoError(t, e.Reload(ctx, flow.DemoMovielensFlow()))
	assert.Equal(t, StatusServiceConfigSuccess, e.Status())
	assert.Equal(t, []string{
		"docker-compose -f " + file + " up -d",
		"docker-compose -f " + file + " down",
		"docker-compose -f " + file + " up -d",
	}, r.calls)
	assert.Equal(t, int64(2), s.Revision("config/recommend/data"))
	published, err := s.Get(ctx, "config/recommend/data")
	require.NoError(t, err)
	assert.Contains(t, string(published), "recall.itemcf")

	// 无效 flow 不影响当前部署
	bad := flow.DemoMovielensFlow()
	bad.Source.Item = nil
	assert.True(t, core.IsSchemaValidation(e.Reload(ctx, bad)))
	assert.Equal(t, StatusServiceConfigSuccess, e.Status())
	assert.Len(t, r.calls, 3)
}

func TestExecutor_CompileErrorStartsNothing(t *testing.T) {
	f := flow.DemoJPAFlow()
	f.Source.Summary.Columns[0].Type = "int"
	g, err := compiler.NewGenerator(f)
	require.NoError(t, err)
	r := &fakeRunner{}
	e := New(g, store.NewMemoryStore(), WithRunner(r), WithComposeFile(filepath.Join(t.TempDir(), "c.yml")))
	assert.True(t, core.IsSchemaValidation(e.Up(context.Background())))
	assert.Empty(t, r.calls)
	assert.Equal(t, StatusInit, e.Status())
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "Service_Config_Success", StatusServiceConfigSuccess.String())
	assert.Equal(t, "online flow execute dockerCompose up fail", StatusComposeUpFail.Message())
	assert.True(t, StatusComposeUpSuccess.Up())
	assert.False(t, StatusServiceDownFail.Up())
	assert.Equal(t, "Unknown", Status(42).String())
}

func TestExecRunner(t *testing.T) {
	r := &ExecRunner{}
	code, err := r.Run(context.Background(), "sh", "-c", "exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, code)

	_, err = r.Run(context.Background(), "definitely-not-a-command-recflow")
	assert.Error(t, err)
}

func TestExecutor_WithStatus(t *testing.T) {
	r := &fakeRunner{}
	g, err := compiler.NewGenerator(flow.DemoJPAFlow())
	require.NoError(t, err)
	e := New(g, store.NewMemoryStore(), WithRunner(r), WithStatus(StatusServiceConfigSuccess))
	require.NoError(t, e.Down(context.Background()))
	assert.Equal(t, []string{"docker-compose -f " + DefaultComposeFile + " down"}, r.calls)
}
