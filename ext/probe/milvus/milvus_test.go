package milvus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rushteam/recflow/probe"
)

type fakeClient struct {
	collections map[string]bool
	closed      bool
}

func (f *fakeClient) HasCollection(ctx context.Context, collection string) (bool, error) {
	return f.collections[collection], nil
}

func (f *fakeClient) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

func TestChecker(t *testing.T) {
	fc := &fakeClient{collections: map[string]bool{"items": true}}
	c := NewChecker(func(ctx context.Context, t probe.Target) (Client, error) { return fc, nil })
	target := probe.Target{Key: "milvus_vec", Engine: "milvus", Host: "localhost", Port: 19530}

	target.Collections = []string{"items"}
	assert.NoError(t, c.Check(context.Background(), target))
	assert.True(t, fc.closed)

	target.Collections = []string{"items", "users"}
	assert.ErrorContains(t, c.Check(context.Background(), target), "users")

	failing := NewChecker(func(ctx context.Context, t probe.Target) (Client, error) { return nil, errors.New("refused") })
	assert.ErrorContains(t, failing.Check(context.Background(), target), "refused")
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, probe.SupportedEngines(), "milvus")
}
