package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockService records its lifecycle calls.
type mockService struct {
	name        string
	initErr     error
	shutdownErr error
	order       *[]string
}

func (m *mockService) Name() string { return m.name }

func (m *mockService) Initialize(ctx context.Context) error {
	*m.order = append(*m.order, "init:"+m.name)
	return m.initErr
}

func (m *mockService) Shutdown() error {
	*m.order = append(*m.order, "shutdown:"+m.name)
	return m.shutdownErr
}

func newTestRegistry() (*ServiceRegistry, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewServiceRegistry(zerolog.New(&buf)), &buf
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	var order []string
	reg, _ := newTestRegistry()
	require.NoError(t, reg.Register(&mockService{name: "history", order: &order}, Optional))

	err := reg.Register(&mockService{name: "history", order: &order}, Required)
	require.Error(t, err)
	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "ServiceRegistry", se.Service)
	assert.Equal(t, "Register", se.Operation)
	assert.Contains(t, err.Error(), `"history" already registered`)
}

func TestStartAndStopOrder(t *testing.T) {
	var order []string
	reg, _ := newTestRegistry()
	for _, name := range []string{"history", "datasource", "agent"} {
		require.NoError(t, reg.Register(&mockService{name: name, order: &order}, Required))
	}

	require.NoError(t, reg.Start(context.Background()))
	reg.Stop()
	reg.Stop()

	assert.Equal(t, []string{
		"init:history", "init:datasource", "init:agent",
		"shutdown:agent", "shutdown:datasource", "shutdown:history",
	}, order)
	assert.Empty(t, reg.Degraded())
}

func TestRequiredFailureRollsBackStartedServices(t *testing.T) {
	var order []string
	reg, logs := newTestRegistry()
	cause := errors.New("no such file")
	require.NoError(t, reg.Register(&mockService{name: "history", order: &order}, Optional))
	require.NoError(t, reg.Register(&mockService{name: "datasource", initErr: cause, order: &order}, Required))
	require.NoError(t, reg.Register(&mockService{name: "agent", order: &order}, Required))

	err := reg.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), `[ServiceRegistry.Start] service "datasource"`)
	assert.Equal(t, []string{"init:history", "init:datasource", "shutdown:history"}, order,
		"the failed service is not shut down and later services never start")
	assert.Contains(t, logs.String(), "required service failed to start")

	reg.Stop()
	assert.Len(t, order, 3)
}

func TestOptionalFailureDegrades(t *testing.T) {
	var order []string
	reg, logs := newTestRegistry()
	require.NoError(t, reg.Register(&mockService{name: "metrics", initErr: errors.New("unreachable"), order: &order}, Optional))
	require.NoError(t, reg.Register(&mockService{name: "history", initErr: errors.New("redis down"), order: &order}, Optional))
	require.NoError(t, reg.Register(&mockService{name: "agent", order: &order}, Required))

	require.NoError(t, reg.Start(context.Background()))
	assert.Equal(t, []string{"history", "metrics"}, reg.Degraded())
	assert.Contains(t, logs.String(), "service degraded")
	assert.Contains(t, logs.String(), "redis down")

	reg.Stop()
	assert.Equal(t, []string{
		"init:metrics", "init:history", "init:agent",
		"shutdown:agent", "shutdown:history", "shutdown:metrics",
	}, order, "degraded services hold fallbacks and are still stopped")
}

func TestStopContinuesAfterErrors(t *testing.T) {
	var order []string
	reg, logs := newTestRegistry()
	for i := 0; i < 3; i++ {
		svc := &mockService{name: fmt.Sprintf("svc%d", i), shutdownErr: errors.New("close failed"), order: &order}
		require.NoError(t, reg.Register(svc, Required))
	}
	require.NoError(t, reg.Start(context.Background()))

	reg.Stop()
	assert.Equal(t, []string{"shutdown:svc2", "shutdown:svc1", "shutdown:svc0"}, order[3:])
	assert.Equal(t, 3, strings.Count(logs.String(), "service shutdown failed"))
}
