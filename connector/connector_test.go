package connector_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/beacon/connector"
	"github.com/ceyewan/beacon/testkit"
)

func newConfig(server *testkit.NacosServer) *connector.NacosConfig {
	return &connector.NacosConfig{
		Name:            "test",
		ServerAddresses: []string{server.Addr()},
		ConnectTimeout:  2 * time.Second,
		Timeout:         2 * time.Second,
		BreakerCooldown: 100 * time.Millisecond,
	}
}

func TestNewNacosValidation(t *testing.T) {
	_, err := connector.NewNacos(nil)
	assert.Error(t, err)

	_, err = connector.NewNacos(&connector.NacosConfig{})
	assert.Error(t, err)

	_, err = connector.NewNacos(&connector.NacosConfig{
		ServerAddresses: []string{"127.0.0.1:8848"},
		Username:        "nacos", // 缺少密码
	})
	assert.Error(t, err)
}

func TestConnectAndHealthCheck(t *testing.T) {
	server := testkit.NewNacosServer(t)
	conn, err := connector.NewNacos(newConfig(server), connector.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	assert.False(t, conn.IsHealthy())

	require.NoError(t, conn.Connect(ctx))
	assert.True(t, conn.IsHealthy())
	assert.Equal(t, "test", conn.Name())
	assert.NotNil(t, conn.GetClient())

	// 幂等：重复 Connect 直接成功
	require.NoError(t, conn.Connect(ctx))

	require.NoError(t, conn.HealthCheck(ctx))

	server.SetDown(true)
	assert.Error(t, conn.HealthCheck(ctx))
	assert.False(t, conn.IsHealthy())

	server.SetDown(false)
	require.NoError(t, conn.HealthCheck(ctx))
	assert.True(t, conn.IsHealthy())
}

func TestConnectFailure(t *testing.T) {
	server := testkit.NewNacosServer(t)
	server.SetDown(true)

	conn, err := connector.NewNacos(newConfig(server))
	require.NoError(t, err)
	defer conn.Close()

	assert.Error(t, conn.Connect(context.Background()))
	assert.False(t, conn.IsHealthy())
}

func TestCloseIdempotent(t *testing.T) {
	server := testkit.NewNacosServer(t)
	conn, err := connector.NewNacos(newConfig(server))
	require.NoError(t, err)

	require.NoError(t, conn.Connect(context.Background()))
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	assert.Nil(t, conn.GetClient())
	assert.ErrorIs(t, conn.HealthCheck(context.Background()), connector.ErrClientNil)
}
