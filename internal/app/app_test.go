package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/blackportal-ai/nebula/api/proto"
	"github.com/blackportal-ai/nebula/internal/config"
	"github.com/blackportal-ai/nebula/internal/model"
	"github.com/blackportal-ai/nebula/internal/remote"
	"github.com/blackportal-ai/nebula/internal/storage"
	"github.com/blackportal-ai/nebula/internal/syncer"
	"github.com/blackportal-ai/nebula/pkg/datapackage"
	"github.com/blackportal-ai/nebula/pkg/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.ConfigDir = t.TempDir()
	cfg.Registry.GRPCAddr = "127.0.0.1:0"
	cfg.Registry.HTTPAddr = "127.0.0.1:0"
	cfg.Registry.ShutdownTimeout = 5 * time.Second
	cfg.Remote.Timeout = 5 * time.Second
	return cfg
}

func seed(t *testing.T, root string, names ...string) {
	t.Helper()
	src, err := storage.NewRootFolderSource(root, nil)
	require.NoError(t, err)
	for _, name := range names {
		d := datapackage.PackageNotValidated{
			Name:      name,
			Version:   "1.0.0",
			ID:        types.NewPackageID().String(),
			Resources: []datapackage.ResourceNotValidated{{Name: name, Path: datapackage.Paths{name + ".csv"}}},
		}
		require.NoError(t, src.Put(context.Background(), datapackage.UncheckedFrom(d)))
	}
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func startApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { a.Stop(context.Background()) })
	return a
}

func TestApp_ServesRootFolder(t *testing.T) {
	cfg := testConfig(t)
	cfg.Resolve()
	seed(t, cfg.Registry.Root, "iris", "mnist")

	a := startApp(t, cfg)
	require.NotNil(t, a.GRPCAddr())
	require.NotNil(t, a.HTTPAddr())

	client, err := remote.Dial(a.GRPCAddr().String(), remote.Options{Timeout: 5 * time.Second})
	require.NoError(t, err)
	defer client.Close()

	list, err := client.ListPackages(context.Background(), &proto.ListPackagesRequest{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), list.TotalCount)

	info, err := client.GetPackageInfo(context.Background(), &proto.PackageRequest{SearchQuery: "iri"})
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "iris", info.Name)

	resp, err := http.Get("http://" + a.HTTPAddr().String() + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var health struct {
		Status   string `json:"status"`
		Packages int    `json:"packages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.Packages)
}

func TestApp_StopIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	cfg.Registry.HTTPAddr = ""

	a, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	assert.Error(t, a.Start(context.Background()), "second Start must fail")
	assert.Nil(t, a.HTTPAddr())

	require.NoError(t, a.Stop(context.Background()))
	require.NoError(t, a.Stop(context.Background()))
}

func TestApp_InvalidBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Registry.Backend = "postgres"

	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestApp_MirrorsUpstreamIntoSQLite(t *testing.T) {
	upstreamCfg := testConfig(t)
	upstreamCfg.Resolve()
	seed(t, upstreamCfg.Registry.Root, "iris", "mnist", "cifar")
	upstream := startApp(t, upstreamCfg)

	mirrorCfg := testConfig(t)
	mirrorCfg.Registry.Backend = config.BackendSQLite
	mirrorCfg.Sync.Upstream = upstream.GRPCAddr().String()
	mirrorCfg.Sync.PageSize = 2
	mirror := startApp(t, mirrorCfg)

	require.Eventually(t, func() bool {
		pkgs, err := mirror.Source().List(context.Background(), model.SortSettings{}, model.FilterSettings{}, model.Unbounded(), 0)
		return err == nil && len(pkgs) == 3
	}, 5*time.Second, 20*time.Millisecond)
}

func TestApp_ObjectBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Registry.Backend = config.BackendObject
	cfg.Registry.HTTPAddr = ""
	a := startApp(t, cfg)

	_, isObject := a.Source().(*storage.ObjectSource)
	assert.True(t, isObject)
}

func TestClientState_SyncAndQuery(t *testing.T) {
	registryCfg := testConfig(t)
	registryCfg.Resolve()
	seed(t, registryCfg.Registry.Root, "iris", "mnist")
	registry := startApp(t, registryCfg)

	cfg := testConfig(t)
	_, port := splitHostPort(t, registry.GRPCAddr().String())
	cfg.Remote.Port = port

	state, err := NewClientState(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer state.Close()

	local, err := state.Local()
	require.NoError(t, err)
	assert.Equal(t, cfg.LocalRegistryPath(), local.Root())
	assert.Equal(t, 0, local.Len())

	engine, err := state.Syncer()
	require.NoError(t, err)
	report, err := engine.Sync(context.Background(), syncer.Args{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Synced)
	assert.Equal(t, 2, local.Len())

	svc, err := state.Query()
	require.NoError(t, err)
	res, err := svc.List(context.Background(), model.SiteRemote, model.SortSettings{By: model.SortByName}, model.FilterSettings{}, model.DefaultPagination(), 0)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	for _, it := range res.Items {
		assert.Equal(t, model.StatusInstalled, it.Status, it.Package.Name())
	}

	// Same instances on every call
	again, err := state.Local()
	require.NoError(t, err)
	assert.Same(t, local, again)
}
