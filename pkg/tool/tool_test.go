package tool

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyver/polyver/pkg/config"
	"github.com/polyver/polyver/pkg/manifest"
	"github.com/polyver/polyver/pkg/plugin"
	"github.com/polyver/polyver/pkg/version"
	"github.com/polyver/polyver/pkg/vpath"
)

// fakeTransport implements plugin.Transport in memory.
type fakeTransport struct {
	exports  []string
	calls    []string
	handlers map[string]func(payload []byte) ([]byte, error)
}

func (f *fakeTransport) Call(name string, payload []byte) ([]byte, error) {
	f.calls = append(f.calls, name)
	if handler, ok := f.handlers[name]; ok {
		return handler(payload)
	}
	return nil, nil
}

func (f *fakeTransport) Exports() ([]string, error) {
	names := make([]string, 0, len(f.exports)+1)
	names = append(names, plugin.FuncRegisterTool)
	names = append(names, f.exports...)
	return names, nil
}

func reply(v any) func([]byte) ([]byte, error) {
	return func([]byte) ([]byte, error) {
		return json.Marshal(v)
	}
}

type fixture struct {
	tool      *Tool
	transport *fakeTransport
	store     *config.Store
}

func newFixture(t *testing.T, transport *fakeTransport) *fixture {
	t.Helper()

	if transport.handlers == nil {
		transport.handlers = make(map[string]func([]byte) ([]byte, error))
	}
	if _, ok := transport.handlers[plugin.FuncRegisterTool]; !ok {
		transport.handlers[plugin.FuncRegisterTool] = reply(plugin.ToolMetadataOutput{Name: "Node.js"})
	}

	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	env := DefaultEnv(t.TempDir())

	inventory := env.InventoryDir("node")
	require.NoError(t, os.MkdirAll(inventory, 0755))
	require.NoError(t, os.MkdirAll(env.TempDir, 0755))

	paths, err := vpath.NewTranslator(
		vpath.Mount{Name: "/workspace", Dir: inventory},
		vpath.Mount{Name: "/temp", Dir: env.TempDir},
	)
	require.NoError(t, err)

	instance, err := plugin.NewInstance("node", transport, paths, inventory, logger)
	require.NoError(t, err)

	store := config.NewStore(
		filepath.Join(env.RootDir, config.DocumentName),
		filepath.Join(t.TempDir(), config.DocumentName),
		logger,
	)

	tl, err := New("node", instance, "", env, store, logger)
	require.NoError(t, err)

	return &fixture{tool: tl, transport: transport, store: store}
}

func installVersions(t *testing.T, tl *Tool, texts ...string) {
	t.Helper()
	for _, text := range texts {
		require.NoError(t, tl.Manifest.RecordInstalled(semver.MustParse(text), time.Now()))
	}
}

func specOf(t *testing.T, text string) *version.Spec {
	t.Helper()
	spec, err := version.Parse(text)
	require.NoError(t, err)
	return spec
}

func TestTool_New(t *testing.T) {
	fx := newFixture(t, &fakeTransport{})

	assert.Equal(t, "node", fx.tool.ID)
	assert.Equal(t, "Node.js", fx.tool.Name())
	assert.Contains(t, fx.transport.calls, plugin.FuncRegisterTool)
}

func TestTool_ResolveVersion(t *testing.T) {
	t.Run("resolves from installed without touching the plugin", func(t *testing.T) {
		fx := newFixture(t, &fakeTransport{exports: []string{plugin.FuncLoadVersions}})
		installVersions(t, fx.tool, "18.4.0", "18.19.0")

		v, err := fx.tool.ResolveVersion(specOf(t, "18"), true)
		require.NoError(t, err)
		assert.Equal(t, "18.19.0", v.String())
		assert.NotContains(t, fx.transport.calls, plugin.FuncLoadVersions)
	})

	t.Run("falls back to the remote inventory", func(t *testing.T) {
		transport := &fakeTransport{
			exports: []string{plugin.FuncLoadVersions},
			handlers: map[string]func([]byte) ([]byte, error){
				plugin.FuncLoadVersions: reply(plugin.LoadVersionsOutput{
					Versions: []string{"18.4.0", "18.19.0"},
				}),
			},
		}
		fx := newFixture(t, transport)

		v, err := fx.tool.ResolveVersion(specOf(t, "18"), true)
		require.NoError(t, err)
		assert.Equal(t, "18.19.0", v.String())
		assert.Contains(t, transport.calls, plugin.FuncLoadVersions)
	})

	t.Run("remote disabled fails with ErrVersionNotFound", func(t *testing.T) {
		fx := newFixture(t, &fakeTransport{exports: []string{plugin.FuncLoadVersions}})

		_, err := fx.tool.ResolveVersion(specOf(t, "18"), false)
		assert.ErrorIs(t, err, version.ErrVersionNotFound)
	})

	t.Run("plugin resolve hint narrows the spec", func(t *testing.T) {
		transport := &fakeTransport{
			exports: []string{plugin.FuncResolveVersion},
			handlers: map[string]func([]byte) ([]byte, error){
				plugin.FuncResolveVersion: reply(plugin.ResolveVersionOutput{Candidate: "18"}),
			},
		}
		fx := newFixture(t, transport)
		installVersions(t, fx.tool, "18.19.0", "20.1.0")

		v, err := fx.tool.ResolveVersion(specOf(t, "hydrogen"), false)
		require.NoError(t, err)
		assert.Equal(t, "18.19.0", v.String())
	})

	t.Run("config alias overrides plugin alias", func(t *testing.T) {
		transport := &fakeTransport{
			exports: []string{plugin.FuncLoadVersions},
			handlers: map[string]func([]byte) ([]byte, error){
				plugin.FuncLoadVersions: reply(plugin.LoadVersionsOutput{
					Versions: []string{"18.19.0", "20.1.0"},
					Aliases:  map[string]string{"lts": "18"},
				}),
			},
		}
		fx := newFixture(t, transport)

		_, err := fx.store.Update(config.ScopeLocal, func(doc config.Document) {
			doc.Entry("node").Aliases = map[string]*version.Spec{"lts": specOf(t, "20")}
		})
		require.NoError(t, err)

		// Reload so the tool sees the new config.
		fx.tool.view, err = fx.store.Load()
		require.NoError(t, err)

		v, err := fx.tool.ResolveVersion(specOf(t, "lts"), true)
		require.NoError(t, err)
		assert.Equal(t, "20.1.0", v.String())
	})
}

func TestTool_InstallVersion(t *testing.T) {
	t.Run("native install records the manifest entry", func(t *testing.T) {
		transport := &fakeTransport{
			exports: []string{plugin.FuncNativeInstall},
			handlers: map[string]func([]byte) ([]byte, error){
				plugin.FuncNativeInstall: reply(plugin.NativeInstallOutput{Installed: true}),
			},
		}
		fx := newFixture(t, transport)
		v := semver.MustParse("20.1.0")

		require.NoError(t, fx.tool.InstallVersion(v))
		assert.True(t, fx.tool.Manifest.HasVersion(v))
		assert.Contains(t, transport.calls, plugin.FuncNativeInstall)
	})

	t.Run("already installed fails up front", func(t *testing.T) {
		fx := newFixture(t, &fakeTransport{exports: []string{plugin.FuncNativeInstall}})
		installVersions(t, fx.tool, "20.1.0")

		err := fx.tool.InstallVersion(semver.MustParse("20.1.0"))
		assert.ErrorIs(t, err, manifest.ErrAlreadyInstalled)
	})

	t.Run("missing install export fails with FunctionNotFound and records nothing", func(t *testing.T) {
		fx := newFixture(t, &fakeTransport{})
		v := semver.MustParse("20.1.0")

		err := fx.tool.InstallVersion(v)
		require.Error(t, err)
		assert.ErrorIs(t, err, plugin.ErrFunctionNotFound)
		assert.Contains(t, err.Error(), "node")
		assert.False(t, fx.tool.Manifest.HasVersion(v))
		assert.Empty(t, fx.tool.Manifest.Installed())
	})

	t.Run("prebuilt flow downloads, verifies, unpacks, records", func(t *testing.T) {
		transport := &fakeTransport{
			exports: []string{
				plugin.FuncDownloadPrebuilt,
				plugin.FuncVerifyChecksum,
				plugin.FuncUnpackArchive,
			},
			handlers: map[string]func([]byte) ([]byte, error){
				plugin.FuncDownloadPrebuilt: reply(plugin.DownloadPrebuiltOutput{
					DownloadURL: "https://example.com/node-20.1.0.tgz",
					ChecksumURL: "https://example.com/node-20.1.0.sha256",
				}),
				plugin.FuncVerifyChecksum: reply(plugin.VerifyChecksumOutput{Verified: true}),
			},
		}
		fx := newFixture(t, transport)

		var fetched []string
		fx.tool.fetch = func(url, dest string) error {
			fetched = append(fetched, url)
			return os.WriteFile(dest, []byte("archive"), 0644)
		}

		v := semver.MustParse("20.1.0")
		require.NoError(t, fx.tool.InstallVersion(v))

		assert.True(t, fx.tool.Manifest.HasVersion(v))
		assert.Len(t, fetched, 2)
		assert.Contains(t, transport.calls, plugin.FuncVerifyChecksum)
		assert.Contains(t, transport.calls, plugin.FuncUnpackArchive)
	})

	t.Run("failed pre_install leaves no version dir behind", func(t *testing.T) {
		transport := &fakeTransport{
			exports: []string{plugin.FuncPreInstall, plugin.FuncNativeInstall},
			handlers: map[string]func([]byte) ([]byte, error){
				plugin.FuncPreInstall: func([]byte) ([]byte, error) {
					return nil, errors.New("hook refused")
				},
			},
		}
		fx := newFixture(t, transport)
		v := semver.MustParse("20.1.0")

		err := fx.tool.InstallVersion(v)
		require.Error(t, err)
		assert.ErrorIs(t, err, plugin.ErrExecutionFailed)

		_, statErr := os.Stat(fx.tool.VersionDir(v))
		assert.True(t, os.IsNotExist(statErr))
		assert.False(t, fx.tool.Manifest.HasVersion(v))
		assert.NotContains(t, transport.calls, plugin.FuncNativeInstall)
	})

	t.Run("failed checksum aborts before the manifest is touched", func(t *testing.T) {
		transport := &fakeTransport{
			exports: []string{
				plugin.FuncDownloadPrebuilt,
				plugin.FuncVerifyChecksum,
				plugin.FuncUnpackArchive,
			},
			handlers: map[string]func([]byte) ([]byte, error){
				plugin.FuncDownloadPrebuilt: reply(plugin.DownloadPrebuiltOutput{
					DownloadURL: "https://example.com/node-20.1.0.tgz",
					ChecksumURL: "https://example.com/node-20.1.0.sha256",
				}),
				plugin.FuncVerifyChecksum: reply(plugin.VerifyChecksumOutput{Verified: false}),
			},
		}
		fx := newFixture(t, transport)
		fx.tool.fetch = func(url, dest string) error {
			return os.WriteFile(dest, []byte("archive"), 0644)
		}

		v := semver.MustParse("20.1.0")
		err := fx.tool.InstallVersion(v)
		require.Error(t, err)
		assert.ErrorIs(t, err, plugin.ErrExecutionFailed)
		assert.False(t, fx.tool.Manifest.HasVersion(v))
		assert.NotContains(t, transport.calls, plugin.FuncUnpackArchive)
	})
}

func TestTool_Aliases(t *testing.T) {
	transport := &fakeTransport{
		exports: []string{plugin.FuncLoadVersions},
		handlers: map[string]func([]byte) ([]byte, error){
			plugin.FuncLoadVersions: reply(plugin.LoadVersionsOutput{
				Versions: []string{"18.19.0"},
				Aliases:  map[string]string{"lts": "18"},
			}),
		},
	}
	fx := newFixture(t, transport)

	_, err := fx.store.Update(config.ScopeLocal, func(doc config.Document) {
		doc.Entry("node").Aliases = map[string]*version.Spec{"current": specOf(t, "20")}
	})
	require.NoError(t, err)
	fx.tool.view, err = fx.store.Load()
	require.NoError(t, err)

	t.Run("plugin defaults merged under config overrides", func(t *testing.T) {
		aliases, err := fx.tool.Aliases(true)
		require.NoError(t, err)

		require.Contains(t, aliases, "lts")
		assert.Equal(t, "18", aliases["lts"].Render())
		require.Contains(t, aliases, "current")
		assert.Equal(t, "20", aliases["current"].Render())
	})

	t.Run("without remote only config aliases remain", func(t *testing.T) {
		aliases, err := fx.tool.Aliases(false)
		require.NoError(t, err)

		assert.NotContains(t, aliases, "lts")
		assert.Contains(t, aliases, "current")
	})
}

func TestTool_UninstallVersion(t *testing.T) {
	t.Run("removes the version and its manifest entry", func(t *testing.T) {
		transport := &fakeTransport{
			exports: []string{plugin.FuncNativeUninstall},
			handlers: map[string]func([]byte) ([]byte, error){
				plugin.FuncNativeUninstall: reply(plugin.NativeUninstallOutput{Uninstalled: true}),
			},
		}
		fx := newFixture(t, transport)
		installVersions(t, fx.tool, "20.1.0")

		require.NoError(t, fx.tool.UninstallVersion(semver.MustParse("20.1.0")))
		assert.Empty(t, fx.tool.Manifest.Installed())
	})

	t.Run("absent version fails with ErrNotInstalled", func(t *testing.T) {
		fx := newFixture(t, &fakeTransport{})

		err := fx.tool.UninstallVersion(semver.MustParse("20.1.0"))
		assert.ErrorIs(t, err, manifest.ErrNotInstalled)
	})
}

func TestTool_PinVersion(t *testing.T) {
	t.Run("pin without resolve persists the spec verbatim", func(t *testing.T) {
		fx := newFixture(t, &fakeTransport{})

		path, err := fx.tool.PinVersion(specOf(t, "18"), config.ScopeLocal, false)
		require.NoError(t, err)
		assert.NotEmpty(t, path)

		doc, err := fx.store.LoadScope(config.ScopeLocal)
		require.NoError(t, err)
		assert.Equal(t, "18", doc["node"].Version.Render())
	})

	t.Run("pin with resolve persists the rendered concrete version", func(t *testing.T) {
		fx := newFixture(t, &fakeTransport{})
		installVersions(t, fx.tool, "18.4.0", "18.19.0")

		v, err := fx.tool.ResolveVersion(specOf(t, "18"), false)
		require.NoError(t, err)

		_, err = fx.tool.PinVersion(version.FromVersion(v), config.ScopeLocal, false)
		require.NoError(t, err)

		doc, err := fx.store.LoadScope(config.ScopeLocal)
		require.NoError(t, err)
		assert.Equal(t, "18.19.0", doc["node"].Version.Render())
	})

	t.Run("global pin with link resolves the spec itself", func(t *testing.T) {
		transport := &fakeTransport{
			exports: []string{plugin.FuncLocateExecutables},
			handlers: map[string]func([]byte) ([]byte, error){
				plugin.FuncLocateExecutables: reply(plugin.LocateExecutablesOutput{
					Primary: "bin/node",
				}),
			},
		}
		fx := newFixture(t, transport)

		_, err := fx.tool.PinVersion(specOf(t, "20.1.0"), config.ScopeGlobal, true)
		require.NoError(t, err)

		link := filepath.Join(fx.tool.env.BinDir, "node")
		_, err = os.Lstat(link)
		assert.NoError(t, err)

		doc, err := fx.store.LoadScope(config.ScopeGlobal)
		require.NoError(t, err)
		assert.Equal(t, "20.1.0", doc["node"].Version.Render())
	})

	t.Run("local pin leaves the global document untouched", func(t *testing.T) {
		fx := newFixture(t, &fakeTransport{})

		_, err := fx.tool.PinVersion(specOf(t, "18"), config.ScopeLocal, false)
		require.NoError(t, err)

		global, err := fx.store.LoadScope(config.ScopeGlobal)
		require.NoError(t, err)
		assert.NotContains(t, global, "node")
	})
}

func TestTool_SyncManifest(t *testing.T) {
	t.Run("records externally installed versions once", func(t *testing.T) {
		transport := &fakeTransport{
			exports: []string{plugin.FuncSyncManifest},
			handlers: map[string]func([]byte) ([]byte, error){
				plugin.FuncSyncManifest: reply(plugin.SyncManifestOutput{
					Versions: []string{"18.19.0", "20.1.0"},
				}),
			},
		}
		fx := newFixture(t, transport)
		installVersions(t, fx.tool, "20.1.0")

		require.NoError(t, fx.tool.SyncManifest())

		installed := fx.tool.Manifest.Installed()
		require.Len(t, installed, 2)
		assert.Equal(t, "18.19.0", installed[0].String())
		assert.Equal(t, "20.1.0", installed[1].String())
	})

	t.Run("skip_sync leaves the manifest alone", func(t *testing.T) {
		transport := &fakeTransport{
			exports: []string{plugin.FuncSyncManifest},
			handlers: map[string]func([]byte) ([]byte, error){
				plugin.FuncSyncManifest: reply(plugin.SyncManifestOutput{
					Versions: []string{"18.19.0"},
					SkipSync: true,
				}),
			},
		}
		fx := newFixture(t, transport)

		require.NoError(t, fx.tool.SyncManifest())
		assert.Empty(t, fx.tool.Manifest.Installed())
	})

	t.Run("no export is a no-op", func(t *testing.T) {
		fx := newFixture(t, &fakeTransport{})

		require.NoError(t, fx.tool.SyncManifest())
		assert.Empty(t, fx.transport.calls[1:]) // only register_tool
	})
}

func TestTool_Summaries(t *testing.T) {
	t.Run("annotates install date and default marker", func(t *testing.T) {
		fx := newFixture(t, &fakeTransport{})

		installedAt := time.UnixMilli(1700000000000)
		require.NoError(t, fx.tool.Manifest.RecordInstalled(semver.MustParse("20.1.0"), installedAt))
		require.NoError(t, fx.tool.Manifest.RecordInstalled(semver.MustParse("18.19.0"), installedAt))

		_, err := fx.store.Update(config.ScopeLocal, func(doc config.Document) {
			doc.Entry("node").Version = specOf(t, "20.1.0")
		})
		require.NoError(t, err)

		// Reload the view.
		fx.tool.view, err = fx.store.Load()
		require.NoError(t, err)

		summaries, err := fx.tool.Summaries()
		require.NoError(t, err)
		require.Len(t, summaries, 2)

		assert.Equal(t, "18.19.0", summaries[0].Version.String())
		assert.False(t, summaries[0].Default)
		assert.Nil(t, summaries[0].UsedAt)

		assert.Equal(t, "20.1.0", summaries[1].Version.String())
		assert.True(t, summaries[1].Default)
		require.NotNil(t, summaries[1].InstalledAt)
		assert.Equal(t, installedAt.UnixMilli(), summaries[1].InstalledAt.UnixMilli())
	})

	t.Run("last used appears once tracked", func(t *testing.T) {
		fx := newFixture(t, &fakeTransport{})
		v := semver.MustParse("20.1.0")

		require.NoError(t, fx.tool.Manifest.RecordInstalled(v, time.Now()))
		require.NoError(t, os.MkdirAll(fx.tool.VersionDir(v), 0755))
		require.NoError(t, fx.tool.Manifest.TrackUsedAt(fx.tool.VersionDir(v), time.UnixMilli(1700000000123)))

		summaries, err := fx.tool.Summaries()
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		require.NotNil(t, summaries[0].UsedAt)
		assert.Equal(t, int64(1700000000123), summaries[0].UsedAt.UnixMilli())
	})
}

func TestNewFetcher(t *testing.T) {
	t.Run("downloads to the destination", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("archive bytes"))
		}))
		defer server.Close()

		dest := filepath.Join(t.TempDir(), "archive.tgz")
		fetch := NewFetcher(5 * time.Second)

		require.NoError(t, fetch(server.URL, dest))

		content, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "archive bytes", string(content))
	})

	t.Run("non-200 status fails", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		fetch := NewFetcher(5 * time.Second)
		err := fetch(server.URL, filepath.Join(t.TempDir(), "archive.tgz"))
		assert.Error(t, err)
	})
}
