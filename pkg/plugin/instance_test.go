package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyver/polyver/pkg/vpath"
)

// fakeTransport implements Transport in memory for host tests.
type fakeTransport struct {
	exports []string
	calls   []string
	inputs  map[string][]byte
	handler func(name string, payload []byte) ([]byte, error)
}

func (f *fakeTransport) Call(name string, payload []byte) ([]byte, error) {
	f.calls = append(f.calls, name)
	if f.inputs == nil {
		f.inputs = make(map[string][]byte)
	}
	f.inputs[name] = payload

	if f.handler != nil {
		return f.handler(name, payload)
	}
	return nil, nil
}

func (f *fakeTransport) Exports() ([]string, error) {
	return f.exports, nil
}

func newTestInstance(t *testing.T, transport *fakeTransport) (*Instance, string) {
	t.Helper()

	toolDir := t.TempDir()
	paths, err := vpath.NewTranslator(vpath.Mount{Name: "/workspace", Dir: toolDir})
	require.NoError(t, err)

	logger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	instance, err := NewInstance("node", transport, paths, toolDir, logger)
	require.NoError(t, err)

	return instance, toolDir
}

func TestInstance_FunctionNotFound(t *testing.T) {
	transport := &fakeTransport{exports: []string{FuncRegisterTool}}
	instance, _ := newTestInstance(t, transport)

	_, err := instance.NativeInstall(ToolContext{}, t.TempDir())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFunctionNotFound)
	// Diagnostic names the function and the tool.
	assert.Contains(t, err.Error(), FuncNativeInstall)
	assert.Contains(t, err.Error(), "node")
	// Nothing reached the sandbox.
	assert.Empty(t, transport.calls)
}

func TestInstance_ContextPreparation(t *testing.T) {
	t.Run("empty tool dir is substituted before the call", func(t *testing.T) {
		transport := &fakeTransport{
			exports: []string{FuncLocateExecutables},
			handler: func(string, []byte) ([]byte, error) {
				return json.Marshal(LocateExecutablesOutput{ExesDir: "bin"})
			},
		}
		instance, _ := newTestInstance(t, transport)

		out, err := instance.LocateExecutables(LocateExecutablesInput{})
		require.NoError(t, err)
		assert.Equal(t, "bin", out.ExesDir)

		var sent LocateExecutablesInput
		require.NoError(t, json.Unmarshal(transport.inputs[FuncLocateExecutables], &sent))
		assert.Equal(t, vpath.VirtualPath("/workspace"), sent.Context.ToolDir)
		assert.False(t, sent.Context.ToolDir.IsEmpty())
	})

	t.Run("caller-supplied virtual dir is preserved", func(t *testing.T) {
		transport := &fakeTransport{exports: []string{FuncSyncManifest}}
		instance, _ := newTestInstance(t, transport)

		_, err := instance.SyncManifest(ToolContext{ToolDir: "/workspace/20.1.0"})
		require.NoError(t, err)

		var sent SyncManifestInput
		require.NoError(t, json.Unmarshal(transport.inputs[FuncSyncManifest], &sent))
		assert.Equal(t, vpath.VirtualPath("/workspace/20.1.0"), sent.Context.ToolDir)
	})
}

func TestInstance_PathTranslation(t *testing.T) {
	t.Run("install dir crosses as a virtual path", func(t *testing.T) {
		transport := &fakeTransport{
			exports: []string{FuncNativeInstall},
			handler: func(string, []byte) ([]byte, error) {
				return json.Marshal(NativeInstallOutput{Installed: true})
			},
		}
		instance, toolDir := newTestInstance(t, transport)

		out, err := instance.NativeInstall(ToolContext{}, filepath.Join(toolDir, "20.1.0"))
		require.NoError(t, err)
		assert.True(t, out.Installed)

		var sent NativeInstallInput
		require.NoError(t, json.Unmarshal(transport.inputs[FuncNativeInstall], &sent))
		assert.Equal(t, vpath.VirtualPath("/workspace/20.1.0"), sent.InstallDir)
	})

	t.Run("unmapped path fails before reaching the sandbox", func(t *testing.T) {
		transport := &fakeTransport{exports: []string{FuncUnpackArchive}}
		instance, toolDir := newTestInstance(t, transport)

		err := instance.UnpackArchive(filepath.Join(t.TempDir(), "a.tgz"), toolDir)

		assert.ErrorIs(t, err, vpath.ErrPathNotMapped)
		assert.Empty(t, transport.calls)
	})
}

func TestInstance_ErrorTaxonomy(t *testing.T) {
	t.Run("plugin failure surfaces as ErrExecutionFailed with diagnostic", func(t *testing.T) {
		transport := &fakeTransport{
			exports: []string{FuncLoadVersions},
			handler: func(string, []byte) ([]byte, error) {
				return nil, errors.New("registry unreachable")
			},
		}
		instance, _ := newTestInstance(t, transport)

		_, err := instance.LoadVersions(LoadVersionsInput{Initial: "latest"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExecutionFailed)
		assert.Contains(t, err.Error(), "registry unreachable")
	})

	t.Run("malformed output surfaces as ErrDecoding", func(t *testing.T) {
		transport := &fakeTransport{
			exports: []string{FuncLoadVersions},
			handler: func(string, []byte) ([]byte, error) {
				return []byte("{not json"), nil
			},
		}
		instance, _ := newTestInstance(t, transport)

		_, err := instance.LoadVersions(LoadVersionsInput{Initial: "latest"})
		assert.ErrorIs(t, err, ErrDecoding)
	})

	t.Run("unknown output fields are tolerated", func(t *testing.T) {
		transport := &fakeTransport{
			exports: []string{FuncLoadVersions},
			handler: func(string, []byte) ([]byte, error) {
				return []byte(`{"versions":["20.1.0"],"future_field":{"a":1}}`), nil
			},
		}
		instance, _ := newTestInstance(t, transport)

		out, err := instance.LoadVersions(LoadVersionsInput{Initial: "latest"})
		require.NoError(t, err)
		assert.Equal(t, []string{"20.1.0"}, out.Versions)
	})
}

func TestInstance_Hooks(t *testing.T) {
	transport := &fakeTransport{exports: []string{FuncPreInstall, FuncPreRun}}
	instance, _ := newTestInstance(t, transport)

	require.NoError(t, instance.PreInstall(InstallHook{PinnedVersion: "20.1.0"}))
	assert.Equal(t, []string{FuncPreInstall}, transport.calls)

	var sent InstallHook
	require.NoError(t, json.Unmarshal(transport.inputs[FuncPreInstall], &sent))
	assert.False(t, sent.Context.ToolDir.IsEmpty())
}
