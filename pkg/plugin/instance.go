package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/polyver/polyver/pkg/vpath"
)

// Instance is one loaded plugin bound to one tool. It owns the mount table
// used to scope the plugin's filesystem view and is never shared across
// tools or processes. All calls are synchronous; the invocation layer
// imposes no timeout and never retries.
type Instance struct {
	toolID    string
	transport Transport
	exports   map[string]bool
	paths     *vpath.Translator
	toolDir   string
	logger    zerolog.Logger
}

// NewInstance wraps a transport for one tool. The export list is queried
// once so missing functions fail fast without a round trip.
func NewInstance(toolID string, transport Transport, paths *vpath.Translator, toolDir string, logger zerolog.Logger) (*Instance, error) {
	names, err := transport.Exports()
	if err != nil {
		return nil, fmt.Errorf("failed to query exports of plugin %s: %w", toolID, err)
	}

	exports := make(map[string]bool, len(names))
	for _, name := range names {
		exports[name] = true
	}

	return &Instance{
		toolID:    toolID,
		transport: transport,
		exports:   exports,
		paths:     paths,
		toolDir:   toolDir,
		logger:    logger.With().Str("component", "plugin-host").Str("tool", toolID).Logger(),
	}, nil
}

// ToolID returns the id of the tool this instance serves.
func (i *Instance) ToolID() string {
	return i.toolID
}

// Has reports whether the plugin exports a function.
func (i *Instance) Has(name string) bool {
	return i.exports[name]
}

// ToVirtual exposes the instance's path translator so callers can build
// path-bearing inputs without ever handing a real path to the sandbox.
func (i *Instance) ToVirtual(real string) (vpath.VirtualPath, error) {
	return i.paths.ToVirtual(real)
}

// FromVirtual translates a plugin-reported virtual path back to the host.
func (i *Instance) FromVirtual(virtual vpath.VirtualPath) (string, error) {
	return i.paths.FromVirtual(virtual)
}

// prepareContext substitutes the tool's canonical directory when the caller
// left the context directory unset, then maps it into the sandbox's virtual
// path space. The sandbox never observes an empty tool dir.
func (i *Instance) prepareContext(ctx ToolContext) (ToolContext, error) {
	if ctx.ToolDir.IsEmpty() {
		dir, err := i.paths.ToVirtual(i.toolDir)
		if err != nil {
			return ctx, err
		}
		ctx.ToolDir = dir
	}
	return ctx, nil
}

// call dispatches one named function, serializing input and deserializing
// output. Unknown fields in the output are tolerated for forward
// compatibility. Every failure is typed and names the tool and function.
func (i *Instance) call(name string, input, output any) error {
	if !i.Has(name) {
		return fmt.Errorf("%w: %s (tool %s)", ErrFunctionNotFound, name, i.toolID)
	}

	var payload []byte
	if input != nil {
		data, err := json.Marshal(input)
		if err != nil {
			return fmt.Errorf("%w: %s (tool %s): %v", ErrEncoding, name, i.toolID, err)
		}
		payload = data
	}

	i.logger.Trace().Str("func", name).Msg("Invoking plugin function")

	raw, err := i.transport.Call(name, payload)
	if err != nil {
		return fmt.Errorf("%w: %s (tool %s): %v", ErrExecutionFailed, name, i.toolID, err)
	}

	if output != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, output); err != nil {
			return fmt.Errorf("%w: %s (tool %s): %v", ErrDecoding, name, i.toolID, err)
		}
	}

	return nil
}

// RegisterTool exchanges tool metadata with the plugin.
func (i *Instance) RegisterTool(input ToolMetadataInput) (*ToolMetadataOutput, error) {
	var out ToolMetadataOutput
	if err := i.call(FuncRegisterTool, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DetectVersionFiles asks which version file names the tool recognizes.
func (i *Instance) DetectVersionFiles() (*DetectVersionOutput, error) {
	var out DetectVersionOutput
	if err := i.call(FuncDetectVersionFiles, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadVersions fetches the plugin-reported remote version inventory.
func (i *Instance) LoadVersions(input LoadVersionsInput) (*LoadVersionsOutput, error) {
	var out LoadVersionsOutput
	if err := i.call(FuncLoadVersions, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResolveVersion asks the plugin for tool-specific resolution hints.
func (i *Instance) ResolveVersion(input ResolveVersionInput) (*ResolveVersionOutput, error) {
	var out ResolveVersionOutput
	if err := i.call(FuncResolveVersion, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LocateExecutables asks where the context version's executables live.
func (i *Instance) LocateExecutables(input LocateExecutablesInput) (*LocateExecutablesOutput, error) {
	ctx, err := i.prepareContext(input.Context)
	if err != nil {
		return nil, err
	}
	input.Context = ctx

	var out LocateExecutablesOutput
	if err := i.call(FuncLocateExecutables, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NativeInstall asks the plugin to install the context version into
// installDir, a real host path mapped into the sandbox here.
func (i *Instance) NativeInstall(ctx ToolContext, installDir string) (*NativeInstallOutput, error) {
	prepared, err := i.prepareContext(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := i.paths.ToVirtual(installDir)
	if err != nil {
		return nil, err
	}

	var out NativeInstallOutput
	input := NativeInstallInput{Context: prepared, InstallDir: dir}
	if err := i.call(FuncNativeInstall, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NativeUninstall asks the plugin to remove the context version.
func (i *Instance) NativeUninstall(ctx ToolContext) (*NativeUninstallOutput, error) {
	prepared, err := i.prepareContext(ctx)
	if err != nil {
		return nil, err
	}

	var out NativeUninstallOutput
	input := NativeUninstallInput{Context: prepared}
	if err := i.call(FuncNativeUninstall, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadPrebuilt asks where a prebuilt archive can be fetched from.
func (i *Instance) DownloadPrebuilt(ctx ToolContext, installDir string) (*DownloadPrebuiltOutput, error) {
	prepared, err := i.prepareContext(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := i.paths.ToVirtual(installDir)
	if err != nil {
		return nil, err
	}

	var out DownloadPrebuiltOutput
	input := DownloadPrebuiltInput{Context: prepared, InstallDir: dir}
	if err := i.call(FuncDownloadPrebuilt, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UnpackArchive asks the plugin to unpack inputFile into outputDir. Both are
// real host paths mapped into the sandbox before the call; a path outside the
// mount table fails before anything reaches the plugin.
func (i *Instance) UnpackArchive(inputFile, outputDir string) error {
	in, err := i.paths.ToVirtual(inputFile)
	if err != nil {
		return err
	}
	out, err := i.paths.ToVirtual(outputDir)
	if err != nil {
		return err
	}

	return i.call(FuncUnpackArchive, UnpackArchiveInput{InputFile: in, OutputDir: out}, nil)
}

// VerifyChecksum asks the plugin to verify a downloaded file against its
// checksum file. Both paths are mapped into the sandbox before the call.
func (i *Instance) VerifyChecksum(checksumFile, downloadFile string) (*VerifyChecksumOutput, error) {
	checksum, err := i.paths.ToVirtual(checksumFile)
	if err != nil {
		return nil, err
	}
	download, err := i.paths.ToVirtual(downloadFile)
	if err != nil {
		return nil, err
	}

	var out VerifyChecksumOutput
	input := VerifyChecksumInput{ChecksumFile: checksum, DownloadFile: download}
	if err := i.call(FuncVerifyChecksum, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ParseVersionFile extracts a version spec from a detected version file.
func (i *Instance) ParseVersionFile(input ParseVersionFileInput) (*ParseVersionFileOutput, error) {
	var out ParseVersionFileOutput
	if err := i.call(FuncParseVersionFile, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncManifest lets the plugin reconcile externally installed versions.
func (i *Instance) SyncManifest(ctx ToolContext) (*SyncManifestOutput, error) {
	prepared, err := i.prepareContext(ctx)
	if err != nil {
		return nil, err
	}

	var out SyncManifestOutput
	if err := i.call(FuncSyncManifest, SyncManifestInput{Context: prepared}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncShellProfile asks which env exports the user's shell profile needs.
func (i *Instance) SyncShellProfile(input SyncShellProfileInput) (*SyncShellProfileOutput, error) {
	ctx, err := i.prepareContext(input.Context)
	if err != nil {
		return nil, err
	}
	input.Context = ctx

	var out SyncShellProfileOutput
	if err := i.call(FuncSyncShellProfile, input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PreInstall runs the pre-install hook. Side effect only, no output.
func (i *Instance) PreInstall(hook InstallHook) error {
	ctx, err := i.prepareContext(hook.Context)
	if err != nil {
		return err
	}
	hook.Context = ctx

	return i.call(FuncPreInstall, hook, nil)
}

// PostInstall runs the post-install hook. Side effect only, no output.
func (i *Instance) PostInstall(hook InstallHook) error {
	ctx, err := i.prepareContext(hook.Context)
	if err != nil {
		return err
	}
	hook.Context = ctx

	return i.call(FuncPostInstall, hook, nil)
}

// PreRun runs the pre-run hook and returns environment adjustments.
func (i *Instance) PreRun(hook RunHook) (*RunHookResult, error) {
	ctx, err := i.prepareContext(hook.Context)
	if err != nil {
		return nil, err
	}
	hook.Context = ctx

	var out RunHookResult
	if err := i.call(FuncPreRun, hook, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
