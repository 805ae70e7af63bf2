// Package plugin hosts sandboxed tool plugins behind a fixed, typed function
// contract. Each managed tool is implemented by an independently authored
// plugin process; the host dispatches named functions with JSON-serialized
// inputs and outputs, and every filesystem path crossing the boundary goes
// through a virtual path translator first. The contract is uniform across
// all plugins, which is what lets one host serve arbitrarily many of them.
package plugin

import (
	"github.com/polyver/polyver/pkg/vpath"
)

// Exported function names. This table is the single source of truth for the
// host/plugin contract.
const (
	FuncRegisterTool       = "register_tool"
	FuncDetectVersionFiles = "detect_version_files"
	FuncLoadVersions       = "load_versions"
	FuncResolveVersion     = "resolve_version"
	FuncLocateExecutables  = "locate_executables"
	FuncNativeInstall      = "native_install"
	FuncNativeUninstall    = "native_uninstall"
	FuncDownloadPrebuilt   = "download_prebuilt"
	FuncUnpackArchive      = "unpack_archive"
	FuncVerifyChecksum     = "verify_checksum"
	FuncParseVersionFile   = "parse_version_file"
	FuncSyncManifest       = "sync_manifest"
	FuncSyncShellProfile   = "sync_shell_profile"
	FuncPreInstall         = "pre_install"
	FuncPostInstall        = "post_install"
	FuncPreRun             = "pre_run"
)

// ToolContext is the ephemeral per-call value threaded into every
// context-bearing invocation. ToolDir is always a sandbox-visible virtual
// path; the host substitutes the tool's canonical directory before the value
// ever reaches the plugin, so the sandbox never observes an empty path.
type ToolContext struct {
	ToolDir vpath.VirtualPath `json:"tool_dir"`
	Version string            `json:"version,omitempty"`
}

// ToolMetadataInput seeds register_tool with the host-assigned id.
type ToolMetadataInput struct {
	ID string `json:"id"`
}

// ToolMetadataOutput describes the tool as reported by its plugin.
type ToolMetadataOutput struct {
	Name           string `json:"name"`
	Type           string `json:"type,omitempty"`
	PluginVersion  string `json:"plugin_version,omitempty"`
	DefaultVersion string `json:"default_version,omitempty"`
}

// DetectVersionOutput lists the version file names the tool recognizes.
type DetectVersionOutput struct {
	Files  []string `json:"files"`
	Ignore []string `json:"ignore,omitempty"`
}

// LoadVersionsInput carries the unresolved spec being resolved, rendered.
type LoadVersionsInput struct {
	Initial string `json:"initial"`
}

// LoadVersionsOutput is the plugin-reported remote version inventory.
type LoadVersionsOutput struct {
	Versions []string          `json:"versions"`
	Latest   string            `json:"latest,omitempty"`
	Aliases  map[string]string `json:"aliases,omitempty"`
}

// ResolveVersionInput asks the plugin for tool-specific resolution hints.
type ResolveVersionInput struct {
	Initial string `json:"initial"`
}

// ResolveVersionOutput may narrow the candidate spec or name a version.
type ResolveVersionOutput struct {
	Candidate string `json:"candidate,omitempty"`
	Version   string `json:"version,omitempty"`
}

// LocateExecutablesInput carries only the call context.
type LocateExecutablesInput struct {
	Context ToolContext `json:"context"`
}

// LocateExecutablesOutput names the executables of an installed version,
// relative to the tool directory.
type LocateExecutablesOutput struct {
	ExesDir string   `json:"exes_dir,omitempty"`
	Primary string   `json:"primary,omitempty"`
	Bins    []string `json:"bins,omitempty"`
}

// NativeInstallInput asks the plugin to perform its own install.
type NativeInstallInput struct {
	Context    ToolContext       `json:"context"`
	InstallDir vpath.VirtualPath `json:"install_dir"`
}

// NativeInstallOutput reports the install result.
type NativeInstallOutput struct {
	Installed bool   `json:"installed"`
	Error     string `json:"error,omitempty"`
}

// NativeUninstallInput asks the plugin to remove an installed version.
type NativeUninstallInput struct {
	Context ToolContext `json:"context"`
}

// NativeUninstallOutput reports the uninstall result.
type NativeUninstallOutput struct {
	Uninstalled bool   `json:"uninstalled"`
	Error       string `json:"error,omitempty"`
}

// DownloadPrebuiltInput asks where a prebuilt archive for the context
// version can be fetched from.
type DownloadPrebuiltInput struct {
	Context    ToolContext       `json:"context"`
	InstallDir vpath.VirtualPath `json:"install_dir"`
}

// DownloadPrebuiltOutput describes the prebuilt archive. Checksum format
// only; transport is the caller's concern.
type DownloadPrebuiltOutput struct {
	DownloadURL   string `json:"download_url"`
	DownloadName  string `json:"download_name,omitempty"`
	ChecksumURL   string `json:"checksum_url,omitempty"`
	ArchivePrefix string `json:"archive_prefix,omitempty"`
}

// UnpackArchiveInput carries virtual in/out paths. Hook call, no output.
type UnpackArchiveInput struct {
	InputFile vpath.VirtualPath `json:"input_file"`
	OutputDir vpath.VirtualPath `json:"output_dir"`
}

// VerifyChecksumInput carries virtual checksum/download paths.
type VerifyChecksumInput struct {
	ChecksumFile vpath.VirtualPath `json:"checksum_file"`
	DownloadFile vpath.VirtualPath `json:"download_file"`
}

// VerifyChecksumOutput reports checksum verification.
type VerifyChecksumOutput struct {
	Verified bool `json:"verified"`
}

// ParseVersionFileInput holds one detected version file and its content.
type ParseVersionFileInput struct {
	File    string `json:"file"`
	Content string `json:"content"`
}

// ParseVersionFileOutput is the spec text extracted from the file, if any.
type ParseVersionFileOutput struct {
	Version string `json:"version,omitempty"`
}

// SyncManifestInput carries only the call context.
type SyncManifestInput struct {
	Context ToolContext `json:"context"`
}

// SyncManifestOutput lets the plugin reconcile externally installed versions.
type SyncManifestOutput struct {
	Versions []string `json:"versions,omitempty"`
	SkipSync bool     `json:"skip_sync,omitempty"`
}

// SyncShellProfileInput carries the call context plus passthrough args.
type SyncShellProfileInput struct {
	Context         ToolContext `json:"context"`
	PassthroughArgs []string    `json:"passthrough_args,omitempty"`
}

// SyncShellProfileOutput describes env exports the shell profile needs.
type SyncShellProfileOutput struct {
	CheckVar   string            `json:"check_var,omitempty"`
	ExportVars map[string]string `json:"export_vars,omitempty"`
	SkipSync   bool              `json:"skip_sync,omitempty"`
}

// InstallHook is the side-effecting pre_install/post_install payload.
type InstallHook struct {
	Context         ToolContext `json:"context"`
	PinnedVersion   string      `json:"pinned_version,omitempty"`
	Forced          bool        `json:"forced,omitempty"`
	PassthroughArgs []string    `json:"passthrough_args,omitempty"`
}

// RunHook is the pre_run payload.
type RunHook struct {
	Context         ToolContext       `json:"context"`
	GlobalsDir      vpath.VirtualPath `json:"globals_dir,omitempty"`
	PassthroughArgs []string          `json:"passthrough_args,omitempty"`
}

// RunHookResult lets the plugin adjust the environment of a tool run.
type RunHookResult struct {
	Env  map[string]string `json:"env,omitempty"`
	Args []string          `json:"args,omitempty"`
}
