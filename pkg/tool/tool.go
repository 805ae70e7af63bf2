// Package tool aggregates everything one managed tool needs: its loaded
// plugin instance, its installed-version manifest, and its slice of the
// layered pin config. A Tool is constructed per command invocation and never
// shared across processes except through the files it persists.
package tool

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/polyver/polyver/pkg/config"
	"github.com/polyver/polyver/pkg/manifest"
	"github.com/polyver/polyver/pkg/plugin"
	"github.com/polyver/polyver/pkg/version"
	"github.com/polyver/polyver/pkg/vpath"
)

// Fetcher downloads url into dest. Swappable so tests never touch the
// network.
type Fetcher func(url, dest string) error

// Tool is the aggregate for one managed tool.
type Tool struct {
	ID       string
	Metadata plugin.ToolMetadataOutput
	// Locator records where the plugin came from; empty for built-ins.
	Locator string

	Plugin   *plugin.Instance
	Manifest *manifest.Manifest
	Config   *config.Store

	env      Env
	view     *config.View
	resolved *semver.Version
	fetch    Fetcher
	logger   zerolog.Logger
}

// Load constructs the tool for one command invocation: discovers and starts
// its plugin, loads its manifest, and reads the layered config.
func Load(env Env, id string, store *config.Store, discovery *plugin.Discovery, loader *plugin.Loader, logger zerolog.Logger) (*Tool, error) {
	found, err := discovery.Find(env.Plugins, id)
	if err != nil {
		return nil, err
	}

	inventory := env.InventoryDir(id)
	if err := os.MkdirAll(inventory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create inventory dir for %s: %w", id, err)
	}
	if err := os.MkdirAll(env.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}

	paths, err := vpath.NewTranslator(
		vpath.Mount{Name: "/workspace", Dir: inventory},
		vpath.Mount{Name: "/temp", Dir: env.TempDir},
		vpath.Mount{Name: "/cwd", Dir: cwd},
	)
	if err != nil {
		return nil, err
	}

	loaded, err := loader.Load(*found, paths, inventory)
	if err != nil {
		return nil, err
	}

	return New(id, loaded.Instance, loaded.Metadata.Locator, env, store, logger)
}

// New wires an already-running plugin instance into a tool. Split from Load
// so tests can substitute an in-memory transport.
func New(id string, instance *plugin.Instance, locator string, env Env, store *config.Store, logger zerolog.Logger) (*Tool, error) {
	man, err := manifest.Load(filepath.Join(env.InventoryDir(id), manifest.FileName), logger)
	if err != nil {
		return nil, err
	}

	view, err := store.Load()
	if err != nil {
		return nil, err
	}

	meta, err := instance.RegisterTool(plugin.ToolMetadataInput{ID: id})
	if err != nil {
		return nil, err
	}

	return &Tool{
		ID:       id,
		Metadata: *meta,
		Locator:  locator,
		Plugin:   instance,
		Manifest: man,
		Config:   store,
		env:      env,
		view:     view,
		fetch:    NewFetcher(0),
		logger:   logger.With().Str("component", "tool").Str("tool", id).Logger(),
	}, nil
}

// Name returns the display name, falling back to the id.
func (t *Tool) Name() string {
	if t.Metadata.Name != "" {
		return t.Metadata.Name
	}
	return t.ID
}

// InventoryDir is where this tool's versions and manifest live.
func (t *Tool) InventoryDir() string {
	return t.env.InventoryDir(t.ID)
}

// VersionDir is the install directory for one concrete version.
func (t *Tool) VersionDir(v *semver.Version) string {
	return filepath.Join(t.InventoryDir(), v.String())
}

// ResolvedVersion returns the version set by the last ResolveVersion call.
func (t *Tool) ResolvedVersion() *semver.Version {
	return t.resolved
}

// Pin returns the effective pinned spec for this tool, or nil.
func (t *Tool) Pin() *version.Spec {
	return t.view.Pin(t.ID)
}

// Aliases returns the effective alias map: plugin-reported defaults merged
// under the user's config overrides. Fetches the remote inventory when the
// plugin exports load_versions and remote is true.
func (t *Tool) Aliases(remote bool) (map[string]*version.Spec, error) {
	res, err := t.loadResolution(remote)
	if err != nil {
		return nil, err
	}
	return res.Aliases, nil
}

// loadResolution assembles every source a spec can resolve against.
func (t *Tool) loadResolution(remote bool) (*version.Resolution, error) {
	res := &version.Resolution{
		Aliases:   make(map[string]*version.Spec),
		Installed: t.Manifest.Installed(),
	}

	if remote && t.Plugin.Has(plugin.FuncLoadVersions) {
		out, err := t.Plugin.LoadVersions(plugin.LoadVersionsInput{Initial: "latest"})
		if err != nil {
			return nil, err
		}

		for _, text := range out.Versions {
			v, err := semver.NewVersion(text)
			if err != nil {
				t.logger.Warn().Str("version", text).Msg("Skipping unparseable remote version")
				continue
			}
			res.Remote = append(res.Remote, v)
		}

		for name, target := range out.Aliases {
			spec, err := version.Parse(target)
			if err != nil {
				t.logger.Warn().Str("alias", name).Str("target", target).Msg("Skipping unparseable plugin alias")
				continue
			}
			res.Aliases[name] = spec
		}
	}

	// User config overrides plugin defaults.
	for name, spec := range t.view.Aliases(t.ID) {
		res.Aliases[name] = spec
	}

	return res, nil
}

// ResolveVersion turns an unresolved spec into a concrete version,
// consulting the remote inventory only when the installed set cannot
// satisfy the spec and remote is allowed. Plugins exporting resolve_version
// get a chance to narrow the candidate first.
func (t *Tool) ResolveVersion(spec *version.Spec, remote bool) (*semver.Version, error) {
	spec, err := t.applyResolveHint(spec)
	if err != nil {
		return nil, err
	}

	res, err := t.loadResolution(false)
	if err != nil {
		return nil, err
	}

	v, err := res.Resolve(spec)
	if err != nil && remote && errors.Is(err, version.ErrVersionNotFound) {
		res, err = t.loadResolution(true)
		if err != nil {
			return nil, err
		}
		v, err = res.Resolve(spec)
	}
	if err != nil {
		return nil, err
	}

	t.resolved = v
	return v, nil
}

// applyResolveHint lets the plugin remap the spec before resolution, e.g.
// a tool that translates code names into version ranges.
func (t *Tool) applyResolveHint(spec *version.Spec) (*version.Spec, error) {
	if !t.Plugin.Has(plugin.FuncResolveVersion) {
		return spec, nil
	}

	out, err := t.Plugin.ResolveVersion(plugin.ResolveVersionInput{Initial: spec.Render()})
	if err != nil {
		return nil, err
	}

	hint := out.Version
	if hint == "" {
		hint = out.Candidate
	}
	if hint == "" || hint == spec.Render() {
		return spec, nil
	}

	hinted, err := version.Parse(hint)
	if err != nil {
		t.logger.Warn().Str("hint", hint).Msg("Ignoring unparseable resolve hint")
		return spec, nil
	}
	return hinted, nil
}

// SyncManifest reconciles versions a plugin reports as installed outside
// polyver into the manifest. Skipped silently when the plugin does not
// export sync_manifest or asks to skip.
func (t *Tool) SyncManifest() error {
	if !t.Plugin.Has(plugin.FuncSyncManifest) {
		return nil
	}

	out, err := t.Plugin.SyncManifest(plugin.ToolContext{})
	if err != nil {
		return err
	}
	if out.SkipSync {
		return nil
	}

	for _, text := range out.Versions {
		v, err := semver.NewVersion(text)
		if err != nil {
			t.logger.Warn().Str("version", text).Msg("Skipping unparseable synced version")
			continue
		}
		if t.Manifest.HasVersion(v) {
			continue
		}
		if err := t.Manifest.RecordInstalled(v, time.Now()); err != nil {
			return err
		}
	}

	return nil
}

// InstallVersion installs one concrete version: pre-install hook, native
// install or prebuilt download/verify/unpack, then the manifest record and
// the post-install hook. No manifest entry is written unless the install
// fully succeeded.
func (t *Tool) InstallVersion(v *semver.Version) error {
	if t.Manifest.HasVersion(v) {
		return fmt.Errorf("%w: %s %s", manifest.ErrAlreadyInstalled, t.ID, v)
	}

	ctx := plugin.ToolContext{Version: v.String()}
	versionDir := t.VersionDir(v)

	if err := os.MkdirAll(versionDir, 0755); err != nil {
		return fmt.Errorf("failed to create version dir %s: %w", versionDir, err)
	}

	// Leave no partial install behind, whichever step fails.
	if t.Plugin.Has(plugin.FuncPreInstall) {
		if err := t.Plugin.PreInstall(plugin.InstallHook{Context: ctx}); err != nil {
			os.RemoveAll(versionDir)
			return err
		}
	}

	if err := t.runInstall(ctx, v, versionDir); err != nil {
		os.RemoveAll(versionDir)
		return err
	}

	if err := t.Manifest.RecordInstalled(v, time.Now()); err != nil {
		os.RemoveAll(versionDir)
		return err
	}

	if t.Plugin.Has(plugin.FuncPostInstall) {
		if err := t.Plugin.PostInstall(plugin.InstallHook{Context: ctx}); err != nil {
			return err
		}
	}

	t.logger.Info().Str("version", v.String()).Msg("Installed version")
	return nil
}

// runInstall performs the plugin-specific install work.
func (t *Tool) runInstall(ctx plugin.ToolContext, v *semver.Version, versionDir string) error {
	if t.Plugin.Has(plugin.FuncNativeInstall) {
		out, err := t.Plugin.NativeInstall(ctx, versionDir)
		if err != nil {
			return err
		}
		if !out.Installed {
			return fmt.Errorf("%w: %s (tool %s): %s", plugin.ErrExecutionFailed, plugin.FuncNativeInstall, t.ID, out.Error)
		}
		return nil
	}

	return t.installPrebuilt(ctx, v, versionDir)
}

// installPrebuilt downloads, verifies, and unpacks a prebuilt archive into
// the version directory, staging everything under a uniquely named temp dir.
func (t *Tool) installPrebuilt(ctx plugin.ToolContext, v *semver.Version, versionDir string) error {
	prebuilt, err := t.Plugin.DownloadPrebuilt(ctx, versionDir)
	if err != nil {
		return err
	}

	suffix, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to name staging dir: %w", err)
	}
	staging := filepath.Join(t.env.TempDir, fmt.Sprintf("%s-%s-%s", t.ID, v, suffix))
	if err := os.MkdirAll(staging, 0755); err != nil {
		return fmt.Errorf("failed to create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	name := prebuilt.DownloadName
	if name == "" {
		name = filepath.Base(prebuilt.DownloadURL)
	}
	archive := filepath.Join(staging, name)

	if err := t.fetch(prebuilt.DownloadURL, archive); err != nil {
		return fmt.Errorf("failed to download %s: %w", prebuilt.DownloadURL, err)
	}

	if prebuilt.ChecksumURL != "" {
		checksum := archive + ".checksum"
		if err := t.fetch(prebuilt.ChecksumURL, checksum); err != nil {
			return fmt.Errorf("failed to download checksum %s: %w", prebuilt.ChecksumURL, err)
		}

		out, err := t.Plugin.VerifyChecksum(checksum, archive)
		if err != nil {
			return err
		}
		if !out.Verified {
			return fmt.Errorf("%w: checksum mismatch for %s (tool %s)", plugin.ErrExecutionFailed, name, t.ID)
		}
	}

	return t.Plugin.UnpackArchive(archive, versionDir)
}

// UninstallVersion removes one installed version and its manifest entry.
func (t *Tool) UninstallVersion(v *semver.Version) error {
	if !t.Manifest.HasVersion(v) {
		return fmt.Errorf("%w: %s %s", manifest.ErrNotInstalled, t.ID, v)
	}

	if t.Plugin.Has(plugin.FuncNativeUninstall) {
		ctx := plugin.ToolContext{Version: v.String()}
		out, err := t.Plugin.NativeUninstall(ctx)
		if err != nil {
			return err
		}
		if !out.Uninstalled {
			return fmt.Errorf("%w: %s (tool %s): %s", plugin.ErrExecutionFailed, plugin.FuncNativeUninstall, t.ID, out.Error)
		}
	}

	if err := os.RemoveAll(t.VersionDir(v)); err != nil {
		return fmt.Errorf("failed to remove version dir: %w", err)
	}

	if err := t.Manifest.RemoveInstalled(v); err != nil {
		return err
	}

	t.logger.Info().Str("version", v.String()).Msg("Uninstalled version")
	return nil
}

// PinVersion persists spec as the tool's default at the given scope. The
// symlink side effect is explicit: it only happens at global scope when the
// caller asks for it. Linking resolves the spec first when nothing resolved
// it yet.
func (t *Tool) PinVersion(spec *version.Spec, scope config.Scope, link bool) (string, error) {
	if scope == config.ScopeGlobal && link {
		if t.resolved == nil {
			if _, err := t.ResolveVersion(spec, true); err != nil {
				return "", err
			}
		}
		if err := t.SymlinkBins(); err != nil {
			return "", err
		}
	}

	path, err := t.Config.Update(scope, func(doc config.Document) {
		doc.Entry(t.ID).Version = spec
	})
	if err != nil {
		return "", err
	}

	t.logger.Debug().
		Str("version", spec.Render()).
		Str("config", path).
		Msg("Pinned the version")

	return path, nil
}

// SymlinkBins points stable bin dir entries at the resolved version's
// executables.
func (t *Tool) SymlinkBins() error {
	v := t.resolved
	if v == nil {
		return fmt.Errorf("%w: no resolved version to link", version.ErrVersionNotFound)
	}

	ctx := plugin.ToolContext{Version: v.String()}
	located, err := t.Plugin.LocateExecutables(plugin.LocateExecutablesInput{Context: ctx})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(t.env.BinDir, 0755); err != nil {
		return fmt.Errorf("failed to create bin dir: %w", err)
	}

	exesDir := filepath.Join(t.VersionDir(v), filepath.FromSlash(located.ExesDir))
	bins := located.Bins
	if located.Primary != "" {
		bins = append([]string{located.Primary}, bins...)
	}

	for _, bin := range bins {
		target := filepath.Join(exesDir, bin)
		link := filepath.Join(t.env.BinDir, filepath.Base(bin))

		if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to replace symlink %s: %w", link, err)
		}
		if err := os.Symlink(target, link); err != nil {
			return fmt.Errorf("failed to create symlink %s: %w", link, err)
		}
	}

	return nil
}

// SetFetcher replaces the download function, e.g. to apply the host's
// configured timeout.
func (t *Tool) SetFetcher(fetch Fetcher) {
	if fetch != nil {
		t.fetch = fetch
	}
}

// NewFetcher builds the default HTTP Fetcher. A zero timeout means no limit.
func NewFetcher(timeout time.Duration) Fetcher {
	client := &http.Client{Timeout: timeout}

	return func(url, dest string) error {
		resp, err := client.Get(url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %s", resp.Status)
		}

		f, err := os.Create(dest)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(f, resp.Body)
		return err
	}
}
