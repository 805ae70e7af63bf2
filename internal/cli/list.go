package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/polyver/polyver/pkg/tool"
)

var (
	listAliases  bool
	listVersions bool
	listJSON     bool
)

var listCmd = &cobra.Command{
	Use:   "list [tool...]",
	Short: "List discovered tools",
	Long: `List the named tools, or every discovered tool when none are named.
With --versions each installed version is annotated with its install date,
last use, and whether it is the pinned default; --aliases adds the known
aliases and --json emits the whole report as JSON.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listAliases, "aliases", false, "also list known aliases")
	listCmd.Flags().BoolVar(&listVersions, "versions", false, "also list installed versions")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(listCmd)
}

// versionReport is one installed version in the list output.
type versionReport struct {
	Version     string     `json:"version"`
	InstalledAt *time.Time `json:"installed_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	Default     bool       `json:"default,omitempty"`
}

// toolReport is one tool's block in the list output.
type toolReport struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Versions []versionReport   `json:"versions,omitempty"`
	Aliases  map[string]string `json:"aliases,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ids := args
	if len(ids) == 0 {
		discovered, err := s.discovery.Discover(s.env.Plugins)
		if err != nil {
			return err
		}
		seen := make(map[string]bool)
		for _, d := range discovered {
			if !seen[d.ID] {
				seen[d.ID] = true
				ids = append(ids, d.ID)
			}
		}
	}

	if len(ids) == 0 {
		fmt.Println("No plugins discovered")
		return nil
	}

	printer := NewPrinter(os.Stdout)
	reports := make([]*toolReport, len(ids))
	errs := make([]error, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()

			t, err := s.openTool(id)
			if err != nil {
				errs[i] = err
				return
			}

			report, err := buildReport(t, listVersions, listAliases)
			if err != nil {
				errs[i] = err
				return
			}

			if listJSON {
				reports[i] = report
			} else {
				printer.Section(renderReport(report, listVersions))
			}
		}(i, id)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	if listJSON {
		out := make([]*toolReport, 0, len(reports))
		for _, r := range reports {
			if r != nil {
				out = append(out, r)
			}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		printer.Line("%s", data)
	}

	return nil
}

// buildReport assembles one tool's block, gated by the requested detail.
func buildReport(t *tool.Tool, withVersions, withAliases bool) (*toolReport, error) {
	report := &toolReport{ID: t.ID, Name: t.Name()}

	if withVersions {
		// Pick up versions installed outside polyver first.
		if err := t.SyncManifest(); err != nil {
			return nil, err
		}

		summaries, err := t.Summaries()
		if err != nil {
			return nil, err
		}
		for _, s := range summaries {
			report.Versions = append(report.Versions, versionReport{
				Version:     s.Version.String(),
				InstalledAt: s.InstalledAt,
				LastUsedAt:  s.UsedAt,
				Default:     s.Default,
			})
		}
	}

	if withAliases {
		// Plugin defaults merged under the user's overrides.
		aliases, err := t.Aliases(true)
		if err != nil {
			return nil, err
		}
		if len(aliases) > 0 {
			report.Aliases = make(map[string]string, len(aliases))
			for name, spec := range aliases {
				report.Aliases[name] = spec.Render()
			}
		}
	}

	return report, nil
}

// renderReport formats one tool's block for the console.
func renderReport(r *toolReport, withVersions bool) []string {
	lines := []string{fmt.Sprintf("%s (%s)", r.Name, r.ID)}

	if withVersions {
		if len(r.Versions) == 0 {
			lines = append(lines, "  no versions installed")
		}
		for _, v := range r.Versions {
			lines = append(lines, "  "+formatVersion(v))
		}
	}

	names := make([]string, 0, len(r.Aliases))
	for name := range r.Aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("  %s -> %s", name, r.Aliases[name]))
	}

	return lines
}

// formatVersion renders one installed version with its annotations. The
// pinned default gets a leading marker.
func formatVersion(v versionReport) string {
	marker := "  "
	if v.Default {
		marker = "* "
	}

	var notes []string
	if v.InstalledAt != nil {
		notes = append(notes, "installed "+v.InstalledAt.Format("01/02/06"))
	}
	if v.LastUsedAt != nil {
		notes = append(notes, "last used "+v.LastUsedAt.Format("01/02/06"))
	}
	if v.Default {
		notes = append(notes, "default version")
	}

	if len(notes) == 0 {
		return marker + v.Version
	}
	return fmt.Sprintf("%s%s - %s", marker, v.Version, strings.Join(notes, ", "))
}
