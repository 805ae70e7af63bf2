package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polyver/polyver/pkg/config"
	"github.com/polyver/polyver/pkg/version"
)

var (
	pinGlobal  bool
	pinResolve bool
	pinLink    bool
)

var pinCmd = &cobra.Command{
	Use:   "pin <tool> <version>",
	Short: "Pin a default version for a tool",
	Long: `Pin a default version for a tool, either in the current project's
.polyver.toml or in the machine-wide store. The spec is persisted verbatim
unless --resolve turns it into a concrete version first.`,
	Args: cobra.ExactArgs(2),
	RunE: runPin,
}

func init() {
	pinCmd.Flags().BoolVarP(&pinGlobal, "global", "g", false, "pin to the machine-wide store")
	pinCmd.Flags().BoolVar(&pinResolve, "resolve", false, "resolve the spec to a concrete version before pinning")
	pinCmd.Flags().BoolVar(&pinLink, "link", false, "also symlink the tool's executables into the bin directory (global only)")
	rootCmd.AddCommand(pinCmd)
}

func runPin(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	t, err := s.openTool(args[0])
	if err != nil {
		return err
	}

	spec, err := version.Parse(args[1])
	if err != nil {
		return err
	}

	if pinResolve {
		v, err := t.ResolveVersion(spec, true)
		if err != nil {
			return err
		}
		spec = version.FromVersion(v)
	}

	scope := config.ScopeLocal
	if pinGlobal {
		scope = config.ScopeGlobal
	}

	path, err := t.PinVersion(spec, scope, pinLink)
	if err != nil {
		return err
	}

	fmt.Printf("Pinned %s to %s in %s\n", t.Name(), spec.Render(), path)
	return nil
}
