package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polyver/polyver/pkg/config"
	"github.com/polyver/polyver/pkg/manifest"
	"github.com/polyver/polyver/pkg/version"
)

var installPin bool

var installCmd = &cobra.Command{
	Use:   "install <tool> [version]",
	Short: "Install a version of a tool",
	Long: `Install a version of a tool. Without an explicit version the pinned
spec is used, falling back to latest.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&installPin, "pin", false, "pin the installed version in the current project")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	t, err := s.openTool(args[0])
	if err != nil {
		return err
	}

	spec, err := installSpec(t.Pin(), args)
	if err != nil {
		return err
	}

	v, err := t.ResolveVersion(spec, true)
	if err != nil {
		return err
	}

	if err := t.InstallVersion(v); err != nil {
		if errors.Is(err, manifest.ErrAlreadyInstalled) {
			fmt.Printf("%s %s is already installed\n", t.Name(), v)
			return nil
		}
		return err
	}

	fmt.Printf("Installed %s %s\n", t.Name(), v)

	if installPin {
		if _, err := t.PinVersion(version.FromVersion(v), config.ScopeLocal, false); err != nil {
			return err
		}
		fmt.Printf("Pinned %s to %s\n", t.Name(), v)
	}

	return nil
}

// installSpec picks the spec to install: explicit argument, then the
// effective pin, then latest.
func installSpec(pinned *version.Spec, args []string) (*version.Spec, error) {
	if len(args) == 2 {
		return version.Parse(args[1])
	}
	if pinned != nil {
		return pinned, nil
	}
	return version.Parse("latest")
}
