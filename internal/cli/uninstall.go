package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/polyver/polyver/pkg/version"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <tool> <version>",
	Short: "Uninstall a version of a tool",
	Args:  cobra.ExactArgs(2),
	RunE:  runUninstall,
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}

func runUninstall(cmd *cobra.Command, args []string) error {
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

	// Resolve against installed versions only.
	v, err := t.ResolveVersion(spec, false)
	if err != nil {
		return err
	}

	if err := t.UninstallVersion(v); err != nil {
		return err
	}

	fmt.Printf("Uninstalled %s %s\n", t.Name(), v)
	return nil
}
