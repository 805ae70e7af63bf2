package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/polyver/polyver/pkg/detect"
)

var detectWatch bool

var detectCmd = &cobra.Command{
	Use:   "detect <tool>",
	Short: "Detect the wanted version from the current directory",
	Long: `Detect the version the current directory tree wants for a tool by
scanning the version files its plugin declares, walking up to the filesystem
root. With --watch, keeps running and reports every change.`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func init() {
	detectCmd.Flags().BoolVarP(&detectWatch, "watch", "w", false, "keep watching for version file changes")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if !s.cfg.Detect.Enabled {
		return fmt.Errorf("version detection is disabled in the host config")
	}

	t, err := s.openTool(args[0])
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	detector := detect.NewDetector(t.ID, t.Plugin, s.baseLogger())

	found, err := detector.DetectFrom(cwd)
	switch {
	case errors.Is(err, detect.ErrNotDetected) && detectWatch:
		fmt.Println("Nothing detected yet, watching...")
	case err != nil:
		return err
	default:
		fmt.Printf("%s (from %s)\n", found.Spec.Render(), found.File)
	}

	if !detectWatch {
		return nil
	}

	return watchDetections(detector, cwd, s)
}

// watchDetections blocks printing new detections until interrupted.
func watchDetections(detector *detect.Detector, dir string, s *session) error {
	watcher, err := detect.NewWatcher(detector, dir, s.baseLogger())
	if err != nil {
		return err
	}
	defer watcher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		for found := range watcher.Detections() {
			fmt.Printf("%s (from %s)\n", found.Spec.Render(), found.File)
		}
	}()

	err = watcher.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
