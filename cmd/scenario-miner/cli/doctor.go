package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/charmbracelet/huh"
	"github.com/scenario-miner/scenario-miner/internal/config"
	"github.com/scenario-miner/scenario-miner/internal/sandbox"
	"github.com/spf13/cobra"
)

// newDoctorCmd checks that the host can actually run a replay: Docker is
// reachable, git is on PATH, and the configured image is pullable. Each
// failure offers a remediation prompt, mirroring the teacher's stuck-session
// diagnostic but repurposed to sandbox preflight.
func newDoctorCmd() *cobra.Command {
	var imageFlag string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that this host can run a scenario replay",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, imageFlag)
		},
	}

	cmd.Flags().StringVar(&imageFlag, "image", "", "image to preflight (defaults to the configured image)")

	return cmd
}

func runDoctor(cmd *cobra.Command, image string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if _, err := exec.LookPath("git"); err != nil {
		fmt.Fprintln(out, "FAIL  git not found on PATH")
		return NewSilentError(errors.New("git not found on PATH"))
	}
	fmt.Fprintln(out, "OK    git is on PATH")

	if image == "" {
		cfg, err := config.Load()
		if err == nil {
			image = cfg.Image
		}
	}
	if image == "" {
		fmt.Fprintln(out, "SKIP  no image configured; pass --image or set it in .scenario-miner/config.json")
		return nil
	}

	runtime, err := sandbox.New(sandbox.Config{Image: image})
	if err != nil {
		fmt.Fprintf(out, "FAIL  could not reach Docker: %v\n", err)
		return NewSilentError(err)
	}

	if err := runtime.EnsureImage(ctx, image); err != nil {
		fmt.Fprintf(out, "FAIL  image %s is not available: %v\n", image, err)
		if promptPullImage(image) {
			if err := runtime.EnsureImage(ctx, image); err != nil {
				fmt.Fprintf(out, "FAIL  pull still failed: %v\n", err)
				return NewSilentError(err)
			}
			fmt.Fprintf(out, "OK    pulled %s\n", image)
			return nil
		}
		return NewSilentError(err)
	}

	fmt.Fprintf(out, "OK    image %s is available\n", image)
	fmt.Fprintln(out, "OK    Docker is reachable")
	return nil
}

// promptPullImage asks whether to pull the missing image now. Runs in
// accessible mode (plain y/n) when ACCESSIBLE is set, matching the
// screen-reader-friendly fallback the teacher's interactive commands use.
func promptPullImage(image string) bool {
	if os.Getenv("ACCESSIBLE") != "" {
		return promptPullImageAccessible(image)
	}

	var confirm bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Pull %s now?", image)).
				Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		return false
	}
	return confirm
}

func promptPullImageAccessible(image string) bool {
	fmt.Printf("Pull %s now? [y/N]: ", image)
	var answer string
	if _, err := fmt.Scanln(&answer); err != nil {
		return false
	}
	return answer == "y" || answer == "Y"
}
