package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/keanucz/ffbins/internal/batch"
	"github.com/keanucz/ffbins/internal/target"
)

var (
	targetsFlag    string
	outputRootFlag string
	strictFlag     bool
)

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVarP(&targetsFlag, "targets", "t", "", "JSON or YAML file listing the targets to build")
	batchCmd.Flags().StringVar(&outputRootFlag, "output-root", "binaries", "Directory receiving one subdirectory per target")
	batchCmd.Flags().BoolVar(&strictFlag, "strict", false, "Stop at the first failed target")
	_ = batchCmd.MarkFlagRequired("targets")
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Build binaries for every target in a targets file",
	Long: `Build binaries for every target in a targets file.

Each target is processed by running ffbins once, as a subprocess, with the
target's flags and an output directory of <output-root>/<platform>-<arch>-<version>[-<distro>].
Targets are processed one at a time. Failed targets are listed at the end
and make the command exit non-zero.

Examples:
  ffbins batch --targets targets.yaml
  ffbins batch --targets targets.json --output-root ./repo --strict`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := target.ExpandPath(targetsFlag)
		if err != nil {
			return err
		}
		targets, err := target.LoadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read targets: %w", err)
		}
		if len(targets) == 0 {
			return fmt.Errorf("no targets in %s", path)
		}

		root, err := target.ExpandPath(outputRootFlag)
		if err != nil {
			return err
		}
		root, err = filepath.Abs(root)
		if err != nil {
			return err
		}

		runner, err := newBatchRunner(cmd)
		if err != nil {
			return err
		}

		Logger.Info("building targets", "count", len(targets), "root", root, "strict", strictFlag)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		summary, err := batch.Run(ctx, targets, runner, batch.Options{
			Root:   root,
			Strict: strictFlag,
			Log:    Logger,
		})
		summary.Print(cmd.OutOrStdout())
		return err
	},
}

// newBatchRunner re-runs this executable per target, forwarding the
// persistent flags so every child logs and loads settings like the parent.
func newBatchRunner(cmd *cobra.Command) (*batch.ExecRunner, error) {
	runner, err := batch.NewExecRunner()
	if err != nil {
		return nil, err
	}
	runner.Stdout = cmd.OutOrStdout()
	runner.Stderr = cmd.ErrOrStderr()
	if verboseFlag {
		runner.Args = append(runner.Args, "--verbose")
	}
	if configFlag != "" {
		runner.Args = append(runner.Args, "--config", configFlag)
	}
	return runner, nil
}

func successMark() string {
	return color.New(color.FgGreen).Sprint("✓")
}
