package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/keanucz/ffbins/internal/config"
	"github.com/keanucz/ffbins/internal/fetch"
	"github.com/keanucz/ffbins/internal/pipeline"
	"github.com/keanucz/ffbins/internal/target"
	"github.com/keanucz/ffbins/internal/version"
)

var (
	verboseFlag bool
	configFlag  string

	descriptor  target.Descriptor
	typeFlag    string
	outputFlag  string
	ffprobeFlag bool
)

// Logger is the global logger instance.
var Logger *log.Logger

var rootCmd = &cobra.Command{
	Use:   "ffbins",
	Short: "Download FFmpeg binaries for a platform",
	Long: fmt.Sprintf(`ffbins %s

Download a platform specific FFmpeg distribution, extract ffmpeg (and
optionally ffprobe) and install it into an output directory.

Examples:
  ffbins --platform linux --arch x64 --version 6.0 \
    --url https://johnvansickle.com/ffmpeg/releases/ffmpeg-release-amd64-static.tar.xz \
    --filename ffmpeg-release-amd64-static.tar.xz --type tar
  ffbins --platform win32 --arch x64 --version 6.0 --url https://example.com/ffmpeg.zip \
    --filename ffmpeg.zip --output ./bin`, version.Short()),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// Initialize logger based on verbose flag
		Logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: verboseFlag,
			Level:           log.InfoLevel,
		})
		if verboseFlag {
			Logger.SetLevel(log.DebugLevel)
		}
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		settings, err := config.Load(configFlag)
		if err != nil {
			return err
		}

		t, err := target.ParseArchiveType(typeFlag)
		if err != nil {
			return err
		}
		d := descriptor
		d.Type = t

		opts, err := target.Resolve(d, outputFlag, ffprobeFlag)
		if err != nil {
			return err
		}
		Logger.Debug("resolved options", "platform", opts.Platform, "arch", opts.Arch, "version", opts.Version, "type", opts.Type, "output", opts.Output)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		fetcher := fetch.New(
			&http.Client{Timeout: settings.HTTPTimeout},
			fetch.WithUserAgent(settings.UserAgent),
			fetch.WithProgress(progressLogger(Logger, opts.Filename)),
			fetch.WithLogger(Logger),
		)
		res, err := pipeline.Run(ctx, opts, pipeline.Deps{
			Fetcher:  fetcher,
			DpkgDeb:  settings.DpkgDeb,
			SevenZip: settings.SevenZip,
			Log:      Logger,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successMark(), res.Binary)
		return nil
	},
}

// progressLogger logs download progress in 10% steps. Downloads of unknown
// length are not reported.
func progressLogger(logger *log.Logger, name string) fetch.ProgressCallback {
	next := int64(10)
	return func(downloaded, total int64) {
		if total <= 0 {
			return
		}
		pct := downloaded * 100 / total
		if pct < next {
			return
		}
		logger.Info("download progress", "file", name, "percent", pct, "size", formatBytes(total))
		next = pct - pct%10 + 10
	}
}

// formatBytes converts bytes to human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose debug output")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to a YAML settings file")

	flags := rootCmd.Flags()
	flags.StringVar(&descriptor.Platform, "platform", "", "Target platform (linux, darwin, win32)")
	flags.StringVar(&descriptor.Arch, "arch", "", "Target architecture (x64, arm64, ...)")
	flags.StringVar(&descriptor.Version, "version", "", "FFmpeg version being downloaded")
	flags.StringVar(&descriptor.URL, "url", "", "URL of the distribution to download")
	flags.StringVar(&descriptor.Filename, "filename", "", "Local name of the downloaded file")
	flags.StringVar(&descriptor.Distro, "distro", "", "Distribution the build targets (informational)")
	flags.StringVar(&typeFlag, "type", string(target.TypeZip), "Archive type: zip, tar, deb, binary or 7z")
	flags.StringVarP(&outputFlag, "output", "o", target.DefaultOutput, "Output directory")
	flags.BoolVar(&ffprobeFlag, "ffprobe", true, "Also install ffprobe when the distribution has it")

	for _, name := range []string{"platform", "arch", "version", "url", "filename"} {
		_ = rootCmd.MarkFlagRequired(name)
	}
}
