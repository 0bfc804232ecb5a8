package internal

import (
	"context"
	"os"
	"os/signal"

	"github.com/liballeg/allegro-android/internal/msg"
	"github.com/liballeg/allegro-android/internal/pipeline"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"
)

var (
	opts    pipeline.Options
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "allegro-android",
	Short: "allegro-android builds Allegro for Android",
	Long: `allegro-android downloads the JDK, Android SDK and NDK, cross-compiles
Allegro's dependencies and Allegro itself for every selected ABI, and
packages the libraries as a Gradle library project.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetOutputLevel(log.Ldebug)
		} else {
			log.SetOutputLevel(log.Linfo)
		}
	},
	RunE: runRoot,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.Path, "path", "p", "", "Path to install to, by default the current directory")
	pf.StringVarP(&opts.Allegro, "allegro", "a", "", "Path or git:<url> of the Allegro sources")
	pf.StringVarP(&opts.Config, "config", "c", "", "Settings file, by default <path>/allegro-android.toml")
	pf.StringVarP(&opts.Arch, "arch", "A", "", "Comma separated list of architectures, by default all are built")
	pf.StringVarP(&opts.VersionSuffix, "version-suffix", "s", "", "Suffix appended to the derived version")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Print debug output")

	f := rootCmd.Flags()
	f.BoolVarP(&opts.NoToolchain, "no-toolchain", "T", false, "Reuse the unpacked JDK, SDK and NDK")
	f.BoolVarP(&opts.NoInstall, "no-install", "i", false, "Do not build the dependencies")
	f.BoolVarP(&opts.NoBuild, "no-build", "b", false, "Do not build Allegro")
	f.BoolVarP(&opts.NoPackage, "no-package", "k", false, "Do not generate the Gradle project")
	f.BoolVarP(&opts.NoDist, "no-dist", "d", false, "Do not run Gradle")
	f.BoolVarP(&opts.Debug, "debug", "D", false, "Build debug libraries")
	f.IntVarP(&opts.Jobs, "jobs", "j", 0, "Parallel make jobs, by default the number of CPUs")
	f.IntVar(&opts.Parallel, "parallel", 1, "Number of architectures built at the same time")
	f.BoolVar(&opts.FailFast, "fail-fast", false, "Stop at the first failed command")
	f.BoolVar(&opts.Force, "force", false, "Rebuild dependencies that are up to date")
	f.BoolVar(&opts.Zip, "zip", false, "Also write <path>/allegro-<version>.zip")
	f.BoolVar(&opts.Publish, "publish", false, "Run the Gradle publish task")
}

func runRoot(cmd *cobra.Command, args []string) error {
	return pipeline.Run(cmd.Context(), opts)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		msg.Fatal("%v", err)
	}
}
