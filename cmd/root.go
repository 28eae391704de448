package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"

	"github.com/agentic-research/tflmake/api"
	"github.com/agentic-research/tflmake/internal/config"
	"github.com/agentic-research/tflmake/internal/logging"
	"github.com/agentic-research/tflmake/internal/pipeline"
	"github.com/agentic-research/tflmake/internal/toolchain"
)

// Version is stamped at link time.
var Version = "dev"

const (
	envRoot     = "TFLMAKE_ROOT"
	envConfig   = "TFLMAKE_CONFIG"
	envLogLevel = "TFLMAKE_LOG_LEVEL"

	logFileName = "tflmake.log"
)

var (
	clean          bool
	skipGeneration bool

	// newRunner is swapped out by tests.
	newRunner = func(logger arbor.ILogger) toolchain.Runner { return toolchain.NewExecRunner(logger) }
)

func init() {
	rootCmd.Flags().BoolVarP(&clean, "clean", "c", false, "Run the generator's clean goals and exit")
	rootCmd.Flags().BoolVarP(&skipGeneration, "skip-generation", "s", false, "Reuse generated projects from a previous run")
}

var rootCmd = &cobra.Command{
	Use:   "tflmake",
	Short: "tflmake: prebuilt TensorFlow Lite Micro libraries for ARM Cortex-M",
	Long: `tflmake generates, patches and compiles the inference runtime for
cortex-m0plus, cortex-m4, cortex-m7 and cortex-m55 and collects the static
libraries and the extracted model under the output directory.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := resolveEnv(os.Getenv)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(env)
		if err != nil {
			return err
		}

		logger := logging.New(env.LogLevel)
		logger = logging.WithFile(logger, filepath.Join(env.Root, filepath.FromSlash(cfg.BuildDir), logFileName))
		banner.PrintSimple("tflmake", Version)

		p := &pipeline.Pipeline{
			Config:         cfg,
			Root:           env.Root,
			FS:             osfs.New(env.Root),
			Toolchain:      toolchain.New(cfg, env.Root, newRunner(logger), runtime.NumCPU()),
			Logger:         logger,
			SkipGeneration: skipGeneration,
		}

		if clean {
			return p.Clean(cmd.Context())
		}

		m, err := p.Run(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Built %d targets into %s\n", len(m.Targets), filepath.Join(env.Root, cfg.OutputDir))
		for _, t := range m.Targets {
			_, _ = fmt.Fprintf(out, "  %-14s %s (%d bytes)\n", t.Name, t.Archive, t.Size)
		}
		if m.Model != nil {
			_, _ = fmt.Fprintf(out, "  %-14s %s (%d bytes)\n", "model", m.Model.File, m.Model.Size)
		}
		return nil
	},
}

type environment struct {
	Root       string
	ConfigPath string
	LogLevel   string
}

func resolveEnv(getenv func(string) string) (environment, error) {
	env := environment{
		Root:       getenv(envRoot),
		ConfigPath: getenv(envConfig),
		LogLevel:   getenv(envLogLevel),
	}
	if env.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return env, fmt.Errorf("failed to get working dir: %w", err)
		}
		env.Root = wd
	}
	root, err := filepath.Abs(env.Root)
	if err != nil {
		return env, fmt.Errorf("resolve %s: %w", envRoot, err)
	}
	env.Root = root
	if env.LogLevel == "" {
		env.LogLevel = logging.DefaultLevel
	}
	return env, nil
}

func loadConfig(env environment) (*api.BuildConfig, error) {
	if env.ConfigPath == "" {
		return config.Default()
	}
	path := env.ConfigPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(env.Root, path)
	}
	return config.Load(path)
}

// Execute runs the root command. An interrupt cancels the running build.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
