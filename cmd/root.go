package cmd

import (
	"errors"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/thrash-sh/thrash/core"
	"github.com/thrash-sh/thrash/core/config"
	"github.com/thrash-sh/thrash/core/logger"
)

var (
	cfgPath string
	command string
)

// loadConfig reads the configuration directory, falling back to the
// built-in defaults when no config exists yet.
func loadConfig() (*config.Configuration, error) {
	path := cfgPath
	if path == "" {
		dir, err := config.DefaultDir()
		if err != nil {
			return nil, err
		}
		path = dir
	}

	configuration, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return configuration, err
}

func newLogger(cfg *config.Configuration) (*logger.SessionLogger, io.Closer) {
	fd, err := cfg.OpenAppLog()
	if err != nil {
		log.Printf("app log unavailable: %v", err)
		return logger.NewJsonLinesLogRecorder(io.Discard).Sessionless(), nil
	}
	return logger.NewJsonLinesLogRecorder(fd).NewSession(), fd
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "thrash",
	Short: "An interactive POSIX-style shell.",
	Long: `Thrash is an interactive command shell with pipelines, redirection,
and job control.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		lg, logCloser := newLogger(cfg)
		if logCloser != nil {
			defer logCloser.Close()
		}

		sh, err := core.NewShell(cfg, lg, command == "")
		if err != nil {
			return err
		}

		if command != "" {
			// One-shot mode: run the given line and exit with its status.
			status := sh.RunLine(command)
			sh.Close()
			exitStatus = status
			return nil
		}

		exitStatus = sh.Run()
		return nil
	},
}

// exitStatus is handed back to main so the process exits with the last
// pipeline's status, the way sh -c does.
var exitStatus int

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
	if exitStatus != 0 {
		os.Exit(exitStatus)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config directory (default: ~/.config/thrash)")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run a single command line and exit")
}
