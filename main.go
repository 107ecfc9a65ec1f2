package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Gleipnir-Technology/bounce/config"
	"github.com/Gleipnir-Technology/bounce/ui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "bounce [target]",
	Short:         "Rebuild, restart and proxy a Go web program as you edit it",
	Args:          cobra.MaximumNArgs(1),
	RunE:          runBounce,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Print the workspace identifier sent to the upstream",
	Args:  cobra.NoArgs,
	RunE:  runID,
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"bind":       "bind",
	"debounce":   "debounce",
	"ext":        "extensions",
	"ignore":     "ignore",
	"log-file":   "logFile",
	"redis-addr": "identity.redisAddr",
	"store":      "identity.store",
	"store-path": "identity.path",
	"tui":        "tui",
	"upstream":   "upstream",
	"verbose":    "verbose",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (default "+config.DefaultPath+" if present)")
	pf.String("store", config.StoreBolt, "identity store: bolt, redis or memory")
	pf.String("store-path", ".bounce.db", "bolt file for the identity store")
	pf.String("redis-addr", "localhost:6379", "redis address for the identity store")
	pf.BoolP("verbose", "v", false, "debug logging")
	pf.String("log-file", "bounce.log", "log destination, - for stderr")

	f := rootCmd.Flags()
	f.StringP("bind", "b", ":3000", "address the proxy listens on")
	f.StringP("upstream", "u", "http://localhost:8080", "address the program under development listens on")
	f.Duration("debounce", 0, "quiet period before rebuilding (default 300ms)")
	f.StringSlice("ext", nil, "file extensions that trigger a rebuild (default .go)")
	f.StringSlice("ignore", nil, "directory names to skip")
	f.Bool("tui", true, "full screen interface; false prints one line per change")

	idCmd.Flags().Bool("reset", false, "replace the identifier with a new one")
	rootCmd.AddCommand(idCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "bounce: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	overrides := make(map[string]any)
	if len(args) > 0 {
		overrides["target"] = args[0]
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}
		switch f.Value.Type() {
		case "stringSlice":
			v, _ := cmd.Flags().GetStringSlice(f.Name)
			overrides[key] = v
		case "bool":
			v, _ := cmd.Flags().GetBool(f.Name)
			overrides[key] = v
		case "duration":
			v, _ := cmd.Flags().GetDuration(f.Name)
			overrides[key] = v
		default:
			overrides[key] = f.Value.String()
		}
	})
	return config.Load(configPath, overrides)
}

func runBounce(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	closer, err := setupLogging(cfg.LogFile, cfg.Verbose)
	if err != nil {
		return err
	}
	defer closer.Close()
	ctx = log.Logger.WithContext(ctx)

	target, err := filepath.Abs(cfg.Target)
	if err != nil {
		return fmt.Errorf("resolve target: %w", err)
	}
	cfg.Target = target
	binary, err := buildOutputPath(target)
	if err != nil {
		return err
	}
	id, err := workspaceIdentity(ctx, cfg.Identity, false)
	if err != nil {
		return err
	}
	log.Info().Str("target", target).Str("identity", id.String()).Msg("starting")

	var u ui.UI
	if cfg.TUI {
		upstream, err := cfg.UpstreamURL()
		if err != nil {
			return err
		}
		u, err = ui.NewTUI(target, *upstream)
		if err != nil {
			return fmt.Errorf("failed to create UI: %w", err)
		}
	} else {
		u, err = ui.NewFlat(os.Stdout)
		if err != nil {
			return fmt.Errorf("failed to create UI: %w", err)
		}
	}
	defer u.Close()

	return newManager(*cfg, binary, id.String(), u).Run(ctx)
}

func runID(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	reset, _ := cmd.Flags().GetBool("reset")
	id, err := workspaceIdentity(cmd.Context(), cfg.Identity, reset)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}
