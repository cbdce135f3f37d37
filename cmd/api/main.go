package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sutradharx/config"
	"sutradharx/logging"
)

var (
	configPath string
	cfg        config.Config
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sutradharx",
	Short: "SutradharX escrow backend",
	Long: `SutradharX serves the escrow wizard, AI dispute mediation, wallet sessions
and the Aptos testnet balance and faucet wrappers behind one HTTP API.

Configuration is read from configs/config.yaml (or --config) and the environment.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	mediateCmd.Flags().StringVar(&mediateTerms, "terms", "", "contract terms of the disputed escrow")
	mediateCmd.Flags().StringVar(&mediateEvidence, "evidence", "", "evidence from both parties")
	_ = mediateCmd.MarkFlagRequired("terms")
	_ = mediateCmd.MarkFlagRequired("evidence")

	rootCmd.AddCommand(serveCmd, balanceCmd, fundCmd, mediateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
