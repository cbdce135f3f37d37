package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"sutradharx/dashboard"
	"sutradharx/mediation"
	"sutradharx/wallet"
)

var (
	mediateTerms    string
	mediateEvidence string
)

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Print the APT balance of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAptosClient(cfg, logger)
		bal, err := client.GetAccountBalance(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s APT (%s)\n", dashboard.FormatAPT(&bal), client.Network())
		return nil
	},
}

var fundCmd = &cobra.Command{
	Use:   "fund <address>",
	Short: "Request 1 APT from the testnet faucet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAptosClient(cfg, logger)
		res := dashboard.NewService(client, client, nil, nil, logger).
			Fund(cmd.Context(), wallet.Session{Address: args[0], Network: client.Network()})
		if !res.Success {
			return errors.New(res.Error)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, res.Message)
		for _, h := range res.TxnHashes {
			fmt.Fprintln(out, h)
		}
		return nil
	},
}

var mediateCmd = &cobra.Command{
	Use:   "mediate",
	Short: "Run one dispute mediation and print the result as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		completer, err := mediation.NewGeminiCompleter(cmd.Context(), cfg.Mediation.APIKey, cfg.Mediation.Model)
		if err != nil {
			return err
		}
		svc := mediation.NewService(completer, cfg.Mediation.Timeout, logger)
		res, err := svc.Mediate(cmd.Context(), mediation.Request{
			ContractTerms: mediateTerms,
			Evidence:      mediateEvidence,
		})
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), res)
	},
}

func writeResult(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
