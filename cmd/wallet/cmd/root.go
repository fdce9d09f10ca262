// Package cmd implements the wallet demo CLI: a holder that scans
// authorization payloads, generates mock proofs and talks to a verifier.
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	holderDID string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "wallet is a demo holder CLI for the verification request protocol",
	Long: `A command-line holder wallet: classify scanned authorization requests,
approve them with a mock prover, deliver proof responses to the verifier
callback and poll session status.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&holderDID, "did", "",
		"holder DID used in proof responses (defaults to a demo DID)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// readPayload returns the payload argument, reading it from a file when the
// argument points at one. QR payloads are frequently saved to disk in demos.
func readPayload(arg string) (string, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		data, err := os.ReadFile(arg)
		if err != nil {
			return "", fmt.Errorf("failed to read payload file: %w", err)
		}
		return string(data), nil
	}
	return arg, nil
}
