package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"go.echoid.dev/verify/client"
	"go.echoid.dev/verify/holder"
	"go.echoid.dev/verify/internal/zkmock"
	"go.echoid.dev/verify/qr"
)

var scanCmd = &cobra.Command{
	Use:   "scan <payload|file>",
	Short: "Classify a scanned payload and print the verification request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayload(args[0])
		if err != nil {
			return err
		}

		classifier := &qr.Classifier{}
		request, err := classifier.Classify(payload)
		if err != nil {
			var invalid *qr.InvalidFormatError
			if errors.As(err, &invalid) {
				return fmt.Errorf("payload not recognized: %s", invalid.Reason)
			}
			return err
		}

		out, err := json.MarshalIndent(request, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}

var respondCmd = &cobra.Command{
	Use:   "respond <payload|file>",
	Short: "Approve a scanned request with the mock prover and deliver the proof",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := readPayload(args[0])
		if err != nil {
			return err
		}

		orchestrator := holder.NewOrchestrator(zkmock.Prover{}, nil, holderDID)

		request, err := orchestrator.ProcessQRCode(cmd.Context(), payload)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "request %s (session %s): %s\n", request.ID, request.SessionID, request.Purpose)

		if err := orchestrator.Approve(cmd.Context(), request.ID); err != nil {
			return err
		}

		final, err := orchestrator.Request(request.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "request %s is now %s\n", final.ID, final.Status)
		return nil
	},
}

var (
	statusVerifierURL string
	statusWait        bool
	statusInterval    time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status <sessionId>",
	Short: "Poll a verifier for the status of one session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(statusVerifierURL, nil)

		if statusWait {
			status, err := c.WaitForVerification(cmd.Context(), args[0], statusInterval)
			if err != nil {
				return err
			}
			return printJSON(status)
		}

		status, err := c.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(status)
	},
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}

func init() {
	statusCmd.Flags().StringVar(&statusVerifierURL, "verifier", "http://localhost:8080",
		"base URL of the verifier")
	statusCmd.Flags().BoolVar(&statusWait, "wait", false,
		"keep polling until the session verifies")
	statusCmd.Flags().DurationVar(&statusInterval, "interval", client.DefaultPollInterval,
		"poll interval when --wait is set")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(respondCmd)
	rootCmd.AddCommand(statusCmd)
}
