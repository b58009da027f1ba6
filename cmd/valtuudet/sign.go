package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/thejerf/abtime"

	"github.com/tendant/simple-valtuudet/pkg/signer"
)

var signAt string

var signCmd = &cobra.Command{
	Use:   "sign PATH",
	Short: "Print the checksum header for a request path",
	Long: `sign prints the X-AsiointivaltuudetAuthorization header the client would
send for PATH, e.g. "/service/hpa/api/delegate/S1?requestId=goClient&endUserId=goEndUser".
Use --at to reproduce the header of a logged request.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, webCfg, err := loadConfig()
		if err != nil {
			return err
		}

		at := time.Now()
		if signAt != "" {
			at, err = time.Parse(time.RFC3339, signAt)
			if err != nil {
				return fmt.Errorf("invalid --at: %w", err)
			}
		}

		s, err := signer.New(webCfg.ClientID, webCfg.ClientSecret, signer.WithClock(abtime.NewManualAtTime(at)))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", signer.ChecksumHeaderName, s.Checksum(args[0]))
		return nil
	},
}

func init() {
	signCmd.Flags().StringVar(&signAt, "at", "", "timestamp to sign at, RFC 3339 (default: now)")
}
