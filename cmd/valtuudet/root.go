package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "valtuudet",
	Short: "Suomi.fi delegation client",
	Long: `valtuudet runs the Suomi.fi Web API delegation flow: it registers a
delegate session, sends the browser to principal selection and reports the
delegate's authorizations (hpa) or organization roles (ypa).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadEnvFile(envFile)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (default: .env next to the binary or in the working directory)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(signCmd)
	rootCmd.AddCommand(authorizeURLCmd)
}
