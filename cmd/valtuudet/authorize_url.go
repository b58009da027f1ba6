package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-valtuudet/pkg/webapi"
)

var authorizeURLCmd = &cobra.Command{
	Use:   "authorize-url USER_ID MODE",
	Short: "Print the principal selection URL for a registered user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := webapi.ParseMode(args[1])
		if err != nil {
			return err
		}
		_, webCfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newClient(webCfg)
		if err != nil {
			return err
		}

		callback := webCfg.CallbackURIHPA()
		if mode == webapi.ModeYPA {
			callback = webCfg.CallbackURIYPA()
		}
		fmt.Fprintln(cmd.OutOrStdout(), client.AuthorizeURL(args[0], callback))
		return nil
	},
}
