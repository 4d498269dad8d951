package cmd

import (
	"github.com/emrgen/communication/internal/config"
	"github.com/emrgen/communication/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the communication server",
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetString("port")
		if port == "" {
			port = config.LoadConfig().HTTPPort
		}

		server.NewServer(port).Start()
	},
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "http port")
}
