package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configFileName = "communication"
)

var contextCommand = &cobra.Command{
	Use:   "context",
	Short: "context commands",
}

func init() {
	contextCommand.AddCommand(setContextCommand())
	contextCommand.AddCommand(currentContextCommand())
	contextCommand.AddCommand(resetContextCommand())
}

// Context holds the server address and user the CLI client talks as.
type Context struct {
	Server string `json:"server"`
	User   string `json:"user"`
}

func setContextCommand() *cobra.Command {
	var server string
	var user string
	command := &cobra.Command{
		Use:   "set",
		Short: "set context",
		Run: func(cmd *cobra.Command, args []string) {
			if server == "" || user == "" {
				color.Red(`missing: --server and --user`)
				return
			}

			writeContext(Context{
				Server: server,
				User:   user,
			})
			fmt.Println("context saved")
		},
	}

	command.Flags().StringVarP(&server, "server", "s", "", "server base url")
	command.Flags().StringVarP(&user, "user", "u", "", "user")

	return command
}

func currentContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "current",
		Short: "current context",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := readContext()
			color.Green("server: %s", ctx.Server)
			color.Green("user: %s", ctx.User)
		},
	}

	return command
}

func resetContextCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "reset",
		Short: "reset context",
		Run: func(cmd *cobra.Command, args []string) {
			writeContext(Context{})
			fmt.Println("context reset")
		},
	}

	return command
}

func writeContext(context Context) {
	viper.SetConfigName(configFileName)
	viper.AddConfigPath("./.tmp")
	viper.SetConfigType("yml")
	viper.Set("context", context)

	if err := viper.SafeWriteConfig(); err != nil {
		if err := viper.WriteConfig(); err != nil {
			fmt.Println("error writing config file: ", err)
		}
	}
}

func readContext() Context {
	var ctx Context

	viper.SetConfigName(configFileName)
	viper.AddConfigPath("./.tmp")
	viper.SetConfigType("yml")

	if err := viper.ReadInConfig(); err != nil {
		return Context{Server: "http://localhost:4030"}
	}

	if err := viper.UnmarshalKey("context", &ctx); err != nil {
		return Context{Server: "http://localhost:4030"}
	}

	if ctx.Server == "" {
		ctx.Server = "http://localhost:4030"
	}

	return ctx
}
