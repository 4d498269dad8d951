package cmd

import (
	"context"

	communication "github.com/emrgen/communication"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(createCommand())
	rootCmd.AddCommand(getCommand())
	rootCmd.AddCommand(listCommand())
	rootCmd.AddCommand(linkCommand())
	rootCmd.AddCommand(unlinkCommand())
	rootCmd.AddCommand(deleteCommand())
}

func apiClient() *communication.Client {
	cfg := readContext()
	return communication.NewClient(cfg.Server, cfg.User)
}

func createCommand() *cobra.Command {
	var refDoctype, refName, content, subject, commType string

	command := &cobra.Command{
		Use:   "create",
		Short: "create a communication",
		Run: func(cmd *cobra.Command, args []string) {
			client := apiClient()
			comm, err := client.CreateCommunication(context.Background(), &communication.CreateCommunicationRequest{
				CommunicationType: commType,
				Subject:           subject,
				Content:           content,
				ReferenceDoctype:  refDoctype,
				ReferenceName:     refName,
			})
			if err != nil {
				color.Red("error: %v", err)
				return
			}

			color.Green("created communication: %s", comm.ID)
		},
	}

	command.Flags().StringVarP(&refDoctype, "reference-doctype", "r", "", "reference doctype")
	command.Flags().StringVarP(&refName, "reference-name", "n", "", "reference name")
	command.Flags().StringVarP(&content, "content", "c", "", "content")
	command.Flags().StringVarP(&subject, "subject", "s", "", "subject")
	command.Flags().StringVarP(&commType, "type", "t", "", "communication type")

	return command
}

func getCommand() *cobra.Command {
	var id string

	command := &cobra.Command{
		Use:   "get",
		Short: "get a communication",
		Run: func(cmd *cobra.Command, args []string) {
			if id == "" {
				color.Red("missing: --id")
				return
			}

			comm, err := apiClient().GetCommunication(context.Background(), id)
			if err != nil {
				color.Red("error: %v", err)
				return
			}

			color.Green("id: %s", comm.ID)
			color.Green("type: %s", comm.CommunicationType)
			color.Green("status: %s", comm.Status)
			color.Green("subject: %s", comm.Subject)
			for _, link := range comm.Links {
				color.Cyan("link: %s %s", link.LinkDoctype, link.LinkName)
			}
		},
	}

	command.Flags().StringVarP(&id, "id", "d", "", "communication id")

	return command
}

func listCommand() *cobra.Command {
	var refDoctype, refName string

	command := &cobra.Command{
		Use:   "list",
		Short: "list communications",
		Run: func(cmd *cobra.Command, args []string) {
			res, err := apiClient().ListCommunications(context.Background(), refDoctype, refName)
			if err != nil {
				color.Red("error: %v", err)
				return
			}

			for _, comm := range res.Communications {
				color.Green("%s  %-14s %-8s %s", comm.ID, comm.CommunicationType, comm.Status, comm.Subject)
			}
			color.Cyan("total: %d", res.Total)
		},
	}

	command.Flags().StringVarP(&refDoctype, "reference-doctype", "r", "", "reference doctype")
	command.Flags().StringVarP(&refName, "reference-name", "n", "", "reference name")

	return command
}

func linkCommand() *cobra.Command {
	var id, doctype, name string

	command := &cobra.Command{
		Use:   "link",
		Short: "add a timeline link",
		Run: func(cmd *cobra.Command, args []string) {
			if id == "" || doctype == "" || name == "" {
				color.Red("missing: --id, --reference-doctype and --reference-name")
				return
			}

			comm, err := apiClient().AddLink(context.Background(), id, doctype, name)
			if err != nil {
				color.Red("error: %v", err)
				return
			}

			color.Green("communication %s has %d links", comm.ID, len(comm.Links))
		},
	}

	command.Flags().StringVarP(&id, "id", "d", "", "communication id")
	command.Flags().StringVarP(&doctype, "reference-doctype", "r", "", "link doctype")
	command.Flags().StringVarP(&name, "reference-name", "n", "", "link name")

	return command
}

func unlinkCommand() *cobra.Command {
	var id, doctype, name string

	command := &cobra.Command{
		Use:   "unlink",
		Short: "remove a timeline link",
		Run: func(cmd *cobra.Command, args []string) {
			if id == "" || doctype == "" || name == "" {
				color.Red("missing: --id, --reference-doctype and --reference-name")
				return
			}

			comm, err := apiClient().RemoveLink(context.Background(), id, doctype, name)
			if err != nil {
				color.Red("error: %v", err)
				return
			}

			color.Green("communication %s has %d links", comm.ID, len(comm.Links))
		},
	}

	command.Flags().StringVarP(&id, "id", "d", "", "communication id")
	command.Flags().StringVarP(&doctype, "reference-doctype", "r", "", "link doctype")
	command.Flags().StringVarP(&name, "reference-name", "n", "", "link name")

	return command
}

func deleteCommand() *cobra.Command {
	var id string

	command := &cobra.Command{
		Use:   "delete",
		Short: "delete a communication",
		Run: func(cmd *cobra.Command, args []string) {
			if id == "" {
				color.Red("missing: --id")
				return
			}

			if err := apiClient().DeleteCommunication(context.Background(), id); err != nil {
				color.Red("error: %v", err)
				return
			}

			color.Green("deleted communication: %s", id)
		},
	}

	command.Flags().StringVarP(&id, "id", "d", "", "communication id")

	return command
}
