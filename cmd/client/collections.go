package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nzaccagnino/notesync/internal/config"
	"github.com/nzaccagnino/notesync/internal/model"
)

var collectionsCmd = &cobra.Command{
	Use:     "collections",
	Aliases: []string{"col"},
	Short:   "Manage note collections",
}

var collectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured collections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		selected := cfg.Selected()
		bold := color.New(color.Bold).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()

		for _, c := range cfg.Collections {
			marker := " "
			title := c.Title
			if model.SameTitle(c.Title, selected.Title) {
				marker = green("*")
				title = bold(title)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s  %s\n", marker, title, faint(c.Name), faint(c.Server))
		}
		return nil
	},
}

var collectionsAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		server, _ := cmd.Flags().GetString("server")
		selectFlag, _ := cmd.Flags().GetBool("select")

		col := model.Collection{Title: args[0], Name: name, Server: server}
		if err := cfg.AddCollection(col); err != nil {
			return err
		}
		if selectFlag {
			if err := cfg.Select(args[0]); err != nil {
				return err
			}
		}
		if err := cfg.Save(configPath); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("✓ Added"), args[0])
		return nil
	},
}

var collectionsRemoveCmd = &cobra.Command{
	Use:     "remove <title>",
	Aliases: []string{"rm"},
	Short:   "Remove a collection from the config",
	Long:    `Remove a collection from the config. Notes on the server are not touched.`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RemoveCollection(args[0]); err != nil {
			return err
		}
		if err := cfg.Save(configPath); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.YellowString("✓ Removed"), args[0])
		return nil
	},
}

var collectionsSelectCmd = &cobra.Command{
	Use:   "select <title>",
	Short: "Select the collection opened by default",
	Long:  `Select the collection opened by default. A running client switches to it.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Select(args[0]); err != nil {
			return err
		}
		if err := cfg.Save(configPath); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("✓ Selected"), cfg.Selected().Title)
		return nil
	},
}

func init() {
	collectionsAddCmd.Flags().String("name", "", "display name (defaults to the title)")
	collectionsAddCmd.Flags().String("server", config.DefaultServer, "server URL")
	collectionsAddCmd.Flags().Bool("select", false, "select the new collection")

	collectionsCmd.AddCommand(collectionsListCmd)
	collectionsCmd.AddCommand(collectionsAddCmd)
	collectionsCmd.AddCommand(collectionsRemoveCmd)
	collectionsCmd.AddCommand(collectionsSelectCmd)
	rootCmd.AddCommand(collectionsCmd)
}
