package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	inkwell "github.com/inkwellai/inkwell-go"
)

func newNotebooksCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notebooks",
		Short: "Manage notebooks and their documents",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List notebooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(flags)
			if err != nil {
				return err
			}
			defer e.cleanup()

			notebooks, err := e.client.ListNotebooks(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
			for _, nb := range notebooks {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", nb.ID, nb.Name, nb.Description)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create a notebook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(flags)
			if err != nil {
				return err
			}
			defer e.cleanup()

			nb, err := e.client.CreateNotebook(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), nb.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a notebook and its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(flags)
			if err != nil {
				return err
			}
			defer e.cleanup()
			return e.client.DeleteNotebook(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "documents <notebook-id>",
		Short: "List a notebook's documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(flags)
			if err != nil {
				return err
			}
			defer e.cleanup()

			docs, err := e.client.ListDocuments(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFILENAME\tPAGES")
			for _, doc := range docs {
				fmt.Fprintf(tw, "%s\t%s\t%d\n", doc.ID, doc.Filename, doc.PageCount)
			}
			return tw.Flush()
		},
	})

	return cmd
}

func newConnectionsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "Manage database connections",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(flags)
			if err != nil {
				return err
			}
			defer e.cleanup()

			conns, err := e.client.ListConnections(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDRIVER")
			for _, conn := range conns {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", conn.ID, conn.Name, conn.Driver)
			}
			return tw.Flush()
		},
	})

	var driver, dsn string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Register a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(flags)
			if err != nil {
				return err
			}
			defer e.cleanup()

			conn, err := e.client.CreateConnection(cmd.Context(), inkwell.Connection{
				Name:   args[0],
				Driver: driver,
				DSN:    dsn,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), conn.ID)
			return nil
		},
	}
	create.Flags().StringVar(&driver, "driver", "postgres", "database driver")
	create.Flags().StringVar(&dsn, "dsn", "", "connection string")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := connect(flags)
			if err != nil {
				return err
			}
			defer e.cleanup()
			return e.client.DeleteConnection(cmd.Context(), args[0])
		},
	})

	return cmd
}
