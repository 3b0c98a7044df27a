package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"leasebot/internal/domain"
	"leasebot/internal/storage"
	"leasebot/internal/ticket"

	"github.com/spf13/cobra"
)

func ticketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tickets",
		Short: "Inspect and update maintenance tickets",
	}
	cmd.AddCommand(ticketsListCmd())
	cmd.AddCommand(ticketsShowCmd())
	cmd.AddCommand(ticketsUpdateCmd())
	return cmd
}

func openTicketStore() (*storage.SQLiteStore, error) {
	cfg := loadConfig()
	return storage.NewSQLiteStore(cfg.DBPath(), logger)
}

func ticketsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTicketStore()
			if err != nil {
				return err
			}
			defer store.Close()

			tickets, err := store.List(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(tickets) == 0 {
				fmt.Println("no tickets")
				return nil
			}
			for _, t := range tickets {
				fmt.Printf("%-22s %-12s %-10s %-10s %s\n",
					t.TicketID, t.Status, t.Category, t.Priority,
					t.CreatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "max tickets to list")
	return cmd
}

func ticketsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <ticket-id>",
		Short: "Show a ticket in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTicketStore()
			if err != nil {
				return err
			}
			defer store.Close()

			t, err := store.Get(context.Background(), args[0])
			if err != nil {
				return err
			}
			if t == nil {
				return fmt.Errorf("ticket %s not found", args[0])
			}
			out, _ := json.MarshalIndent(t, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

func ticketsUpdateCmd() *cobra.Command {
	var (
		status   string
		note     string
		author   string
		assignTo string
		eta      string
	)
	cmd := &cobra.Command{
		Use:   "update <ticket-id>",
		Short: "Update a ticket's status, assignee, or notes",
		Long:  "Applies an administrative update. Status changes are validated against the ticket lifecycle (new → assigned → in_progress → completed, with on_hold and cancelled side exits).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTicketStore()
			if err != nil {
				return err
			}
			defer store.Close()

			w := ticket.NewWorkflow(ticket.WorkflowConfig{Store: store, Logger: logger})

			req := ticket.UpdateRequest{
				Status:     domain.TicketStatus(status),
				Note:       note,
				Author:     author,
				AssignedTo: assignTo,
			}
			if eta != "" {
				parsed, err := time.Parse("2006-01-02", eta)
				if err != nil {
					return fmt.Errorf("parse --eta (want YYYY-MM-DD): %w", err)
				}
				req.EstimatedCompletion = &parsed
			}

			t, err := w.Update(context.Background(), args[0], req)
			if err != nil {
				return err
			}
			fmt.Printf("%s is now %s\n", t.TicketID, t.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status (assigned, in_progress, on_hold, completed, cancelled)")
	cmd.Flags().StringVar(&note, "note", "", "append a note")
	cmd.Flags().StringVar(&author, "author", "", "note author")
	cmd.Flags().StringVar(&assignTo, "assign", "", "assign to a contractor")
	cmd.Flags().StringVar(&eta, "eta", "", "estimated completion date (YYYY-MM-DD)")
	return cmd
}
