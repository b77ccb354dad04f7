package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/camuig/stock-watch/internal/web"
)

var (
	listActiveOnly bool
	historyLimit   int
)

var addCmd = &cobra.Command{
	Use:   "add <note text>",
	Short: "Extract a note from free text and store it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		svc, err := a.noteService(ctx, true)
		if err != nil {
			return err
		}
		note, err := svc.Add(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Note saved.")
		printNote(out, note)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate every active note once and report alerts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		report, err := a.newMonitor().RunCheckCycle(ctx)
		if err != nil {
			a.notifier.NotifyError("check cycle", err)
			return err
		}
		printReport(cmd.OutOrStdout(), report)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored notes, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		svc, err := a.noteService(ctx, false)
		if err != nil {
			return err
		}
		notes, err := svc.List(ctx, listActiveOnly)
		if err != nil {
			return err
		}
		printNoteTable(cmd.OutOrStdout(), notes)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		svc, err := a.noteService(ctx, false)
		if err != nil {
			return err
		}
		note, err := svc.Get(ctx, args[0])
		if err != nil {
			return err
		}
		printNote(cmd.OutOrStdout(), note)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		svc, err := a.noteService(ctx, false)
		if err != nil {
			return err
		}
		if err := svc.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Note %s deleted.\n", args[0])
		return nil
	},
}

var reactivateCmd = &cobra.Command{
	Use:   "reactivate <id>",
	Short: "Re-arm a note that has already fired",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		svc, err := a.noteService(ctx, false)
		if err != nil {
			return err
		}
		note, err := svc.Reactivate(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Note %s is active again.\n", note.ID)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent check cycles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		logs, err := a.repo.RecentCycles(ctx, historyLimit)
		if err != nil {
			return err
		}
		printHistory(cmd.OutOrStdout(), logs)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		svc, err := a.noteService(ctx, true)
		if err != nil {
			return err
		}
		server := web.NewServer(svc, a.newMonitor(), a.repo, a.cfg, a.log)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		// Wait for shutdown signal
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			a.log.Info("shutdown signal received", "signal", sig.String())
		case err := <-errCh:
			return err
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			a.log.Error("web server shutdown error", "error", err)
		}
		a.log.Info("stock-watch stopped")
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listActiveOnly, "active", false, "Only show active notes")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of cycles to show")
}
