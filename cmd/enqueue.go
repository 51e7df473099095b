package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"card_pricer/internal/application"
	"card_pricer/internal/transport/queue"
)

func newEnqueueCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue [card-id...]",
		Short: "Queue a refresh of the given cards, or of all stale cards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cc.withApp(cmd.Context(), func(ctx context.Context, app *application.App) error {
				id, err := app.Enqueue(ctx, args)
				if errors.Is(err, queue.ErrAlreadyQueued) {
					fmt.Fprintln(cmd.OutOrStdout(), "A refresh with the same cards is already queued")
					return nil
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Queued refresh task %s\n", id)
				return nil
			})
		},
	}
}
