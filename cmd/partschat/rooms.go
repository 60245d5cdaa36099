package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vedran77/onionparts/pkg/money"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List your active conversations.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := login(cmd.Context())
		if err != nil {
			return err
		}

		rooms, err := c.Rooms(cmd.Context())
		if err != nil {
			return errors.Wrap(err, "listing rooms")
		}

		out := cmd.OutOrStdout()
		if len(rooms) == 0 {
			fmt.Fprintln(out, "No active conversations.")
			return nil
		}
		for _, r := range rooms {
			title, price := "(deleted product)", ""
			if r.Product != nil {
				title, price = r.Product.Title, money.FormatKRW(r.Product.Price)
			}
			fmt.Fprintf(out, "%s  %s  %s  %s\n", r.ID, r.CreatedAt.Local().Format("2006-01-02"), title, price)
		}
		return nil
	},
}
