package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"FactorPipe/pkg/util"
)

type SessionsCmd struct{}

func NewSessionsCmd() *SessionsCmd {
	return &SessionsCmd{}
}

func (c *SessionsCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List the trading sessions held by the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := cmd.Flags().GetString("from")
			if err != nil {
				return fmt.Errorf("failed to get from flag: %w", err)
			}
			to, err := cmd.Flags().GetString("to")
			if err != nil {
				return fmt.Errorf("failed to get to flag: %w", err)
			}
			start, end, err := util.ParseSessionRange(from, to)
			if err != nil {
				return err
			}
			if start.After(end) {
				return fmt.Errorf("from %s is after to %s", from, to)
			}

			log := newLogger(cmd)
			store, release, err := openStore(cmd.Context(), cmd, log)
			if err != nil {
				return err
			}
			defer release()

			sessions, err := store.Sessions(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			for _, s := range sessions {
				fmt.Fprintln(cmd.OutOrStdout(), util.FormatSession(s))
			}
			return nil
		},
	}
	cmd.Flags().String("from", "1970-01-01", "first date (YYYY-MM-DD)")
	cmd.Flags().String("to", "2100-01-01", "last date (YYYY-MM-DD)")
	return cmd
}
