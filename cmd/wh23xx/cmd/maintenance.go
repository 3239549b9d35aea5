package cmd

import (
	"time"

	"github.com/chrissnell/wh23xx/internal/log"
	"github.com/chrissnell/wh23xx/internal/weatherstations/wh23xx"
	"github.com/spf13/cobra"
)

var syncTimeCmd = &cobra.Command{
	Use:   "sync-time",
	Short: "set the console clock to the computer clock",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStation(cmd.Context(), func(s *wh23xx.Station) error {
			now := time.Now()
			if err := s.SyncTime(now); err != nil {
				return err
			}
			log.Infof("console clock set to %s", now.In(s.Options().Location).Format(time.RFC3339))
			return nil
		})
	},
}

var clearMaxMinCmd = &cobra.Command{
	Use:   "clear-max-min",
	Short: "clear the daily max/min values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStation(cmd.Context(), func(s *wh23xx.Station) error {
			return s.ClearMaxMin()
		})
	},
}

var clearHistoryCmd = &cobra.Command{
	Use:   "clear-history",
	Short: "erase the history records stored on the console",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStation(cmd.Context(), func(s *wh23xx.Station) error {
			return s.ClearHistory()
		})
	},
}

func init() {
	rootCmd.AddCommand(syncTimeCmd, clearMaxMinCmd, clearHistoryCmd)
}
