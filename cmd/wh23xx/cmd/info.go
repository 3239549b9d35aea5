package cmd

import (
	"github.com/chrissnell/wh23xx/internal/weatherstations/wh23xx"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "show the console configuration block",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		return withStation(cmd.Context(), func(s *wh23xx.Station) error {
			info, err := s.GetStationInfo(cmd.Context())
			if err != nil {
				return err
			}
			printInfo(cmd.OutOrStdout(), info, all)
			if all {
				p, err := s.ReadParam(cmd.Context())
				if err != nil {
					return err
				}
				printKV(cmd.OutOrStdout(), "link", p.Link)
			}
			return nil
		})
	},
}

func init() {
	infoCmd.Flags().BoolP("all", "a", false, "show every field including flag bits")
	rootCmd.AddCommand(infoCmd)
}
