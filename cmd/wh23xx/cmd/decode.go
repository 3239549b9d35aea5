package cmd

import (
	"fmt"

	"github.com/chrissnell/wh23xx/internal/weatherstations/wh23xx"
	"github.com/spf13/cobra"
)

// Captured from a TP2700 console
const (
	sampleCurrent = "01 02 8f 02 02 13 03 02 11 04 02 13 05 02 13 06 32 07 63 08 27 f0 09 27 b2 0a 00 5a " +
		"0b 00 2b 0c 00 3b 0e 00 00 00 00 10 00 00 00 75 11 00 00 00 a2 12 00 00 00 75 13 00 00 04 c5 " +
		"14 00 00 04 c5 15 00 ff ff ff 16 ff ff 17 ff"
	sampleInfo = "55 aa 00 23 10 bc 7a 28 28 52 a2 01 02 f3 04 ff 53 a2 01 4a b2 00 00 00 01 2c 01 1b fb " +
		"00 00 00 00 03 04 00 00 00 00 00 00 00 00 c3 ff 00 00 64 64 64 00 64 00 ff ff ff"
	sampleHistory = "00 5a 2b 3b c5 04 32 63 8f 22 13 27 f0 39 30 00 e8 03"
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "decode captured bytes without a console",
	Long: `Decode hex bytes captured from a console. Without arguments a built-in
sample is decoded.`,
}

var decodeCurrentCmd = &cobra.Command{
	Use:   "current [HEX...]",
	Short: "decode a READ_RECORD payload",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := decodeInput(args, sampleCurrent)
		if err != nil {
			return err
		}
		obs, err := wh23xx.DecodeWeatherData(raw)
		if err != nil {
			return err
		}
		printObservations(cmd.OutOrStdout(), obs)
		return nil
	},
}

var decodeInfoCmd = &cobra.Command{
	Use:   "info [HEX...]",
	Short: "decode a station info block",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := decodeInput(args, sampleInfo)
		if err != nil {
			return err
		}
		info, err := wh23xx.DecodeStationInfo(raw)
		if err != nil {
			return err
		}
		all, _ := cmd.Flags().GetBool("all")
		printInfo(cmd.OutOrStdout(), info, all)
		return nil
	},
}

var decodeHistoryCmd = &cobra.Command{
	Use:   "history [HEX...]",
	Short: "decode an 18-byte history record",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := decodeInput(args, sampleHistory)
		if err != nil {
			return err
		}
		if len(raw) != wh23xx.HistoryRecordSize {
			return fmt.Errorf("history record must be %d bytes, got %d", wh23xx.HistoryRecordSize, len(raw))
		}
		uv, _ := cmd.Flags().GetString("uv-scaling")
		scaling, err := wh23xx.ParseUVScaling(uv)
		if err != nil {
			return err
		}
		printObservations(cmd.OutOrStdout(), wh23xx.DecodeHistoryRecordWith(scaling, raw))
		return nil
	},
}

func decodeInput(args []string, sample string) ([]byte, error) {
	if len(args) == 0 {
		return parseHex([]string{sample})
	}
	return parseHex(args)
}

func init() {
	decodeInfoCmd.Flags().BoolP("all", "a", false, "show every field including flag bits")
	decodeHistoryCmd.Flags().String("uv-scaling", "revised", "revised or legacy")

	decodeCmd.AddCommand(decodeCurrentCmd, decodeInfoCmd, decodeHistoryCmd)
	rootCmd.AddCommand(decodeCmd)
}
