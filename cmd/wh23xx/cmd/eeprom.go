package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/avast/retry-go"
	"github.com/chrissnell/wh23xx/internal/log"
	"github.com/chrissnell/wh23xx/internal/weatherstations/wh23xx"
	"github.com/spf13/cobra"
)

var eepromTimeCmd = &cobra.Command{
	Use:   "eeprom-time",
	Short: "show history page timestamps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		index, _ := cmd.Flags().GetInt("index")
		first, last := 0, wh23xx.TableEntries-1
		if index >= 0 {
			first, last = index, index
		}
		return withStation(cmd.Context(), func(s *wh23xx.Station) error {
			for i := first; i <= last; i++ {
				e, err := s.ReadTableEntry(cmd.Context(), i)
				if err != nil {
					return err
				}
				printKV(cmd.OutOrStdout(), fmt.Sprintf("%3d", i), e.String())
			}
			return nil
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "read and decode one stored history record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		index, _ := cmd.Flags().GetInt("index")
		return withStation(cmd.Context(), func(s *wh23xx.Station) error {
			raw, err := s.ReadHistoryRecord(cmd.Context(), index)
			if err != nil {
				return err
			}
			log.Debugf("history record %d: % x", index, raw)
			printObservations(cmd.OutOrStdout(), wh23xx.DecodeHistoryRecordWith(s.Options().UVScaling, raw))
			return nil
		})
	},
}

var readEEPROMCmd = &cobra.Command{
	Use:   "read-eeprom ADDR SIZE",
	Short: "read up to 56 bytes of console memory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseNumber(args[0], 16)
		if err != nil {
			return err
		}
		size, err := parseNumber(args[1], 8)
		if err != nil {
			return err
		}
		return withStation(cmd.Context(), func(s *wh23xx.Station) error {
			b, err := s.ReadEEPROM(cmd.Context(), uint16(addr), int(size))
			if err != nil {
				return err
			}
			hexDump(cmd.OutOrStdout(), uint16(addr), b)
			return nil
		})
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "dump a range of console memory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		start, _ := f.GetUint16("start")
		end, _ := f.GetUint32("end")
		size, _ := f.GetInt("size")
		output, _ := f.GetString("output")

		if uint32(start) >= end || end > 0x10000 {
			return fmt.Errorf("bad range 0x%04x-0x%x", start, end)
		}
		if size < 1 || size > 56 {
			return fmt.Errorf("size must be 1..56, got %d", size)
		}

		return withStation(cmd.Context(), func(s *wh23xx.Station) error {
			b, err := dumpRange(cmd.Context(), s, start, end, size)
			if err != nil {
				return err
			}
			if output != "" {
				log.Infof("writing %d bytes to %s", len(b), output)
				return os.WriteFile(output, b, 0644)
			}
			hexDump(cmd.OutOrStdout(), start, b)
			return nil
		})
	},
}

// dumpRange reads [start, end) in blocks, retrying each block on its own so
// one bad read does not restart the whole dump.
func dumpRange(ctx context.Context, s *wh23xx.Station, start uint16, end uint32, blockSize int) ([]byte, error) {
	out := bytes.NewBuffer(make([]byte, 0, end-uint32(start)))
	cur := uint32(start)
	for cur < end {
		n := min(uint32(blockSize), end-cur)
		var block []byte
		err := retry.Do(
			func() error {
				var err error
				block, err = s.ReadEEPROM(ctx, uint16(cur), int(n))
				return err
			},
			retry.Context(ctx),
			retry.Attempts(3),
			retry.Delay(3*time.Second),
			retry.OnRetry(func(attempt uint, err error) {
				log.Warnf("reading 0x%04x len %d failed (attempt %d): %v", cur, n, attempt+1, err)
			}),
		)
		if err != nil {
			return nil, err
		}
		out.Write(block)
		cur += n
	}
	return out.Bytes(), nil
}

func init() {
	eepromTimeCmd.Flags().IntP("index", "i", -1, "page index 0..109, default is every page")
	historyCmd.Flags().IntP("index", "i", 0, "record index 0..3551")

	f := dumpCmd.Flags()
	f.Uint16("start", 0, "first address")
	f.Uint32("end", wh23xx.HistoryRecordsAddr, "address after the last one")
	f.Int("size", 32, "bytes per read, 1..56")
	f.StringP("output", "o", "", "write raw bytes to this file instead of printing")

	rootCmd.AddCommand(eepromTimeCmd, historyCmd, readEEPROMCmd, dumpCmd)
}
