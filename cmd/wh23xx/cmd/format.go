package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chrissnell/wh23xx/internal/weatherstations/wh23xx"
	"github.com/fatih/color"
)

var (
	keyColor   = color.New(color.FgHiBlue).SprintfFunc()
	valueColor = color.New(color.FgGreen).SprintfFunc()
	dimColor   = color.New(color.FgHiBlack).SprintfFunc()
)

// parseHex accepts bytes as one or more arguments, with or without spaces,
// commas or 0x prefixes: "01 02 8f", "01028f" and "0x01,0x02,0x8f" are equal.
func parseHex(args []string) ([]byte, error) {
	s := strings.Join(args, "")
	s = strings.NewReplacer("0x", "", "0X", "", ",", "", " ", "", ":", "", "\n", "", "\t", "").Replace(s)
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return b, nil
}

// parseNumber reads decimal or 0x-prefixed hexadecimal
func parseNumber(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return v, nil
}

func printKV(w io.Writer, key, value string) {
	fmt.Fprintf(w, "%s: %s\n", keyColor("%s", key), valueColor("%s", value))
}

func printObservations(w io.Writer, obs wh23xx.Observations) {
	for _, name := range obs.Names() {
		o := obs[name]
		if !o.Valid {
			fmt.Fprintf(w, "%s: %s\n", keyColor("%s", name), dimColor("%s", o.String()))
			continue
		}
		printKV(w, name, o.String())
	}
}

func printInfo(w io.Writer, info *wh23xx.StationInfo, all bool) {
	fields := info.Fields()
	keys := wh23xx.CoreFields
	if all {
		keys = make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	for _, k := range keys {
		printKV(w, k, fields[k])
	}
}

// hexDump prints b in 16-byte rows labelled with their address
func hexDump(w io.Writer, addr uint16, b []byte) {
	for i := 0; i < len(b); i += 16 {
		end := min(i+16, len(b))
		fmt.Fprintf(w, "%s  % x\n", keyColor("%04x", int(addr)+i), b[i:end])
	}
}
