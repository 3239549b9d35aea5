package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/chrissnell/wh23xx/internal/log"
	"github.com/chrissnell/wh23xx/internal/types"
	"github.com/chrissnell/wh23xx/internal/weatherstations/wh23xx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

const (
	flagConfig    = "config"
	flagDevice    = "device"
	flagDebug     = "debug"
	flagLogFile   = "log-file"
	flagVendorID  = "vendor-id"
	flagProductID = "product-id"
)

var rootCmd = &cobra.Command{
	Use:               "wh23xx",
	Short:             "Fine Offset WH23xx console tool",
	Long:              `Read current weather, history and settings from Fine Offset WH2300/WH2301/WH4000 and Tycon TP2700 consoles over USB.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	defer log.Sync()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP(flagConfig, "c", "", "path to YAML config (optional)")
	pf.StringP(flagDevice, "n", "", "device name from the config, default is the first device")
	pf.BoolP(flagDebug, "d", false, "turn on debugging output")
	pf.String(flagLogFile, "", "also write JSON logs to this file, rotated")
	pf.Uint16(flagVendorID, 0, "override USB vendor id")
	pf.Uint16(flagProductID, 0, "override USB product id")
}

// device is the console selected by config and flags
var device types.DeviceConfig

func setup(cmd *cobra.Command, args []string) error {
	pf := cmd.Flags()
	cfgFile, _ := pf.GetString(flagConfig)
	debug, _ := pf.GetBool(flagDebug)
	logFile, _ := pf.GetString(flagLogFile)

	cfg := types.Config{}
	if cfgFile != "" {
		filename, _ := filepath.Abs(cfgFile)
		var err error
		cfg, err = types.NewConfig(filename)
		if err != nil {
			return fmt.Errorf("error reading config file %s: %w", filename, err)
		}
	}

	opts := log.Options{
		Debug:      debug || cfg.Log.Debug,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}
	if logFile != "" {
		opts.File = logFile
	}
	if err := log.InitWithOptions(opts); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if len(cfg.Devices) == 0 {
		device = types.DeviceConfig{Name: "wh23xx"}
		device.ApplyDefaults()
	} else {
		name, _ := pf.GetString(flagDevice)
		d, err := cfg.Device(name)
		if err != nil {
			return err
		}
		device = d
	}

	if pf.Changed(flagVendorID) {
		device.VendorID, _ = pf.GetUint16(flagVendorID)
	}
	if pf.Changed(flagProductID) {
		device.ProductID, _ = pf.GetUint16(flagProductID)
	}
	log.Debugf("using device [%s] %04x:%04x (%s)", device.Name, device.VendorID, device.ProductID, device.Model)
	return nil
}

// newStation builds a Station on a USB transport for the selected device
func newStation(reg prometheus.Registerer) (*wh23xx.Station, error) {
	opts, err := wh23xx.OptionsFromConfig(device)
	if err != nil {
		return nil, err
	}
	opts.Metrics = wh23xx.NewMetrics(reg)
	logger := log.GetSugaredLogger()
	t := wh23xx.NewUSBTransport(wh23xx.USBConfigFromDevice(device), logger)
	return wh23xx.NewStation(t, opts, logger), nil
}

// withStation opens the console, runs fn and always closes it again
func withStation(ctx context.Context, fn func(s *wh23xx.Station) error) error {
	s, err := newStation(nil)
	if err != nil {
		return err
	}
	if err := s.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Warnf("closing station: %v", err)
		}
	}()
	return fn(s)
}
