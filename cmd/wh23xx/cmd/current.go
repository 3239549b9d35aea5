package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/wh23xx/internal/log"
	"github.com/chrissnell/wh23xx/internal/weatherstations/wh23xx"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "show current weather, polling until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		once, _ := cmd.Flags().GetBool("once")
		if once {
			return currentOnce(cmd)
		}
		addr, _ := cmd.Flags().GetString("metrics-addr")
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			interval = device.PollInterval
		}
		return currentLoop(cmd, addr, interval)
	},
}

func init() {
	f := currentCmd.Flags()
	f.Bool("once", false, "read a single record and exit")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9108")
	f.Duration("interval", 0, "poll interval, default from config")
	rootCmd.AddCommand(currentCmd)
}

func currentOnce(cmd *cobra.Command) error {
	return withStation(cmd.Context(), func(s *wh23xx.Station) error {
		raw, err := s.GetCurrent(cmd.Context())
		if err != nil {
			return err
		}
		if raw == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "no data")
			return nil
		}
		log.Debugf("raw record: % x", raw)
		obs, err := wh23xx.DecodeWeatherData(raw)
		if err != nil {
			return err
		}
		printObservations(cmd.OutOrStdout(), obs)
		return nil
	})
}

func currentLoop(cmd *cobra.Command, addr string, interval time.Duration) error {
	reg := prometheus.NewRegistry()
	s, err := newStation(reg)
	if err != nil {
		return err
	}
	if err := s.Open(cmd.Context()); err != nil {
		return err
	}
	defer s.Close()

	g, ctx := errgroup.WithContext(cmd.Context())
	samples := make(chan wh23xx.Sample, 1)

	g.Go(func() error {
		wg := &sync.WaitGroup{}
		p := wh23xx.NewPoller(ctx, wg, s, interval, samples, s.Options().Metrics, log.GetSugaredLogger())
		if err := p.StartWeatherStation(); err != nil {
			return err
		}
		wg.Wait()
		if ctx.Err() == nil {
			return errors.New("poller stopped")
		}
		return nil
	})

	g.Go(func() error {
		out := cmd.OutOrStdout()
		for {
			select {
			case <-ctx.Done():
				return nil
			case sample := <-samples:
				fmt.Fprintln(out, dimColor("%s", sample.Timestamp.Format(time.RFC3339)))
				printObservations(out, sample.Observations)
				if sample.RainValid {
					printKV(out, "rain", fmt.Sprintf("%g", sample.Rain))
				}
			}
		}
	})

	if addr != "" {
		server := &http.Server{Addr: addr, Handler: metricsRouter(reg)}
		g.Go(func() error {
			log.Infof("metrics server listening on %s", addr)
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			log.Info("shutting down the metrics server...")
			return server.Shutdown(context.Background())
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func metricsRouter(reg *prometheus.Registry) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)
	return router
}
