package wh23xx

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chrissnell/wh23xx/internal/weatherstations"
	"go.uber.org/zap"
)

// CurrentReader is the part of Station the poller needs
type CurrentReader interface {
	GetCurrent(ctx context.Context) ([]byte, error)
	StationName() string
}

// Sample is one decoded current-weather reading
type Sample struct {
	Timestamp    time.Time
	StationName  string
	Observations Observations
	// Rain is the rainfall since the previous sample, derived from the
	// rain_totals counter. RainValid is false on the first sample, when the
	// counter is missing, or when it went backwards.
	Rain      float64
	RainValid bool
}

// Poller periodically reads current weather and hands samples to a distributor
type Poller struct {
	ctx         context.Context
	wg          *sync.WaitGroup
	station     CurrentReader
	interval    time.Duration
	distributor chan<- Sample
	logger      *zap.SugaredLogger
	metrics     *Metrics
	now         func() time.Time

	lastRain     float64
	haveLastRain bool
}

var _ weatherstations.WeatherStation = (*Poller)(nil)

// NewPoller creates a poller. Nothing runs until StartWeatherStation.
func NewPoller(ctx context.Context, wg *sync.WaitGroup, station CurrentReader, interval time.Duration,
	distributor chan<- Sample, metrics *Metrics, logger *zap.SugaredLogger) *Poller {
	return &Poller{
		ctx:         ctx,
		wg:          wg,
		station:     station,
		interval:    interval,
		distributor: distributor,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
	}
}

// StationName returns the polled station's name
func (p *Poller) StationName() string {
	return p.station.StationName()
}

// StartWeatherStation launches the polling goroutine
func (p *Poller) StartWeatherStation() error {
	p.logger.Infof("starting WH23xx station [%v], poll interval is %v", p.StationName(), p.interval)
	p.wg.Add(1)
	go p.run()
	return nil
}

func (p *Poller) run() {
	defer p.wg.Done()
	for {
		sample, ok, err := p.Poll()
		switch {
		case err != nil && p.ctx.Err() != nil:
			p.logger.Info("cancellation request received. Cancelling WH23xx poller")
			return
		case errors.Is(err, ErrTransportUnavailable):
			p.logger.Errorf("station unavailable, stopping poller: %v", err)
			return
		case err != nil:
			p.logger.Error(err)
		case ok:
			select {
			case p.distributor <- sample:
			case <-p.ctx.Done():
				return
			}
		}

		select {
		case <-p.ctx.Done():
			p.logger.Info("cancellation request received. Cancelling WH23xx poller")
			return
		case <-time.After(p.interval):
		}
	}
}

// Poll performs one read-and-decode cycle. ok is false when the console had
// nothing ready.
func (p *Poller) Poll() (Sample, bool, error) {
	raw, err := p.station.GetCurrent(p.ctx)
	if err != nil {
		return Sample{}, false, err
	}
	if raw == nil {
		p.logger.Debug("no current data")
		return Sample{}, false, nil
	}

	decoded, err := DecodeWeatherData(raw)
	if err != nil {
		p.metrics.DecodeError()
		return Sample{}, false, err
	}
	p.logger.Debugf("decoded data: %s", decoded)

	sample := Sample{
		Timestamp:    p.now(),
		StationName:  p.StationName(),
		Observations: decoded,
	}

	total, ok := decoded.Value("rain_totals")
	if ok && p.haveLastRain {
		if total >= p.lastRain {
			sample.Rain = total - p.lastRain
			sample.RainValid = true
		} else {
			p.logger.Infof("rain counter reset detected: new=%g old=%g", total, p.lastRain)
		}
	}
	p.lastRain, p.haveLastRain = total, ok

	return sample, true, nil
}
