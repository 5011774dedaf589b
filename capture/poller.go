package capture

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/robot"
)

// Params configure a Poller.
type Params struct {
	Interval time.Duration
	// Timeout bounds each sensor read.
	Timeout time.Duration
	// Sensors limits polling to the named sensors. Empty polls every sensor of the robot.
	Sensors []string
	Clock   clock.Clock
	Metrics *Metrics
	Logger  logging.Logger
}

// A Poller reads sensors every interval, each from its own goroutine, and writes the readings to
// its sinks.
type Poller struct {
	robot   robot.Robot
	params  Params
	sinks   []Sink
	metrics *Metrics
	logger  logging.Logger

	mu     sync.Mutex
	latest map[string]Reading

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller returns a Poller over the sensors of r. A nil Clock is the wall clock, nil Metrics
// register with a private registry and a nil Logger logs to stdout.
func NewPoller(r robot.Robot, params Params, sinks ...Sink) *Poller {
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	if params.Logger == nil {
		params.Logger = logging.NewLogger("capture")
	}
	if params.Metrics == nil {
		params.Metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &Poller{
		robot:   r,
		params:  params,
		sinks:   sinks,
		metrics: params.Metrics,
		logger:  params.Logger,
		latest:  map[string]Reading{},
	}
}

// Start polls until ctx is done or the Poller is closed. The ticker exists once Start returns.
func (p *Poller) Start(ctx context.Context) {
	cancelCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	ticker := p.params.Clock.Ticker(p.params.Interval)
	p.wg.Add(1)
	utils.PanicCapturingGo(func() {
		defer p.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-cancelCtx.Done():
				return
			case <-ticker.C:
			}
			if err := p.Poll(cancelCtx); err != nil {
				p.logger.Debugw("poll finished with errors", "error", err)
			}
		}
	})
}

func (p *Poller) sensorNames() []string {
	if len(p.params.Sensors) > 0 {
		return p.params.Sensors
	}
	return robot.SensorNames(p.robot)
}

// Poll reads every sensor once and waits for the reads and sink writes to finish. Failed reads are
// logged, counted and combined into the returned error; they never stop the other sensors.
func (p *Poller) Poll(ctx context.Context) error {
	names := p.sensorNames()
	errs := make([]error, len(names))
	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			errs[i] = p.pollOne(ctx, name)
			return nil
		})
	}
	utils.UncheckedError(g.Wait())
	return multierr.Combine(errs...)
}

func (p *Poller) pollOne(ctx context.Context, name string) error {
	s, err := robot.SensorByName(p.robot, name)
	if err != nil {
		p.metrics.observeRead(name, 0, err)
		return err
	}

	readCtx, cancel := context.WithTimeout(ctx, p.params.Timeout)
	defer cancel()
	start := p.params.Clock.Now()
	readings, err := s.Readings(readCtx, nil)
	p.metrics.observeRead(name, p.params.Clock.Since(start).Seconds(), err)
	if err != nil {
		p.logger.Warnw("error polling sensor", "sensor", name, "error", err)
		return err
	}

	r := Reading{Sensor: name, Time: p.params.Clock.Now(), Readings: readings}
	p.metrics.observeValues(r)
	p.mu.Lock()
	p.latest[name] = r
	p.mu.Unlock()

	for _, sink := range p.sinks {
		err := sink.Write(ctx, r)
		p.metrics.observeWrite(name, err)
		if err != nil {
			p.logger.Warnw("error writing reading", "sensor", name, "error", err)
		}
	}
	return nil
}

// Latest returns the last successful reading of a sensor.
func (p *Poller) Latest(name string) (Reading, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.latest[name]
	return r, ok
}

// Close stops polling and closes the sinks.
func (p *Poller) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	var err error
	for _, sink := range p.sinks {
		err = multierr.Combine(err, sink.Close())
	}
	return err
}
