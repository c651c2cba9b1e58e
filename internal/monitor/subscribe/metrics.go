package subscribe

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

const (
	namespace = "hedera_mirror_monitor"
	subsystem = "subscribe"

	labelProtocol   = "protocol"
	labelScenario   = "scenario"
	labelSubscriber = "subscriber"
)

// Config controls the recorder.
type Config struct {
	// Enabled turns the periodic status log on.
	Enabled bool `yaml:"enabled"`
	// StatusFrequency is how often Run logs the status of running subscriptions.
	StatusFrequency time.Duration `yaml:"statusFrequency"`
}

type durationEntry struct {
	sub   Subscription
	gauge prometheus.GaugeFunc
}

// Recorder owns one duration gauge and one end-to-end latency histogram per subscription.
// Instruments are created on first sight of a key and reused afterwards; OnNext is safe
// for concurrent use.
type Recorder struct {
	cfg       Config
	reg       prometheus.Registerer
	log       *zap.Logger
	durations *xsync.Map[Key, durationEntry]
	latencies *xsync.Map[Key, prometheus.Histogram]
}

// NewRecorder creates a recorder registering its instruments with reg
// (prometheus.DefaultRegisterer if nil).
func NewRecorder(cfg Config, reg prometheus.Registerer, log *zap.Logger) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.StatusFrequency <= 0 {
		cfg.StatusFrequency = 10 * time.Second
	}
	return &Recorder{
		cfg:       cfg,
		reg:       reg,
		log:       log,
		durations: xsync.NewMap[Key, durationEntry](),
		latencies: xsync.NewMap[Key, prometheus.Histogram](),
	}
}

// OnNext records one received response.
func (r *Recorder) OnNext(resp Response) {
	sub := resp.Subscription
	key := sub.Key()
	r.log.Debug("Response", zap.Stringer("subscription", key), zap.Time("received", resp.ReceivedTimestamp))

	r.durations.LoadOrCompute(key, func() (durationEntry, bool) {
		return durationEntry{sub: sub, gauge: r.newDurationGauge(key, sub)}, false
	})

	if resp.PublishedTimestamp != nil {
		latency := resp.ReceivedTimestamp.Sub(*resp.PublishedTimestamp)
		h, _ := r.latencies.LoadOrCompute(key, func() (prometheus.Histogram, bool) {
			return r.newLatencyHistogram(key), false
		})
		h.Observe(latency.Seconds())
	}
}

// Status logs one line per running subscription. It does nothing when disabled.
func (r *Recorder) Status() {
	if !r.cfg.Enabled {
		return
	}
	r.durations.Range(func(key Key, e durationEntry) bool {
		s := e.sub
		if s.Status() == StatusRunning {
			r.log.Info("Subscription status",
				zap.String("protocol", string(key.Protocol)),
				zap.Stringer("subscription", key),
				zap.Int64("count", s.Count()),
				zap.Duration("elapsed", s.Elapsed()),
				zap.Float64("rate", s.Rate()),
				zap.Any("errors", s.Errors()),
			)
		}
		return true
	})
}

// Run calls Status every StatusFrequency until ctx is done.
func (r *Recorder) Run(ctx context.Context) {
	t := time.NewTicker(r.cfg.StatusFrequency)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Status()
		}
	}
}

// Subscriptions returns the number of distinct subscriptions seen.
func (r *Recorder) Subscriptions() int { return r.durations.Size() }

func (r *Recorder) newDurationGauge(key Key, sub Subscription) prometheus.GaugeFunc {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        "duration_seconds",
		Help:        "How long the subscriber has been running",
		ConstLabels: labels(key),
	}, func() float64 { return sub.Elapsed().Seconds() })
	return register(r, g)
}

func (r *Recorder) newLatencyHistogram(key Key) prometheus.Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   subsystem,
		Name:        "e2e_seconds",
		Help:        "The end to end transaction latency starting from publish and ending at receive",
		ConstLabels: labels(key),
		Buckets:     prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms .. ~3.4m
	})
	return register(r, h)
}

func labels(key Key) prometheus.Labels {
	return prometheus.Labels{
		labelProtocol:   string(key.Protocol),
		labelScenario:   key.Scenario,
		labelSubscriber: strconv.Itoa(key.ID),
	}
}

// register adds c to the registry, reusing an identical collector registered earlier.
func register[T prometheus.Collector](r *Recorder, c T) T {
	err := r.reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	r.log.Warn("Unable to register subscription metric", zap.Error(err))
	return c
}
