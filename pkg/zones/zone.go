package zones

import (
	"math"
	"sort"
	"time"
)

// Detection tuning. Baselines learned from fewer than minCalibrationSamples
// during the calibration window keep learning passively until
// passiveLearnSamples arrive.
const (
	minCalibrationSamples = 3
	passiveLearnSamples   = 10
	varianceWindow        = 10
	stddevFloor           = 1.0 // dBm
)

// linkBaseline tracks one directed RF link inside a zone: the learned
// baseline and the rolling window the variance detector runs over.
type linkBaseline struct {
	samples []float64 // learning buffer, discarded once ready
	ready   bool
	mean    float64
	stddev  float64

	recent      []float64
	lastRSSI    float64
	lastLQI     int
	lastSeen    time.Time
	count       int
	triggered   bool
	triggeredAt time.Time
}

func (b *linkBaseline) computeBaseline() {
	b.mean = mean(b.samples)
	b.stddev = math.Max(stddevFloor, math.Sqrt(variance(b.samples)))
	b.samples = nil
	b.ready = true
}

// Zone is one presence-detection zone. All fields are guarded by the owning
// Manager's lock.
type Zone struct {
	config           Config
	calibrating      bool
	calibrationStart time.Time
	baselines        map[string]*linkBaseline
	occupied         bool
	lastTriggered    time.Time
	lastChange       time.Time
	created          time.Time
}

func newZone(cfg Config, now time.Time) *Zone {
	return &Zone{
		config:           cfg,
		calibrating:      true,
		calibrationStart: now,
		baselines:        make(map[string]*linkBaseline),
		created:          now,
	}
}

func (z *Zone) calibrationWindow() time.Duration {
	return time.Duration(z.config.CalibrationTime) * time.Second
}

func (z *Zone) clearDelay() time.Duration {
	return time.Duration(z.config.ClearDelay) * time.Second
}

// addSample feeds one link sample through calibration, learning and
// detection. Returns true when the zone's occupancy changed.
func (z *Zone) addSample(link string, rssi float64, lqi int, now time.Time) bool {
	if z.calibrating && now.Sub(z.calibrationStart) >= z.calibrationWindow() {
		z.finishCalibration()
	}

	b := z.baselines[link]
	if b == nil {
		b = &linkBaseline{}
		z.baselines[link] = b
	}
	b.lastRSSI = rssi
	b.lastLQI = lqi
	b.lastSeen = now
	b.count++

	if z.calibrating {
		b.samples = append(b.samples, rssi)
		return false
	}
	if !b.ready {
		b.samples = append(b.samples, rssi)
		if len(b.samples) >= passiveLearnSamples {
			b.computeBaseline()
		}
		return false
	}

	b.recent = append(b.recent, rssi)
	if len(b.recent) > varianceWindow {
		b.recent = b.recent[1:]
	}

	deviating := math.Abs(rssi-b.mean) > z.config.DeviationThreshold*b.stddev
	fluctuating := len(b.recent) == varianceWindow && variance(b.recent) > z.config.VarianceThreshold
	if deviating || fluctuating {
		b.triggered = true
		b.triggeredAt = now
	} else {
		b.triggered = false
	}

	return z.evaluate(now)
}

// finishCalibration freezes baselines for links that gathered enough
// samples; thin links keep learning passively.
func (z *Zone) finishCalibration() {
	z.calibrating = false
	for _, b := range z.baselines {
		if len(b.samples) >= minCalibrationSamples {
			b.computeBaseline()
		}
	}
}

// evaluate recomputes occupancy from the triggered link count. Occupancy
// asserts as soon as enough links deviate and clears only after clear_delay
// without a re-trigger. Returns true when occupancy changed.
func (z *Zone) evaluate(now time.Time) bool {
	if z.calibrating && now.Sub(z.calibrationStart) >= z.calibrationWindow() {
		z.finishCalibration()
	}

	active := 0
	for _, b := range z.baselines {
		if b.triggered {
			active++
		}
	}

	if active >= z.config.MinLinksTriggered {
		z.lastTriggered = now
		if !z.occupied {
			z.occupied = true
			z.lastChange = now
			return true
		}
		return false
	}

	if z.occupied && now.Sub(z.lastTriggered) >= z.clearDelay() {
		z.occupied = false
		z.lastChange = now
		for _, b := range z.baselines {
			b.triggered = false
		}
		return true
	}
	return false
}

// recalibrate drops learned baselines and restarts the calibration window.
// Returns true when occupancy was reset by the recalibration.
func (z *Zone) recalibrate(now time.Time) bool {
	z.calibrating = true
	z.calibrationStart = now
	z.baselines = make(map[string]*linkBaseline)
	if z.occupied {
		z.occupied = false
		z.lastChange = now
		return true
	}
	return false
}

func (z *Zone) triggeredLinks() []string {
	var out []string
	for key, b := range z.baselines {
		if b.triggered {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mu := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - mu
		sum += d * d
	}
	return sum / float64(len(xs))
}
