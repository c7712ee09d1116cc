package domain

import (
	"fmt"
	"math"
	"time"
)

// ChannelSpread holds per-channel sample standard deviations for an
// averaged measurement. All fields are zero for raw single readings.
type ChannelSpread struct {
	XInPhase    float64 `json:"std_x_in_phase"`
	XQuadrature float64 `json:"std_x_quadrature"`
	YInPhase    float64 `json:"std_y_in_phase"`
	YQuadrature float64 `json:"std_y_quadrature"`
	ZInPhase    float64 `json:"std_z_in_phase"`
	ZQuadrature float64 `json:"std_z_quadrature"`
}

// Measurement is one reading of the six lock-in channels: in-phase and
// quadrature voltage for each field axis. It is either a raw sample from the
// acquisition port or the mean of an averaging batch.
type Measurement struct {
	XInPhase    float64 `json:"v_x_in_phase"`
	XQuadrature float64 `json:"v_x_quadrature"`
	YInPhase    float64 `json:"v_y_in_phase"`
	YQuadrature float64 `json:"v_y_quadrature"`
	ZInPhase    float64 `json:"v_z_in_phase"`
	ZQuadrature float64 `json:"v_z_quadrature"`

	CapturedAt time.Time `json:"captured_at"`

	// Uncertainty is the conservative estimate reported by the acquisition
	// chain, in volts. For averaged measurements it carries the first
	// sample's estimate rather than a recomputed one.
	Uncertainty float64 `json:"uncertainty_volts"`

	StdDev ChannelSpread `json:"std_dev"`
}

// NewMeasurement builds a raw measurement and rejects non-finite values.
func NewMeasurement(xi, xq, yi, yq, zi, zq float64, at time.Time, uncertainty float64) (Measurement, error) {
	for _, ch := range []struct {
		name string
		v    float64
	}{
		{"x_in_phase", xi},
		{"x_quadrature", xq},
		{"y_in_phase", yi},
		{"y_quadrature", yq},
		{"z_in_phase", zi},
		{"z_quadrature", zq},
		{"uncertainty", uncertainty},
	} {
		if math.IsNaN(ch.v) || math.IsInf(ch.v, 0) {
			return Measurement{}, fmt.Errorf("measurement channel %s is not finite: %f", ch.name, ch.v)
		}
	}
	return Measurement{
		XInPhase:    xi,
		XQuadrature: xq,
		YInPhase:    yi,
		YQuadrature: yq,
		ZInPhase:    zi,
		ZQuadrature: zq,
		CapturedAt:  at,
		Uncertainty: uncertainty,
	}, nil
}

// Channels returns the six voltage channels in export column order:
// x in-phase, x quadrature, y in-phase, y quadrature, z in-phase, z quadrature.
func (m Measurement) Channels() [6]float64 {
	return [6]float64{m.XInPhase, m.XQuadrature, m.YInPhase, m.YQuadrature, m.ZInPhase, m.ZQuadrature}
}

// Spreads returns the per-channel standard deviations in the same order as Channels.
func (m Measurement) Spreads() [6]float64 {
	s := m.StdDev
	return [6]float64{s.XInPhase, s.XQuadrature, s.YInPhase, s.YQuadrature, s.ZInPhase, s.ZQuadrature}
}

// AverageMeasurements computes the component-wise mean of a batch along with
// the sample standard deviation per channel (Bessel-corrected). The returned
// measurement keeps the first sample's uncertainty estimate as a conservative
// proxy and the last sample's capture timestamp.
func AverageMeasurements(batch []Measurement) (Measurement, error) {
	n := len(batch)
	if n == 0 {
		return Measurement{}, fmt.Errorf("cannot average an empty measurement batch")
	}
	if n == 1 {
		m := batch[0]
		m.StdDev = ChannelSpread{}
		return m, nil
	}

	var sums [6]float64
	for _, m := range batch {
		ch := m.Channels()
		for i := range sums {
			sums[i] += ch[i]
		}
	}
	var means [6]float64
	for i := range means {
		means[i] = sums[i] / float64(n)
	}

	var varSums [6]float64
	for _, m := range batch {
		ch := m.Channels()
		for i := range varSums {
			d := ch[i] - means[i]
			varSums[i] += d * d
		}
	}
	var stds [6]float64
	for i := range stds {
		stds[i] = math.Sqrt(varSums[i] / float64(n-1))
	}

	return Measurement{
		XInPhase:    means[0],
		XQuadrature: means[1],
		YInPhase:    means[2],
		YQuadrature: means[3],
		ZInPhase:    means[4],
		ZQuadrature: means[5],
		CapturedAt:  batch[n-1].CapturedAt,
		Uncertainty: batch[0].Uncertainty,
		StdDev: ChannelSpread{
			XInPhase:    stds[0],
			XQuadrature: stds[1],
			YInPhase:    stds[2],
			YQuadrature: stds[3],
			ZInPhase:    stds[4],
			ZQuadrature: stds[5],
		},
	}, nil
}
