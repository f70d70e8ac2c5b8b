// Package voltage reads battery voltage through a resistor divider and
// smooths it with a sliding-window moving average.
package voltage

// Divider: 100k upper (to Vin), 47k lower (to GND).
// At 12V the ADC sees 3.84V, at 14.4V it sees 4.60V.
const (
	dividerRatio = 47.0 / (100.0 + 47.0)
	adcRef       = 5.0
	adcMax       = 1023
	calOffset    = 0.2

	// MaxWindow bounds the smoothing buffer.
	MaxWindow = 32
	// DefaultWindow is the smoothing window used at startup.
	DefaultWindow = 20
)

// ADC reads one raw sample. Reads are assumed to always succeed;
// implementations return a best-effort value.
type ADC interface {
	Read() int
}

// Sampler smooths raw ADC readings over a ring buffer with an O(1) running
// sum and converts them to volts.
type Sampler struct {
	adc     ADC
	samples [MaxWindow]int
	window  int
	index   int
	sum     int64
}

func NewSampler(adc ADC) *Sampler {
	s := &Sampler{adc: adc}
	s.SetSmoothing(DefaultWindow)
	return s
}

// SetSmoothing resizes the window, clamped to [1, MaxWindow], and re-seeds
// the whole buffer with one fresh reading so the average does not transient
// toward stale history.
func (s *Sampler) SetSmoothing(window int) {
	if window < 1 {
		window = 1
	}
	if window > MaxWindow {
		window = MaxWindow
	}
	s.window = window

	initial := s.adc.Read()
	for i := 0; i < s.window; i++ {
		s.samples[i] = initial
	}
	s.sum = int64(initial) * int64(s.window)
	s.index = 0
}

// ReadRaw returns one unsmoothed ADC sample.
func (s *Sampler) ReadRaw() int {
	return s.adc.Read()
}

// ReadSmoothed takes one sample, rolls the window and returns the average
// raw value.
func (s *Sampler) ReadSmoothed() int {
	raw := s.adc.Read()

	s.sum -= int64(s.samples[s.index])
	s.samples[s.index] = raw
	s.sum += int64(raw)
	s.index = (s.index + 1) % s.window

	return int(s.sum / int64(s.window))
}

// Read takes one sample and returns the smoothed battery voltage in volts.
func (s *Sampler) Read() float64 {
	raw := s.ReadSmoothed()
	vDivider := float64(raw) / adcMax * adcRef
	return vDivider/dividerRatio + calOffset
}
