package dataset

import (
	"math"
	"math/rand/v2"
)

// DefaultSamplesPerLead is the number of samples generated per lead.
const DefaultSamplesPerLead = 500

// Generator produces synthetic waveforms with a plausible visual shape.
// It is not safe for concurrent use.
type Generator struct {
	rng     *rand.Rand
	samples int
}

// NewGenerator returns a generator drawing from src. A nil src uses a
// randomly seeded source.
func NewGenerator(src rand.Source, samplesPerLead int) *Generator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	if samplesPerLead <= 0 {
		samplesPerLead = DefaultSamplesPerLead
	}
	return &Generator{rng: rand.New(src), samples: samplesPerLead}
}

// Waveform generates one lead: sin(i*0.1) * (0.5 + bias) + noise.
func (g *Generator) Waveform(kind WaveformKind) []float64 {
	data := make([]float64, g.samples)
	for i := range data {
		var bias float64
		if kind == KindAFib {
			bias = g.rng.Float64() * 0.3
		}
		noiseAmp := 0.05
		if kind == KindNoisy {
			noiseAmp = 0.2
		}
		noise := g.rng.Float64() * noiseAmp
		data[i] = math.Sin(float64(i)*0.1)*(0.5+bias) + noise
	}
	return data
}

// Leads generates all 12 leads of a record with the same kind.
func (g *Generator) Leads(kind WaveformKind) [LeadCount][]float64 {
	var leads [LeadCount][]float64
	for k := range leads {
		leads[k] = g.Waveform(kind)
	}
	return leads
}
