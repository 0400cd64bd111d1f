package analysis

import (
	"context"
	"fmt"

	"label-ecg/internal/dataset"
)

// Client produces the automatic analysis line shown next to a record.
type Client interface {
	Analyze(ctx context.Context, kind dataset.WaveformKind) (string, error)
}

type cannedClient struct {
	texts map[dataset.WaveformKind]string
}

// NewCannedClient returns a client answering with fixed text per waveform
// kind. No signal processing takes place.
func NewCannedClient() Client {
	return &cannedClient{
		texts: map[dataset.WaveformKind]string{
			dataset.KindNormal: "Normal sinus rhythm",
			dataset.KindAFib:   "Possible atrial fibrillation",
			dataset.KindNoisy:  "Signal quality insufficient for automatic analysis",
		},
	}
}

func (c *cannedClient) Analyze(ctx context.Context, kind dataset.WaveformKind) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, ok := c.texts[kind]
	if !ok {
		return "", fmt.Errorf("no analysis for waveform kind %q", kind)
	}
	return text, nil
}
