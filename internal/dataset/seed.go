package dataset

import (
	"context"
	"fmt"
	"time"
)

// Analyzer fills the automatic analysis text of a generated record.
// Defined here to decouple from the concrete analysis client.
type Analyzer interface {
	Analyze(ctx context.Context, kind WaveformKind) (string, error)
}

type recordSeed struct {
	id          string
	patientID   string
	timestamp   time.Time
	heartRate   int
	prInterval  int
	qrsDuration int
	qtInterval  int
	kind        WaveformKind
}

type datasetSeed struct {
	id          string
	name        string
	description string
	uploadedBy  string
	uploadDate  time.Time
	records     []recordSeed
}

var seedCatalog = []datasetSeed{
	{
		id:          "dataset1",
		name:        "Beijing Tsinghua Hospital - Resting ECG",
		description: "12-lead resting ECG records from cardiology department",
		uploadedBy:  "admin",
		uploadDate:  time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
		records: []recordSeed{
			{
				id:          "rec1",
				patientID:   "P001",
				timestamp:   time.Date(2024, 10, 1, 10, 30, 0, 0, time.UTC),
				heartRate:   72,
				prInterval:  160,
				qrsDuration: 90,
				qtInterval:  380,
				kind:        KindNormal,
			},
			{
				id:          "rec2",
				patientID:   "P002",
				timestamp:   time.Date(2024, 10, 1, 11, 0, 0, 0, time.UTC),
				heartRate:   95,
				prInterval:  180,
				qrsDuration: 95,
				qtInterval:  420,
				kind:        KindAFib,
			},
		},
	},
}

// Seed builds the start-up dataset catalog with freshly generated waveforms.
func Seed(ctx context.Context, gen *Generator, analyzer Analyzer) ([]Dataset, error) {
	out := make([]Dataset, 0, len(seedCatalog))
	for _, ds := range seedCatalog {
		d := Dataset{
			ID:          ds.id,
			Name:        ds.name,
			Description: ds.description,
			UploadedBy:  ds.uploadedBy,
			UploadDate:  ds.uploadDate,
			Records:     make([]Record, 0, len(ds.records)),
		}
		for _, rs := range ds.records {
			text, err := analyzer.Analyze(ctx, rs.kind)
			if err != nil {
				return nil, fmt.Errorf("analyze record %s: %w", rs.id, err)
			}
			d.Records = append(d.Records, Record{
				ID:           rs.id,
				PatientID:    rs.patientID,
				Timestamp:    rs.timestamp,
				HeartRate:    rs.heartRate,
				PRInterval:   rs.prInterval,
				QRSDuration:  rs.qrsDuration,
				QTInterval:   rs.qtInterval,
				Leads:        gen.Leads(rs.kind),
				AutoAnalysis: text,
				LeadNames:    LeadNames,
			})
		}
		out = append(out, d)
	}
	return out, nil
}
