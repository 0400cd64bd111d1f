package dataset

import (
	"errors"
	"time"
)

// LeadCount is the number of simultaneously recorded ECG channels per record.
const LeadCount = 12

// LeadNames are the standard 12-lead labels, in lead index order.
var LeadNames = [LeadCount]string{"I", "II", "III", "aVR", "aVL", "aVF", "V1", "V2", "V3", "V4", "V5", "V6"}

var ErrNotFound = errors.New("dataset not found")

// WaveformKind selects the shape of synthetic samples.
type WaveformKind string

const (
	KindNormal WaveformKind = "normal"
	KindAFib   WaveformKind = "afib"
	KindNoisy  WaveformKind = "noisy"
)

// Record is one patient's capture session.
type Record struct {
	ID           string               `json:"id" yaml:"id"`
	PatientID    string               `json:"patient_id" yaml:"patient_id"`
	Timestamp    time.Time            `json:"timestamp" yaml:"timestamp"`
	HeartRate    int                  `json:"heart_rate" yaml:"heart_rate"`     // bpm
	PRInterval   int                  `json:"pr_interval" yaml:"pr_interval"`   // ms
	QRSDuration  int                  `json:"qrs_duration" yaml:"qrs_duration"` // ms
	QTInterval   int                  `json:"qt_interval" yaml:"qt_interval"`   // ms
	Leads        [LeadCount][]float64 `json:"leads" yaml:"-"`
	AutoAnalysis string               `json:"auto_analysis" yaml:"auto_analysis"`
	LeadNames    [LeadCount]string    `json:"lead_names" yaml:"-"`
}

// Lead returns the samples of lead k, or nil when k is out of range.
func (r *Record) Lead(k int) []float64 {
	if k < 0 || k >= LeadCount {
		return nil
	}
	return r.Leads[k]
}

// Dataset is a named collection of records uploaded together.
type Dataset struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	UploadedBy  string    `json:"uploaded_by" yaml:"uploaded_by"`
	UploadDate  time.Time `json:"upload_date" yaml:"upload_date"`
	Records     []Record  `json:"records" yaml:"records"`
}

// Record returns the record at index i.
func (d *Dataset) Record(i int) (*Record, bool) {
	if i < 0 || i >= len(d.Records) {
		return nil, false
	}
	return &d.Records[i], true
}

// RecordByID looks a record up by its id.
func (d *Dataset) RecordByID(id string) (*Record, bool) {
	for i := range d.Records {
		if d.Records[i].ID == id {
			return &d.Records[i], true
		}
	}
	return nil, false
}

// Summary is the dashboard listing entry for a dataset.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	RecordCount int    `json:"record_count"`
}

func (d *Dataset) Summary() Summary {
	return Summary{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		RecordCount: len(d.Records),
	}
}
