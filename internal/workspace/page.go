package workspace

import (
	"context"

	"go.uber.org/zap"

	"label-ecg/internal/annotation"
	"label-ecg/internal/chart"
	"label-ecg/internal/dataset"
)

// LeadPanel is one lead toggle and, when visible, its chart.
type LeadPanel struct {
	Index   int
	Name    string
	Visible bool
	Options string
}

// Page is everything a screen needs to render.
type Page struct {
	State    State
	Flashes  []string
	Datasets []dataset.Summary

	Dataset      *dataset.Dataset
	Record       *dataset.Record
	RecordNumber int
	RecordCount  int
	HasPrevious  bool
	HasNext      bool
	Leads        []LeadPanel
	Existing     *annotation.Annotation
}

func (s *service) Page(ctx context.Context, sid string) (*Page, error) {
	st := s.Snapshot(ctx, sid)
	p := &Page{State: st}

	switch st.View {
	case ViewDashboard:
		list, err := s.datasets.List(ctx)
		if err != nil {
			return nil, err
		}
		p.Datasets = list

	case ViewAnnotate:
		d, err := s.annotating(ctx, st)
		if err != nil {
			return nil, err
		}
		rec, ok := d.Record(st.RecordIndex)
		if !ok {
			return nil, ErrEmptyDataset
		}
		p.Dataset = d
		p.Record = rec
		p.RecordNumber = st.RecordIndex + 1
		p.RecordCount = len(d.Records)
		p.HasPrevious = st.HasPrevious()
		p.HasNext = st.HasNext(len(d.Records))

		p.Leads = make([]LeadPanel, dataset.LeadCount)
		for k := range p.Leads {
			panel := LeadPanel{Index: k, Name: rec.LeadNames[k], Visible: st.VisibleLeads.Has(k)}
			if panel.Visible {
				options, err := chart.LeadOptions(panel.Name, rec.Lead(k))
				if err != nil {
					s.log.Warn("lead chart skipped", zap.String("record", rec.ID), zap.Int("lead", k), zap.Error(err))
				}
				panel.Options = options
			}
			p.Leads[k] = panel
		}

		p.Existing, err = s.existing(ctx, annotation.Key{
			Username:  st.User.Username,
			DatasetID: d.ID,
			RecordID:  rec.ID,
		})
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}
