package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signintech/gopdf"
	"go.uber.org/zap"

	"label-ecg/internal/annotation"
	"label-ecg/internal/chart"
	"label-ecg/internal/dataset"
)

var ErrFontUnavailable = errors.New("no report font could be loaded")

// DefaultFontPaths are probed in order for a TTF font.
var DefaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

// Lead drawn under each record.
const previewLead = 1

const (
	fontName   = "DejaVu"
	pageMargin = 40.0
	textWidth  = 515.0
	pageBottom = 780.0
)

// RecordBlock is one record and the user's annotation of it, if any.
type RecordBlock struct {
	Record     *dataset.Record
	Annotation *annotation.Annotation
}

// Document is the content of one annotation report.
type Document struct {
	Username  string
	Dataset   *dataset.Dataset
	Generated time.Time
	Records   []RecordBlock
	Annotated int
}

type Service struct {
	datasets    dataset.Repository
	annotations annotation.Repository
	fontPaths   []string
	log         *zap.Logger
	now         func() time.Time
}

func NewService(datasets dataset.Repository, annotations annotation.Repository, fontPaths []string, log *zap.Logger) *Service {
	if len(fontPaths) == 0 {
		fontPaths = DefaultFontPaths
	}
	return &Service{
		datasets:    datasets,
		annotations: annotations,
		fontPaths:   fontPaths,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Build collects the user's annotations for every record of the dataset.
func (s *Service) Build(ctx context.Context, username, datasetID string) (*Document, error) {
	d, err := s.datasets.GetByID(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	entries, err := s.annotations.ListByDataset(ctx, username, datasetID)
	if err != nil {
		return nil, err
	}
	byRecord := make(map[string]annotation.Annotation, len(entries))
	for _, e := range entries {
		byRecord[e.Key.RecordID] = e.Annotation
	}

	doc := &Document{
		Username:  username,
		Dataset:   d,
		Generated: s.now(),
		Records:   make([]RecordBlock, 0, len(d.Records)),
	}
	for i := range d.Records {
		block := RecordBlock{Record: &d.Records[i]}
		if a, ok := byRecord[d.Records[i].ID]; ok {
			block.Annotation = &a
			doc.Annotated++
		}
		doc.Records = append(doc.Records, block)
	}
	return doc, nil
}

func (s *Service) loadFont(pdf *gopdf.GoPdf) error {
	var lastErr error
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont(fontName, path); err != nil {
			lastErr = err
			continue
		}
		s.log.Debug("report font loaded", zap.String("path", path))
		return nil
	}
	return fmt.Errorf("%w: last error: %v", ErrFontUnavailable, lastErr)
}

// Render lays the document out on A4 pages.
func (s *Service) Render(doc *Document) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.SetMargins(pageMargin, pageMargin, pageMargin, pageMargin)
	pdf.AddPage()

	if err := s.loadFont(&pdf); err != nil {
		return nil, err
	}

	w := &writer{pdf: &pdf}
	w.line(18, "ECG Annotation Report", 26)
	w.line(11, fmt.Sprintf("Dataset: %s (%s)", doc.Dataset.Name, doc.Dataset.ID), 15)
	w.line(11, fmt.Sprintf("Annotator: %s", doc.Username), 15)
	w.line(11, fmt.Sprintf("Generated: %s", doc.Generated.Format("2006-01-02 15:04 MST")), 15)
	w.line(11, fmt.Sprintf("Annotated records: %d / %d", doc.Annotated, len(doc.Records)), 25)

	for _, block := range doc.Records {
		rec := block.Record
		w.ensure(220)
		w.line(14, fmt.Sprintf("Record %s - patient %s", rec.ID, rec.PatientID), 18)
		w.line(10, fmt.Sprintf("Recorded: %s", rec.Timestamp.Format("2006-01-02 15:04")), 13)
		w.line(10, fmt.Sprintf("HR %d bpm, PR %d ms, QRS %d ms, QT %d ms",
			rec.HeartRate, rec.PRInterval, rec.QRSDuration, rec.QTInterval), 13)
		w.line(10, "Automatic analysis: "+rec.AutoAnalysis, 13)

		if a := block.Annotation; a != nil {
			w.line(10, fmt.Sprintf("Annotation (%s, %s):", a.Status, a.Timestamp.Format("2006-01-02 15:04")), 13)
			text := a.Text
			if text == "" {
				text = "(no text)"
			}
			w.wrapped(10, text, 12)
		} else {
			w.line(10, "Not annotated.", 13)
		}

		if err := w.lead(rec); err != nil {
			s.log.Warn("lead preview skipped", zap.String("record", rec.ID), zap.Error(err))
		}
		w.pdf.Br(15)
	}
	if w.err != nil {
		return nil, w.err
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// DatasetReport builds and renders the report in one step.
func (s *Service) DatasetReport(ctx context.Context, username, datasetID string) ([]byte, error) {
	doc, err := s.Build(ctx, username, datasetID)
	if err != nil {
		return nil, err
	}
	s.log.Info("rendering annotation report",
		zap.String("username", username),
		zap.String("dataset", datasetID),
		zap.Int("annotated", doc.Annotated))
	return s.Render(doc)
}

// writer keeps the first layout error so the caller checks once.
type writer struct {
	pdf *gopdf.GoPdf
	err error
}

func (w *writer) ensure(space float64) {
	if w.err == nil && w.pdf.GetY()+space > pageBottom {
		w.pdf.AddPage()
	}
}

func (w *writer) line(size float64, text string, advance float64) {
	if w.err != nil {
		return
	}
	if w.err = w.pdf.SetFont(fontName, "", size); w.err != nil {
		return
	}
	w.ensure(advance)
	w.pdf.SetX(pageMargin)
	if w.err = w.pdf.Cell(nil, text); w.err != nil {
		return
	}
	w.pdf.Br(advance)
}

func (w *writer) wrapped(size float64, text string, advance float64) {
	if w.err != nil {
		return
	}
	if w.err = w.pdf.SetFont(fontName, "", size); w.err != nil {
		return
	}
	lines, err := w.pdf.SplitText(text, textWidth)
	if err != nil {
		w.err = err
		return
	}
	for _, l := range lines {
		w.line(size, l, advance)
	}
}

func (w *writer) lead(rec *dataset.Record) error {
	if w.err != nil {
		return nil
	}
	img, err := chart.LeadPNG(rec.Lead(previewLead), chart.ImageWidth, chart.ImageHeight)
	if err != nil {
		return err
	}
	holder, err := gopdf.ImageHolderByBytes(img)
	if err != nil {
		return err
	}
	height := textWidth * float64(chart.ImageHeight) / float64(chart.ImageWidth)
	w.ensure(height + 10)
	w.line(9, "Lead "+rec.LeadNames[previewLead], 11)
	if w.err != nil {
		return nil
	}
	if err := w.pdf.ImageByHolder(holder, pageMargin, w.pdf.GetY(), &gopdf.Rect{W: textWidth, H: height}); err != nil {
		return err
	}
	w.pdf.Br(height)
	return nil
}
