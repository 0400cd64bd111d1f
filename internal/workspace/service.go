package workspace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"label-ecg/internal/account"
	"label-ecg/internal/annotation"
	"label-ecg/internal/dataset"
)

// Metrics records user actions. Defined here to decouple from the
// concrete collector implementation.
type Metrics interface {
	LoginAttempt(ok bool)
	AnnotationSaved(status annotation.Status, replaced bool)
	Navigated(direction string)
}

type Service interface {
	Snapshot(ctx context.Context, sid string) State
	Login(ctx context.Context, sid, username, password string) (State, error)
	Logout(ctx context.Context, sid string) State
	Register(ctx context.Context, sid string, form account.RegisterForm) (State, error)
	Upload(ctx context.Context, sid string, form dataset.UploadForm) (State, error)

	Datasets(ctx context.Context, sid string) ([]dataset.Summary, error)
	SelectDataset(ctx context.Context, sid, datasetID string) (State, error)

	// Actions taking a draft store a non-nil draft before the transition,
	// within the same update.
	Back(ctx context.Context, sid string, draft *string) (State, error)
	Previous(ctx context.Context, sid string, draft *string) (State, error)
	Next(ctx context.Context, sid string, draft *string) (State, error)
	ToggleLead(ctx context.Context, sid string, lead int, draft *string) (State, error)
	SetDraft(ctx context.Context, sid, text string) (State, error)
	// Annotate saves the draft for the current record.
	Annotate(ctx context.Context, sid string, draft *string, status string) (State, error)

	Annotations(ctx context.Context, sid, datasetID string) ([]annotation.Entry, error)
	LeadSamples(ctx context.Context, sid, datasetID, recordID string, lead int) ([]float64, error)
	Page(ctx context.Context, sid string) (*Page, error)
	CurrentUser(ctx context.Context, sid string) (*account.User, error)
}

type service struct {
	mu          sync.Mutex
	store       StateStore
	accounts    account.Service
	datasets    dataset.Repository
	uploader    dataset.Uploader
	annotations annotation.Repository
	metrics     Metrics
	log         *zap.Logger
	now         func() time.Time
}

type Option func(*service)

// WithClock overrides the annotation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func WithMetrics(m Metrics) Option {
	return func(s *service) { s.metrics = m }
}

func NewService(
	store StateStore,
	accounts account.Service,
	datasets dataset.Repository,
	uploader dataset.Uploader,
	annotations annotation.Repository,
	log *zap.Logger,
	opts ...Option,
) Service {
	s := &service{
		store:       store,
		accounts:    accounts,
		datasets:    datasets,
		uploader:    uploader,
		annotations: annotations,
		metrics:     nopMetrics{},
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// load must be called with s.mu held.
func (s *service) load(sid string) State {
	st, ok := s.store.Load(sid)
	if !ok {
		return NewState()
	}
	return st
}

// update applies fn to the session state as one atomic step. The state is
// left untouched when fn fails.
func (s *service) update(sid string, fn func(State) (State, error)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.load(sid)
	next, err := fn(cur)
	if err != nil {
		return cur, err
	}
	s.store.Save(sid, next)
	return next, nil
}

func (s *service) Snapshot(ctx context.Context, sid string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(sid)
}

func (s *service) CurrentUser(ctx context.Context, sid string) (*account.User, error) {
	st := s.Snapshot(ctx, sid)
	if st.User == nil {
		return nil, ErrNotAuthenticated
	}
	return st.User, nil
}

// Login keeps the typed username in the session when the credentials are
// rejected so the form can be shown again.
func (s *service) Login(ctx context.Context, sid, username, password string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.load(sid)
	u, err := s.accounts.Login(ctx, username, password)
	s.metrics.LoginAttempt(err == nil)
	if err != nil {
		st = st.WithLoginForm(username)
		s.store.Save(sid, st)
		return st, err
	}
	st = st.LoggedIn(*u)
	s.store.Save(sid, st)
	return st, nil
}

// Logout drops the session state; the next load starts from NewState.
func (s *service) Logout(ctx context.Context, sid string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.load(sid)
	if st.User != nil {
		s.log.Info("logout", zap.String("username", st.User.Username))
	}
	s.store.Delete(sid)
	return st.LoggedOut()
}

// Register keeps the submitted form in the session even though the
// registrar rejects it.
func (s *service) Register(ctx context.Context, sid string, form account.RegisterForm) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.load(sid).WithRegisterForm(form)
	s.store.Save(sid, st)
	if _, err := s.accounts.Register(ctx, form); err != nil {
		return st, fmt.Errorf("register %q: %w", form.Username, err)
	}
	return st, nil
}

func (s *service) Upload(ctx context.Context, sid string, form dataset.UploadForm) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.load(sid)
	if st.User == nil {
		return st, ErrNotAuthenticated
	}
	st = st.WithUploadForm(form)
	s.store.Save(sid, st)
	if _, err := s.uploader.Upload(ctx, st.User.Username, form); err != nil {
		s.log.Warn("dataset upload rejected",
			zap.String("username", st.User.Username),
			zap.String("dataset", form.DatasetName),
			zap.Error(err))
		return st, fmt.Errorf("upload %q: %w", form.DatasetName, err)
	}
	return st, nil
}

func (s *service) Datasets(ctx context.Context, sid string) ([]dataset.Summary, error) {
	if _, err := s.CurrentUser(ctx, sid); err != nil {
		return nil, err
	}
	return s.datasets.List(ctx)
}

func (s *service) SelectDataset(ctx context.Context, sid, datasetID string) (State, error) {
	return s.update(sid, func(st State) (State, error) {
		if st.User == nil {
			return st, ErrNotAuthenticated
		}
		d, err := s.datasets.GetByID(ctx, datasetID)
		if err != nil {
			return st, err
		}
		if len(d.Records) == 0 {
			return st, fmt.Errorf("dataset %q: %w", datasetID, ErrEmptyDataset)
		}
		return st.SelectDataset(d.ID), nil
	})
}

func (s *service) Back(ctx context.Context, sid string, draft *string) (State, error) {
	return s.update(sid, func(st State) (State, error) {
		if st.User == nil {
			return st, ErrNotAuthenticated
		}
		return withDraft(st, draft).Back(), nil
	})
}

func withDraft(st State, draft *string) State {
	if draft == nil {
		return st
	}
	return st.WithDraft(*draft)
}

// annotating resolves the active dataset of a state on the annotate view.
func (s *service) annotating(ctx context.Context, st State) (*dataset.Dataset, error) {
	if st.User == nil {
		return nil, ErrNotAuthenticated
	}
	if st.View != ViewAnnotate || st.DatasetID == "" {
		return nil, ErrNoDataset
	}
	return s.datasets.GetByID(ctx, st.DatasetID)
}

func (s *service) Previous(ctx context.Context, sid string, draft *string) (State, error) {
	return s.update(sid, func(st State) (State, error) {
		if _, err := s.annotating(ctx, st); err != nil {
			return st, err
		}
		next := withDraft(st, draft).Previous()
		if next.RecordIndex != st.RecordIndex {
			s.metrics.Navigated("previous")
		}
		return next, nil
	})
}

func (s *service) Next(ctx context.Context, sid string, draft *string) (State, error) {
	return s.update(sid, func(st State) (State, error) {
		d, err := s.annotating(ctx, st)
		if err != nil {
			return st, err
		}
		next := withDraft(st, draft).Next(len(d.Records))
		if next.RecordIndex != st.RecordIndex {
			s.metrics.Navigated("next")
		}
		return next, nil
	})
}

func (s *service) ToggleLead(ctx context.Context, sid string, lead int, draft *string) (State, error) {
	return s.update(sid, func(st State) (State, error) {
		if _, err := s.annotating(ctx, st); err != nil {
			return st, err
		}
		return withDraft(st, draft).ToggleLead(lead), nil
	})
}

func (s *service) SetDraft(ctx context.Context, sid, text string) (State, error) {
	return s.update(sid, func(st State) (State, error) {
		if _, err := s.annotating(ctx, st); err != nil {
			return st, err
		}
		return st.WithDraft(text), nil
	})
}

func (s *service) Annotate(ctx context.Context, sid string, draft *string, status string) (State, error) {
	parsed, err := annotation.ParseStatus(status)
	if err != nil {
		return s.Snapshot(ctx, sid), err
	}
	return s.update(sid, func(st State) (State, error) {
		d, err := s.annotating(ctx, st)
		if err != nil {
			return st, err
		}
		rec, ok := d.Record(st.RecordIndex)
		if !ok {
			return st, fmt.Errorf("record index %d of %q: %w", st.RecordIndex, d.ID, ErrNoDataset)
		}
		st = withDraft(st, draft)

		next, key, a := st.Annotate(rec, len(d.Records), parsed, s.now())
		replaced, err := s.annotations.Save(ctx, key, a)
		if err != nil {
			return st, fmt.Errorf("save annotation %s: %w", key, err)
		}
		s.metrics.AnnotationSaved(parsed, replaced)
		s.log.Info("annotation saved",
			zap.String("key", key.String()),
			zap.String("status", string(parsed)),
			zap.Bool("replaced", replaced))
		return next, nil
	})
}

func (s *service) Annotations(ctx context.Context, sid, datasetID string) ([]annotation.Entry, error) {
	st := s.Snapshot(ctx, sid)
	if st.User == nil {
		return nil, ErrNotAuthenticated
	}
	if datasetID == "" {
		datasetID = st.DatasetID
	}
	if datasetID == "" {
		return nil, ErrNoDataset
	}
	if _, err := s.datasets.GetByID(ctx, datasetID); err != nil {
		return nil, err
	}
	return s.annotations.ListByDataset(ctx, st.User.Username, datasetID)
}

func (s *service) LeadSamples(ctx context.Context, sid, datasetID, recordID string, lead int) ([]float64, error) {
	if _, err := s.CurrentUser(ctx, sid); err != nil {
		return nil, err
	}
	d, err := s.datasets.GetByID(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	rec, ok := d.RecordByID(recordID)
	if !ok {
		return nil, fmt.Errorf("record %q: %w", recordID, dataset.ErrNotFound)
	}
	samples := rec.Lead(lead)
	if samples == nil {
		return nil, fmt.Errorf("lead %d: %w", lead, ErrInvalidLead)
	}
	return samples, nil
}

// existing returns the user's annotation of a record, or nil.
func (s *service) existing(ctx context.Context, key annotation.Key) (*annotation.Annotation, error) {
	a, err := s.annotations.Get(ctx, key)
	if errors.Is(err, annotation.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

type nopMetrics struct{}

func (nopMetrics) LoginAttempt(bool)                       {}
func (nopMetrics) AnnotationSaved(annotation.Status, bool) {}
func (nopMetrics) Navigated(string)                        {}
