package workspace

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"label-ecg/internal/account"
	"label-ecg/internal/annotation"
	"label-ecg/internal/dataset"
)

var fixedNow = time.Date(2024, 10, 2, 8, 30, 0, 0, time.UTC)

type recordedMetrics struct {
	mu          sync.Mutex
	logins      []bool
	annotations []annotation.Status
	replaced    []bool
	directions  []string
}

func (m *recordedMetrics) LoginAttempt(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins = append(m.logins, ok)
}

func (m *recordedMetrics) AnnotationSaved(status annotation.Status, replaced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.annotations = append(m.annotations, status)
	m.replaced = append(m.replaced, replaced)
}

func (m *recordedMetrics) Navigated(direction string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.directions = append(m.directions, direction)
}

type fixture struct {
	svc         Service
	store       StateStore
	annotations annotation.Repository
	metrics     *recordedMetrics
}

func testDatasets() []dataset.Dataset {
	gen := dataset.NewGenerator(rand.NewPCG(7, 7), 50)
	records := make([]dataset.Record, 3)
	for i, id := range []string{"r1", "r2", "r3"} {
		records[i] = dataset.Record{
			ID:           id,
			PatientID:    "P00" + id[1:],
			HeartRate:    70 + i,
			Leads:        gen.Leads(dataset.KindNormal),
			AutoAnalysis: "Normal sinus rhythm",
			LeadNames:    dataset.LeadNames,
		}
	}
	return []dataset.Dataset{
		{ID: "ds", Name: "Three records", Records: records},
		{ID: "empty", Name: "No records"},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	f := &fixture{
		store:       NewStateStore(0),
		annotations: annotation.NewRepository(),
		metrics:     &recordedMetrics{},
	}
	accounts := account.NewService(account.NewRepository(account.SeedUsers()), account.NewRegistrar(), log)
	f.svc = NewService(
		f.store,
		accounts,
		dataset.NewRepository(testDatasets()),
		dataset.NewUploader(),
		f.annotations,
		log,
		WithClock(func() time.Time { return fixedNow }),
		WithMetrics(f.metrics),
	)
	return f
}

// annotate logs doctor1 in and opens dataset "ds".
func (f *fixture) annotate(t *testing.T, sid string) State {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Login(ctx, sid, "doctor1", "doc123")
	require.NoError(t, err)
	st, err := f.svc.SelectDataset(ctx, sid, "ds")
	require.NoError(t, err)
	return st
}

func strPtr(s string) *string { return &s }

func TestServiceLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.svc.Login(ctx, "s1", "admin", "wrong")
	require.ErrorIs(t, err, account.ErrInvalidCredentials)
	assert.Equal(t, ViewLogin, st.View)
	assert.Nil(t, st.User)

	_, err = f.svc.Login(ctx, "s1", "nobody", "admin123")
	require.ErrorIs(t, err, account.ErrInvalidCredentials)

	st, err = f.svc.Login(ctx, "s1", "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, ViewDashboard, st.View)
	require.NotNil(t, st.User)
	assert.Equal(t, account.RoleAdmin, st.User.Role)

	assert.Equal(t, []bool{false, false, true}, f.metrics.logins)
	assert.Empty(t, st.LoginForm.Username)
	assert.Equal(t, st, f.svc.Snapshot(ctx, "s1"))
}

func TestServiceLoginFailureKeepsUsername(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.svc.Login(ctx, "s1", "admin", "wrong")
	require.ErrorIs(t, err, account.ErrInvalidCredentials)
	assert.Equal(t, "admin", st.LoginForm.Username)
	assert.Equal(t, "admin", f.svc.Snapshot(ctx, "s1").LoginForm.Username)
	assert.Nil(t, f.svc.Snapshot(ctx, "s1").User)
}

func TestServiceSessionsAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.annotate(t, "s1")
	assert.Equal(t, NewState(), f.svc.Snapshot(ctx, "s2"))

	_, err := f.svc.Next(ctx, "s2", nil)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestServiceLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.annotate(t, "s1")
	require.Equal(t, 1, f.store.Len())
	st := f.svc.Logout(ctx, "s1")
	assert.Equal(t, NewState(), st)
	assert.Zero(t, f.store.Len())
	assert.Equal(t, NewState(), f.svc.Snapshot(ctx, "s1"))

	_, err := f.svc.CurrentUser(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestServiceSelectDataset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SelectDataset(ctx, "s1", "ds")
	require.ErrorIs(t, err, ErrNotAuthenticated)

	st := f.annotate(t, "s1")
	assert.Equal(t, ViewAnnotate, st.View)
	assert.Equal(t, 0, st.RecordIndex)

	_, err = f.svc.Next(ctx, "s1", nil)
	require.NoError(t, err)
	_, err = f.svc.Back(ctx, "s1", nil)
	require.NoError(t, err)
	st, err = f.svc.SelectDataset(ctx, "s1", "ds")
	require.NoError(t, err)
	assert.Equal(t, 0, st.RecordIndex)

	st, err = f.svc.SelectDataset(ctx, "s1", "missing")
	require.ErrorIs(t, err, dataset.ErrNotFound)
	assert.Equal(t, ViewAnnotate, st.View)

	_, err = f.svc.SelectDataset(ctx, "s1", "empty")
	require.ErrorIs(t, err, ErrEmptyDataset)
	assert.Equal(t, "ds", f.svc.Snapshot(ctx, "s1").DatasetID)
}

func TestServiceDatasets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Datasets(ctx, "s1")
	require.ErrorIs(t, err, ErrNotAuthenticated)

	f.annotate(t, "s1")
	list, err := f.svc.Datasets(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "ds", list[0].ID)
	assert.Equal(t, 3, list[0].RecordCount)
	assert.Equal(t, "empty", list[1].ID)
}

func TestServiceNavigation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.annotate(t, "s1")

	st, err := f.svc.Previous(ctx, "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, st.RecordIndex)

	for i := 0; i < 5; i++ {
		st, err = f.svc.Next(ctx, "s1", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, st.RecordIndex)

	st, err = f.svc.Back(ctx, "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, ViewDashboard, st.View)
	assert.Equal(t, 2, st.RecordIndex)

	_, err = f.svc.Next(ctx, "s1", nil)
	require.ErrorIs(t, err, ErrNoDataset)
	assert.Equal(t, []string{"next", "next"}, f.metrics.directions, "moves at a boundary are not counted")
}

func TestServiceNavigationKeepsDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.annotate(t, "s1")

	st, err := f.svc.ToggleLead(ctx, "s1", 2, strPtr("ST elevation in V2"))
	require.NoError(t, err)
	assert.Equal(t, "ST elevation in V2", st.Draft)
	assert.False(t, st.VisibleLeads.Has(2))

	st, err = f.svc.Next(ctx, "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, "ST elevation in V2", st.Draft)

	st, err = f.svc.Previous(ctx, "s1", strPtr("revised"))
	require.NoError(t, err)
	assert.Equal(t, 0, st.RecordIndex)
	assert.Equal(t, "revised", st.Draft)

	st, err = f.svc.Back(ctx, "s1", strPtr("kept for later"))
	require.NoError(t, err)
	assert.Equal(t, ViewDashboard, st.View)
	assert.Equal(t, "kept for later", st.Draft)
}

func TestServiceToggleLead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.annotate(t, "s1")

	st, err := f.svc.ToggleLead(ctx, "s1", 4, nil)
	require.NoError(t, err)
	assert.False(t, st.VisibleLeads.Has(4))

	st, err = f.svc.ToggleLead(ctx, "s1", 40, nil)
	require.NoError(t, err)
	assert.Equal(t, 11, st.VisibleLeads.Len())

	st, err = f.svc.ToggleLead(ctx, "s1", 4, nil)
	require.NoError(t, err)
	assert.Equal(t, AllLeads, st.VisibleLeads)
}

func TestServiceAnnotate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.annotate(t, "s1")

	_, err := f.svc.SetDraft(ctx, "s1", "Sinus rhythm")
	require.NoError(t, err)

	st, err := f.svc.Annotate(ctx, "s1", nil, "confirmed")
	require.NoError(t, err)
	assert.Equal(t, 1, st.RecordIndex)
	assert.Empty(t, st.Draft)

	got, err := f.annotations.Get(ctx, annotation.Key{Username: "doctor1", DatasetID: "ds", RecordID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, annotation.Annotation{Text: "Sinus rhythm", Status: annotation.StatusConfirmed, Timestamp: fixedNow}, got)

	_, err = f.annotations.Get(ctx, annotation.Key{Username: "doctor1", DatasetID: "ds", RecordID: "r2"})
	assert.ErrorIs(t, err, annotation.ErrNotFound)
}

func TestServiceAnnotateLastRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.annotate(t, "s1")
	for i := 0; i < 2; i++ {
		_, err := f.svc.Next(ctx, "s1", nil)
		require.NoError(t, err)
	}

	st, err := f.svc.Annotate(ctx, "s1", strPtr("Borderline QT"), "unsure")
	require.NoError(t, err)
	assert.Equal(t, 2, st.RecordIndex)
	assert.Empty(t, st.Draft)

	got, err := f.annotations.Get(ctx, annotation.Key{Username: "doctor1", DatasetID: "ds", RecordID: "r3"})
	require.NoError(t, err)
	assert.Equal(t, annotation.StatusUnsure, got.Status)
	assert.Equal(t, "Borderline QT", got.Text)
}

func TestServiceAnnotateOverwrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.annotate(t, "s1")

	_, err := f.svc.Annotate(ctx, "s1", strPtr("first"), "unsure")
	require.NoError(t, err)
	_, err = f.svc.Previous(ctx, "s1", nil)
	require.NoError(t, err)
	_, err = f.svc.Annotate(ctx, "s1", strPtr("second"), "confirmed")
	require.NoError(t, err)

	entries, err := f.svc.Annotations(ctx, "s1", "ds")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "second", entries[0].Annotation.Text)
	assert.Equal(t, annotation.StatusConfirmed, entries[0].Annotation.Status)
	assert.Equal(t, []bool{false, true}, f.metrics.replaced)
}

func TestServiceAnnotateInvalidStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.annotate(t, "s1")
	_, err := f.svc.SetDraft(ctx, "s1", "kept")
	require.NoError(t, err)

	st, err := f.svc.Annotate(ctx, "s1", nil, "maybe")
	require.ErrorIs(t, err, annotation.ErrInvalidStatus)
	assert.Equal(t, "kept", st.Draft)
	assert.Equal(t, 0, st.RecordIndex)
	assert.Zero(t, f.annotations.Count(ctx))
}

func TestServiceAnnotateRequiresAnnotateView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Annotate(ctx, "s1", nil, "confirmed")
	require.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = f.svc.Login(ctx, "s1", "admin", "admin123")
	require.NoError(t, err)
	_, err = f.svc.Annotate(ctx, "s1", nil, "confirmed")
	require.ErrorIs(t, err, ErrNoDataset)
	_, err = f.svc.SetDraft(ctx, "s1", "x")
	require.ErrorIs(t, err, ErrNoDataset)
}

func TestServiceUsersAnnotateIndependently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.annotate(t, "s1")

	_, err := f.svc.Login(ctx, "s2", "admin", "admin123")
	require.NoError(t, err)
	_, err = f.svc.SelectDataset(ctx, "s2", "ds")
	require.NoError(t, err)

	_, err = f.svc.Annotate(ctx, "s1", strPtr("doctor view"), "confirmed")
	require.NoError(t, err)
	_, err = f.svc.Annotate(ctx, "s2", strPtr("admin view"), "unsure")
	require.NoError(t, err)

	mine, err := f.svc.Annotations(ctx, "s1", "")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "doctor view", mine[0].Annotation.Text)

	theirs, err := f.svc.Annotations(ctx, "s2", "ds")
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, "admin view", theirs[0].Annotation.Text)
}

func TestServiceAnnotationsErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Annotations(ctx, "s1", "ds")
	require.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = f.svc.Login(ctx, "s1", "admin", "admin123")
	require.NoError(t, err)
	_, err = f.svc.Annotations(ctx, "s1", "")
	require.ErrorIs(t, err, ErrNoDataset)
	_, err = f.svc.Annotations(ctx, "s1", "missing")
	require.ErrorIs(t, err, dataset.ErrNotFound)
}

func TestServiceRegisterKeepsForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	form := account.RegisterForm{Username: "new", Password: "pw", Role: account.RoleExpert, HospitalName: "General"}
	st, err := f.svc.Register(ctx, "s1", form)
	require.ErrorIs(t, err, account.ErrNotImplemented)
	assert.Equal(t, form, st.RegisterForm)
	assert.Equal(t, form, f.svc.Snapshot(ctx, "s1").RegisterForm)
	assert.Equal(t, ViewLogin, st.View)
}

func TestServiceUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	form := dataset.UploadForm{DatasetName: "Holter", Description: "24h", FileName: "holter.zip"}

	_, err := f.svc.Upload(ctx, "s1", form)
	require.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = f.svc.Login(ctx, "s1", "admin", "admin123")
	require.NoError(t, err)
	st, err := f.svc.Upload(ctx, "s1", form)
	require.ErrorIs(t, err, dataset.ErrNotImplemented)
	assert.Equal(t, form, st.UploadForm)

	list, err := f.svc.Datasets(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestServiceLeadSamples(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.LeadSamples(ctx, "s1", "ds", "r1", 0)
	require.ErrorIs(t, err, ErrNotAuthenticated)

	f.annotate(t, "s1")
	samples, err := f.svc.LeadSamples(ctx, "s1", "ds", "r1", 11)
	require.NoError(t, err)
	assert.Len(t, samples, 50)

	_, err = f.svc.LeadSamples(ctx, "s1", "ds", "r9", 0)
	require.ErrorIs(t, err, dataset.ErrNotFound)
	_, err = f.svc.LeadSamples(ctx, "s1", "ds", "r1", 12)
	require.ErrorIs(t, err, ErrInvalidLead)
}

func TestServicePage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Page(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, ViewLogin, p.State.View)

	_, err = f.svc.Login(ctx, "s1", "doctor1", "doc123")
	require.NoError(t, err)
	p, err = f.svc.Page(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, p.Datasets, 2)

	_, err = f.svc.SelectDataset(ctx, "s1", "ds")
	require.NoError(t, err)
	_, err = f.svc.ToggleLead(ctx, "s1", 0, nil)
	require.NoError(t, err)

	p, err = f.svc.Page(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.RecordNumber)
	assert.Equal(t, 3, p.RecordCount)
	assert.False(t, p.HasPrevious)
	assert.True(t, p.HasNext)
	assert.Nil(t, p.Existing)
	require.Len(t, p.Leads, 12)
	assert.False(t, p.Leads[0].Visible)
	assert.Empty(t, p.Leads[0].Options)
	assert.True(t, p.Leads[1].Visible)
	assert.Equal(t, "II", p.Leads[1].Name)
	assert.NotEmpty(t, p.Leads[1].Options)

	_, err = f.svc.Annotate(ctx, "s1", strPtr("ok"), "confirmed")
	require.NoError(t, err)
	_, err = f.svc.Previous(ctx, "s1", nil)
	require.NoError(t, err)
	p, err = f.svc.Page(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, p.Existing)
	assert.Equal(t, "ok", p.Existing.Text)
}

func TestServiceConcurrentActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.annotate(t, "s1")

	var wg sync.WaitGroup
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ToggleLead(ctx, "s1", 5, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, AllLeads, f.svc.Snapshot(ctx, "s1").VisibleLeads)
}
