package workspace

import (
	"time"

	"label-ecg/internal/account"
	"label-ecg/internal/annotation"
	"label-ecg/internal/dataset"
)

// Transitions below are pure: they take a State by value and return the
// next one. Preconditions (logged in, dataset selected) are checked by the
// service before calling them.

// NewState is the state of a fresh session.
func NewState() State {
	return State{
		View:         ViewLogin,
		VisibleLeads: AllLeads,
		RegisterForm: account.NewRegisterForm(),
	}
}

func (s State) LoggedIn(u account.User) State {
	s.User = &u
	s.View = ViewDashboard
	s.LoginForm = LoginForm{}
	return s
}

// LoggedOut drops the user and everything tied to the session.
func (s State) LoggedOut() State {
	return NewState()
}

func (s State) WithLoginForm(username string) State {
	s.LoginForm = LoginForm{Username: username}
	return s
}

func (s State) WithRegisterForm(form account.RegisterForm) State {
	s.RegisterForm = form
	return s
}

func (s State) WithUploadForm(form dataset.UploadForm) State {
	s.UploadForm = form
	return s
}

// SelectDataset always starts at the first record.
func (s State) SelectDataset(id string) State {
	s.DatasetID = id
	s.RecordIndex = 0
	s.View = ViewAnnotate
	return s
}

func (s State) Back() State {
	s.View = ViewDashboard
	return s
}

func (s State) HasPrevious() bool {
	return s.RecordIndex > 0
}

func (s State) HasNext(recordCount int) bool {
	return s.RecordIndex < recordCount-1
}

func (s State) Previous() State {
	if s.HasPrevious() {
		s.RecordIndex--
	}
	return s
}

func (s State) Next(recordCount int) State {
	if s.HasNext(recordCount) {
		s.RecordIndex++
	}
	return s
}

func (s State) ToggleLead(k int) State {
	s.VisibleLeads = s.VisibleLeads.Toggle(k)
	return s
}

func (s State) WithDraft(text string) State {
	s.Draft = text
	return s
}

// Annotate produces the entry for the current record from the draft, clears
// the draft and advances unless rec is the last record.
func (s State) Annotate(rec *dataset.Record, recordCount int, status annotation.Status, now time.Time) (State, annotation.Key, annotation.Annotation) {
	key := annotation.Key{
		Username:  s.User.Username,
		DatasetID: s.DatasetID,
		RecordID:  rec.ID,
	}
	a := annotation.Annotation{
		Text:      s.Draft,
		Status:    status,
		Timestamp: now,
	}
	s.Draft = ""
	return s.Next(recordCount), key, a
}
