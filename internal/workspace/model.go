package workspace

import (
	"encoding/json"
	"errors"
	"math/bits"

	"label-ecg/internal/account"
	"label-ecg/internal/dataset"
)

var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrNoDataset        = errors.New("no dataset selected")
	ErrEmptyDataset     = errors.New("dataset has no records")
	ErrInvalidLead      = errors.New("invalid lead index")
)

// View selects which screen is rendered.
type View string

const (
	ViewLogin     View = "login"
	ViewDashboard View = "dashboard"
	ViewAnnotate  View = "annotate"
)

// LeadSet is the set of visible lead indices, one bit per lead.
// Members outside 0..11 cannot be represented.
type LeadSet uint16

// AllLeads has every lead visible.
const AllLeads LeadSet = 1<<dataset.LeadCount - 1

func (s LeadSet) Has(k int) bool {
	return k >= 0 && k < dataset.LeadCount && s&(1<<k) != 0
}

// Toggle flips membership of k. Out of range k leaves the set unchanged.
func (s LeadSet) Toggle(k int) LeadSet {
	if k < 0 || k >= dataset.LeadCount {
		return s
	}
	return s ^ (1 << k)
}

func (s LeadSet) Len() int {
	return bits.OnesCount16(uint16(s & AllLeads))
}

// Indices returns the members in ascending order.
func (s LeadSet) Indices() []int {
	out := make([]int, 0, s.Len())
	for k := 0; k < dataset.LeadCount; k++ {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (s LeadSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Indices())
}

// LoginForm buffers the login screen input. The password is never kept.
type LoginForm struct {
	Username string `json:"username"`
}

// State is the per browser session state container.
type State struct {
	User         *account.User        `json:"user"`
	View         View                 `json:"view"`
	DatasetID    string               `json:"dataset_id,omitempty"`
	RecordIndex  int                  `json:"record_index"`
	Draft        string               `json:"draft"`
	VisibleLeads LeadSet              `json:"visible_leads"`
	LoginForm    LoginForm            `json:"login_form"`
	RegisterForm account.RegisterForm `json:"register_form"`
	UploadForm   dataset.UploadForm   `json:"upload_form"`
}
