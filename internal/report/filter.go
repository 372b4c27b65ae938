package report

import "github.com/pavelanni/examreports/internal/model"

// FilterState is the state of a FilterCoordinator.
type FilterState int

const (
	FilterIdle FilterState = iota
	FilterPending
)

func (s FilterState) String() string {
	if s == FilterPending {
		return "pending"
	}
	return "idle"
}

// FilterCoordinator applies a category filter to question summaries,
// deferring it until analytics are loaded when none are resident yet.
// At most one filter is pending; a newer request replaces it.
type FilterCoordinator struct {
	state    FilterState
	pending  string
	applied  string
	filtered []model.QuestionSummary
}

// NewFilterCoordinator returns an idle coordinator with an empty filtered set.
func NewFilterCoordinator() *FilterCoordinator {
	return &FilterCoordinator{filtered: []model.QuestionSummary{}}
}

// Request asks for questions in categoryID. When resident summaries exist
// they are filtered immediately; otherwise the filter is stored and Request
// returns true to tell the caller to fetch analytics.
func (f *FilterCoordinator) Request(categoryID string, resident []model.QuestionSummary) (needFetch bool) {
	if len(resident) > 0 {
		f.apply(categoryID, resident)
		return false
	}
	f.state = FilterPending
	f.pending = categoryID
	return true
}

// Loaded is called when an analytics fetch completes (successfully or not).
// A pending filter is applied to questions; with none pending the filtered
// set is cleared.
func (f *FilterCoordinator) Loaded(questions []model.QuestionSummary) {
	if f.state != FilterPending {
		f.filtered = []model.QuestionSummary{}
		f.applied = ""
		return
	}
	f.apply(f.pending, questions)
}

// Reset drops any pending or applied filter.
func (f *FilterCoordinator) Reset() {
	f.state = FilterIdle
	f.pending = ""
	f.applied = ""
	f.filtered = []model.QuestionSummary{}
}

func (f *FilterCoordinator) apply(categoryID string, questions []model.QuestionSummary) {
	f.filtered = FilterByCategory(questions, categoryID)
	f.applied = categoryID
	f.pending = ""
	f.state = FilterIdle
}

// State returns the coordinator state.
func (f *FilterCoordinator) State() FilterState { return f.state }

// Pending returns the category waiting for analytics, if any.
func (f *FilterCoordinator) Pending() string { return f.pending }

// Applied returns the category of the current filtered set.
func (f *FilterCoordinator) Applied() string { return f.applied }

// Filtered returns the filtered question summaries.
func (f *FilterCoordinator) Filtered() []model.QuestionSummary { return f.filtered }

// FilterByCategory returns the questions whose resolved category equals
// categoryID. An empty categoryID matches nothing.
func FilterByCategory(questions []model.QuestionSummary, categoryID string) []model.QuestionSummary {
	out := []model.QuestionSummary{}
	if categoryID == "" {
		return out
	}
	for _, q := range questions {
		if q.CategoryID == categoryID {
			out = append(out, q)
		}
	}
	return out
}
