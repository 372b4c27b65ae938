package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/examreports/internal/model"
)

func TestPagerTotalPages(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 25, 1},
		{1, 25, 1},
		{25, 25, 1},
		{26, 25, 2},
		{30, 25, 2},
		{100, 10, 10},
	}
	for _, tt := range tests {
		p := NewPager(tt.size)
		p.SetTotal(tt.total)
		assert.Equal(t, tt.want, p.TotalPages(), "total=%d size=%d", tt.total, tt.size)
	}
}

func TestPagerBoundaries(t *testing.T) {
	p := NewPager(25)
	p.SetTotal(30)
	p.Load(2)

	page, ok := p.Next()
	assert.False(t, ok)
	assert.Equal(t, 2, page)
	assert.Equal(t, 2, p.State().CurrentPage)

	page, ok = p.Prev()
	assert.True(t, ok)
	assert.Equal(t, 1, page)

	p.Load(page)
	page, ok = p.Prev()
	assert.False(t, ok)
	assert.Equal(t, 1, page)

	page, ok = p.Next()
	assert.True(t, ok)
	assert.Equal(t, 2, page)
}

func TestPagerTotalTracksChanges(t *testing.T) {
	p := NewPager(10)
	p.SetTotal(5)
	assert.Equal(t, 1, p.TotalPages())
	p.SetTotal(35)
	assert.Equal(t, 4, p.TotalPages())
	p.Reset()
	assert.Equal(t, 1, p.TotalPages())
	assert.Equal(t, 1, p.State().CurrentPage)
}

func TestNewPagerDefaultsSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, NewPager(0).State().PageSize)
}

func TestToCSV(t *testing.T) {
	rows := []model.ReportRow{{StudentName: `A"B`, MarksObtained: "10"}}
	cols := []Column[model.ReportRow]{
		{"Student Name", func(r model.ReportRow) string { return r.StudentName }},
		{"Marks", func(r model.ReportRow) string { return r.MarksObtained }},
	}
	got, ok := ToCSV(rows, cols)
	require.True(t, ok)
	assert.Equal(t, "\"Student Name\",\"Marks\"\n\"A\"\"B\",\"10\"", got)
}

func TestToCSVEmptyFields(t *testing.T) {
	rows := []model.ReportRow{{StudentName: "Ann"}, {StudentName: "Bo, Jr.", Result: "pass"}}
	got, ok := ToCSV(rows, UserReportColumns)
	require.True(t, ok)
	want := `"Student Name","Questions Attempted","Correct Answers","Wrong Answers","Marks Obtained","Result"` + "\n" +
		`"Ann","","","","",""` + "\n" +
		`"Bo, Jr.","","","","","pass"`
	assert.Equal(t, want, got)
}

func TestToCSVNoRows(t *testing.T) {
	got, ok := ToCSV(nil, UserReportColumns)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestExportFileName(t *testing.T) {
	assert.Equal(t, "exam_user_report_s42.csv", ExportFileName(&model.Exam{ScheduleID: "s42"}))
	assert.Equal(t, "exam_user_report_report.csv", ExportFileName(nil))
	assert.Equal(t, "exam_user_report_report.csv", ExportFileName(&model.Exam{}))
}

func questions() []model.QuestionSummary {
	return []model.QuestionSummary{
		{ID: "1", CategoryID: "c1"},
		{ID: "2", CategoryID: "c2"},
		{ID: "3", CategoryID: "c1"},
		{ID: "4", CategoryID: ""},
	}
}

func ids(qs []model.QuestionSummary) []string {
	out := []string{}
	for _, q := range qs {
		out = append(out, q.ID)
	}
	return out
}

func TestFilterDeferredUntilLoaded(t *testing.T) {
	f := NewFilterCoordinator()
	assert.Equal(t, FilterIdle, f.State())

	assert.True(t, f.Request("c1", nil))
	assert.Equal(t, FilterPending, f.State())
	assert.Equal(t, "c1", f.Pending())

	f.Loaded(questions())
	assert.Equal(t, FilterIdle, f.State())
	assert.Equal(t, "", f.Pending())
	assert.Equal(t, []string{"1", "3"}, ids(f.Filtered()))
	assert.Equal(t, "c1", f.Applied())
}

func TestFilterResidentIsSynchronous(t *testing.T) {
	f := NewFilterCoordinator()
	assert.False(t, f.Request("c2", questions()))
	assert.Equal(t, FilterIdle, f.State())
	assert.Equal(t, []string{"2"}, ids(f.Filtered()))
}

func TestFilterLastRequestWins(t *testing.T) {
	f := NewFilterCoordinator()
	f.Request("c1", nil)
	f.Request("c2", nil)
	assert.Equal(t, "c2", f.Pending())
	f.Loaded(questions())
	assert.Equal(t, []string{"2"}, ids(f.Filtered()))
}

func TestFilterLoadedWithoutPendingClears(t *testing.T) {
	f := NewFilterCoordinator()
	f.Request("c1", questions())
	require.NotEmpty(t, f.Filtered())
	f.Loaded(questions())
	assert.Empty(t, f.Filtered())
	assert.Equal(t, FilterIdle, f.State())
}

func TestFilterUncategorizedNeverMatches(t *testing.T) {
	assert.Empty(t, FilterByCategory(questions(), ""))
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2024-03-05T14:07:00Z", "05 Mar 2024, 14:07"},
		{"2024-03-05 09:30:00", "05 Mar 2024, 09:30"},
		{"2024-03-05", "05 Mar 2024, 00:00"},
		{"yesterday", "yesterday"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDate(tt.in), tt.in)
	}
}

func TestRelativeDate(t *testing.T) {
	now := time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "3 days ago", RelativeDate("2024-03-05T12:00:00Z", now))
	assert.Equal(t, "", RelativeDate("not a date", now))
}
