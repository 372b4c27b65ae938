package report

import (
	"strings"

	"github.com/pavelanni/examreports/internal/model"
)

// Column is one CSV column: its header and how to read the field from a row.
type Column[T any] struct {
	Header string
	Value  func(T) string
}

// UserReportColumns are the columns of the user report download.
var UserReportColumns = []Column[model.ReportRow]{
	{"Student Name", func(r model.ReportRow) string { return r.StudentName }},
	{"Questions Attempted", func(r model.ReportRow) string { return r.QuestionsAttempted }},
	{"Correct Answers", func(r model.ReportRow) string { return r.CorrectAnswers }},
	{"Wrong Answers", func(r model.ReportRow) string { return r.WrongAnswers }},
	{"Marks Obtained", func(r model.ReportRow) string { return r.MarksObtained }},
	{"Result", func(r model.ReportRow) string { return r.Result }},
}

// ToCSV renders rows with a header line. Every field is double-quoted and
// embedded quotes are doubled; lines are joined with "\n" and there is no
// trailing newline. It reports false, and renders nothing, for zero rows.
func ToCSV[T any](rows []T, columns []Column[T]) (string, bool) {
	if len(rows) == 0 {
		return "", false
	}
	var sb strings.Builder
	for i, c := range columns {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeField(&sb, c.Header)
	}
	for _, r := range rows {
		sb.WriteByte('\n')
		for i, c := range columns {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeField(&sb, c.Value(r))
		}
	}
	return sb.String(), true
}

func writeField(sb *strings.Builder, v string) {
	sb.WriteByte('"')
	sb.WriteString(strings.ReplaceAll(v, `"`, `""`))
	sb.WriteByte('"')
}

// ExportFileName names the user report download after the selected exam.
func ExportFileName(exam *model.Exam) string {
	id := "report"
	if exam != nil && exam.ScheduleID != "" {
		id = exam.ScheduleID
	}
	return "exam_user_report_" + id + ".csv"
}
