package normalize

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/pavelanni/examreports/internal/model"
)

// DecodeInstitutes decodes /institutes/list: a bare array, or an array under
// "institutes" or "data".
func DecodeInstitutes(body []byte) ([]model.Institute, Shape) {
	list, ok := extract(Parse(body), "", "institutes", "data")
	out := make([]model.Institute, 0, len(list))
	for _, r := range list {
		name := firstText(r, "name", "institute")
		if name == "" {
			name = "Institute"
		}
		out = append(out, model.Institute{
			ID:   firstText(r, "id", "institute_id", "_id"),
			Name: name,
		})
	}
	return out, shapeOf(body, ok)
}

// DecodeExams decodes /get-exam-schedule-details.
func DecodeExams(body []byte) ([]model.Exam, Shape) {
	list, ok := extract(Parse(body), "", "data", "schedules")
	out := make([]model.Exam, 0, len(list))
	for _, r := range list {
		out = append(out, DecodeExam(r))
	}
	return out, shapeOf(body, ok)
}

// DecodeExam decodes a single exam schedule record.
func DecodeExam(r gjson.Result) model.Exam {
	return model.Exam{
		ScheduleID: firstText(r, "schedule_id", "id", "scheduleId"),
		Title:      firstText(r, "title", "name"),
	}
}

// DecodeReportPage decodes /get-exam-user-report: {data:{items,total}},
// {items,total} or a bare array.
func DecodeReportPage(body []byte) (model.ReportPage, Shape) {
	root := Parse(body)
	payload := Unwrap(root, "data")
	page := model.ReportPage{Rows: []model.ReportRow{}}

	var list []gjson.Result
	matched := true
	if items := payload.Get("items"); items.IsArray() {
		list = items.Array()
		if n, ok := firstInt(payload, "total", "count"); ok {
			page.Total = n
		} else {
			page.Total = len(list)
		}
	} else if payload.IsArray() {
		list = payload.Array()
		page.Total = len(list)
	} else {
		matched = false
	}

	for _, r := range list {
		page.Rows = append(page.Rows, DecodeReportRow(r))
	}
	return page, shapeOf(body, matched)
}

// DecodeReportRow decodes one student row of the user report.
func DecodeReportRow(r gjson.Result) model.ReportRow {
	return model.ReportRow{
		UserID:             firstText(r, "user_id", "student_id", "id", "userId"),
		StudentName:        firstText(r, "student_name", "name", "user_name", "full_name"),
		QuestionsAttempted: firstText(r, "questions_attempted", "attempted"),
		CorrectAnswers:     firstText(r, "correct_answers", "correct"),
		WrongAnswers:       firstText(r, "wrong_answers", "wrong"),
		MarksObtained:      firstText(r, "marks_obtained", "score", "marks"),
		TotalMarks:         firstText(r, "total_marks", "totalMarks"),
		TotalQuestions:     firstText(r, "total_questions", "total"),
		Result:             firstText(r, "result", "status"),
	}
}

// DecodeAnalytics decodes /get-exam-analytics. Each of the three lists is
// looked up independently under its aliases.
func DecodeAnalytics(body []byte) (model.Analytics, Shape) {
	payload := Unwrap(Parse(body), "data")

	cats, okC := extract(payload, "category_report", "categories")
	qs, okQ := extract(payload, "question_summary", "questions")

	a := model.Analytics{
		Categories:   make([]model.CategoryAnalytic, 0, len(cats)),
		Questions:    make([]model.QuestionSummary, 0, len(qs)),
		Distribution: json.RawMessage("[]"),
	}
	for _, r := range cats {
		a.Categories = append(a.Categories, DecodeCategory(r))
	}
	for _, r := range qs {
		a.Questions = append(a.Questions, DecodeQuestion(r))
	}

	okD := false
	for _, p := range []string{"wrong_answer_distribution", "distribution"} {
		if v := payload.Get(p); v.IsArray() || v.IsObject() {
			a.Distribution = json.RawMessage(v.Raw)
			okD = true
			break
		}
	}
	return a, shapeOf(body, okC || okQ || okD)
}

// DecodeCategory decodes one category_report record.
func DecodeCategory(r gjson.Result) model.CategoryAnalytic {
	return model.CategoryAnalytic{
		CategoryID: firstText(r, "category_id", "id", "_id", "categoryId", "cat_id"),
		Name:       firstText(r, "category_name", "name", "category", "title"),
		Questions:  firstText(r, "total_questions", "questions", "question_count"),
		Attempts:   firstText(r, "attempts", "total_attempts"),
		Correct:    firstText(r, "correct", "correct_answers"),
		Wrong:      firstText(r, "wrong", "wrong_answers"),
		Accuracy:   firstText(r, "accuracy", "accuracy_pct", "percentage"),
		Raw:        json.RawMessage(r.Raw),
	}
}

// questionAttempts reads how many times a question was attempted.
func questionAttempts(q gjson.Result) (int, bool) {
	return firstInt(q, "attempts", "total_attempts")
}

// DecodeQuestion decodes one question_summary record. The category id is
// resolved once here so filters never re-interpret the raw shape.
func DecodeQuestion(r gjson.Result) model.QuestionSummary {
	attempts, _ := questionAttempts(r)
	return model.QuestionSummary{
		ID:         QuestionID(r),
		Text:       firstText(r, "question_text", "text", "question", "title"),
		CategoryID: ResolveCategoryID(r),
		Attempts:   attempts,
		Correct:    firstText(r, "correct", "correct_count"),
		Wrong:      firstText(r, "wrong", "wrong_count"),
		Raw:        json.RawMessage(r.Raw),
	}
}

// QuestionID returns the identifier of a question record.
func QuestionID(q gjson.Result) string {
	return firstText(q, "id", "question_id", "sno", "qid")
}

// RemoteQuestionID returns the identifier sent to per-question endpoints,
// which prefer the backend question_id over the summary row id.
func RemoteQuestionID(q gjson.Result) string {
	return firstText(q, "question_id", "id", "qid")
}

// DecodeReview decodes /review-user-exam: {data:[...]}, a bare array,
// {data:{data:[...]}} or {attempts:[...]}.
func DecodeReview(body []byte) ([]model.ReviewAttempt, Shape) {
	list, ok := extract(Parse(body), "data", "", "data.data", "attempts")
	out := make([]model.ReviewAttempt, 0, len(list))
	for _, a := range list {
		attempt := model.ReviewAttempt{
			AttemptID:   firstText(a, "attempt_id", "id", "attempt_no"),
			Score:       firstText(a, "score", "marks_obtained", "total_score"),
			Result:      firstText(a, "result", "status"),
			SubmittedAt: firstText(a, "submitted_at", "completed_at", "end_time", "created_at"),
			Review:      []model.ReviewEntry{},
		}
		if review := firstTruthy(a, "review", "questions", "attempt_review"); review.IsArray() {
			for _, e := range review.Array() {
				attempt.Review = append(attempt.Review, DecodeReviewEntry(e))
			}
		}
		out = append(out, attempt)
	}
	return out, shapeOf(body, ok)
}

// DecodeReviewEntry decodes one question of a reviewed attempt.
func DecodeReviewEntry(e gjson.Result) model.ReviewEntry {
	entry := model.ReviewEntry{
		QuestionID:     firstText(e, "question_id", "id", "qid"),
		Question:       firstText(e, "question_text", "question", "text"),
		Options:        OptionValues(firstExisting(e, "options", "choices")),
		SelectedOption: SelectedOptions(firstExisting(e, "selectedOption", "selected_option", "selected_options", "selected")),
		CorrectAnswer:  SelectedOptions(firstExisting(e, "correct_answer", "correct_option", "correctOption")),
		Marks:          firstText(e, "marks", "marks_obtained", "score"),
	}
	entry.OptionLabels = make([]string, len(entry.Options))
	for i := range entry.Options {
		entry.OptionLabels[i] = OptionLetter(i)
	}
	if c := firstExisting(e, "is_correct", "isCorrect", "correct"); c.Type == gjson.True || c.Type == gjson.False {
		b := c.Bool()
		entry.IsCorrect = &b
	}
	return entry
}

// DecodeResources decodes /get-answer-resources. The optional server
// "context" object is returned raw.
func DecodeResources(body []byte) ([]model.ResourceRecommendation, json.RawMessage, Shape) {
	root := Parse(body)
	payload := Unwrap(root, "data")

	list, ok := extract(payload, "", "resources")
	if !ok {
		list, ok = extract(root, "data.data")
	}
	out := make([]model.ResourceRecommendation, 0, len(list))
	for _, r := range list {
		out = append(out, model.ResourceRecommendation{
			ResourceID: firstText(r, "resource_id", "id", "_id"),
			FullName:   firstText(r, "full_name", "name", "title"),
			Email:      firstText(r, "email"),
			URL:        firstText(r, "url", "link", "resource_url"),
		})
	}

	var serverCtx json.RawMessage
	if c := root.Get("context"); c.Exists() && c.Type != gjson.Null {
		serverCtx = json.RawMessage(c.Raw)
	}
	return out, serverCtx, shapeOf(body, ok)
}

// DecodeOptionList decodes department, team, campus and location lists,
// each a bare array or a data-wrapped array.
func DecodeOptionList(body []byte) ([]model.FilterOption, Shape) {
	list, ok := extract(Parse(body), "", "data", "countries", "data.countries")
	return decodeOptions(list), shapeOf(body, ok)
}

func decodeOptions(list []gjson.Result) []model.FilterOption {
	out := make([]model.FilterOption, 0, len(list))
	for _, r := range list {
		opt := model.FilterOption{
			ID: firstText(r, "id", "department_id", "dept_id", "team_id", "teams_id",
				"campus_id", "country_id", "city_id", "_id"),
			Name: firstText(r, "name", "department_name", "team_name", "teams_name",
				"campus_name", "country_name", "city_name", "title"),
		}
		if kids := ExtractList(r, "cities", "children", "campuses"); len(kids) > 0 {
			opt.Children = decodeOptions(kids)
		}
		out = append(out, opt)
	}
	return out
}
