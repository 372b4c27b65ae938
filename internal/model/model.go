package model

import (
	"encoding/json"
	"time"
)

// Tab identifies which report view is active for the selected exam.
type Tab int

const (
	// TabUserReport is the per-student report table.
	TabUserReport Tab = iota
	// TabCategoryReport is the category analytics view.
	TabCategoryReport
)

// Institute is an institute the dashboard can report on.
type Institute struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Exam is one scheduled exam instance.
type Exam struct {
	ScheduleID string `json:"schedule_id"`
	Title      string `json:"title"`
}

// ReportRow is one student's outcome for the selected exam.
// Scalar metrics keep the text the backend sent; empty means absent.
type ReportRow struct {
	UserID             string `json:"user_id"`
	StudentName        string `json:"student_name"`
	QuestionsAttempted string `json:"questions_attempted"`
	CorrectAnswers     string `json:"correct_answers"`
	WrongAnswers       string `json:"wrong_answers"`
	MarksObtained      string `json:"marks_obtained"`
	TotalMarks         string `json:"total_marks"`
	TotalQuestions     string `json:"total_questions"`
	Result             string `json:"result"`
}

// ReportPage is one page of report rows plus the server-side total.
type ReportPage struct {
	Rows  []ReportRow `json:"rows"`
	Total int         `json:"total"`
}

// CategoryAnalytic holds aggregate stats for one category of an exam.
type CategoryAnalytic struct {
	CategoryID string          `json:"category_id"`
	Name       string          `json:"name"`
	Questions  string          `json:"questions"`
	Attempts   string          `json:"attempts"`
	Correct    string          `json:"correct"`
	Wrong      string          `json:"wrong"`
	Accuracy   string          `json:"accuracy"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// QuestionSummary is the per-question aggregate of an exam.
type QuestionSummary struct {
	ID         string          `json:"id"`
	Text       string          `json:"text"`
	CategoryID string          `json:"category_id"`
	Attempts   int             `json:"attempts"`
	Correct    string          `json:"correct"`
	Wrong      string          `json:"wrong"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// Analytics groups the three lists returned by one analytics fetch.
type Analytics struct {
	Categories   []CategoryAnalytic `json:"categories"`
	Questions    []QuestionSummary  `json:"questions"`
	Distribution json.RawMessage    `json:"-"`
}

// WrongAnswerRecord is one incorrect answer and how often it was chosen.
type WrongAnswerRecord struct {
	ID       string `json:"id,omitempty"`
	Answer   string `json:"answer"`
	OptionID string `json:"option_id,omitempty"`
	AnswerID string `json:"answer_id,omitempty"`
	Count    *int   `json:"count,omitempty"`
	Pct      string `json:"pct,omitempty"`
}

// ResourceKey returns the identifier used to request resources for the
// record and which query parameter carries it.
func (w WrongAnswerRecord) ResourceKey() (param, value string) {
	switch {
	case w.OptionID != "":
		return "option_id", w.OptionID
	case w.AnswerID != "":
		return "answer_id", w.AnswerID
	case w.Answer != "":
		return "answer_value", w.Answer
	}
	return "", ""
}

// ReviewEntry is one question of a reviewed attempt.
type ReviewEntry struct {
	QuestionID     string   `json:"question_id"`
	Question       string   `json:"question"`
	Options        []string `json:"options"`
	OptionLabels   []string `json:"option_labels"`
	SelectedOption []string `json:"selected_option"`
	CorrectAnswer  []string `json:"correct_answer"`
	IsCorrect      *bool    `json:"is_correct,omitempty"`
	Marks          string   `json:"marks,omitempty"`
}

// ReviewAttempt is one student's question-by-question record for an attempt.
type ReviewAttempt struct {
	AttemptID   string        `json:"attempt_id"`
	Score       string        `json:"score"`
	Result      string        `json:"result"`
	SubmittedAt string        `json:"submitted_at"`
	Submitted   string        `json:"submitted"`
	Review      []ReviewEntry `json:"review"`
}

// ReviewHeader is the summary shown above a user's review attempts.
type ReviewHeader struct {
	UserName       string `json:"user_name"`
	Score          string `json:"score"`
	Result         string `json:"result"`
	TotalQuestions string `json:"total_questions"`
	TotalMarks     string `json:"total_marks"`
}

// ResourceRecommendation is material suggested for a specific wrong answer.
type ResourceRecommendation struct {
	ResourceID string `json:"resource_id,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	Email      string `json:"email,omitempty"`
	URL        string `json:"url,omitempty"`
}

// ResourceContext is the (question, wrong answer) pair resources belong to.
// Server is set when the backend returned its own context object.
type ResourceContext struct {
	QuestionID  string            `json:"question_id"`
	WrongAnswer WrongAnswerRecord `json:"wrong_answer"`
	Server      json.RawMessage   `json:"server,omitempty"`
}

// FilterOption is one entry of a department/team/campus/location list.
type FilterOption struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Children []FilterOption `json:"children,omitempty"`
}

// FilterOptions holds every option list used by the user filters.
type FilterOptions struct {
	Departments []FilterOption `json:"departments"`
	Teams       []FilterOption `json:"teams"`
	Campuses    []FilterOption `json:"campuses"`
	Countries   []FilterOption `json:"countries"`
}

// UserFilters narrows the exam schedule list.
type UserFilters struct {
	DepartmentID string `json:"department_id"`
	TeamID       string `json:"teams_id"`
	CountryID    string `json:"country_id"`
	CityID       string `json:"city_id"`
	CampusID     string `json:"campus_id"`
}

// PagerState is the pagination bookkeeping of the user report.
type PagerState struct {
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	Total       int `json:"total"`
}

// Notice is a transient user-facing message, optionally retryable.
type Notice struct {
	ID        string        `json:"id"`
	Message   string        `json:"message"`
	Action    string        `json:"action"`
	Duration  time.Duration `json:"duration"`
	Retryable bool          `json:"retryable"`
	CreatedAt time.Time     `json:"created_at"`
}

// ReportConfig holds runtime report parameters set via CLI flags.
type ReportConfig struct {
	BackendURL  string
	PageSize    int
	InstituteID string // empty means use the stored or first institute
	Lang        string
}
