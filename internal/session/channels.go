package session

// channel is a fetch channel; each carries its own generation counter.
type channel int

const (
	chInstitutes channel = iota
	chExams
	chFilterOptions
	chReport
	chAnalytics
	chWrongAnswers
	chResources
	chReview
	numChannels
)

var channelNames = [numChannels]string{
	chInstitutes:    "institutes",
	chExams:         "exams",
	chFilterOptions: "filter_options",
	chReport:        "report",
	chAnalytics:     "analytics",
	chWrongAnswers:  "wrong_answers",
	chResources:     "resources",
	chReview:        "review",
}

func (c channel) String() string {
	if c < 0 || c >= numChannels {
		return "unknown"
	}
	return channelNames[c]
}

// examChannels are the channels whose results belong to the selected exam.
var examChannels = []channel{chReport, chAnalytics, chWrongAnswers, chResources, chReview}
