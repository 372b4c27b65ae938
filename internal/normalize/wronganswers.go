package normalize

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pavelanni/examreports/internal/model"
)

// Source names where a wrong-answer list came from.
type Source string

const (
	SourceNone         Source = "none"
	SourceDistribution Source = "distribution"
	SourceRemote       Source = "remote"
	SourceRaw          Source = "raw"
	SourceEmbedded     Source = "embedded"
)

// WrongAnswerResult is the terminal outcome of AggregateWrongAnswers.
// Records is never nil. Err is set when the remote fallback failed; the
// records are then empty, which is still a valid outcome.
type WrongAnswerResult struct {
	Records []model.WrongAnswerRecord
	Source  Source
	Err     error
}

// FetchFunc loads the per-question wrong-answer payload from the backend.
type FetchFunc func(ctx context.Context, scheduleID, questionID string) ([]byte, error)

type aliasSet struct {
	answer   []string
	optionID []string
	answerID []string
	count    []string
	pct      []string
}

var (
	distributionAliases = aliasSet{
		answer:   []string{"answer", "text", "wrong_answer", "name", "label", "option"},
		optionID: []string{"option_id", "options_id", "optionId"},
		answerID: []string{"answer_id", "answerId"},
		count:    []string{"count", "times", "selected_count", "selected", "num"},
		pct:      []string{"pct", "percentage", "percent", "pct_str"},
	}
	remoteAliases = aliasSet{
		answer:   []string{"option_text", "option", "answer", "text"},
		optionID: []string{"option_id", "options_id", "optionId"},
		answerID: []string{"answer_id", "answerId"},
		count:    []string{"count", "selected_count"},
		pct:      []string{"percentage", "pct"},
	}
	rawAliases = aliasSet{
		answer: []string{"text", "option_text"},
		count:  []string{"count"},
	}
	embeddedAliases = aliasSet{
		answer: []string{"answer", "text"},
		count:  []string{"count", "times"},
		pct:    []string{"pct"},
	}
)

// AggregateWrongAnswers resolves the wrong-answer records of question from a
// distribution payload. When nothing matches locally it asks fetch for the
// per-question distribution (only if both scheduleID and the question id are
// known), otherwise it falls back to a list embedded in the question itself.
func AggregateWrongAnswers(ctx context.Context, question, distribution gjson.Result, scheduleID string, fetch FetchFunc) WrongAnswerResult {
	attempts, _ := questionAttempts(question)

	entries := matchDistribution(distribution, QuestionID(question))
	if recs := normalizeEntries(entries, distributionAliases, attempts); len(recs) > 0 {
		return WrongAnswerResult{Records: recs, Source: SourceDistribution}
	}

	remoteID := RemoteQuestionID(question)
	if fetch != nil && scheduleID != "" && remoteID != "" {
		body, err := fetch(ctx, scheduleID, remoteID)
		if err != nil {
			return WrongAnswerResult{Records: []model.WrongAnswerRecord{}, Source: SourceNone, Err: err}
		}
		payload := Unwrap(Parse(body), "data")
		if recs := normalizeEntries(ExtractList(payload, "distribution"), remoteAliases, attempts); len(recs) > 0 {
			return WrongAnswerResult{Records: recs, Source: SourceRemote}
		}
		if recs := normalizeEntries(ExtractList(payload, "raw"), rawAliases, attempts); len(recs) > 0 {
			return WrongAnswerResult{Records: recs, Source: SourceRaw}
		}
		return WrongAnswerResult{Records: []model.WrongAnswerRecord{}, Source: SourceNone}
	}

	embedded := firstTruthy(question, "wrong_answers", "wrong", "mistakes_detail", "mistakes", "wrong_distribution")
	if embedded.IsArray() {
		if recs := normalizeEntries(embedded.Array(), embeddedAliases, attempts); len(recs) > 0 {
			return WrongAnswerResult{Records: recs, Source: SourceEmbedded}
		}
	}
	return WrongAnswerResult{Records: []model.WrongAnswerRecord{}, Source: SourceNone}
}

// matchDistribution finds the raw entries belonging to qid. A nested entry
// ({question_id, wrong_answers:[...]}) wins; otherwise the payload is treated
// as a flat list of answers tagged with their question. An object keyed by
// question id is accepted as well.
func matchDistribution(dist gjson.Result, qid string) []gjson.Result {
	if qid == "" {
		return nil
	}
	if dist.IsObject() {
		var found []gjson.Result
		dist.ForEach(func(k, v gjson.Result) bool {
			if strings.TrimSpace(k.String()) == qid {
				if v.IsArray() {
					found = v.Array()
				} else if sub := firstTruthy(v, "wrong_answers", "wrong", "answers", "distribution"); sub.IsArray() {
					found = sub.Array()
				}
				return false
			}
			return true
		})
		return found
	}
	if !dist.IsArray() {
		return nil
	}

	items := dist.Array()
	for _, d := range items {
		if firstText(d, "question_id", "qid", "id", "sno", "schedule_question_id") != qid {
			continue
		}
		if sub := firstTruthy(d, "wrong_answers", "wrong", "answers", "distribution"); sub.IsArray() {
			return sub.Array()
		}
		break
	}

	var flat []gjson.Result
	for _, d := range items {
		if firstText(d, "question_id", "qid", "schedule_question_id") == qid {
			flat = append(flat, d)
		}
	}
	return flat
}

func normalizeEntries(entries []gjson.Result, set aliasSet, attempts int) []model.WrongAnswerRecord {
	out := make([]model.WrongAnswerRecord, 0, len(entries))
	for i, en := range entries {
		fallback := "Answer " + strconv.Itoa(i+1)
		if !en.IsObject() {
			answer := scalarText(en)
			if answer == "" {
				answer = fallback
			}
			out = append(out, model.WrongAnswerRecord{Answer: answer})
			continue
		}

		rec := model.WrongAnswerRecord{
			ID:       firstText(en, "id"),
			Answer:   firstText(en, set.answer...),
			OptionID: firstText(en, set.optionID...),
			AnswerID: firstText(en, set.answerID...),
		}
		if rec.Answer == "" {
			rec.Answer = fallback
		}
		if n, ok := firstInt(en, set.count...); ok {
			rec.Count = &n
		}
		rec.Pct = explicitPct(en, set.pct)
		if rec.Pct == "" && rec.Count != nil && attempts > 0 {
			rec.Pct = ComputePct(*rec.Count, attempts)
		}
		out = append(out, rec)
	}
	return out
}

// explicitPct returns a supplied percentage. Numbers and numeric strings get
// a "%" suffix; other text is kept as sent.
func explicitPct(en gjson.Result, keys []string) string {
	for _, k := range keys {
		v := en.Get(k)
		switch v.Type {
		case gjson.Number:
			return FormatPercent(v.Num)
		case gjson.String:
			s := strings.TrimSpace(v.Str)
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return FormatPercent(f)
			}
			return s
		}
	}
	return ""
}

// ComputePct returns round(100*count/attempts) formatted as "N%".
func ComputePct(count, attempts int) string {
	if attempts <= 0 {
		return ""
	}
	return strconv.Itoa(int(math.Round(100*float64(count)/float64(attempts)))) + "%"
}
