package service

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/noah-isme/fourset-checker/internal/models"
)

// metadataKeys are envelope fields that both sources mix in with answers.
var metadataKeys = map[string]struct{}{
	"responseId":   {},
	"sessionkey":   {},
	"studentId":    {},
	"startDate":    {},
	"endDate":      {},
	"recordedDate": {},
	"finished":     {},
	"progress":     {},
}

// AnswerNormalizer flattens raw submissions into AnswerRecords whose values are
// plain strings. It understands three envelopes:
//
//	{"answers": {"12": {"name": "ERV_Q1", "answer": "1"}}}   form uploads
//	{"values": {"ERV_Q1": "1"}}                              survey exports
//	{"ERV_Q1": "1"}                                          flat maps
type AnswerNormalizer struct{}

// NewAnswerNormalizer returns a normalizer.
func NewAnswerNormalizer() *AnswerNormalizer {
	return &AnswerNormalizer{}
}

// Normalize converts one submission. Question order follows the payload.
func (n *AnswerNormalizer) Normalize(sub models.SourceSubmission) ([]models.AnswerRecord, error) {
	if !gjson.ValidBytes(sub.Payload) {
		return nil, fmt.Errorf("submission %s/%s: payload is not valid JSON", sub.Source, sub.SubmissionID)
	}
	root := gjson.ParseBytes(sub.Payload)
	if !root.IsObject() {
		return nil, fmt.Errorf("submission %s/%s: payload is not an object", sub.Source, sub.SubmissionID)
	}

	var records []models.AnswerRecord
	emit := func(questionID, value string) {
		questionID = strings.TrimSpace(questionID)
		if questionID == "" || strings.HasPrefix(questionID, "_") {
			return
		}
		if _, skip := metadataKeys[questionID]; skip {
			return
		}
		records = append(records, models.AnswerRecord{
			QuestionID:   questionID,
			Value:        value,
			Source:       sub.Source,
			SubmittedAt:  sub.SubmittedAt,
			SubmissionID: sub.SubmissionID,
			Grade:        sub.Grade,
		})
	}

	switch {
	case root.Get("answers").IsObject():
		root.Get("answers").ForEach(func(key, entry gjson.Result) bool {
			id := key.String()
			if name := entry.Get("name"); entry.IsObject() && name.Exists() && name.String() != "" {
				id = name.String()
			}
			emit(id, flatten(entry))
			return true
		})
	case root.Get("values").IsObject():
		root.Get("values").ForEach(func(key, value gjson.Result) bool {
			emit(key.String(), flatten(value))
			return true
		})
	default:
		root.ForEach(func(key, value gjson.Result) bool {
			emit(key.String(), flatten(value))
			return true
		})
	}
	return records, nil
}

// NormalizeAll converts a batch of submissions, keeping submission order.
func (n *AnswerNormalizer) NormalizeAll(subs []models.SourceSubmission) ([]models.AnswerRecord, error) {
	var out []models.AnswerRecord
	for _, sub := range subs {
		records, err := n.Normalize(sub)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

// flatten reduces any answer shape to a string. Objects are unwrapped through
// answer, then text, then value. Arrays join their non-empty members with ",".
func flatten(v gjson.Result) string {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return ""
	case v.IsArray():
		var parts []string
		for _, item := range v.Array() {
			if s := strings.TrimSpace(flatten(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	case v.IsObject():
		for _, field := range []string{"answer", "text", "value"} {
			if inner := v.Get(field); inner.Exists() && inner.Type != gjson.Null {
				return flatten(inner)
			}
		}
		return ""
	case v.Type == gjson.Number:
		return v.Raw
	default:
		return v.String()
	}
}
