package app

import (
	"encoding/json"
	"fmt"
	"time"
)

// rawAnswer matches every answer shape the backend has shipped: structured
// fields at the top level, a plain string under "answer", or a structured
// object under "answer".
type rawAnswer struct {
	TraceID        string            `json:"traceId"`
	Jurisdiction   string            `json:"jurisdiction"`
	ShortAnswer    []string          `json:"short_answer"`
	WhatTheLawSays []rawCitation     `json:"what_the_law_says"`
	Caveats        []string          `json:"caveats"`
	Sources        []json.RawMessage `json:"sources"`
	Followups      []string          `json:"followups"`
	Confidence     string            `json:"confidence"`
	Answer         json.RawMessage   `json:"answer"`
}

type rawCitation struct {
	Act     string `json:"act"`
	Section string `json:"section"`
	URL     string `json:"url"`
	Quote   string `json:"quote"`
}

// answerFromRaw maps an /ask response body onto a LegalAnswer. It never
// fails: unparseable payloads degrade to a low-confidence answer with a
// client-generated trace id, so the transcript always gets something to show.
func answerFromRaw(question string, body []byte) *LegalAnswer {
	var raw rawAnswer
	_ = json.Unmarshal(body, &raw)

	traceID := raw.TraceID
	if traceID == "" {
		traceID = fmt.Sprintf("cli-%d", time.Now().UnixMilli())
	}

	// Structured fields at the top level win.
	if len(raw.ShortAnswer) > 0 || len(raw.WhatTheLawSays) > 0 {
		return buildAnswer(question, traceID, raw)
	}

	// "answer" as a plain string.
	var text string
	if len(raw.Answer) > 0 && json.Unmarshal(raw.Answer, &text) == nil {
		return &LegalAnswer{
			TraceID:      traceID,
			Question:     question,
			Jurisdiction: defaultJurisdiction(raw.Jurisdiction),
			ShortAnswer:  []string{text},
			Confidence:   "low",
		}
	}

	// "answer" as a nested structured object.
	var nested rawAnswer
	if len(raw.Answer) > 0 {
		_ = json.Unmarshal(raw.Answer, &nested)
	}
	nested.TraceID = traceID
	if nested.Jurisdiction == "" {
		nested.Jurisdiction = raw.Jurisdiction
	}
	return buildAnswer(question, traceID, nested)
}

func buildAnswer(question, traceID string, raw rawAnswer) *LegalAnswer {
	ans := &LegalAnswer{
		TraceID:      traceID,
		Question:     question,
		Jurisdiction: defaultJurisdiction(raw.Jurisdiction),
		ShortAnswer:  raw.ShortAnswer,
		Caveats:      raw.Caveats,
		Followups:    raw.Followups,
		Confidence:   normalizeConfidence(raw.Confidence),
	}
	if len(ans.ShortAnswer) == 0 {
		ans.ShortAnswer = []string{"No quick summary was returned."}
	}
	for _, c := range raw.WhatTheLawSays {
		act := c.Act
		if act == "" {
			act = "Unknown Act"
		}
		ans.WhatTheLawSays = append(ans.WhatTheLawSays, LawCitation{
			Act:     act,
			Section: c.Section,
			URL:     c.URL,
			Quote:   c.Quote,
		})
	}
	// Sources arrive as plain URL strings or as {title, url} objects.
	for _, s := range raw.Sources {
		var u string
		if json.Unmarshal(s, &u) == nil && u != "" {
			ans.Sources = append(ans.Sources, u)
			continue
		}
		var obj struct {
			URL string `json:"url"`
		}
		if json.Unmarshal(s, &obj) == nil && obj.URL != "" {
			ans.Sources = append(ans.Sources, obj.URL)
		}
	}
	return ans
}

func normalizeConfidence(c string) string {
	switch c {
	case "high", "medium", "low":
		return c
	default:
		return "low"
	}
}

func defaultJurisdiction(j string) string {
	if j == "" {
		return "Ontario"
	}
	return j
}
