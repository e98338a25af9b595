package app

import (
	"strings"
	"testing"
)

func TestAnswerFromRawStructured(t *testing.T) {
	raw := []byte(`{
		"traceId": "t-1",
		"jurisdiction": "Ontario",
		"short_answer": ["Usually once every 12 months."],
		"what_the_law_says": [
			{"act": "Residential Tenancies Act, 2006", "section": "119", "url": "https://example.com/rta", "quote": "..."}
		],
		"caveats": ["Exemptions apply to newer units."],
		"sources": ["https://example.com/rta"],
		"followups": ["What is the guideline for this year?"],
		"confidence": "high"
	}`)

	ans := answerFromRaw("Can my landlord raise the rent?", raw)
	if ans.TraceID != "t-1" {
		t.Fatalf("trace id: %q", ans.TraceID)
	}
	if ans.Question != "Can my landlord raise the rent?" {
		t.Fatalf("question: %q", ans.Question)
	}
	if len(ans.ShortAnswer) != 1 || ans.ShortAnswer[0] != "Usually once every 12 months." {
		t.Fatalf("short answer: %+v", ans.ShortAnswer)
	}
	if len(ans.WhatTheLawSays) != 1 || ans.WhatTheLawSays[0].Act != "Residential Tenancies Act, 2006" {
		t.Fatalf("citations: %+v", ans.WhatTheLawSays)
	}
	if ans.Confidence != "high" {
		t.Fatalf("confidence: %q", ans.Confidence)
	}
}

func TestAnswerFromRawPlainString(t *testing.T) {
	ans := answerFromRaw("q", []byte(`{"answer": "It depends on your lease."}`))
	if len(ans.ShortAnswer) != 1 || ans.ShortAnswer[0] != "It depends on your lease." {
		t.Fatalf("short answer: %+v", ans.ShortAnswer)
	}
	if ans.Confidence != "low" {
		t.Fatalf("expected low confidence for plain string, got %q", ans.Confidence)
	}
	if !strings.HasPrefix(ans.TraceID, "cli-") {
		t.Fatalf("expected client trace id, got %q", ans.TraceID)
	}
}

func TestAnswerFromRawNestedObject(t *testing.T) {
	raw := []byte(`{"answer": {"short_answer": ["Yes, with 60 days notice."], "confidence": "medium"}}`)
	ans := answerFromRaw("q", raw)
	if len(ans.ShortAnswer) != 1 || ans.ShortAnswer[0] != "Yes, with 60 days notice." {
		t.Fatalf("short answer: %+v", ans.ShortAnswer)
	}
	if ans.Confidence != "medium" {
		t.Fatalf("confidence: %q", ans.Confidence)
	}
}

func TestAnswerFromRawGarbage(t *testing.T) {
	ans := answerFromRaw("q", []byte(`not even json`))
	if ans == nil {
		t.Fatal("expected an answer for garbage input")
	}
	if len(ans.ShortAnswer) != 1 || ans.ShortAnswer[0] != "No quick summary was returned." {
		t.Fatalf("short answer: %+v", ans.ShortAnswer)
	}
	if ans.Confidence != "low" {
		t.Fatalf("confidence: %q", ans.Confidence)
	}
	if !strings.HasPrefix(ans.TraceID, "cli-") {
		t.Fatalf("trace id: %q", ans.TraceID)
	}
}

func TestAnswerFromRawDefaults(t *testing.T) {
	raw := []byte(`{
		"short_answer": ["ok"],
		"what_the_law_says": [{"section": "5"}],
		"sources": ["https://a.example", {"title": "Guide", "url": "https://b.example"}, {"title": "no url"}],
		"confidence": "certain"
	}`)
	ans := answerFromRaw("q", raw)
	if ans.WhatTheLawSays[0].Act != "Unknown Act" {
		t.Fatalf("expected act fallback, got %q", ans.WhatTheLawSays[0].Act)
	}
	if len(ans.Sources) != 2 || ans.Sources[0] != "https://a.example" || ans.Sources[1] != "https://b.example" {
		t.Fatalf("sources: %+v", ans.Sources)
	}
	if ans.Confidence != "low" {
		t.Fatalf("expected unknown confidence to collapse to low, got %q", ans.Confidence)
	}
	if ans.Jurisdiction != "Ontario" {
		t.Fatalf("jurisdiction fallback: %q", ans.Jurisdiction)
	}
}
