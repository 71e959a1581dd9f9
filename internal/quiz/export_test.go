package quiz

import (
	"testing"
	"time"
)

func TestExportRoundTrip(t *testing.T) {
	s := NewSession("s1", ModeExam, 90, true)
	qs := []Question{
		multiQ(0, 2),
		tfQ(true, false, true, false, true),
	}
	s.LoadQuestions(qs)
	s.Title = "UE1 Anatomie"
	_ = s.SetAnswer(0, Answer{Kind: KindMulti, Indices: []int{0, 2}})
	partial := fullTruth(true, false, true, false, false)
	partial[4] = nil
	_ = s.SetAnswer(1, Answer{Kind: KindTF, Truth: partial})
	_ = s.Validate(0, false)
	_ = s.ToggleFlag(1)
	m := ComputeFinalMetrics(s)

	data, err := ExportSession(s, &m, time.Unix(20_000, 0))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	back, err := ParseExport(data)
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}

	if back.SessionID != "s1" || back.Title != s.Title || back.Mode != ModeExam {
		t.Fatalf("header fields lost: %+v", back)
	}
	if len(back.Questions) != 2 || back.Questions[1].Kind != KindTF {
		t.Fatalf("questions lost: %+v", back.Questions)
	}
	if got := back.Answers[0].Indices; len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Fatalf("multi answer lost: %v", got)
	}
	tf := back.Answers[1].Truth
	if len(tf) != 5 || tf[4] != nil || tf[1] == nil || *tf[1] != false {
		t.Fatalf("tf nullable slots lost: %v", tf)
	}
	if back.Validated[0] != s.Validated[0] {
		t.Fatalf("validated lost: %+v vs %+v", back.Validated[0], s.Validated[0])
	}
	if len(back.Flagged) != 1 || back.Flagged[0] != 1 {
		t.Fatalf("flag set lost: %v", back.Flagged)
	}
	if back.Metrics == nil || *back.Metrics != m {
		t.Fatalf("metrics lost: %+v", back.Metrics)
	}
}
