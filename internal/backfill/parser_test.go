package backfill

import (
	"testing"
	"time"
)

func TestParse_Text(t *testing.T) {
	data := []byte("Interviewer: How big is the team?\r\n\r\nDana: Twelve people, all remote.\n\n\n(laughter)\n\n")
	msgs, err := Parse("call.txt", data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].Role != "Interviewer" || msgs[0].Text != "How big is the team?" {
		t.Errorf("msg 0 = %+v", msgs[0])
	}
	if msgs[1].Role != "Dana" || msgs[1].Text != "Twelve people, all remote." {
		t.Errorf("msg 1 = %+v", msgs[1])
	}
	if msgs[2].Role != "" || msgs[2].Text != "(laughter)" {
		t.Errorf("msg 2 = %+v", msgs[2])
	}
}

func TestParse_JSONL(t *testing.T) {
	data := []byte(`{"role":"user","text":"We closed our seed round.","timestamp":"2026-02-11T10:00:00Z"}
not json at all
{"speaker":"Dana","content":"Twelve people."}
{"role":"assistant","text":"   "}

{"role":"user","text":"Hiring is hard.","timestamp":"yesterday"}
`)
	msgs, err := Parse("export.JSONL", data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d: %+v", len(msgs), msgs)
	}
	want := time.Date(2026, 2, 11, 10, 0, 0, 0, time.UTC)
	if !msgs[0].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", msgs[0].Timestamp, want)
	}
	if msgs[1].Role != "Dana" || msgs[1].Text != "Twelve people." {
		t.Errorf("msg 1 = %+v", msgs[1])
	}
	if !msgs[2].Timestamp.IsZero() {
		t.Errorf("unparseable timestamp should be zero, got %v", msgs[2].Timestamp)
	}
}
