package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseStage(t *testing.T) {
	cases := map[string]Stage{
		"raw_text": RawText, "raw": RawText,
		"pp_text": PpText, "pp": PpText,
		"cst": Cst, "ast": Ast,
	}
	for in, want := range cases {
		got, err := ParseStage(in)
		if err != nil || got != want {
			t.Fatalf("ParseStage(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseStage("elab"); err == nil {
		t.Fatalf("expected error for unknown stage")
	}
}

func TestRequestWireShape(t *testing.T) {
	req := NewRequest(PpText, "a.sv", map[string]string{"text": "x"})
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"type":"CheckFileStage","stage":"pp_text","path":"a.sv","payload":{"text":"x"}}`
	if string(data) != want {
		t.Fatalf("request = %s", data)
	}
}

func TestResponseKeepsUnknownStage(t *testing.T) {
	var resp Response
	raw := `{"type":"ViolationsStage","stage":"bogus","violations":[{"rule_id":"r","severity":"info","message":"m","location":{"line":2,"col":3,"end_line":2,"end_col":4}}]}`
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Stage != "bogus" || len(resp.Violations) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Violations[0].Location.Col != 3 {
		t.Fatalf("location = %+v", resp.Violations[0].Location)
	}
}

func TestParseSeverity(t *testing.T) {
	for _, s := range []string{"error", "warning", "info"} {
		if _, err := ParseSeverity(s); err != nil {
			t.Fatalf("ParseSeverity(%q): %v", s, err)
		}
	}
	if _, err := ParseSeverity("fatal"); err == nil {
		t.Fatalf("expected error")
	}
}
