package msgjson

import "testing"

func TestHeadersScanValue(t *testing.T) {
	in := Headers{"content-type": "text/plain", "x-thread": "42"}
	v, err := in.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var out Headers
	if err := out.Scan(v); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(out) != 2 || out["x-thread"] != "42" {
		t.Fatalf("unexpected headers: %v", out)
	}
}

func TestHeadersScanEdgeCases(t *testing.T) {
	var h Headers
	if err := h.Scan(nil); err != nil || h == nil || len(h) != 0 {
		t.Fatalf("nil scan: %v %v", h, err)
	}
	if err := h.Scan([]byte("")); err != nil || len(h) != 0 {
		t.Fatalf("empty scan: %v %v", h, err)
	}
	if err := h.Scan(42); err == nil {
		t.Fatalf("expected error for int scan")
	}
	if err := h.Scan("{not json"); err == nil {
		t.Fatalf("expected error for invalid json")
	}

	var nilHeaders Headers
	b, err := nilHeaders.MarshalJSON()
	if err != nil || string(b) != "{}" {
		t.Fatalf("nil marshal: %s %v", b, err)
	}
}
