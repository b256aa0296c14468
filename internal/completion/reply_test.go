package completion

import (
	"errors"
	"testing"
)

func TestDecodeKernelReply(t *testing.T) {
	payload := []byte(`{
		"status": "ok",
		"matches": ["os.path", "os.pardir"],
		"cursor_start": 0,
		"cursor_end": 5,
		"metadata": {
			"_jupyter_types_experimental": [
				{"start": 0, "end": 5, "text": "os.path", "type": "module"},
				{"start": 0, "end": 5, "text": "os.pardir", "type": "statement"}
			]
		}
	}`)

	rep, err := DecodeKernelReply(payload)
	if err != nil {
		t.Fatalf("DecodeKernelReply: %v", err)
	}
	if rep.Status != "ok" {
		t.Errorf("Status = %q, want ok", rep.Status)
	}
	if len(rep.Matches) != 2 || rep.Matches[0] != "os.path" {
		t.Errorf("Matches = %v", rep.Matches)
	}
	if rep.CursorStart != 0 || rep.CursorEnd != 5 {
		t.Errorf("cursor range = [%d, %d), want [0, 5)", rep.CursorStart, rep.CursorEnd)
	}
	if len(rep.Types) != 2 {
		t.Fatalf("Types = %v, want 2 entries", rep.Types)
	}
	if rep.Types[0].Text != "os.path" || rep.Types[0].Type != "module" {
		t.Errorf("Types[0] = %+v", rep.Types[0])
	}
}

func TestDecodeKernelReplyWithoutMetadata(t *testing.T) {
	rep, err := DecodeKernelReply([]byte(`{"status": "ok", "matches": ["abs"], "cursor_start": 0, "cursor_end": 2}`))
	if err != nil {
		t.Fatalf("DecodeKernelReply: %v", err)
	}
	if len(rep.Matches) != 1 || len(rep.Types) != 0 {
		t.Errorf("reply = %+v", rep)
	}
}

func TestDecodeKernelReplyInvalid(t *testing.T) {
	if _, err := DecodeKernelReply([]byte(`{"status":`)); !errors.Is(err, ErrInvalidReply) {
		t.Errorf("err = %v, want ErrInvalidReply", err)
	}
}

func TestKindFromJupyterType(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"module", KindModule},
		{"function", KindFunction},
		{"keyword", KindKeyword},
		{"instance", KindInstance},
		{"class", KindClass},
		{"magic", KindMagic},
		{"path", KindFile},
		{"directory", KindFolder},
		{"something-new", KindUnknown},
		{"", KindUnknown},
	}
	for _, tt := range tests {
		if got := kindFromJupyterType(tt.in); got != tt.want {
			t.Errorf("kindFromJupyterType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
