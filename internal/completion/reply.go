package completion

import (
	"errors"

	"github.com/tidwall/gjson"
)

// ErrInvalidReply indicates a completion reply payload that is not valid
// JSON.
var ErrInvalidReply = errors.New("invalid completion reply payload")

// KernelReply mirrors the content of a Jupyter complete_reply message:
// the match labels, the source span they replace, and the optional
// per-match type metadata newer kernels attach.
type KernelReply struct {
	Matches     []string
	CursorStart int
	CursorEnd   int
	Status      string
	Types       []ExperimentalType
}

// ExperimentalType is one entry of metadata._jupyter_types_experimental.
type ExperimentalType struct {
	Start int
	End   int
	Text  string
	Type  string
}

// DecodeKernelReply parses a complete_reply content payload.
func DecodeKernelReply(data []byte) (*KernelReply, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidReply
	}
	root := gjson.ParseBytes(data)

	rep := &KernelReply{
		CursorStart: int(root.Get("cursor_start").Int()),
		CursorEnd:   int(root.Get("cursor_end").Int()),
		Status:      root.Get("status").String(),
	}
	for _, m := range root.Get("matches").Array() {
		rep.Matches = append(rep.Matches, m.String())
	}
	for _, t := range root.Get("metadata._jupyter_types_experimental").Array() {
		rep.Types = append(rep.Types, ExperimentalType{
			Start: int(t.Get("start").Int()),
			End:   int(t.Get("end").Int()),
			Text:  t.Get("text").String(),
			Type:  t.Get("type").String(),
		})
	}
	return rep, nil
}
