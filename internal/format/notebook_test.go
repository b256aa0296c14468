package format

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"nbweave/internal/document"
)

const sampleNotebook = `{
    "cells": [
        {
            "cell_type": "code",
            "execution_count": 1,
            "metadata": {},
            "outputs": [
                {
                    "name": "stdout",
                    "output_type": "stream",
                    "text": ["hi\n"]
                }
            ],
            "source": ["print('hi')"]
        },
        {
            "cell_type": "markdown",
            "metadata": {},
            "source": ["# Notes"]
        }
    ],
    "metadata": {
        "kernelspec": {
            "display_name": "Python 3",
            "language": "python",
            "name": "python3"
        },
        "language_info": {
            "name": "python",
            "version": "3.9.1"
        }
    },
    "nbformat": 4,
    "nbformat_minor": 2
}`

func TestDeserializeSample(t *testing.T) {
	codec := NewCodec()
	doc, err := codec.Deserialize("file:///nb.ipynb", []byte(sampleNotebook))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if doc.Language() != "python" {
		t.Errorf("language = %q", doc.Language())
	}
	if major, minor := doc.FormatVersion(); major != 4 || minor != 2 {
		t.Errorf("format = %d.%d", major, minor)
	}
	if doc.Indent() != "    " {
		t.Errorf("indent = %q", doc.Indent())
	}
	if doc.CellCount() != 2 {
		t.Fatalf("cells = %d", doc.CellCount())
	}

	code, _ := doc.CellAt(0)
	if code.Kind != document.CellKindCode || code.Text != "print('hi')" {
		t.Errorf("cell 0 = %v %q", code.Kind, code.Text)
	}
	if code.ExecutionOrder == nil || *code.ExecutionOrder != 1 {
		t.Errorf("execution order = %v", code.ExecutionOrder)
	}
	if len(code.Outputs) != 1 || code.Outputs[0].Items[0].Mime != MimeStdout {
		t.Errorf("outputs = %+v", code.Outputs)
	}

	md, _ := doc.CellAt(1)
	if md.Kind != document.CellKindMarkup || md.Text != "# Notes" {
		t.Errorf("cell 1 = %v %q", md.Kind, md.Text)
	}
}

func TestRoundTripLaw(t *testing.T) {
	codec := NewCodec()
	d1, err := codec.Deserialize("file:///nb.ipynb", []byte(sampleNotebook))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	s1, err := codec.Serialize(d1)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	d2, err := codec.Deserialize("file:///nb.ipynb", s1)
	if err != nil {
		t.Fatalf("Deserialize(serialized): %v", err)
	}
	s2, err := codec.Serialize(d2)
	if err != nil {
		t.Fatalf("Serialize(round): %v", err)
	}
	if !bytes.Equal(s1, s2) {
		t.Errorf("round trip not stable:\nfirst:  %s\nsecond: %s", s1, s2)
	}

	// Detected indentation is reused on save.
	if got := DetectIndent(s1); got != "    " {
		t.Errorf("saved indent = %q, want 4 spaces", got)
	}
	// Preserved top-level keys plus substituted defaults.
	if gjson.GetBytes(s1, "nbformat").Int() != 4 || gjson.GetBytes(s1, "nbformat_minor").Int() != 2 {
		t.Errorf("format version lost: %s", s1)
	}
	if gjson.GetBytes(s1, "metadata.orig_nbformat").Int() != 4 {
		t.Errorf("orig_nbformat default missing: %s", gjson.GetBytes(s1, "metadata").Raw)
	}
	if gjson.GetBytes(s1, "metadata.language_info.version").String() != "3.9.1" {
		t.Errorf("language_info not preserved: %s", s1)
	}
	if gjson.GetBytes(s1, "metadata.kernelspec.name").String() != "python3" {
		t.Errorf("kernelspec not preserved: %s", s1)
	}
}

func TestDeserializeEmptyCellsSynthesizesOne(t *testing.T) {
	codec := NewCodec()
	doc, err := codec.Deserialize("file:///nb.ipynb", []byte(`{"cells": [], "metadata": {}, "nbformat": 4, "nbformat_minor": 2}`))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if doc.CellCount() != 1 {
		t.Fatalf("cells = %d, want 1", doc.CellCount())
	}
	cell, _ := doc.CellAt(0)
	if cell.Kind != document.CellKindCode || cell.Text != "" {
		t.Errorf("synthesized cell = %v %q", cell.Kind, cell.Text)
	}
}

func TestDeserializeEmptyInput(t *testing.T) {
	codec := NewCodec(WithPreferredLanguage("julia"))
	doc, err := codec.Deserialize("file:///new.ipynb", []byte("  \n"))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if doc.CellCount() != 1 {
		t.Errorf("cells = %d", doc.CellCount())
	}
	if doc.Language() != "julia" {
		t.Errorf("language = %q", doc.Language())
	}
	if major, minor := doc.FormatVersion(); major != DefaultNBFormat || minor != DefaultNBFormatMinor {
		t.Errorf("format = %d.%d", major, minor)
	}
}

func TestDeserializeErrors(t *testing.T) {
	codec := NewCodec()

	if _, err := codec.Deserialize("u", []byte("{(")); !errors.Is(err, ErrInvalidNotebook) {
		t.Errorf("malformed = %v, want ErrInvalidNotebook", err)
	}
	if _, err := codec.Deserialize("u", []byte("[1,2]")); !errors.Is(err, ErrInvalidNotebook) {
		t.Errorf("non-object = %v, want ErrInvalidNotebook", err)
	}
	if _, err := codec.Deserialize("u", []byte(`{"nbformat": 3, "cells": []}`)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("nbformat 3 = %v, want ErrUnsupportedFormat", err)
	}

	var fe *FormatError
	_, err := codec.Deserialize("u", []byte(`{"cells": [{"cell_type": "mystery", "metadata": {}, "source": []}], "nbformat": 4}`))
	if !errors.As(err, &fe) || !errors.Is(err, ErrUnknownCellType) {
		t.Errorf("unknown cell type = %v", err)
	}
}

func TestDeserializeLanguageDefault(t *testing.T) {
	codec := NewCodec(WithPreferredLanguage("julia"))
	doc, err := codec.Deserialize("u", []byte(`{"cells": [{"cell_type": "code", "metadata": {}, "source": []}], "metadata": {}, "nbformat": 4, "nbformat_minor": 2}`))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if doc.Language() != "julia" {
		t.Errorf("language = %q, want julia", doc.Language())
	}
	cell, _ := doc.CellAt(0)
	if cell.Language != "julia" {
		t.Errorf("cell language = %q", cell.Language)
	}
}

func TestSerializeTransientPruned(t *testing.T) {
	codec := NewCodec()
	input := `{
  "cells": [
    {
      "cell_type": "code",
      "execution_count": null,
      "metadata": {},
      "outputs": [
        {
          "output_type": "display_data",
          "data": {"text/plain": ["x"]},
          "metadata": {},
          "transient": {"display_id": "abc"}
        }
      ],
      "source": []
    }
  ],
  "metadata": {},
  "nbformat": 4,
  "nbformat_minor": 2
}`
	doc, err := codec.Deserialize("u", []byte(input))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	// The transient bag survives the cell codec (the session layer needs
	// display ids) but never reaches disk.
	cell, _ := doc.CellAt(0)
	if _, ok := cell.Outputs[0].Metadata[document.MetaTransient]; !ok {
		t.Fatal("transient bag dropped by the cell codec")
	}

	out, err := codec.Serialize(doc)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if strings.Contains(string(out), "transient") {
		t.Errorf("transient persisted: %s", out)
	}
	if strings.Contains(string(out), "display_id") {
		t.Errorf("display_id persisted: %s", out)
	}
}

func TestSerializeCellIDs(t *testing.T) {
	codec := NewCodec()

	t.Run("pruned below 4.5", func(t *testing.T) {
		doc, err := codec.Deserialize("u", []byte(sampleNotebook))
		if err != nil {
			t.Fatalf("Deserialize: %v", err)
		}
		out, err := codec.Serialize(doc)
		if err != nil {
			t.Fatalf("Serialize: %v", err)
		}
		if gjson.GetBytes(out, "cells.0.id").Exists() {
			t.Errorf("generated id persisted on 4.2 notebook: %s", out)
		}
	})

	t.Run("kept at 4.5", func(t *testing.T) {
		input := `{"cells": [{"cell_type": "code", "id": "stable-id", "metadata": {}, "execution_count": null, "outputs": [], "source": []}], "metadata": {}, "nbformat": 4, "nbformat_minor": 5}`
		doc, err := codec.Deserialize("u", []byte(input))
		if err != nil {
			t.Fatalf("Deserialize: %v", err)
		}
		cell, _ := doc.CellAt(0)
		if cell.ID != "stable-id" {
			t.Fatalf("cell ID = %q", cell.ID)
		}
		out, err := codec.Serialize(doc)
		if err != nil {
			t.Fatalf("Serialize: %v", err)
		}
		if gjson.GetBytes(out, "cells.0.id").String() != "stable-id" {
			t.Errorf("id lost on 4.5 notebook: %s", out)
		}
	})
}

func TestSerializeDefaults(t *testing.T) {
	codec := NewCodec()
	doc := document.New("file:///new.ipynb",
		document.WithLanguage("python"),
		document.WithCells([]*document.Cell{document.NewCodeCell("x = 1", "python")}),
	)
	out, err := codec.Serialize(doc)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if gjson.GetBytes(out, "nbformat").Int() != 4 {
		t.Errorf("nbformat default missing")
	}
	if gjson.GetBytes(out, "nbformat_minor").Int() != 2 {
		t.Errorf("nbformat_minor default missing")
	}
	if gjson.GetBytes(out, "metadata.orig_nbformat").Int() != 4 {
		t.Errorf("orig_nbformat default missing")
	}
	if gjson.GetBytes(out, "metadata.language_info.name").String() != "python" {
		t.Errorf("language_info.name default missing: %s", out)
	}
	// No detected indentation: the single-space default applies.
	if got := DetectIndent(out); got != " " {
		t.Errorf("indent = %q, want single space", got)
	}
}

func TestDetectIndent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"four spaces", "{\n    \"a\": 1\n}", "    "},
		{"two spaces", "{\n  \"a\": 1\n}", "  "},
		{"tab", "{\n\t\"a\": 1\n}", "\t"},
		{"compact", `{"a":1}`, ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectIndent([]byte(tt.in)); got != tt.want {
				t.Errorf("DetectIndent = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSniff(t *testing.T) {
	p, err := Sniff([]byte(sampleNotebook))
	if err != nil {
		t.Fatalf("Sniff: %v", err)
	}
	if p.NBFormat != 4 || p.NBFormatMinor != 2 {
		t.Errorf("format = %d.%d", p.NBFormat, p.NBFormatMinor)
	}
	if p.CellCount != 2 {
		t.Errorf("cells = %d", p.CellCount)
	}
	if p.Language != "python" {
		t.Errorf("language = %q", p.Language)
	}
	if p.KernelSpecName != "python3" || p.KernelDisplayName != "Python 3" {
		t.Errorf("kernelspec = %q / %q", p.KernelSpecName, p.KernelDisplayName)
	}

	if _, err := Sniff([]byte("not json")); err == nil {
		t.Error("invalid bytes accepted")
	}
}

func TestSniffLanguageFallsBackToKernelSpec(t *testing.T) {
	p, err := Sniff([]byte(`{"metadata": {"kernelspec": {"language": "r", "name": "ir"}}, "nbformat": 4}`))
	if err != nil {
		t.Fatalf("Sniff: %v", err)
	}
	if p.Language != "r" {
		t.Errorf("language = %q, want r", p.Language)
	}
}
