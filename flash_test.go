package hxselect

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRenderFlashesOOBEmpty(t *testing.T) {
	if got := RenderFlashesOOB(nil); got != "" {
		t.Errorf("RenderFlashesOOB(nil) = %q, want empty string", got)
	}
	if got := RenderFlashesOOB([]Flash{}); got != "" {
		t.Errorf("RenderFlashesOOB([]) = %q, want empty string", got)
	}
}

func TestRenderFlashesOOBSingle(t *testing.T) {
	result := RenderFlashesOOB([]Flash{
		{Level: FlashWarning, Message: "The new order could not be applied"},
	})

	for _, want := range []string{
		`<div id="toasts" hx-swap-oob="beforeend">`,
		`class="toast toast-warning"`,
		`role="status"`,
		`data-auto-dismiss="3000"`,
		"The new order could not be applied",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("RenderFlashesOOB() missing %q in %s", want, result)
		}
	}
}

func TestRenderFlashesOOBMultiple(t *testing.T) {
	result := RenderFlashesOOB([]Flash{
		{Level: FlashSuccess, Message: "First"},
		{Level: FlashError, Message: "Second"},
		{Level: FlashWarning, Message: "Third"},
	})

	if strings.Count(result, `id="toasts"`) != 1 {
		t.Error("Should have exactly one toasts container")
	}
	if strings.Count(result, `class="toast `) != 3 {
		t.Error("Should have three toast elements")
	}
	if strings.Index(result, "First") > strings.Index(result, "Third") {
		t.Error("Flashes should keep their order")
	}
	if strings.Count(result, "<div") != strings.Count(result, "</div>") {
		t.Errorf("Mismatched div tags in %s", result)
	}
}

func TestRenderFlashesOOBEscaping(t *testing.T) {
	result := RenderFlashesOOB([]Flash{
		{Level: "<bad>", Message: "<script>alert('xss')</script>"},
	})

	if strings.Contains(result, "<script>") || strings.Contains(result, "toast-<bad>") {
		t.Errorf("RenderFlashesOOB() should escape level and message: %s", result)
	}
	if !strings.Contains(result, "&lt;script&gt;") {
		t.Errorf("RenderFlashesOOB() missing escaped message: %s", result)
	}
}

func TestFlashesRoundTripThroughParser(t *testing.T) {
	in := []Flash{
		{Level: FlashWarning, Message: `Order "1,2" & more`},
		{Level: FlashInfo, Message: "done"},
	}
	out := parseFlashes("<div>widget</div>" + RenderFlashesOOB(in))
	if len(out) != len(in) {
		t.Fatalf("parseFlashes() = %d flashes, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("flash %d = %+v, want %+v", i, out[i], in[i])
		}
	}
}

func TestToastContainer(t *testing.T) {
	var buf bytes.Buffer
	if err := ToastContainer().Render(context.Background(), &buf); err != nil {
		t.Fatalf("ToastContainer().Render() error = %v", err)
	}
	if !strings.Contains(buf.String(), `id="toasts"`) || !strings.Contains(buf.String(), `aria-live="polite"`) {
		t.Errorf("ToastContainer() = %s", buf.String())
	}
}
