package limiter

import "testing"

func TestAllowSingleSlotPerOutput(t *testing.T) {
	g := &Guard{sem: map[string]chan struct{}{}}

	release, ok := g.Allow("/out/a.pdf")
	if !ok {
		t.Fatal("first Allow refused")
	}
	if _, ok := g.Allow("/out/a.pdf"); ok {
		t.Error("second Allow for same output granted")
	}
	// different output path has its own slot
	release2, ok := g.Allow("/out/b.pdf")
	if !ok {
		t.Error("Allow for different output refused")
	}
	release2()

	release()
	release3, ok := g.Allow("/out/a.pdf")
	if !ok {
		t.Error("Allow after release refused")
	}
	release3()
}

func TestAllowCaseInsensitivePaths(t *testing.T) {
	g := &Guard{sem: map[string]chan struct{}{}}

	release, ok := g.Allow("/Out/Report.PDF")
	if !ok {
		t.Fatal("first Allow refused")
	}
	defer release()
	if _, ok := g.Allow("/out/report.pdf"); ok {
		t.Error("differently-cased path granted a second slot")
	}
}
