package hidcore

import "testing"

func TestReportsAndSegmentsForReport(t *testing.T) {
	p := NewParser(0, nil)
	desc := gamepadButtonsDescriptor()
	presets := PresetTable{
		{PadIndex: 1, UsagePage: pageButton, Usage: 2, Channel: ChannelGamepad, Control: 0, Interpretation: InterpretationEqual, Param: 1},
	}
	if err := p.ParseDescriptor(desc, presets); err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}

	reports := p.Reports()
	if len(reports) != p.ReportCount() {
		t.Fatalf("len(Reports()) = %d, want %d", len(reports), p.ReportCount())
	}
	if len(reports) == 0 {
		t.Fatal("Reports() returned none")
	}

	segs := p.SegmentsForReport(0)
	if len(segs) == 0 {
		t.Fatal("SegmentsForReport(0) returned none")
	}
}
