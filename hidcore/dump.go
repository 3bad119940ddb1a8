package hidcore

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// Dump writes a human-readable listing of every report and segment
// produced by the last successful ParseDescriptor call, for use by the
// parse-descriptor --raw CLI flag. Grounded on DumpHID in
// original_source/src/hid_parser.cpp. Byte-size summaries are rendered
// with humanize.Bytes/humanize.Comma so large arenas and report
// lengths read the way the CLI's help text documents them ("64 bits (8 B)").
func (p *Parser) Dump(w io.Writer) error {
	for i := range p.reports {
		rep := &p.reports[i]
		if _, err := fmt.Fprintf(w, "report[%d] id=%#02x appUsagePage=%#04x appUsage=%#04x length=%d bits (%s)\n",
			i, rep.ReportID, rep.AppUsagePage, rep.AppUsage, rep.Length, humanize.Bytes(uint64((rep.Length+7)/8))); err != nil {
			return err
		}
		for _, segIdx := range rep.segments {
			seg := &p.segments[segIdx]
			if _, err := fmt.Fprintf(w, "  segment[%d] start=%d size=%d count=%d range=[%d,%d] -> %s.%d (%s, param=%#04x)\n",
				segIdx, seg.StartBit, seg.ReportSize, seg.ReportCount,
				seg.LogicalMinimum, seg.LogicalMaximum,
				seg.OutputChannel, seg.OutputControl, seg.Interpretation, seg.InputParam); err != nil {
				return err
			}
		}
	}
	used, cap := p.arena.Used(), p.arena.Cap()
	_, err := fmt.Fprintf(w, "arena: %s / %s used (%s allocations)\n",
		humanize.Bytes(uint64(used)), humanize.Bytes(uint64(cap)), humanize.Comma(int64(len(p.segments)+len(p.reports))))
	return err
}

// ReportCount returns the number of reports produced by the last
// successful ParseDescriptor call.
func (p *Parser) ReportCount() int {
	return len(p.reports)
}

// Reports returns a copy of the reports produced by the last
// successful ParseDescriptor call, for callers (the parse-descriptor
// CLI command) that want to inspect the graph as data rather than
// text. The returned Report.segments index list is not exposed; use
// Segments alongside SegmentsForReport.
func (p *Parser) Reports() []Report {
	out := make([]Report, len(p.reports))
	copy(out, p.reports)
	return out
}

// SegmentsForReport returns the Segments belonging to report index i,
// in declaration order.
func (p *Parser) SegmentsForReport(i int) []Segment {
	rep := &p.reports[i]
	out := make([]Segment, len(rep.segments))
	for j, segIdx := range rep.segments {
		out[j] = p.segments[segIdx]
	}
	return out
}

// ArenaUsage reports the bump allocator's current usage and capacity,
// for diagnostics and resource-budget tests.
func (p *Parser) ArenaUsage() (used, capacity int) {
	return p.arena.Used(), p.arena.Cap()
}

// JoystickCount returns the number of gamepad/joystick Application
// collections ParseDescriptor assigned a joystick index to, so a
// caller can detect when a reconnected device's descriptor now
// exposes more or fewer pads than it did last time.
func (p *Parser) JoystickCount() uint8 {
	return p.joystickIndex
}
