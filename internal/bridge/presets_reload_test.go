package bridge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/proboterror/SMD2GC/hidcore"
	"github.com/proboterror/SMD2GC/internal/hidtransport"
	"github.com/proboterror/SMD2GC/internal/joybussim"
	"github.com/proboterror/SMD2GC/internal/megadrive"
)

func TestWatchPresetsReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	presetsPath := filepath.Join(dir, "presets.yml")
	initial := "presets:\n  - padIndex: 1\n    usagePage: 0x09\n    usage: 1\n    channel: gamepad\n    control: 1\n    interpretation: equal\n    param: 1\n"
	if err := os.WriteFile(presetsPath, []byte(initial), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Config{PresetsFile: presetsPath, ConsoleID: "test", PollInterval: time.Millisecond, ReportSize: 1}
	b := New(zap.NewNop(), cfg, hidtransport.NewFakeBackend(), joybussim.NewFakeConsole(), megadrive.NewFakeReader())
	b.presets.set(hidcore.PresetTable{{PadIndex: 1, UsagePage: hidcore.UsagePageButton, Usage: 1, Channel: hidcore.ChannelGamepad, Control: 1, Interpretation: hidcore.InterpretationEqual, Param: 1}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- b.watchPresets(ctx) }()

	_, startVersion := b.presets.get()

	updated := "presets:\n  - padIndex: 1\n    usagePage: 0x09\n    usage: 2\n    channel: gamepad\n    control: 2\n    interpretation: equal\n    param: 1\n"
	time.Sleep(20 * time.Millisecond)
	if err := os.WriteFile(presetsPath, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		table, version := b.presets.get()
		if version != startVersion {
			if len(table) != 1 || table[0].Usage != 2 {
				t.Fatalf("reloaded table = %+v, want single entry with usage=2", table)
			}
			cancel()
			<-done
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	t.Fatal("watchPresets did not pick up the file write within the deadline")
}
