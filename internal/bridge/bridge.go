// Package bridge multiplexes a Mega Drive GPIO source and any number
// of USB HID gamepad/keyboard/mouse sources onto one JoyBus console,
// the way original_source/src/main.cpp wires getSegaMegaDriveReport
// into Joybus::enterMode, except here a USB HID source can also drive
// (or override) the GameCube report via hidcore's preset-driven
// decoding.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/proboterror/SMD2GC/hidcore"
	"github.com/proboterror/SMD2GC/internal/hidtransport"
	"github.com/proboterror/SMD2GC/internal/joybussim"
	"github.com/proboterror/SMD2GC/internal/megadrive"
	"github.com/proboterror/SMD2GC/internal/presetstore"
	"github.com/proboterror/SMD2GC/pkg/bus"
)

// hotplugKey is the single bus key every hotplug event is published and
// subscribed under; Run subscribes globally so the key only matters for
// CreatePublisher's signature.
const hotplugKey = "devices"

// Config is the bridge's runtime configuration, loaded from
// /etc/smd2gc/bridge.yml in the CLI's default wiring.
type Config struct {
	PresetsFile      string        `json:"presetsFile"`
	DeviceConfigFile string        `json:"deviceConfigFile"`
	DataDir          string        `json:"dataDir"`
	ConsoleID        string        `json:"consoleId"`
	ArenaSize        int           `json:"arenaSize"`
	PollInterval     time.Duration `json:"pollInterval"`
	ReportSize       int           `json:"reportSize"`
}

// Validate reports every configuration problem at once via multierr,
// matching the validate-then-run style of pkg/agent.Config's callers.
func (c Config) Validate() error {
	var errs error
	if c.PresetsFile == "" {
		errs = multierr.Append(errs, fmt.Errorf("bridge: presetsFile must be set"))
	}
	if c.ConsoleID == "" {
		errs = multierr.Append(errs, fmt.Errorf("bridge: consoleId must be set"))
	}
	if c.PollInterval <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("bridge: pollInterval must be positive"))
	}
	if c.ReportSize <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("bridge: reportSize must be positive"))
	}
	return errs
}

// Bridge owns the Snapshot every source publishes into and every
// console poll reads from.
type Bridge struct {
	log      *zap.Logger
	config   Config
	snapshot *Snapshot
	presets  *presetWatcher
	devices  *presetstore.DeviceConfig
	devStore *presetstore.DeviceStore

	backend hidtransport.Backend
	console joybussim.Console
	mdInput megadrive.Reader
}

func New(log *zap.Logger, config Config, backend hidtransport.Backend, console joybussim.Console, mdInput megadrive.Reader) *Bridge {
	return &Bridge{
		log:      log,
		config:   config,
		snapshot: NewSnapshot(),
		presets:  &presetWatcher{},
		backend:  backend,
		console:  console,
		mdInput:  mdInput,
	}
}

// presetWatcher holds the currently active preset table behind a
// version counter so a USB HID source's read loop can cheaply notice
// a presets.yml reload (see watchPresets) and re-run ParseDescriptor
// with the new table for the descriptor it already has in hand,
// instead of requiring the caller to unplug/replug the device.
type presetWatcher struct {
	mu      sync.RWMutex
	table   hidcore.PresetTable
	version uint64
}

func (w *presetWatcher) set(table hidcore.PresetTable) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.table = table
	w.version++
}

func (w *presetWatcher) get() (hidcore.PresetTable, uint64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.table, w.version
}

// watchPresets re-reads b.config.PresetsFile on every fsnotify write
// event and publishes the result through b.presets, so a live `serve`
// process picks up edits to presets.yml without a restart. A bad
// reload is logged and the previous table stays in effect: reload
// never takes down a running service.
func (b *Bridge) watchPresets(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("bridge: create preset watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(b.config.PresetsFile); err != nil {
		return fmt.Errorf("bridge: watch %s: %w", b.config.PresetsFile, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			b.log.Warn("preset watcher error", zap.Error(err))
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			table, err := presetstore.Load(b.config.PresetsFile)
			if err != nil {
				b.log.Warn("failed to reload presets, keeping previous table", zap.Error(err))
				continue
			}
			b.presets.set(table)
			b.log.Info("reloaded presets", zap.String("file", b.config.PresetsFile), zap.Int("count", len(table)))
		}
	}
}

func (b *Bridge) Snapshot() *Snapshot {
	return b.snapshot
}

// Run blocks, driving the console poll loop, the Mega Drive poll
// loop, and USB HID device discovery/decoding, until ctx is cancelled
// or any of them fails.
func (b *Bridge) Run(ctx context.Context, presets hidcore.PresetTable) error {
	if err := b.config.Validate(); err != nil {
		return err
	}
	b.presets.set(presets)

	if b.config.DeviceConfigFile != "" {
		devices, err := presetstore.LoadDeviceConfig(b.config.DeviceConfigFile)
		if err != nil {
			return fmt.Errorf("bridge: load device config: %w", err)
		}
		b.devices = devices
	}

	if b.config.DataDir != "" {
		db, err := badger.Open(badger.DefaultOptions(b.config.DataDir))
		if err != nil {
			return fmt.Errorf("bridge: open device store: %w", err)
		}
		defer db.Close()
		b.devStore = presetstore.OpenDeviceStore(db)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := b.watchPresets(groupCtx); err != nil {
			b.log.Warn("presets live-reload disabled", zap.Error(err))
		}
		return nil
	})

	var lastMD megadrive.Report
	mdCh := make(chan megadrive.Report, 1)

	group.Go(func() error {
		ticker := time.NewTicker(b.config.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				report, connected := b.mdInput.Read()
				if !connected {
					report = megadrive.Report{}
				}
				select {
				case mdCh <- report:
				default:
					select {
					case <-mdCh:
					default:
					}
					mdCh <- report
				}
			}
		}
	})

	group.Go(func() error {
		err := b.console.EnterMode(func() joybussim.GCReport {
			select {
			case lastMD = <-mdCh:
			default:
			}
			return mergeMegaDrive(b.snapshot.GCReport(), lastMD)
		})
		if err != nil {
			return fmt.Errorf("bridge: console enterMode: %w", err)
		}
		return nil
	})

	hotplugBus := bus.NewBus[string, hidtransport.ChangeEvent](b.log.Named("hotplug"))
	if err := hotplugBus.Start(groupCtx); err != nil {
		return fmt.Errorf("bridge: start hotplug bus: %w", err)
	}
	changes := hotplugBus.Subscribe(groupCtx)

	group.Go(func() error {
		return b.backend.Watch(groupCtx, hotplugBus.CreatePublisher(hotplugKey))
	})

	group.Go(func() error {
		devCtx, cancelAll := context.WithCancel(groupCtx)
		defer cancelAll()
		cancels := make(map[hidtransport.Address]context.CancelFunc)
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case msg, ok := <-changes:
				if !ok {
					return nil
				}
				ev := msg.Message
				for _, info := range ev.Connected {
					cctx, cancel := context.WithCancel(devCtx)
					cancels[info.Address] = cancel
					addr := info.Address
					go func() {
						if err := b.runHIDSource(cctx, addr); err != nil {
							b.log.Warn("HID source stopped", zap.String("address", addr.String()), zap.Error(err))
						}
					}()
				}
				for _, addr := range ev.Disconnected {
					if cancel, ok := cancels[addr]; ok {
						cancel()
						delete(cancels, addr)
					}
				}
			}
		}
	})

	group.Go(func() error {
		<-groupCtx.Done()
		return b.console.Close()
	})

	if err := group.Wait(); err != nil {
		return fmt.Errorf("bridge: %w", err)
	}
	return nil
}

// mergeMegaDrive ORs a Mega Drive poll's buttons/d-pad onto a
// USB-HID-driven GCReport, so either source can move the GameCube
// report's digital fields. Analog axes are left to the USB HID source
// exclusively: the Mega Drive pad has none to contribute. Field
// mapping matches getSegaMegaDriveReport in
// original_source/src/sega_mega_drive.cpp: a/b/x/y pass straight
// through, z becomes the L trigger, c becomes the R trigger, and mode
// becomes the Z button.
func mergeMegaDrive(gc joybussim.GCReport, md megadrive.Report) joybussim.GCReport {
	if !md.Connected {
		return gc
	}
	gc.A = gc.A || md.A
	gc.B = gc.B || md.B
	gc.X = gc.X || md.X
	gc.Y = gc.Y || md.Y
	gc.L = gc.L || md.Z
	gc.R = gc.R || md.C
	gc.Z = gc.Z || md.Mode
	gc.Start = gc.Start || md.Start
	gc.DPadUp = gc.DPadUp || md.Up
	gc.DPadDown = gc.DPadDown || md.Down
	gc.DPadLeft = gc.DPadLeft || md.Left
	gc.DPadRight = gc.DPadRight || md.Right
	return gc
}

// recordDevice logs whether addr's descriptor changed since the last
// time this device was seen, then persists its current state. A
// nil devStore (no DataDir configured) makes this a no-op; a lookup
// or write failure is logged, not fatal, since device bookkeeping
// never gates decoding.
func (b *Bridge) recordDevice(addr hidtransport.Address, desc []byte, joystickCount uint8) {
	if b.devStore == nil {
		return
	}
	hash := presetstore.DescriptorHash(desc)
	prev, found, err := b.devStore.Get(addr.VendorID, addr.ProductID)
	if err != nil {
		b.log.Warn("device store lookup failed", zap.String("address", addr.String()), zap.Error(err))
	} else if found && prev.DescriptorHash != hash {
		b.log.Info("device descriptor changed since last connection", zap.String("address", addr.String()))
	}

	rec := presetstore.DeviceRecord{
		VendorID:          addr.VendorID,
		ProductID:         addr.ProductID,
		DescriptorHash:    hash,
		LastJoystickIndex: joystickCount,
	}
	if err := b.devStore.Put(rec); err != nil {
		b.log.Warn("device store write failed", zap.String("address", addr.String()), zap.Error(err))
	}
}

func (b *Bridge) runHIDSource(ctx context.Context, addr hidtransport.Address) error {
	dev, err := b.backend.Open(addr)
	if err != nil {
		return fmt.Errorf("open %s: %w", addr, err)
	}
	defer dev.Close()

	release, err := dev.Acquire()
	if err != nil {
		return fmt.Errorf("acquire %s: %w", addr, err)
	}
	defer release()

	desc, err := dev.GetReportDescriptor()
	if err != nil {
		return fmt.Errorf("get report descriptor for %s: %w", addr, err)
	}

	arenaSize := b.config.ArenaSize
	var reportIDOverride uint8
	if override, ok := b.devices.Lookup(addr.VendorID, addr.ProductID); ok {
		if override.ArenaSize > 0 {
			arenaSize = override.ArenaSize
		}
		reportIDOverride = override.ReportIDOverride
		b.log.Info("applying device override", zap.String("address", addr.String()),
			zap.Int("arenaSize", arenaSize), zap.Uint8("reportIdOverride", reportIDOverride))
	}

	parser := hidcore.NewParser(arenaSize, b.log.Named("hidcore"))
	presets, version := b.presets.get()
	if err := parser.ParseDescriptor(desc, presets); err != nil {
		return fmt.Errorf("parse descriptor for %s: %w", addr, err)
	}
	b.recordDevice(addr, desc, parser.JoystickCount())

	headerLen := 0
	if reportIDOverride != 0 {
		headerLen = 1
	}
	buf := make([]byte, headerLen+b.config.ReportSize)
	callbacks := b.snapshot.Callbacks()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if latest, latestVersion := b.presets.get(); latestVersion != version {
			if err := parser.ParseDescriptor(desc, latest); err != nil {
				b.log.Warn("failed to re-parse descriptor for reloaded presets, keeping previous table",
					zap.String("address", addr.String()), zap.Error(err))
			} else {
				version = latestVersion
			}
		}

		n, err := dev.Read(buf[headerLen:])
		if err != nil {
			return fmt.Errorf("read %s: %w", addr, err)
		}
		if headerLen > 0 {
			buf[0] = reportIDOverride
		}
		if err := parser.ParseReport(buf[:headerLen+n], callbacks); err != nil {
			b.log.Warn("failed to parse report", zap.String("address", addr.String()), zap.Error(err))
		}
	}
}
