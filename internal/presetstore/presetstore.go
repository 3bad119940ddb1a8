// Package presetstore loads the caller-supplied preset table that
// tells hidcore.Parser how to turn descriptor fields into gamepad/
// keyboard/mouse output, from the presets.yml format this package
// understands.
package presetstore

import (
	"fmt"
	"os"

	"github.com/iancoleman/strcase"
	stoewer "github.com/stoewer/go-strcase"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"

	"github.com/proboterror/SMD2GC/hidcore"
)

type presetFile struct {
	Presets []presetEntryYAML `yaml:"presets"`
}

type presetEntryYAML struct {
	PadIndex       uint8      `yaml:"padIndex"`
	UsagePage      uint16     `yaml:"usagePage"`
	Usage          uint32     `yaml:"usage"`
	Channel        string     `yaml:"channel"`
	Control        uint8      `yaml:"control"`
	Interpretation string     `yaml:"interpretation"`
	Param          paramValue `yaml:"param"`
}

// paramValue accepts both forms the presets.yml format uses for the
// "param" field: a bare integer (the InterpretationEqual/threshold
// comparison value) or a keyword string (the InterpretationAxis
// target ValueType: u8/i8/u16/i16).
type paramValue struct {
	str   string
	num   int
	isStr bool
	isSet bool
}

func (p *paramValue) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		p.str, p.isStr, p.isSet = s, true, true
		return nil
	}
	var n int
	if err := unmarshal(&n); err != nil {
		return fmt.Errorf("presetstore: param must be an integer or a keyword string: %w", err)
	}
	p.num, p.isSet = n, true
	return nil
}

func (p paramValue) resolve(interp hidcore.Interpretation) (uint16, error) {
	if !p.isSet {
		return 0, fmt.Errorf("presetstore: param not set")
	}
	if interp == hidcore.InterpretationAxis {
		if !p.isStr {
			return 0, fmt.Errorf("presetstore: axis param must be one of u8/i8/u16/i16, got %d", p.num)
		}
		switch stoewer.KebabCase(p.str) {
		case "u8":
			return uint16(hidcore.ValueTypeUint8), nil
		case "i8":
			return uint16(hidcore.ValueTypeInt8), nil
		case "u16":
			return uint16(hidcore.ValueTypeUint16), nil
		case "i16":
			return uint16(hidcore.ValueTypeInt16), nil
		default:
			return 0, fmt.Errorf("presetstore: unknown axis param keyword %q", p.str)
		}
	}
	if p.isStr {
		return 0, fmt.Errorf("presetstore: %s param must be an integer, got %q", interp, p.str)
	}
	if p.num < 0 || p.num > 0xFFFF {
		return 0, fmt.Errorf("presetstore: param %d out of uint16 range", p.num)
	}
	return uint16(p.num), nil
}

func parseChannel(s string) (hidcore.Channel, error) {
	switch strcase.ToSnake(s) {
	case "gamepad":
		return hidcore.ChannelGamepad, nil
	case "keyboard":
		return hidcore.ChannelKeyboard, nil
	case "mouse":
		return hidcore.ChannelMouse, nil
	default:
		return 0, fmt.Errorf("presetstore: unknown channel %q", s)
	}
}

func parseInterpretation(s string) (hidcore.Interpretation, error) {
	switch stoewer.KebabCase(s) {
	case "threshold-below":
		return hidcore.InterpretationThresholdBelow, nil
	case "threshold-above":
		return hidcore.InterpretationThresholdAbove, nil
	case "scale":
		return hidcore.InterpretationScale, nil
	case "array":
		return hidcore.InterpretationArray, nil
	case "bitfield":
		return hidcore.InterpretationBitfield, nil
	case "equal":
		return hidcore.InterpretationEqual, nil
	case "axis":
		return hidcore.InterpretationAxis, nil
	case "none":
		return hidcore.InterpretationNone, nil
	default:
		return 0, fmt.Errorf("presetstore: unknown interpretation %q", s)
	}
}

type dedupKey struct {
	padIndex  uint8
	usagePage uint16
	usage     uint32
	channel   hidcore.Channel
}

// Load reads and validates a presets.yml file, returning the
// hidcore.PresetTable ready to hand to Parser.ParseDescriptor.
// Duplicate {padIndex, usagePage, usage, channel} tuples are collected
// and returned together via multierr rather than failing on the
// first one found.
func Load(path string) (hidcore.PresetTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("presetstore: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse validates YAML already read into memory; split out from Load
// so the fsnotify-driven hot-reload path and tests don't need a file
// on disk.
func Parse(raw []byte) (hidcore.PresetTable, error) {
	var file presetFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("presetstore: parse yaml: %w", err)
	}

	table := make(hidcore.PresetTable, 0, len(file.Presets))
	seen := make(map[dedupKey]int, len(file.Presets))

	var errs error
	for i, e := range file.Presets {
		channel, err := parseChannel(e.Channel)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("preset[%d]: %w", i, err))
			continue
		}
		interp, err := parseInterpretation(e.Interpretation)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("preset[%d]: %w", i, err))
			continue
		}
		param, err := e.Param.resolve(interp)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("preset[%d]: %w", i, err))
			continue
		}

		key := dedupKey{padIndex: e.PadIndex, usagePage: e.UsagePage, usage: e.Usage, channel: channel}
		if prior, ok := seen[key]; ok {
			errs = multierr.Append(errs, fmt.Errorf(
				"preset[%d]: duplicate of preset[%d]: padIndex=%d usagePage=%#x usage=%#x channel=%s",
				i, prior, key.padIndex, key.usagePage, key.usage, key.channel))
			continue
		}
		seen[key] = i

		table = append(table, hidcore.PresetEntry{
			PadIndex:       e.PadIndex,
			UsagePage:      e.UsagePage,
			Usage:          e.Usage,
			Channel:        channel,
			Control:        e.Control,
			Interpretation: interp,
			Param:          param,
		})
	}
	if errs != nil {
		return nil, errs
	}
	return table, nil
}
