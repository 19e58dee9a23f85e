//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealIO drives the lamp and watches the switch using the Linux GPIO
// character device.
type RealIO struct {
	chip       *gpiocdev.Chip
	lampLine   *gpiocdev.Line
	switchLine *gpiocdev.Line
}

// Open requests the lamp line as an output at the initial state and the
// switch line as an input reporting both edges. onEdge runs on the
// gpiocdev event goroutine for every edge; it must not block.
func Open(cfg Config, initial bool, onEdge func()) (*RealIO, error) {
	chip, err := gpiocdev.NewChip(cfg.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", cfg.Chip, err)
	}

	lampOpts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(level(initial))}
	if cfg.LampActiveLow {
		lampOpts = append(lampOpts, gpiocdev.AsActiveLow)
	}
	lampLine, err := chip.RequestLine(cfg.LampPin, lampOpts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request lamp pin %d: %w", cfg.LampPin, err)
	}

	switchOpts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) { onEdge() }),
	}
	if cfg.SwitchPullUp {
		switchOpts = append(switchOpts, gpiocdev.WithPullUp)
	} else {
		switchOpts = append(switchOpts, gpiocdev.WithPullDown)
	}
	switchLine, err := chip.RequestLine(cfg.SwitchPin, switchOpts...)
	if err != nil {
		lampLine.Close()
		chip.Close()
		return nil, fmt.Errorf("request switch pin %d: %w", cfg.SwitchPin, err)
	}

	return &RealIO{
		chip:       chip,
		lampLine:   lampLine,
		switchLine: switchLine,
	}, nil
}

// Set drives the lamp line. With an active-low line the kernel inverts
// the physical level.
func (r *RealIO) Set(on bool) error {
	if err := r.lampLine.SetValue(level(on)); err != nil {
		return fmt.Errorf("set lamp pin: %w", err)
	}
	return nil
}

// SwitchLevel reads the raw switch level (true = high).
func (r *RealIO) SwitchLevel() (bool, error) {
	v, err := r.switchLine.Value()
	if err != nil {
		return false, fmt.Errorf("read switch pin: %w", err)
	}
	return v == 1, nil
}

// Close releases GPIO resources.
// The switch line is returned to input with pull-down (the Pi boot default)
// before closing.
func (r *RealIO) Close() error {
	var errs []error

	if r.switchLine != nil {
		if err := r.switchLine.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure switch pin: %w", err))
		}
		if err := r.switchLine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close switch pin: %w", err))
		}
	}
	if r.lampLine != nil {
		if err := r.lampLine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close lamp pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func level(on bool) int {
	if on {
		return 1
	}
	return 0
}
