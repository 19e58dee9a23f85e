// Package gpio provides the lamp output line and the switch input line with
// hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Lamp drives the actuator output line.
type Lamp interface {
	// Set drives the line to the logical lamp state.
	Set(on bool) error
}

// Config selects the lines used by the real implementation.
type Config struct {
	Chip          string
	LampPin       int
	LampActiveLow bool
	SwitchPin     int
	SwitchPullUp  bool
}

// Pin definitions (BCM numbering)
const (
	DefaultChip      = "gpiochip0"
	DefaultLampPin   = 17
	DefaultSwitchPin = 27
)
