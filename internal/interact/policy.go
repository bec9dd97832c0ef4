package interact

import "fmt"

// Mode selects how sneaking gates an interaction.
type Mode int8

const (
	// ModeOnly — действие разрешено только когда sneaking совпадает с флагом.
	ModeOnly Mode = 0
	// ModeBoth — с флагом разрешено всегда, без флага только стоя.
	ModeBoth Mode = 1
	// ModeReversed — с флагом только стоя, без флага всегда.
	ModeReversed Mode = 2
)

// String returns human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeOnly:
		return "Only"
	case ModeBoth:
		return "Both"
	case ModeReversed:
		return "Reversed"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// Kind is the interaction class a policy flag applies to.
type Kind int8

const (
	KindCreate Kind = iota
	KindTrade
	KindControl
)

// Policy decides whether a click with the given sneak state starts an action.
type Policy struct {
	Mode           Mode `yaml:"mode"`
	SneakToCreate  bool `yaml:"sneak_to_create"`
	SneakToTrade   bool `yaml:"sneak_to_trade"`
	SneakToControl bool `yaml:"sneak_to_control"`
}

// DefaultPolicy: создание только сидя, торговля и управление стоя.
func DefaultPolicy() Policy {
	return Policy{
		Mode:          ModeOnly,
		SneakToCreate: true,
	}
}

// Validate checks the mode value.
func (p Policy) Validate() error {
	if p.Mode < ModeOnly || p.Mode > ModeReversed {
		return fmt.Errorf("interact mode must be 0..2, got %d", p.Mode)
	}
	return nil
}

// Check reports whether kind is allowed while sneaking has the given value.
func (p Policy) Check(kind Kind, sneaking bool) bool {
	flag := p.flag(kind)
	switch p.Mode {
	case ModeBoth:
		return flag || !sneaking
	case ModeReversed:
		return !flag || !sneaking
	default:
		return sneaking == flag
	}
}

func (p Policy) flag(kind Kind) bool {
	switch kind {
	case KindCreate:
		return p.SneakToCreate
	case KindTrade:
		return p.SneakToTrade
	case KindControl:
		return p.SneakToControl
	default:
		return false
	}
}
