package serow

// BandGear derives gear position from rpm bands. It stands in until a real
// position switch is wired up.
type BandGear struct{}

func (BandGear) Gear(rpm int) int {
	switch {
	case rpm < 1000:
		return 0 // neutral
	case rpm < 2500:
		return 1
	case rpm < 4000:
		return 2
	case rpm < 5500:
		return 3
	case rpm < 7000:
		return 4
	default:
		return 5
	}
}
