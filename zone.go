package main

// ZoneStatus is the capture state of a zone
type ZoneStatus int

const (
	ZoneNeutral        ZoneStatus = 0
	ZoneBeingCaptured  ZoneStatus = 1
	ZoneCaptured       ZoneStatus = 2
	ZoneBeingContested ZoneStatus = 3
	ZoneBeingRetaken   ZoneStatus = 4
)

var zoneStatusNames = []string{"neutral", "beingCaptured", "captured", "beingContested", "beingRetaken"}

func (s ZoneStatus) String() string {
	if s < 0 || int(s) >= len(zoneStatusNames) {
		return "unknown"
	}
	return zoneStatusNames[s]
}

const (
	DefaultZoneCaptureTicks = 100
	DefaultZoneGraceTicks   = 20
)

// ZoneConfig tunes the capture state machine
type ZoneConfig struct {
	CaptureTicks int
	GraceTicks   int
}

// DefaultZoneConfig returns the stock capture timings
func DefaultZoneConfig() ZoneConfig {
	return ZoneConfig{CaptureTicks: DefaultZoneCaptureTicks, GraceTicks: DefaultZoneGraceTicks}
}

// ZoneState is the tagged state of a zone. Which party fields are set
// depends on Status:
//
//	BeingCaptured:  Party (capturer), RemainingTicks
//	Captured:       Party (owner)
//	BeingContested: CapturedBy (owner or "")
//	BeingRetaken:   CapturedBy, RetakenBy, RemainingTicks
type ZoneState struct {
	Status         ZoneStatus
	Party          string
	CapturedBy     string
	RetakenBy      string
	RemainingTicks int
	EmptyTicks     int
}

// Owner returns the party holding the zone, if any
func (s ZoneState) Owner() string {
	switch s.Status {
	case ZoneCaptured:
		return s.Party
	case ZoneBeingContested, ZoneBeingRetaken:
		return s.CapturedBy
	}
	return ""
}

// Zone is a fixed capture rectangle
type Zone struct {
	X, Y          int
	Width, Height int
	Index         rune
	State         ZoneState
}

// Contains reports whether the cell lies inside the zone
func (z *Zone) Contains(x, y int) bool {
	return x >= z.X && x < z.X+z.Width && y >= z.Y && y < z.Y+z.Height
}

// ManhattanDistanceTo returns the distance from a cell to the nearest zone cell
func (z *Zone) ManhattanDistanceTo(x, y int) int {
	cx := clampInt(x, z.X, z.X+z.Width-1)
	cy := clampInt(y, z.Y, z.Y+z.Height-1)
	return absInt(x-cx) + absInt(y-cy)
}

// Update advances the state machine by one tick given the distinct
// parties currently capturing inside the zone.
func (z *Zone) Update(parties []string, cfg ZoneConfig) {
	s := &z.State
	if len(parties) == 0 {
		s.EmptyTicks++
	} else {
		s.EmptyTicks = 0
	}

	switch s.Status {
	case ZoneNeutral:
		if len(parties) == 1 {
			z.State = capturing(parties[0], cfg)
		}

	case ZoneBeingCaptured:
		switch {
		case len(parties) == 0:
			if s.EmptyTicks >= cfg.GraceTicks {
				z.State = ZoneState{Status: ZoneNeutral}
			}
		case len(parties) > 1:
			z.State = ZoneState{Status: ZoneBeingContested}
		case parties[0] != s.Party:
			z.State = capturing(parties[0], cfg)
		default:
			s.RemainingTicks--
			if s.RemainingTicks <= 0 {
				z.State = ZoneState{Status: ZoneCaptured, Party: s.Party}
			}
		}

	case ZoneCaptured:
		switch {
		case len(parties) > 1:
			z.State = ZoneState{Status: ZoneBeingContested, CapturedBy: s.Party}
		case len(parties) == 1 && parties[0] != s.Party:
			z.State = ZoneState{
				Status:         ZoneBeingRetaken,
				CapturedBy:     s.Party,
				RetakenBy:      parties[0],
				RemainingTicks: cfg.CaptureTicks,
			}
		}

	case ZoneBeingContested:
		switch {
		case len(parties) == 0:
			if s.CapturedBy != "" {
				z.State = ZoneState{Status: ZoneCaptured, Party: s.CapturedBy}
			} else if s.EmptyTicks >= cfg.GraceTicks {
				z.State = ZoneState{Status: ZoneNeutral}
			}
		case len(parties) == 1:
			p := parties[0]
			switch {
			case s.CapturedBy == "":
				z.State = capturing(p, cfg)
			case p == s.CapturedBy:
				z.State = ZoneState{Status: ZoneCaptured, Party: p}
			default:
				z.State = ZoneState{
					Status:         ZoneBeingRetaken,
					CapturedBy:     s.CapturedBy,
					RetakenBy:      p,
					RemainingTicks: cfg.CaptureTicks,
				}
			}
		}

	case ZoneBeingRetaken:
		switch {
		case len(parties) == 0:
			if s.EmptyTicks >= cfg.GraceTicks {
				z.State = ZoneState{Status: ZoneCaptured, Party: s.CapturedBy}
			}
		case len(parties) > 1:
			z.State = ZoneState{Status: ZoneBeingContested, CapturedBy: s.CapturedBy}
		case parties[0] == s.CapturedBy:
			z.State = ZoneState{Status: ZoneCaptured, Party: s.CapturedBy}
		case parties[0] != s.RetakenBy:
			s.RetakenBy = parties[0]
			s.RemainingTicks = cfg.CaptureTicks
		default:
			s.RemainingTicks--
			if s.RemainingTicks <= 0 {
				z.State = capturing(s.RetakenBy, cfg)
			}
		}
	}
}

// HandlePartyRemoved drops every reference to a party that left
func (z *Zone) HandlePartyRemoved(party string) {
	s := z.State
	switch s.Status {
	case ZoneBeingCaptured, ZoneCaptured:
		if s.Party == party {
			z.State = ZoneState{Status: ZoneNeutral}
		}
	case ZoneBeingContested:
		if s.CapturedBy == party {
			z.State.CapturedBy = ""
		}
	case ZoneBeingRetaken:
		switch party {
		case s.CapturedBy:
			z.State = ZoneState{Status: ZoneBeingCaptured, Party: s.RetakenBy, RemainingTicks: s.RemainingTicks}
		case s.RetakenBy:
			z.State = ZoneState{Status: ZoneCaptured, Party: s.CapturedBy}
		}
	}
}

func capturing(party string, cfg ZoneConfig) ZoneState {
	return ZoneState{Status: ZoneBeingCaptured, Party: party, RemainingTicks: cfg.CaptureTicks}
}
