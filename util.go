package main

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Direction is the facing of a tank or turret
type Direction int

const (
	DirectionUp    Direction = 0
	DirectionRight Direction = 1
	DirectionDown  Direction = 2
	DirectionLeft  Direction = 3
)

var directionNames = [...]string{"up", "right", "down", "left"}

func (d Direction) String() string {
	if d < 0 || int(d) >= len(directionNames) {
		return "unknown"
	}
	return directionNames[d]
}

// Normal returns the unit cell offset for the direction
func (d Direction) Normal() (int, int) {
	switch d {
	case DirectionUp:
		return 0, -1
	case DirectionRight:
		return 1, 0
	case DirectionDown:
		return 0, 1
	default:
		return -1, 0
	}
}

// Rotate returns the direction after a quarter turn
func (d Direction) Rotate(r Rotation) Direction {
	if r == RotationLeft {
		return (d + 3) % 4
	}
	return (d + 1) % 4
}

// Opposite returns the reverse direction
func (d Direction) Opposite() Direction {
	return (d + 2) % 4
}

// Rotation is a quarter turn
type Rotation int

const (
	RotationLeft  Rotation = 0
	RotationRight Rotation = 1
)

var rotationNames = []string{"left", "right"}

func (r Rotation) String() string {
	if r == RotationLeft {
		return "left"
	}
	return "right"
}

// MovementDirection is forward or backward relative to the hull
type MovementDirection int

const (
	MovementForward  MovementDirection = 0
	MovementBackward MovementDirection = 1
)

var movementNames = []string{"forward", "backward"}

func (m MovementDirection) String() string {
	if m == MovementBackward {
		return "backward"
	}
	return "forward"
}

// parseEnum resolves a wire enum value given either as a number or as a
// case-insensitive name.
func parseEnum(v any, names []string) (int, bool) {
	switch t := v.(type) {
	case float64:
		i := int(t)
		if float64(i) != t || i < 0 || i >= len(names) {
			return 0, false
		}
		return i, true
	case string:
		for i, n := range names {
			if strings.EqualFold(n, t) {
				return i, true
			}
		}
		if i, err := strconv.Atoi(t); err == nil && i >= 0 && i < len(names) {
			return i, true
		}
	}
	return 0, false
}

// GenerateID returns a random hex string of the given byte length
func GenerateID(byteLen int) string {
	b := make([]byte, byteLen)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// GenerateUUID returns a random v4 UUID string
func GenerateUUID() string {
	return uuid.NewString()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
