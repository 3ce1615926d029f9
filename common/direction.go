package common

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// MoveDirection is a bit-set of movement directions held at the same time.
// The zero value means no movement.
type MoveDirection uint8

const (
	MoveForward MoveDirection = 1 << iota
	MoveBack
	MoveLeft
	MoveRight
	MoveUp
	MoveDown
)

var moveDirectionNames = [...]struct {
	dir  MoveDirection
	name string
}{
	{MoveForward, "forward"},
	{MoveBack, "back"},
	{MoveLeft, "left"},
	{MoveRight, "right"},
	{MoveUp, "up"},
	{MoveDown, "down"},
}

// Set returns d with the given directions added.
func (d MoveDirection) Set(dirs MoveDirection) MoveDirection { return d | dirs }

// Clear returns d with the given directions removed.
func (d MoveDirection) Clear(dirs MoveDirection) MoveDirection { return d &^ dirs }

// Has reports whether every direction in dirs is present in d.
func (d MoveDirection) Has(dirs MoveDirection) bool { return dirs != 0 && d&dirs == dirs }

// Union returns the bitwise union of d and other.
func (d MoveDirection) Union(other MoveDirection) MoveDirection { return d | other }

// IsZero reports whether no direction is held.
func (d MoveDirection) IsZero() bool { return d == 0 }

func (d MoveDirection) Forward() bool { return d.Has(MoveForward) }
func (d MoveDirection) Back() bool    { return d.Has(MoveBack) }
func (d MoveDirection) Left() bool    { return d.Has(MoveLeft) }
func (d MoveDirection) Right() bool   { return d.Has(MoveRight) }
func (d MoveDirection) Up() bool      { return d.Has(MoveUp) }
func (d MoveDirection) Down() bool    { return d.Has(MoveDown) }

// Vector returns the unit movement vector of the held directions in a right-handed, Y-up frame
// where forward is -Z. Opposite directions cancel; the zero vector means no movement.
func (d MoveDirection) Vector() mgl32.Vec3 {
	var v mgl32.Vec3
	if d.Forward() {
		v[2]--
	}
	if d.Back() {
		v[2]++
	}
	if d.Left() {
		v[0]--
	}
	if d.Right() {
		v[0]++
	}
	if d.Up() {
		v[1]++
	}
	if d.Down() {
		v[1]--
	}
	if v.Len() == 0 {
		return v
	}
	return v.Normalize()
}

// String lists the held directions joined by "|", or "none".
func (d MoveDirection) String() string {
	if d == 0 {
		return "none"
	}
	var parts []string
	for _, n := range moveDirectionNames {
		if d&n.dir != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}
