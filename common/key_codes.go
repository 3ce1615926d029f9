package common

// Virtual key codes for the movement bindings.
// These values match GLFW key codes which use ASCII values for printable keys.
const (
	KeyW         = 87  // W key (ASCII)
	KeyA         = 65  // A key (ASCII)
	KeyS         = 83  // S key (ASCII)
	KeyD         = 68  // D key (ASCII)
	KeyQ         = 81  // Q key (ASCII)
	KeyE         = 69  // E key (ASCII)
	KeySpace     = 32  // Spacebar (ASCII)
	KeyLeftShift = 340 // Left Shift (GLFW)
)

// DirectionForKey maps a movement key code to its direction bit.
//
// Parameters:
//   - key: the key code
//
// Returns:
//   - MoveDirection: the direction for the key, or 0 if the key is not a movement key
func DirectionForKey(key int) MoveDirection {
	switch key {
	case KeyW:
		return MoveForward
	case KeyS:
		return MoveBack
	case KeyA:
		return MoveLeft
	case KeyD:
		return MoveRight
	case KeyE, KeySpace:
		return MoveUp
	case KeyQ, KeyLeftShift:
		return MoveDown
	}
	return 0
}

// DirectionForKeys folds every held key into one direction set.
//
// Parameters:
//   - keys: the key codes currently held
//
// Returns:
//   - MoveDirection: the union of the directions of all movement keys
func DirectionForKeys(keys ...int) MoveDirection {
	var d MoveDirection
	for _, k := range keys {
		d = d.Union(DirectionForKey(k))
	}
	return d
}
