package model

import (
	"fmt"
	"strings"
)

// Role classifies a body in the scene.
type Role int

const (
	RoleBackground Role = iota
	RoleTracker         // observing satellite (ATLAS-n)
	RoleTarget          // tracked debris object
)

// String returns the lower-case role name used in scenario files and frames.
func (r Role) String() string {
	switch r {
	case RoleTracker:
		return "tracker"
	case RoleTarget:
		return "target"
	default:
		return "background"
	}
}

// ParseRole maps a scenario role name to a Role. Unknown names map to
// RoleBackground and ok=false.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tracker":
		return RoleTracker, true
	case "target":
		return RoleTarget, true
	case "background", "":
		return RoleBackground, true
	default:
		return RoleBackground, false
	}
}

// MarshalText lets roles appear as strings in JSON frames.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (r *Role) UnmarshalText(text []byte) error {
	role, ok := ParseRole(string(text))
	if !ok {
		return fmt.Errorf("unknown role %q", text)
	}
	*r = role
	return nil
}

// Motion is a position or Euler rotation in scene units.
type Motion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// BodyDefinition is one orbiting object: a tracker, the target or background debris.
// Orbit is fixed once the body is admitted; Position and Rotation are derived
// from (Orbit, elapsed time) and written only by the scene driver.
type BodyDefinition struct {
	ID     string
	Handle int // insertion index assigned by the registry
	Name   string
	Role   Role
	Color  string // hex, e.g. "#00d4ff"

	Orbit OrbitParams

	Position Motion
	Rotation Motion
}
