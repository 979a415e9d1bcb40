package process

import "strings"

// Display values for process states.
const (
	StatusRunning  = "Running"
	StatusSleeping = "Sleeping"
	StatusIdle     = "Idle"
	StatusStopped  = "Stopped"
	StatusZombie   = "Zombie"
	StatusWaiting  = "Waiting"
	StatusLocked   = "Locked"
	StatusUnknown  = "Unknown"
)

// NormalizeStatus maps gopsutil state names ("running", "sleep", "zombie", ...)
// and single-letter ps codes to the display values above.
// The result is informational only.
func NormalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "running", "r":
		return StatusRunning
	case "sleep", "sleeping", "s", "d":
		return StatusSleeping
	case "idle", "i":
		return StatusIdle
	case "stop", "stopped", "t":
		return StatusStopped
	case "zombie", "z":
		return StatusZombie
	case "wait", "w":
		return StatusWaiting
	case "lock", "l":
		return StatusLocked
	}
	return StatusUnknown
}
