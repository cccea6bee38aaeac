package enum

// LockStatus is the admission state of a community.
type LockStatus int

const (
	// LockStatusNormal indicates admissions are unrestricted.
	LockStatusNormal LockStatus = iota
	// LockStatusLocked indicates a raid lockdown is in effect.
	LockStatusLocked
)

// String returns the name of the lock status.
func (l LockStatus) String() string {
	switch l {
	case LockStatusNormal:
		return "Normal"
	case LockStatusLocked:
		return "Locked"
	default:
		return "Unknown"
	}
}
