// Package progress carries human-readable status events from long-running
// operations (catalog loading, publishing, mirroring, scanning) to whatever
// front end is attached: the CLI prints them, the TUI keeps a short log.
package progress

// Level indicates the severity/type of a progress message.
type Level int

const (
	LevelInfo Level = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// String returns the lower-case level name.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelVerbose:
		return "verbose"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Event represents a single status update.
type Event struct {
	Message string
	Level   Level
}

// Func receives progress events. A nil Func discards them.
type Func func(Event)

// Emit sends an event to f if f is non-nil.
func (f Func) Emit(level Level, message string) {
	if f != nil {
		f(Event{Message: message, Level: level})
	}
}
