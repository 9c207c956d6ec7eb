package event

// Status is the connection state of a stream client.
type Status int

const (
	StatusClosed Status = iota
	StatusConnecting
	StatusOpen
	StatusError
)

var statusNames = [...]string{"closed", "connecting", "open", "error"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// ParseStatus converts a status name back to a Status.
func ParseStatus(name string) (Status, bool) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), true
		}
	}
	return StatusClosed, false
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
