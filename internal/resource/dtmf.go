package resource

import "fmt"

// TerminationDTMF is the DTMF digit that ends a recording.
type TerminationDTMF int

const (
	TerminateNone TerminationDTMF = iota
	TerminateAny
	TerminateStar
	TerminateHash
)

var terminationNames = [...]string{
	TerminateNone: "none",
	TerminateAny:  "any",
	TerminateStar: "*",
	TerminateHash: "#",
}

// String returns the wire value.
func (t TerminationDTMF) String() string {
	if t < 0 || int(t) >= len(terminationNames) {
		return fmt.Sprintf("terminateOn(%d)", int(t))
	}
	return terminationNames[t]
}

// ParseTerminationDTMF converts a wire value to a TerminationDTMF.
func ParseTerminationDTMF(s string) (TerminationDTMF, error) {
	for i, name := range terminationNames {
		if name == s {
			return TerminationDTMF(i), nil
		}
	}
	return 0, fmt.Errorf("unknown terminateOn value %q", s)
}
