package graph

// StreamType classifies a registry's resolved output stream type for
// the compatibility rules in StreamCompatible. Concrete media types are
// represented as positive values chosen by the caller (e.g. audio=1,
// video=2 in the caller's own numbering); this package only special-
// cases the four values below.
type StreamType int32

const (
	StreamUnspecified StreamType = 0
	StreamAmbiguous   StreamType = -1
	StreamFile        StreamType = -2
	StreamEncrypted   StreamType = -3
)

// StreamCompatible implements the edge stream-type rules:
// FILE bridges arbitrary transitions (demuxing/muxing), ENCRYPTED
// inherits the other side's concrete type, ambiguous (-1) inherits
// from the downstream known type, and otherwise two known non-file
// types must match exactly.
func StreamCompatible(upstream, downstream StreamType) bool {
	if upstream == StreamFile || downstream == StreamFile {
		return true
	}
	if upstream == StreamEncrypted || downstream == StreamEncrypted {
		return true
	}
	if upstream == StreamAmbiguous || downstream == StreamAmbiguous {
		return true
	}
	if upstream == StreamUnspecified || downstream == StreamUnspecified {
		return true
	}
	return upstream == downstream
}
