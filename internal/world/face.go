package world

// Face is one of the six axis-aligned directions a voxel exposes to a neighbour.
type Face uint8

const (
	Top Face = iota
	Bottom
	North
	South
	East
	West
)

// Faces lists every face in mesh emission order.
var Faces = [...]Face{Top, Bottom, North, South, East, West}

var faceOffsets = [...]WorldCoord{
	Top:    {X: 0, Y: 1, Z: 0},
	Bottom: {X: 0, Y: -1, Z: 0},
	North:  {X: 0, Y: 0, Z: -1},
	South:  {X: 0, Y: 0, Z: 1},
	East:   {X: 1, Y: 0, Z: 0},
	West:   {X: -1, Y: 0, Z: 0},
}

var faceNames = [...]string{
	Top:    "top",
	Bottom: "bottom",
	North:  "north",
	South:  "south",
	East:   "east",
	West:   "west",
}

// Offset returns the unit step from a voxel to the neighbour across this face.
func (f Face) Offset() WorldCoord {
	return faceOffsets[f]
}

func (f Face) String() string {
	if int(f) >= len(faceNames) {
		return "unknown"
	}
	return faceNames[f]
}

func (f Face) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Opposite returns the face pointing the other way.
func (f Face) Opposite() Face {
	switch f {
	case Top:
		return Bottom
	case Bottom:
		return Top
	case North:
		return South
	case South:
		return North
	case East:
		return West
	default:
		return East
	}
}

// FaceFromOffset maps a unit offset back to its face.
func FaceFromOffset(o WorldCoord) (Face, bool) {
	for _, f := range Faces {
		if faceOffsets[f] == o {
			return f, true
		}
	}
	return 0, false
}
