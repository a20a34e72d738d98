package geometry

import "gonum.org/v1/gonum/spatial/r2"

// CommandKind identifies a path construction command
type CommandKind uint8

const (
	CmdStart      CommandKind = iota // Begin a new path at a point
	CmdFromAnchor                    // Begin a new path at a stored checkpoint
	CmdStraight                      // Extend the path along its direction
	CmdTurn                          // Rotate the path direction by ±90°
	CmdStore                         // Record a named checkpoint
)

func (k CommandKind) String() string {
	switch k {
	case CmdStart:
		return "start"
	case CmdFromAnchor:
		return "from"
	case CmdStraight:
		return "straight"
	case CmdTurn:
		return "turn"
	case CmdStore:
		return "store"
	}
	return "unknown"
}

// Command is one step of a trace path. Only the fields relevant to Kind are
// read.
type Command struct {
	Kind      CommandKind
	At        r2.Vec  // CmdStart
	Width     float64 // CmdStart
	Direction r2.Vec  // CmdStart, axis aligned
	Length    float64 // CmdStraight
	Angle     float64 // CmdTurn, degrees, positive turns left
	Name      string  // CmdFromAnchor, CmdStore
}

// PathBuilder accumulates commands fluently. It performs no validation;
// Compile reports every error with the offending command.
type PathBuilder struct {
	cmds []Command
}

func NewPath() *PathBuilder { return &PathBuilder{} }

func (p *PathBuilder) Start(at r2.Vec, width float64, direction r2.Vec) *PathBuilder {
	p.cmds = append(p.cmds, Command{Kind: CmdStart, At: at, Width: width, Direction: direction})
	return p
}

func (p *PathBuilder) From(anchor string) *PathBuilder {
	p.cmds = append(p.cmds, Command{Kind: CmdFromAnchor, Name: anchor})
	return p
}

func (p *PathBuilder) Straight(length float64) *PathBuilder {
	p.cmds = append(p.cmds, Command{Kind: CmdStraight, Length: length})
	return p
}

func (p *PathBuilder) Turn(degrees float64) *PathBuilder {
	p.cmds = append(p.cmds, Command{Kind: CmdTurn, Angle: degrees})
	return p
}

func (p *PathBuilder) Store(name string) *PathBuilder {
	p.cmds = append(p.cmds, Command{Kind: CmdStore, Name: name})
	return p
}

// Commands returns a copy of the accumulated commands.
func (p *PathBuilder) Commands() []Command {
	return append([]Command(nil), p.cmds...)
}
