package utils

import (
	"errors"
	"fmt"
)

// Sentinels for the failure classes of the pipeline, matched with errors.Is.
var (
	ErrGeometry = errors.New("geometry error")
	ErrMesh     = errors.New("mesh error")
	ErrSolve    = errors.New("solve error")
	ErrPort     = errors.New("port error")
)

// GeometryError reports invalid or degenerate input geometry and unresolved
// references.
type GeometryError struct {
	Op  string // Command or region being compiled
	Msg string
	Err error
}

func NewGeometryError(op, format string, args ...any) *GeometryError {
	return &GeometryError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

func (e *GeometryError) Error() string {
	return formatError("geometry", e.Op, e.Msg, e.Err)
}
func (e *GeometryError) Unwrap() error        { return e.Err }
func (e *GeometryError) Is(target error) bool { return target == ErrGeometry }

// MeshError reports a meshing failure. Element is -1 when the failure is not
// tied to a single element.
type MeshError struct {
	Op      string
	Element int
	Msg     string
	Err     error
}

func NewMeshError(op string, element int, format string, args ...any) *MeshError {
	return &MeshError{Op: op, Element: element, Msg: fmt.Sprintf(format, args...)}
}

func (e *MeshError) Error() string {
	msg := e.Msg
	if e.Element >= 0 {
		msg = fmt.Sprintf("element %d: %s", e.Element, e.Msg)
	}
	return formatError("mesh", e.Op, msg, e.Err)
}
func (e *MeshError) Unwrap() error        { return e.Err }
func (e *MeshError) Is(target error) bool { return target == ErrMesh }

// SolveError reports a singular or non-converging linear system at one
// frequency.
type SolveError struct {
	Frequency float64
	Msg       string
	Err       error
}

func NewSolveError(freq float64, format string, args ...any) *SolveError {
	return &SolveError{Frequency: freq, Msg: fmt.Sprintf(format, args...)}
}

func (e *SolveError) Error() string {
	return formatError("solve", fmt.Sprintf("f=%.6g Hz", e.Frequency), e.Msg, e.Err)
}
func (e *SolveError) Unwrap() error        { return e.Err }
func (e *SolveError) Is(target error) bool { return target == ErrSolve }

// PortError reports a port definition that is inconsistent with the mesh or
// with its mode. Port is the 1-based port index, 0 when unknown.
type PortError struct {
	Port int
	Msg  string
	Err  error
}

func NewPortError(port int, format string, args ...any) *PortError {
	return &PortError{Port: port, Msg: fmt.Sprintf(format, args...)}
}

func (e *PortError) Error() string {
	return formatError("port", fmt.Sprintf("%d", e.Port), e.Msg, e.Err)
}
func (e *PortError) Unwrap() error        { return e.Err }
func (e *PortError) Is(target error) bool { return target == ErrPort }

func formatError(class, op, msg string, cause error) string {
	s := class + " error"
	if op != "" {
		s += " [" + op + "]"
	}
	s += ": " + msg
	if cause != nil {
		s += ": " + cause.Error()
	}
	return s
}
