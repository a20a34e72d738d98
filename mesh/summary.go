package mesh

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes element sizes and counts
type Stats struct {
	Elements, Vertices, Edges, Faces int
	BoundaryFaces                    int
	MinSize, MaxSize, MeanSize       float64
	MinVolume, MaxVolume             float64
	TotalVolume                      float64
	MaxLevel                         int
	PerRegion                        map[string]int
	PerPort                          map[int]int
}

func (m *Mesh) Stats() Stats {
	K := len(m.EToV)
	s := Stats{
		Elements:  K,
		Vertices:  len(m.Vertices),
		Edges:     len(m.Edges),
		Faces:     len(m.Faces),
		PerRegion: make(map[string]int),
		PerPort:   make(map[int]int),
	}
	sizes := make([]float64, K)
	vols := make([]float64, K)
	for k := 0; k < K; k++ {
		sizes[k] = m.Size(k)
		vols[k] = m.Geometry[k].Volume
		s.PerRegion[m.Model.Regions[m.Region[k]].Name]++
		if m.Level[k] > s.MaxLevel {
			s.MaxLevel = m.Level[k]
		}
	}
	for i := range m.Faces {
		if m.Faces[i].Boundary() {
			s.BoundaryFaces++
		}
	}
	for p, faces := range m.PortFaces {
		s.PerPort[p] = len(faces)
	}
	if K > 0 {
		s.MinSize, s.MaxSize = floats.Min(sizes), floats.Max(sizes)
		s.MeanSize = stat.Mean(sizes, nil)
		s.MinVolume, s.MaxVolume = floats.Min(vols), floats.Max(vols)
		s.TotalVolume = floats.Sum(vols)
	}
	return s
}

func (m *Mesh) String() string {
	s := m.Stats()
	var sb strings.Builder
	sb.WriteString("=== Mesh Summary ===\n")
	sb.WriteString(fmt.Sprintf("  Elements: %d, Vertices: %d, Edges: %d\n", s.Elements, s.Vertices, s.Edges))
	sb.WriteString(fmt.Sprintf("  Faces: %d (%d on the boundary)\n", s.Faces, s.BoundaryFaces))
	sb.WriteString(fmt.Sprintf("  Element size: [%.4g, %.4g], mean %.4g\n", s.MinSize, s.MaxSize, s.MeanSize))
	sb.WriteString(fmt.Sprintf("  Element volume: [%.4g, %.4g], total %.4g\n", s.MinVolume, s.MaxVolume, s.TotalVolume))
	sb.WriteString(fmt.Sprintf("  Refinement levels: %d\n", s.MaxLevel))

	sb.WriteString("\n--- Regions ---\n")
	names := make([]string, 0, len(s.PerRegion))
	for n := range s.PerRegion {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		sb.WriteString(fmt.Sprintf("  %-12s %d elements\n", n, s.PerRegion[n]))
	}

	sb.WriteString("\n--- Ports ---\n")
	ports := make([]int, 0, len(s.PerPort))
	for p := range s.PerPort {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	for _, p := range ports {
		sb.WriteString(fmt.Sprintf("  port %d: %d faces\n", p, s.PerPort[p]))
	}
	return sb.String()
}
