package config

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/notargets/EMKernel/geometry"
	"github.com/notargets/EMKernel/material"
	"github.com/notargets/EMKernel/utils"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"gonum.org/v1/gonum/spatial/r2"
)

// Units available as variables in a deck. Lengths are in meters and
// frequencies in Hz.
var Units = map[string]float64{
	"m":   1,
	"mm":  1e-3,
	"um":  1e-6,
	"mil": 25.4e-6,
	"Hz":  1,
	"kHz": 1e3,
	"MHz": 1e6,
	"GHz": 1e9,
}

type deckHead struct {
	Params *struct {
		Body hcl.Body `hcl:",remain"`
	} `hcl:"params,block"`
	Rest hcl.Body `hcl:",remain"`
}

type deckBody struct {
	Materials []materialBlock `hcl:"material,block"`
	Stackup   stackupBlock    `hcl:"stackup,block"`
	Margins   *marginsBlock   `hcl:"margins,block"`
	Paths     []pathBlock     `hcl:"path,block"`
	Polygons  []polygonBlock  `hcl:"polygon,block"`
	Planes    []planeBlock    `hcl:"plane,block"`
	Ports     []portBlock     `hcl:"port,block"`
}

type materialBlock struct {
	Name         string   `hcl:"name,label"`
	Kind         string   `hcl:"kind"`
	EpsR         *float64 `hcl:"eps_r,optional"`
	TanD         *float64 `hcl:"tan_d,optional"`
	RefFrequency *float64 `hcl:"ref_frequency,optional"`
	MuR          *float64 `hcl:"mu_r,optional"`
	Conductivity *float64 `hcl:"conductivity,optional"`
	Roughness    *float64 `hcl:"roughness,optional"`
	PEC          *bool    `hcl:"pec,optional"`
}

type stackupBlock struct {
	Substrate          string   `hcl:"substrate"`
	SubstrateThickness float64  `hcl:"substrate_thickness"`
	Trace              string   `hcl:"trace"`
	TraceThickness     *float64 `hcl:"trace_thickness,optional"`
	Ground             *string  `hcl:"ground,optional"`
	AirAbove           *float64 `hcl:"air_above,optional"`
	AirBelow           *float64 `hcl:"air_below,optional"`
	Air                *string  `hcl:"air,optional"`
}

type marginsBlock struct {
	Left   *float64 `hcl:"left,optional"`
	Right  *float64 `hcl:"right,optional"`
	Bottom *float64 `hcl:"bottom,optional"`
	Top    *float64 `hcl:"top,optional"`
}

type pathBlock struct {
	Steps []stepBlock `hcl:"step,block"`
}

type stepBlock struct {
	Kind      string    `hcl:"kind,label"`
	At        []float64 `hcl:"at,optional"`
	Width     *float64  `hcl:"width,optional"`
	Direction []float64 `hcl:"direction,optional"`
	Length    *float64  `hcl:"length,optional"`
	Angle     *float64  `hcl:"angle,optional"`
	Name      *string   `hcl:"name,optional"`
}

type polygonBlock struct {
	Name     string      `hcl:"name,label"`
	Vertices [][]float64 `hcl:"vertices"`
}

type planeBlock struct {
	Name      string  `hcl:"name,label"`
	Z         float64 `hcl:"z"`
	Conductor *string `hcl:"conductor,optional"`
}

type portBlock struct {
	Name   string  `hcl:"name,label"`
	Index  int     `hcl:"index"`
	Anchor string  `hcl:"anchor"`
	Width  float64 `hcl:"width"`
	Height float64 `hcl:"height"`
	Mode   *string `hcl:"mode,optional"`
}

// Deck is a decoded design deck
type Deck struct {
	Design    geometry.Design
	Params    map[string]float64
	Materials map[string]material.Material
}

// LoadDeck reads an HCL design deck
func LoadDeck(path string) (*Deck, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse deck %s: %w", path, diags)
	}
	return decodeDeck(file)
}

// ParseDeck decodes a deck held in memory; filename is used in messages
func ParseDeck(src []byte, filename string) (*Deck, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse deck %s: %w", filename, diags)
	}
	return decodeDeck(file)
}

func evalContext() *hcl.EvalContext {
	vars := make(map[string]cty.Value, len(Units))
	for name, v := range Units {
		vars[name] = cty.NumberFloatVal(v)
	}
	return &hcl.EvalContext{
		Variables: vars,
		Functions: map[string]function.Function{
			"min":   stdlib.MinFunc,
			"max":   stdlib.MaxFunc,
			"abs":   stdlib.AbsoluteFunc,
			"floor": stdlib.FloorFunc,
			"ceil":  stdlib.CeilFunc,
		},
	}
}

func decodeDeck(file *hcl.File) (*Deck, error) {
	ctx := evalContext()
	var head deckHead
	if diags := gohcl.DecodeBody(file.Body, ctx, &head); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode deck: %w", diags)
	}

	deck := &Deck{Params: map[string]float64{}, Materials: map[string]material.Material{}}
	params := map[string]cty.Value{}
	if head.Params != nil {
		attrs, diags := head.Params.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode params: %w", diags)
		}
		// In source order, so a parameter may use the ones above it
		ordered := make([]*hcl.Attribute, 0, len(attrs))
		for _, a := range attrs {
			ordered = append(ordered, a)
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Range.Start.Byte < ordered[j].Range.Start.Byte })
		for _, a := range ordered {
			ctx.Variables["param"] = cty.ObjectVal(params)
			v, diags := a.Expr.Value(ctx)
			if diags.HasErrors() {
				return nil, fmt.Errorf("failed to evaluate param %s: %w", a.Name, diags)
			}
			if v.IsNull() || !v.IsKnown() || v.Type() != cty.Number {
				return nil, fmt.Errorf("param %s must be a number", a.Name)
			}
			params[a.Name] = v
			deck.Params[a.Name], _ = v.AsBigFloat().Float64()
		}
	}
	ctx.Variables["param"] = cty.ObjectVal(params)

	var body deckBody
	if diags := gohcl.DecodeBody(head.Rest, ctx, &body); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode deck: %w", diags)
	}

	for _, mb := range body.Materials {
		if _, dup := deck.Materials[mb.Name]; dup {
			return nil, utils.NewGeometryError("material "+mb.Name, "defined twice")
		}
		m, err := mb.build()
		if err != nil {
			return nil, err
		}
		deck.Materials[mb.Name] = m
	}
	d, err := body.design(deck.Materials)
	if err != nil {
		return nil, err
	}
	deck.Design = d
	return deck, nil
}

func or(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func (mb materialBlock) build() (material.Material, error) {
	switch strings.ToLower(mb.Kind) {
	case "dielectric":
		if mb.EpsR == nil {
			return nil, utils.NewGeometryError("material "+mb.Name, "eps_r is required")
		}
		return material.NewConductiveDielectric(mb.Name, *mb.EpsR, or(mb.TanD, 0), or(mb.RefFrequency, 0),
			or(mb.Conductivity, 0), or(mb.MuR, 1))
	case "conductor":
		sigma := or(mb.Conductivity, 0)
		if mb.PEC != nil && *mb.PEC {
			sigma = math.Inf(1)
		}
		return material.NewConductor(mb.Name, sigma, or(mb.Roughness, 0))
	}
	return nil, utils.NewGeometryError("material "+mb.Name, "unknown kind %q", mb.Kind)
}

func lookup[T material.Material](mats map[string]material.Material, name, use string) (T, error) {
	var zero T
	m, ok := mats[name]
	if !ok {
		return zero, utils.NewGeometryError(use, "undefined material %q", name)
	}
	t, ok := m.(T)
	if !ok {
		return zero, utils.NewGeometryError(use, "material %q is a %s", name, material.Describe(m))
	}
	return t, nil
}

func vec2(v []float64, op, field string) (r2.Vec, error) {
	if len(v) != 2 {
		return r2.Vec{}, utils.NewGeometryError(op, "%s needs two coordinates, got %d", field, len(v))
	}
	return r2.Vec{X: v[0], Y: v[1]}, nil
}

func (b deckBody) design(mats map[string]material.Material) (geometry.Design, error) {
	var (
		d   geometry.Design
		err error
	)
	st := b.Stackup
	d.Stackup = geometry.Stackup{
		SubstrateThickness: st.SubstrateThickness,
		TraceThickness:     or(st.TraceThickness, 0),
		AirAbove:           or(st.AirAbove, 0),
		AirBelow:           or(st.AirBelow, 0),
	}
	if d.Stackup.Substrate, err = lookup[*material.Dielectric](mats, st.Substrate, "stackup"); err != nil {
		return d, err
	}
	if d.Stackup.Trace, err = lookup[*material.Conductor](mats, st.Trace, "stackup"); err != nil {
		return d, err
	}
	if st.Ground != nil {
		if d.Stackup.Ground, err = lookup[*material.Conductor](mats, *st.Ground, "stackup"); err != nil {
			return d, err
		}
	}
	if st.Air != nil {
		if d.Stackup.Air, err = lookup[*material.Dielectric](mats, *st.Air, "stackup"); err != nil {
			return d, err
		}
	}
	if mg := b.Margins; mg != nil {
		d.Margins = geometry.Margins{Left: or(mg.Left, 0), Right: or(mg.Right, 0), Bottom: or(mg.Bottom, 0), Top: or(mg.Top, 0)}
	}

	for pi, pb := range b.Paths {
		path := geometry.NewPath()
		for si, s := range pb.Steps {
			op := fmt.Sprintf("path %d step %d (%s)", pi+1, si+1, s.Kind)
			switch s.Kind {
			case "start":
				at, err := vec2(s.At, op, "at")
				if err != nil {
					return d, err
				}
				dir, err := vec2(s.Direction, op, "direction")
				if err != nil {
					return d, err
				}
				path.Start(at, or(s.Width, 0), dir)
			case "from":
				if s.Name == nil {
					return d, utils.NewGeometryError(op, "name is required")
				}
				path.From(*s.Name)
			case "straight":
				path.Straight(or(s.Length, 0))
			case "turn":
				path.Turn(or(s.Angle, 0))
			case "store":
				if s.Name == nil {
					return d, utils.NewGeometryError(op, "name is required")
				}
				path.Store(*s.Name)
			default:
				return d, utils.NewGeometryError(op, "unknown step")
			}
		}
		d.Commands = append(d.Commands, path.Commands()...)
	}

	for _, pg := range b.Polygons {
		poly := geometry.Polygon{Name: pg.Name}
		for _, v := range pg.Vertices {
			p, err := vec2(v, "polygon "+pg.Name, "vertex")
			if err != nil {
				return d, err
			}
			poly.Vertices = append(poly.Vertices, p)
		}
		d.Polygons = append(d.Polygons, poly)
	}
	for _, pl := range b.Planes {
		plane := geometry.Plane{Name: pl.Name, Z: pl.Z}
		if pl.Conductor != nil {
			if plane.Conductor, err = lookup[*material.Conductor](mats, *pl.Conductor, "plane "+pl.Name); err != nil {
				return d, err
			}
		}
		d.Planes = append(d.Planes, plane)
	}
	for _, pb := range b.Ports {
		ps := geometry.PortSpec{Index: pb.Index, Anchor: pb.Anchor, Width: pb.Width, Height: pb.Height, Mode: "TEM"}
		if pb.Mode != nil {
			ps.Mode = *pb.Mode
		}
		d.Ports = append(d.Ports, ps)
	}
	return d, nil
}
