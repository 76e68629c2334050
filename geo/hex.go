package geo

import (
	"fmt"
	"math"

	md "wuyrush.io/serendipity/models"
)

var sqrt3 = math.Sqrt(3)

// Cell is a pointy-top hex bucket in axial coordinates. Cells are only comparable when built with the
// same circumradius.
type Cell struct {
	Q, R   int
	Radius float64
}

// ID identifies the cell among cells of the same radius.
func (c Cell) ID() string {
	return fmt.Sprintf("%d:%d", c.Q, c.R)
}

// Center is the canonical position of the cell.
func (c Cell) Center() md.Location {
	x := c.Radius * sqrt3 * (float64(c.Q) + float64(c.R)/2)
	y := c.Radius * 1.5 * float64(c.R)
	return fromPlanar(x, y)
}

// HexCellOf quantizes l into the hex cell of circumradius radiusMeters containing it. Points sitting on a
// cell boundary, within floating error, may land on either side.
func HexCellOf(l md.Location, radiusMeters float64) Cell {
	x, y := toPlanar(l)
	q := (sqrt3/3*x - y/3) / radiusMeters
	r := (2.0 / 3 * y) / radiusMeters
	rq, rr := roundAxial(q, r)
	return Cell{Q: rq, R: rr, Radius: radiusMeters}
}

func toPlanar(l md.Location) (x, y float64) {
	y = l.Latitude * MetersPerDegree
	x = l.Longitude * MetersPerDegree * math.Cos(toRadians(l.Latitude))
	return
}

func fromPlanar(x, y float64) md.Location {
	lat := y / MetersPerDegree
	return md.Location{
		Latitude:  lat,
		Longitude: x / (MetersPerDegree * math.Cos(toRadians(lat))),
	}
}

// roundAxial rounds fractional axial coordinates through cube coordinates, fixing the component with
// the largest rounding error so that x + y + z == 0 holds.
func roundAxial(q, r float64) (int, int) {
	x, z := q, r
	y := -x - z
	rx, ry, rz := math.Round(x), math.Round(y), math.Round(z)
	dx, dy, dz := math.Abs(rx-x), math.Abs(ry-y), math.Abs(rz-z)
	if dx > dy && dx > dz {
		rx = -ry - rz
	} else if dy <= dz {
		rz = -rx - ry
	}
	return int(rx), int(rz)
}
