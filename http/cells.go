package http

import (
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/orrery/spatial"
	"github.com/aukilabs/orrery/voronoi"
	"github.com/segmentio/encoding/json"
)

// Cell is the JSON representation of a cell. Points are unit vectors.
type Cell struct {
	Site      int          `json:"site"`
	Generator [3]float64   `json:"generator"`
	Centroid  [3]float64   `json:"centroid"`
	Radius    float64      `json:"radius"`
	Area      float64      `json:"area"`
	Vertices  [][3]float64 `json:"vertices"`
}

type cellsResponse struct {
	Cells []Cell `json:"cells"`
}

// NewCell converts a cell to its JSON representation.
func NewCell(c voronoi.Cell) Cell {
	vertices := make([][3]float64, len(c.Vertices))
	for i, v := range c.Vertices {
		vertices[i] = v
	}

	return Cell{
		Site:      c.Site,
		Generator: c.Generator,
		Centroid:  c.Centroid,
		Radius:    c.Radius,
		Area:      c.Area(),
		Vertices:  vertices,
	}
}

// HandleCells responds with the cells returned by source, encoded as JSON.
func HandleCells(source func() []voronoi.Cell) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cells := source()

		res := cellsResponse{
			Cells: make([]Cell, len(cells)),
		}
		for i, c := range cells {
			res.Cells[i] = NewCell(c)
		}
		writeJSON(w, res)
	}
}

// HandleDebugInfo responds with the debug info of a spatial partition,
// encoded as JSON.
func HandleDebugInfo(source func() spatial.DebugInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info := source()
		writeJSON(w, struct {
			NodeCount int   `json:"node_count"`
			LeafCount int   `json:"leaf_count"`
			Depth     int   `json:"depth"`
			ItemCount int   `json:"item_count"`
			Occupancy []int `json:"occupancy"`
		}{
			NodeCount: info.NodeCount,
			LeafCount: info.LeafCount,
			Depth:     info.Depth,
			ItemCount: info.ItemCount,
			Occupancy: info.Occupancy,
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Warn(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
