package pipeline

import (
	"context"

	"github.com/jengzang/photomap-backend-go/internal/analysis/partition"
	"github.com/jengzang/photomap-backend-go/internal/dataset"
	"github.com/jengzang/photomap-backend-go/internal/spatial"
)

// ElbowRequest selects the k range to scan
type ElbowRequest struct {
	KMin      int   `json:"k_min" binding:"required"`
	KMax      int   `json:"k_max" binding:"required"`
	MaxPoints int   `json:"max_points"`
	Seed      int64 `json:"seed"`
}

// Elbow scores k-means over a k range on the first MaxPoints records
func Elbow(ctx context.Context, ds *dataset.Dataset, req ElbowRequest) (*partition.ElbowReport, error) {
	if err := ds.RequireColumns(dataset.ColLat, dataset.ColLong); err != nil {
		return nil, err
	}
	if req.MaxPoints > 0 {
		ds = ds.Head(req.MaxPoints)
	}
	if ds.Len() == 0 {
		return nil, ErrEmptyDataset
	}

	points := make([]spatial.Point, ds.Len())
	for i, rec := range ds.Records {
		points[i] = spatial.Point{Lat: rec.Lat, Lon: rec.Lon}
	}
	return partition.Elbow(ctx, points, req.KMin, req.KMax, req.Seed)
}
