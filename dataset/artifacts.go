package dataset

import (
	"path/filepath"

	"room_occupancy/pipeline"
)

const (
	FeaturesFile = "room_presence_features.json"
	MetaFile     = "room_presence_meta.json"
)

// WriteArtifacts stores the feature list and meta next to each other in dir
func WriteArtifacts(dir string, meta Meta) error {
	if err := pipeline.WriteFeatureList(filepath.Join(dir, FeaturesFile), meta.Features); err != nil {
		return err
	}
	return pipeline.WriteJSON(filepath.Join(dir, MetaFile), meta)
}
