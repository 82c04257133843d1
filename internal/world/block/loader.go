package block

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// jsonBlockSpec describes the on-disk schema for an asset-pack block
// definition — one JSON file per block type under an assets directory.
type jsonBlockSpec struct {
	ID          uint16 `json:"id"`
	Key         string `json:"key"`
	RenderClass string `json:"render_class"` // "voxel_cube" | "instanced_mesh" | "transparent_fluid"
	Durability  int    `json:"durability"`
	Transparent bool   `json:"transparent"`
	Solid       bool   `json:"solid"`
}

func parseRenderClass(s string) RenderClass {
	switch s {
	case "instanced_mesh":
		return RenderInstancedMesh
	case "transparent_fluid":
		return RenderTransparentFluid
	default:
		return RenderVoxelCube
	}
}

// LoadJSONBlocks walks dir and registers a block type for every *.json file
// found, overriding any built-in default with a matching ID.
func LoadJSONBlocks(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".json" {
			return err
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		dec := json.NewDecoder(file)
		var spec jsonBlockSpec
		if err := dec.Decode(&spec); err != nil {
			return fmt.Errorf("block json %s: %w", path, err)
		}

		Register(BlockType{
			ID:          BlockID(spec.ID),
			Key:         spec.Key,
			RenderClass: parseRenderClass(spec.RenderClass),
			Durability:  spec.Durability,
			Transparent: spec.Transparent,
			Solid:       spec.Solid,
		})
		return nil
	})
}
