package manager

import (
	"github.com/dot5enko/volume-block-index/manager/meta"
	"github.com/dot5enko/volume-block-index/manager/query"
)

// SelectBlocks picks the blocks of index that can hold voxels matching q,
// for example the blocks crossed by an iso surface.
func (m *Manager) SelectBlocks(index *meta.IndexFile, q query.Query) (*query.Selection, error) {

	sel, err := query.Select(index.Blocks, q)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("blocks selected",
		"index", index.Path,
		"conditions", len(q.Filter),
		"selected", len(sel.Blocks),
		"full", len(sel.Full),
		"blocks", len(index.Blocks),
	)

	return sel, nil
}
