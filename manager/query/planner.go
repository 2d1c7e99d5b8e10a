package query

import (
	"github.com/dot5enko/volume-block-index/bits"
	"github.com/dot5enko/volume-block-index/schema"
)

// Query selects blocks whose statistics can satisfy every condition.
type Query struct {
	Filter []FilterCondition

	// blocks flagged empty by the avg filter are dropped unless set
	IncludeEmpty bool
}

type Selection struct {
	// every block that may hold matching voxels, ascending
	Blocks []uint64
	// the subset of Blocks where every voxel matches
	Full []uint64
}

func (s *Selection) Partial() int {
	return len(s.Blocks) - len(s.Full)
}

// blockMerger ANDs per condition results, stopping once nothing is left.
type blockMerger struct {
	candidates *bits.Bitfield
	full       *bits.Bitfield

	merges   int
	fullSkip bool
}

func newBlockMerger(size int) *blockMerger {
	return &blockMerger{
		candidates: bits.NewFullBitfield(size),
		full:       bits.NewFullBitfield(size),
	}
}

func (m *blockMerger) with(matched, full *bits.Bitfield) {
	m.merges++

	m.candidates.And(matched)
	m.full.And(full)

	if !m.candidates.Any() {
		m.fullSkip = true
	}
}

// Select runs q over the block records of an index. Only the stored
// statistics are consulted, the raw volume is never read.
func Select(blocks []schema.FileBlock, q Query) (*Selection, error) {

	for _, filter := range q.Filter {
		if err := filter.Validate(); err != nil {
			return nil, err
		}
	}

	n := len(blocks)
	merger := newBlockMerger(n)

	if !q.IncludeEmpty {
		empty := bits.NewBitfield(n)
		for i := range blocks {
			if blocks[i].IsEmpty() {
				empty.Set(i)
			}
		}
		merger.candidates.AndNot(empty)
	}

	matched := bits.NewBitfield(n)
	full := bits.NewBitfield(n)

	for _, filter := range q.Filter {
		if merger.fullSkip {
			break
		}

		matched.Reset()
		full.Reset()

		for i := range blocks {
			if !merger.candidates.Get(i) {
				continue
			}

			result, err := MatchBlock(filter, &blocks[i])
			if err != nil {
				return nil, err
			}

			switch result {
			case FullIntersection:
				full.Set(i)
				matched.Set(i)
			case PartialIntersection:
				matched.Set(i)
			}
		}

		merger.with(matched, full)
	}

	merger.full.And(merger.candidates)

	return &Selection{
		Blocks: merger.candidates.AppendIndices(make([]uint64, 0, merger.candidates.Count())),
		Full:   merger.full.AppendIndices(nil),
	}, nil
}
