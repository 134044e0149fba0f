// Package columnar flattens store columns into their physical form and
// builds compressed snapshots of whole stores.
//
// # Chunks
//
// A Chunk is the physical form of one leaf column: the present values,
// the repetition and definition levels that restore nesting and nulls,
// and optionally a dictionary with per-value indexes:
//
//	chunk, err := columnar.Flatten(node, col, 0.5)
//	fragment := chunk.Fragment()
//	err = store.LoadColumn(node, fragment)
//
// String and bytes columns are dictionary encoded when the ratio of
// distinct to total values is below the threshold.
//
// # Snapshots
//
// Snapshot encodes every leaf chunk of a store and compresses the result
// with one of the codecs of the compression package. Restore rebuilds a
// store from a snapshot by loading every chunk through Store.LoadColumn,
// so restored columns pass through the same merge pipeline as columns
// read from storage:
//
//	data, err := columnar.Snapshot(store, cfg.Snapshot)
//	restored, err := columnar.Restore(sch, data)
//
// The snapshot layout is
//
//	magic "DRML" | version | algorithm id | compressed payload
//
// where the payload holds the row count followed by length-prefixed
// chunks. Integers are varints; signed values use zigzag encoding.
package columnar
