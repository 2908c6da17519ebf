// Package dmx implements Valve's DMX ("Data Model X") interchange format.
//
// A DMX document is a directed graph of typed, named elements. Each
// element carries an ordered attribute map whose values are drawn from a
// closed set of kinds (scalars, vectors, matrices, binary blobs, element
// references) plus homogeneous arrays of the same. The graph may contain
// shared subgraphs and cycles; both survive a round-trip.
//
// # Encodings
//
// Documents round-trip between the in-memory graph and three on-disk
// encodings, selected by the file header:
//   - binary (versions 1-5): compact little-endian encoding with a
//     string pool at version 2 and above
//   - keyvalues2: textual, element literals inlined at first reference
//   - keyvalues2_flat: textual, every element a top-level literal
//
// Every file begins with a single header line:
//
//	<!-- dmx encoding <name> <version> format <format> <version> -->
//
// # Data Model
//
// Elements are identified by UUID; element-reference attributes store the
// target's UUID with uuid.Nil as the null sentinel. A Document owns the
// element set and the root; lookups go through the document index, so
// cycles are never an ownership problem.
//
// # Example
//
//	root := dmx.NewElement("session", "DmElement")
//	doc := dmx.NewDocument(root)
//	root.Set("frameRate", dmx.Int(24))
//
//	clip := dmx.NewElement("clip1", "DmeClip")
//	doc.SetChild(root, "activeClip", clip)
//
//	var buf bytes.Buffer
//	err := dmx.Serialize(&buf, doc, &dmx.Header{
//		Encoding: "binary", EncodingVersion: 5,
//		Format: "sfm", FormatVersion: 1,
//	})
//
// Decoding is the reverse:
//
//	header, doc, err := dmx.Deserialize(&buf)
//
// The codec is synchronous and single-threaded; a document must not be
// mutated while it is being encoded.
package dmx
