// Package protocol groups the Blaze wire primitives.
//
// Layering, bottom up:
// - varint: the 6+7 bit variable-length integer
// - label: four-character labels packed into three-byte tags
// - tdf: labelled typed values and content lists
// - packet: the 12/14 byte header, builders and buffered frames
// - stream: incremental framing over byte streams
package protocol
