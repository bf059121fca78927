// Package bytecodec implements the order-preserving integer encoding used for
// table rows.
//
// Every uint32 encodes to 1..6 bytes, none of which is NUL, so encoded rows can be
// stored as NUL-terminated sequences. The code is prefix-free and monotonic:
// for a < b, Append(nil, a) sorts before Append(nil, b) under bytes.Compare, and
// neither is a prefix of the other. Concatenating the encodings of a row's columns
// therefore yields byte strings whose lexicographic order is the row order
// (column by column, shorter prefix first).
//
// # Layout
//
//	v < 240                 one byte v+1                    (0x01..0xF0)
//	v >= 240                0xF0+k, then k digits           (0xF1..0xF5)
//
// The k digits are the minimal big-endian base-255 representation of v-240,
// each stored as digit+1.
package bytecodec
