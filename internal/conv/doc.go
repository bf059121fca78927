// Package conv converts between integer widths with range checks. It is used
// where a count or offset crosses from Go ints to the fixed-width fields of the
// file formats, in either direction.
package conv
