// Package conv provides checked integer conversions for values written into
// fixed-width on-disk fields.
package conv
