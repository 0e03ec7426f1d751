// Package matcher picks, for a target average color, the library tile whose
// indexed average color is closest.
//
// The default metric compares squared channel values rather than raw ones,
// which weights differences in bright channels more heavily. A CIE L*a*b*
// metric is available as an alternative.
package matcher
