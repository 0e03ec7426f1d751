// Package compositor turns a block-aligned source image into a photomosaic.
//
// The source is cut into a grid of BlockSize x BlockSize regions. For each
// region the compositor computes the root-mean-square average color, asks a
// ColorMatcher for the closest library tile, fetches that tile at
// BlockSize*Magnification pixels from a TileResolver and copies it into the
// matching cell of the output canvas.
//
// Every output pixel belongs to exactly one region, so the result does not
// depend on the number of workers or the order in which regions finish.
package compositor
