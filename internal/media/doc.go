// Package media provides the image primitives used by the mosaic builder:
// decoding library and source images, nearest-neighbor resizing, the
// root-mean-square average color used as the matching key, and atomic
// encoding of the finished mosaic.
//
// Tiles can optionally be decoded and scaled with libvips (see InitVips and
// LoadTileWithVips); everything else goes through the imaging package.
package media
