// Package index holds the content index of a tile library: for every
// library file that decodes as an image, its md5 fingerprint and its
// root-mean-square average color.
//
// The index is persisted as a single JSON document at
// <library>/.mosaic_index:
//
//	{"sunset.jpg": {"fingerprint": "9e107d9d...", "average": [212, 120, 64]}}
//
// Keys are file names relative to the library directory. Loading drops
// entries whose file has been deleted; a document that exists but cannot be
// parsed is reported as ErrCorruptIndex.
package index
