// Package indexer refreshes the content index of a tile library directory.
//
// A refresh:
//   - takes the cross-process index lock
//   - loads <library>/.mosaic_index, dropping entries for deleted files
//   - fingerprints every file in the directory (md5 of its bytes) with a
//     fixed pool of workers
//   - reuses entries whose fingerprint is unchanged and decodes the rest to
//     compute their average color
//   - persists the full index
//
// Files that are not images are skipped with a warning. Subdirectories are
// not descended into.
package indexer
