// Package catalog reads and writes the song catalog stored in a GitHub
// repository.
//
// An Aggregator builds the ordered catalog from the metadata index, scanning
// the metadata directory when the index has nothing usable. A Publisher adds
// a song as a sequence of independent commits: audio, optional cover,
// per-song metadata, index and finally the manifest, which is best effort.
package catalog
