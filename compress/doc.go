// Package compress provides the chunk codecs used by the archive writer and reader.
//
// Every archive dataset is split into chunks and each chunk passes through one
// of these codecs before it is written. Deflate is the archive's contractual
// default (driven by the gzip_level setting); Zstd, S2 and LZ4 are available
// as alternatives for callers that control both ends.
package compress
