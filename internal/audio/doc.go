// Package audio rewrites ID3 tags of organized releases so library
// players group them under the canonical artist/album/year regardless
// of how the source peer tagged them.
package audio
