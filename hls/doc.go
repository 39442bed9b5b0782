// Package hls reads the output tree written by the encoder and derives the
// technical metadata stored for each rendition.
//
// The master manifest lists one #EXT-X-STREAM-INF entry per variant; each
// variant has its own sub-manifest of EXTINF segments. Durations and sizes
// are aggregated from the files on disk, codec details come from ffprobe.
// The progressive file is probed directly.
package hls
