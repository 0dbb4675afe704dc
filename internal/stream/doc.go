// Package stream opens the byte streams a pipeline reads and writes.
//
// Input may be gzip or zstd compressed; the container is recognised from its
// magic bytes with mimetype rather than from the file name. Text in a legacy
// charset is converted to UTF-8 either by explicit label ("latin1",
// "windows-1252", ...) or by chardet detection when the encoding is "auto".
package stream
