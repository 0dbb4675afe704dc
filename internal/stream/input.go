package stream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// Decompression modes.
const (
	DecompressAuto = "auto"
	DecompressNone = "none"
)

// Encoding selectors. Anything else is treated as a charset label.
const (
	EncodingUTF8 = "utf-8"
	EncodingAuto = "auto"
)

// sniffSize matches the read limit mimetype uses for detection.
const sniffSize = 3072

var (
	ErrUnknownDecompress = errors.New("unknown decompression mode")
	ErrUnknownEncoding   = errors.New("unknown input encoding")
)

// InputOptions control how raw input bytes become UTF-8 text.
type InputOptions struct {
	Decompress string
	Encoding   string
}

// Input is a decoded input stream. Close releases every layer that was
// opened for it; a caller supplied stdin is left open.
type Input struct {
	io.Reader

	// Format is the detected container, "gzip", "zstd" or a MIME type.
	Format string
	// Charset is the encoding the text was decoded from.
	Charset string

	closers []io.Closer
}

// Close closes the layers in reverse order of opening.
func (in *Input) Close() error {
	var errs []error
	for i := len(in.closers) - 1; i >= 0; i-- {
		if err := in.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	in.closers = nil
	return errors.Join(errs...)
}

// OpenInput opens path, or stdin when path is empty or "-", and wraps it
// with NewInput.
func OpenInput(path string, stdin io.Reader, opts InputOptions) (*Input, error) {
	if path == "" || path == "-" {
		return NewInput(stdin, opts)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	in, err := NewInput(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	in.closers = append([]io.Closer{f}, in.closers...)
	return in, nil
}

// NewInput sniffs the head of r, strips gzip or zstd compression when asked
// to, and decodes the text to UTF-8.
func NewInput(r io.Reader, opts InputOptions) (*Input, error) {
	in := &Input{Charset: EncodingUTF8}

	reader, err := in.decompress(r, opts.Decompress)
	if err != nil {
		in.Close()
		return nil, err
	}
	reader, err = in.decode(reader, opts.Encoding)
	if err != nil {
		in.Close()
		return nil, err
	}
	in.Reader = reader
	return in, nil
}

func (in *Input) decompress(r io.Reader, mode string) (io.Reader, error) {
	switch strings.ToLower(mode) {
	case "", DecompressAuto:
	case DecompressNone:
		in.Format = "text/plain"
		return r, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDecompress, mode)
	}

	br := bufio.NewReaderSize(r, sniffSize)
	head, err := peek(br)
	if err != nil {
		return nil, err
	}

	mtype := mimetype.Detect(head)
	switch {
	case mtype.Is("application/gzip"):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip input: %w", err)
		}
		in.Format = "gzip"
		in.closers = append(in.closers, gz)
		return gz, nil
	case mtype.Is("application/zstd"):
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd input: %w", err)
		}
		in.Format = "zstd"
		rc := zr.IOReadCloser()
		in.closers = append(in.closers, rc)
		return rc, nil
	default:
		in.Format = mtype.String()
		return br, nil
	}
}

func (in *Input) decode(r io.Reader, encoding string) (io.Reader, error) {
	label := strings.ToLower(strings.TrimSpace(encoding))
	switch label {
	case "", EncodingUTF8, "utf8":
		return r, nil
	case EncodingAuto:
		br := bufio.NewReaderSize(r, sniffSize)
		head, err := peek(br)
		if err != nil {
			return nil, err
		}
		detected := DetectCharset(head)
		decoded, err := charset.NewReaderLabel(detected, br)
		if err != nil {
			// Unsupported detection result, pass the bytes through
			return br, nil
		}
		in.Charset = detected
		return decoded, nil
	default:
		decoded, err := charset.NewReaderLabel(label, r)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, encoding)
		}
		in.Charset = label
		return decoded, nil
	}
}

// DetectCharset guesses the encoding of data, defaulting to UTF-8.
func DetectCharset(data []byte) string {
	if len(data) == 0 {
		return EncodingUTF8
	}
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return EncodingUTF8
	}
	return strings.ToLower(result.Charset)
}

// peek returns the bytes delivered by the first read, at most sniffSize,
// without consuming them. It never waits for more than one read, so a
// stream that stays open is not stalled before its first line is processed.
func peek(br *bufio.Reader) ([]byte, error) {
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read input header: %w", err)
	}
	head, _ := br.Peek(min(br.Buffered(), sniffSize))
	return head, nil
}
