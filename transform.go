package epubtext

import (
	"io"

	"golang.org/x/text/transform"
)

// maxEntityScan bounds how far past an "&" the streaming decoder looks for
// the closing ";". No reference in the entity table comes anywhere near
// this length.
const maxEntityScan = 32

// EntityDecoder returns a transform.Transformer that expands character
// entity references in a byte stream, using the same table and numeric
// rules as DecodeEntities. Unrecognized references pass through unchanged.
//
// The streaming form scans a bounded window for each reference, so an "&"
// whose ";" lies more than maxEntityScan bytes away is emitted literally
// and the following bytes are decoded independently; DecodeEntities treats
// such a span as one opaque reference instead. Both leave the bytes
// undecoded, but text after the span may decode differently.
func EntityDecoder() transform.Transformer {
	return entityDecoder{}
}

// NewDecodingReader wraps r so that reads observe entity references
// expanded as by DecodeEntities.
func NewDecodingReader(r io.Reader) io.Reader {
	return transform.NewReader(r, entityDecoder{})
}

type entityDecoder struct{}

func (entityDecoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	table := entityTable()

	for nSrc < len(src) && nDst < len(dst) {
		c := src[nSrc]
		if c != '&' {
			dst[nDst] = c
			nSrc++
			nDst++
			continue
		}

		// Locate the ";" closing the reference within the scan window.
		refLen := 0
		for i := 1; i < maxEntityScan; i++ {
			if nSrc+i == len(src) {
				if !atEOF {
					err = transform.ErrShortSrc
					return
				}
				break
			}
			if src[nSrc+i] == ';' {
				refLen = i + 1
				break
			}
		}
		if refLen == 0 {
			// No closing ";" in reach: the "&" is literal text.
			dst[nDst] = c
			nSrc++
			nDst++
			continue
		}

		ref := string(src[nSrc : nSrc+refLen])
		decoded := ref
		if repl, ok := table[ref]; ok {
			decoded = repl
		} else if r, ok := decodeNumeric(ref); ok {
			decoded = string(r)
		}
		if len(decoded) > len(dst)-nDst {
			err = transform.ErrShortDst
			return
		}
		nDst += copy(dst[nDst:], decoded)
		nSrc += refLen
	}

	if nSrc < len(src) && err == nil {
		err = transform.ErrShortDst
	}
	return
}

func (entityDecoder) Reset() {}
