// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package utilfn

import (
	"bytes"
	"context"
	"errors"
	"io"
)

// LineBuf splits a byte stream into lines. Partial lines are kept until the
// newline arrives; lines longer than MaxLineLength are cut and the rest discarded.
type LineBuf struct {
	buf        []byte
	inLongLine bool
}

const MaxLineLength = 64 * 1024

func MakeLineBuf() *LineBuf {
	return &LineBuf{
		buf: make([]byte, 0, 256),
	}
}

// GetPartialAndReset returns whatever is buffered (no trailing newline) and clears it
func (lb *LineBuf) GetPartialAndReset() string {
	rtn := string(lb.buf)
	lb.buf = lb.buf[:0]
	lb.inLongLine = false
	return rtn
}

// ProcessBuf returns the complete lines in readBuf without their line terminators
func (lb *LineBuf) ProcessBuf(readBuf []byte) (lines []string) {
	var pos int
	for pos < len(readBuf) {
		if lb.inLongLine {
			nlIdx := bytes.IndexByte(readBuf[pos:], '\n')
			if nlIdx == -1 {
				return
			}
			pos = pos + nlIdx + 1
			lb.inLongLine = false
			continue
		}
		nlIdx := bytes.IndexByte(readBuf[pos:], '\n')
		var chunk []byte
		if nlIdx == -1 {
			chunk = readBuf[pos:]
		} else {
			chunk = readBuf[pos : pos+nlIdx]
		}
		room := MaxLineLength - len(lb.buf)
		if len(chunk) >= room {
			lb.buf = append(lb.buf, chunk[:room]...)
			lines = append(lines, string(lb.buf))
			lb.buf = lb.buf[:0]
			if nlIdx == -1 {
				lb.inLongLine = true
				return
			}
			pos = pos + nlIdx + 1
			continue
		}
		lb.buf = append(lb.buf, chunk...)
		if nlIdx == -1 {
			return
		}
		pos = pos + nlIdx + 1
		lines = append(lines, string(bytes.TrimSuffix(lb.buf, []byte{'\r'})))
		lb.buf = lb.buf[:0]
	}
	return
}

// StreamToLines reads r until EOF, calling fn for every line including a final
// unterminated one. ctx is checked between reads.
func StreamToLines(ctx context.Context, r io.Reader, fn func(line string)) error {
	lineBuf := MakeLineBuf()
	readBuf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(readBuf)
		if n > 0 {
			for _, line := range lineBuf.ProcessBuf(readBuf[:n]) {
				fn(line)
			}
		}
		if errors.Is(err, io.EOF) {
			if partial := lineBuf.GetPartialAndReset(); partial != "" {
				fn(partial)
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}
