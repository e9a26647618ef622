// Package subunit implements the binary wire envelope testr uses to stream
// test events between workers, the repository and the UI.
//
// The real subunit v2 protocol is maintained outside the Go ecosystem (as a
// C library with Python bindings) and nothing in the example corpus ships a
// Go codec for it; spec.md itself treats the wire codec as an opaque
// external collaborator ("the subunit wire-format codec (treated as an
// opaque bidirectional decoder/encoder for test events)"). This package is
// the leaf that stands in for that collaborator: everything above it only
// ever sees event.TestEvent values through the Encoder/Decoder interface,
// never raw bytes. The envelope below mirrors the real format's shape
// (signature byte, flags, length-prefixed fields, CRC32 trailer) closely
// enough to round-trip every TestEvent testr produces and consumes, without
// claiming interoperability with third-party subunit tooling.
package subunit

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"sort"
	"time"

	"github.com/coalesceci/testr/internal/event"
	"github.com/coalesceci/testr/internal/testid"
)

// signature marks the start of a subunit packet, mirroring subunit v2's
// 0xB3 lead byte.
const signature byte = 0xB3

// Flag bits indicating which optional fields follow the status byte.
const (
	flagTestID uint16 = 1 << iota
	flagTags
	flagTimestamp
	flagFile
)

var statusCode = map[event.Status]byte{
	event.InProgress: 0,
	event.Exists:     1,
	event.Success:    2,
	event.Fail:       3,
	event.Skip:       4,
	event.XFail:      5,
	event.UXSuccess:  6,
}

var codeStatus = func() map[byte]event.Status {
	m := make(map[byte]event.Status, len(statusCode))
	for s, c := range statusCode {
		m[c] = s
	}
	return m
}()

// Encoder writes TestEvents to an underlying stream as subunit packets.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one TestEvent as a subunit packet.
func (e *Encoder) Encode(ev event.TestEvent) error {
	var body bytes.Buffer

	flags := uint16(0)
	if ev.ID != "" {
		flags |= flagTestID
	}
	if len(ev.Tags) > 0 {
		flags |= flagTags
	}
	if !ev.Timestamp.IsZero() {
		flags |= flagTimestamp
	}
	if ev.FileName != "" || ev.MIMEType != "" || ev.FileBytes != nil {
		flags |= flagFile
	}

	code, ok := statusCode[ev.Status]
	if !ok {
		return fmt.Errorf("subunit: unknown status %q", ev.Status)
	}

	binary.Write(&body, binary.BigEndian, flags)
	body.WriteByte(code)

	if flags&flagTestID != 0 {
		writeString(&body, string(ev.ID))
	}
	if flags&flagTags != 0 {
		tags := make([]string, 0, len(ev.Tags))
		for t := range ev.Tags {
			tags = append(tags, t)
		}
		sort.Strings(tags)
		binary.Write(&body, binary.BigEndian, uint16(len(tags)))
		for _, t := range tags {
			writeString(&body, t)
		}
	}
	if flags&flagTimestamp != 0 {
		binary.Write(&body, binary.BigEndian, ev.Timestamp.UnixNano())
	}
	if flags&flagFile != 0 {
		writeString(&body, ev.FileName)
		writeString(&body, ev.MIMEType)
		writeBytes(&body, ev.FileBytes)
	}

	if _, err := e.w.Write([]byte{signature}); err != nil {
		return err
	}
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(body.Len()))
	if _, err := e.w.Write(length[:]); err != nil {
		return err
	}
	if _, err := e.w.Write(body.Bytes()); err != nil {
		return err
	}

	crc := crc32.NewIEEE()
	crc.Write([]byte{signature})
	crc.Write(length[:])
	crc.Write(body.Bytes())
	var trailer [4]byte
	binary.BigEndian.PutUint32(trailer[:], crc.Sum32())
	_, err := e.w.Write(trailer[:])
	return err
}

func writeString(b *bytes.Buffer, s string) {
	writeBytes(b, []byte(s))
}

func writeBytes(b *bytes.Buffer, p []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(p)))
	b.Write(length[:])
	b.Write(p)
}

// RawChunk is yielded by Decoder.Next when non-subunit bytes are
// encountered on the stream; the caller decides how to surface them (spec
// requires re-emitting them as an attachment on a synthetic test).
type RawChunk struct {
	Bytes []byte
}

// Decoder reads TestEvents (or raw passthrough chunks) from an underlying
// stream.
type Decoder struct {
	r       *bufio.Reader
	pending *event.TestEvent
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next TestEvent, or a RawChunk if non-subunit bytes were
// encountered before the next packet signature. It returns io.EOF when the
// stream is exhausted cleanly.
func (d *Decoder) Next() (*event.TestEvent, *RawChunk, error) {
	if d.pending != nil {
		ev := d.pending
		d.pending = nil
		return ev, nil, nil
	}

	var raw bytes.Buffer
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				if raw.Len() > 0 {
					return nil, &RawChunk{Bytes: raw.Bytes()}, nil
				}
				return nil, nil, io.EOF
			}
			return nil, nil, err
		}

		if b != signature {
			raw.WriteByte(b)
			continue
		}

		var consumed bytes.Buffer
		ev, perr := d.decodePacket(io.TeeReader(d.r, &consumed))
		if perr != nil {
			// Not a real packet after all (e.g. 0xB3 occurring in
			// opaque output); treat the signature byte and every byte
			// the failed attempt read as raw, and keep scanning after
			// them. Those bytes are not searched again for a packet.
			raw.WriteByte(b)
			raw.Write(consumed.Bytes())
			continue
		}

		if raw.Len() > 0 {
			// Push back isn't available on bufio without a length
			// cap; instead, surface the raw chunk now and remember
			// the already-decoded packet for the following call.
			d.pending = ev
			return nil, &RawChunk{Bytes: raw.Bytes()}, nil
		}
		return ev, nil, nil
	}
}

func (d *Decoder) decodePacket(src io.Reader) (*event.TestEvent, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(src, lengthBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lengthBuf[:])

	body := make([]byte, length)
	if _, err := io.ReadFull(src, body); err != nil {
		return nil, err
	}

	var trailerBuf [4]byte
	if _, err := io.ReadFull(src, trailerBuf[:]); err != nil {
		return nil, err
	}

	crc := crc32.NewIEEE()
	crc.Write([]byte{signature})
	crc.Write(lengthBuf[:])
	crc.Write(body)
	if crc.Sum32() != binary.BigEndian.Uint32(trailerBuf[:]) {
		return nil, fmt.Errorf("subunit: crc mismatch")
	}

	r := bytes.NewReader(body)
	var flags uint16
	if err := binary.Read(r, binary.BigEndian, &flags); err != nil {
		return nil, err
	}
	codeByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	status, ok := codeStatus[codeByte]
	if !ok {
		return nil, fmt.Errorf("subunit: unknown status code %d", codeByte)
	}

	ev := event.TestEvent{Status: status}

	if flags&flagTestID != 0 {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		ev.ID = testid.ID(s)
	}
	if flags&flagTags != 0 {
		var count uint16
		if err := binary.Read(r, binary.BigEndian, &count); err != nil {
			return nil, err
		}
		if count > 0 {
			ev.Tags = make(map[string]struct{}, count)
			for i := uint16(0); i < count; i++ {
				s, err := readString(r)
				if err != nil {
					return nil, err
				}
				ev.Tags[s] = struct{}{}
			}
		}
	}
	if flags&flagTimestamp != 0 {
		var nanos int64
		if err := binary.Read(r, binary.BigEndian, &nanos); err != nil {
			return nil, err
		}
		ev.Timestamp = time.Unix(0, nanos).UTC()
	}
	if flags&flagFile != 0 {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		mime, err := readString(r)
		if err != nil {
			return nil, err
		}
		content, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		ev.FileName = name
		ev.MIMEType = mime
		ev.FileBytes = content
	}

	return &ev, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	return string(b), err
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(lengthBuf[:])
	buf := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}
