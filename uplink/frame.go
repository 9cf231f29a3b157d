package uplink

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/atsika/cyphalcan/cyphal"
)

// recordFrameHeaderSize is the fixed portion of an encoded Record, before its
// variable-length payload: timestamp, kind, port, transfer id, a source
// presence flag + value, and a payload length.
const recordFrameHeaderSize = 4 + 1 + 2 + 1 + 1 + 1 + 2

// encodeRecords packs a batch of Records using the teacher's
// length-prefixed frame convention (frame.go's BuildFrame): each record
// becomes one frame of [2 bytes: length][1 byte: type=recordFrameType][N
// bytes: payload], concatenated into a single archive blob.
const recordFrameType = 0x01

func encodeRecords(records []Record) []byte {
	var buf bytes.Buffer
	for _, r := range records {
		body := encodeRecord(r)
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(body)))
		buf.Write(lenBuf[:])
		buf.WriteByte(recordFrameType)
		buf.Write(body)
	}
	return buf.Bytes()
}

func encodeRecord(r Record) []byte {
	var buf bytes.Buffer
	var ts [4]byte
	binary.BigEndian.PutUint32(ts[:], uint32(r.Timestamp))
	buf.Write(ts[:])
	buf.WriteByte(byte(r.Kind))
	var port [2]byte
	binary.BigEndian.PutUint16(port[:], uint16(r.Port))
	buf.Write(port[:])
	buf.WriteByte(byte(r.TransferID))
	if r.Source != nil {
		buf.WriteByte(1)
		buf.WriteByte(byte(*r.Source))
	} else {
		buf.WriteByte(0)
		buf.WriteByte(0)
	}
	var plen [2]byte
	binary.BigEndian.PutUint16(plen[:], uint16(len(r.Payload)))
	buf.Write(plen[:])
	buf.Write(r.Payload)
	return buf.Bytes()
}

// decodeRecords is the inverse of encodeRecords; it is exercised by the
// test suite to assert the framing round-trips and by a future
// fleet-side replay tool, not by the Recorder's own write path.
func decodeRecords(data []byte) ([]Record, error) {
	var out []Record
	for len(data) > 0 {
		if len(data) < 3 {
			return nil, fmt.Errorf("uplink: truncated frame header")
		}
		length := binary.BigEndian.Uint16(data[:2])
		typ := data[2]
		data = data[3:]
		if int(length) > len(data) {
			return nil, fmt.Errorf("uplink: truncated frame body")
		}
		body := data[:length]
		data = data[length:]
		if typ != recordFrameType {
			continue
		}
		rec, err := decodeRecord(body)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func decodeRecord(body []byte) (Record, error) {
	if len(body) < recordFrameHeaderSize {
		return Record{}, fmt.Errorf("uplink: malformed record frame")
	}
	var r Record
	r.Timestamp = cyphal.Timestamp(binary.BigEndian.Uint32(body[0:4]))
	r.Kind = cyphal.Kind(body[4])
	r.Port = cyphal.PortId(binary.BigEndian.Uint16(body[5:7]))
	r.TransferID = cyphal.TransferId(body[7])
	hasSource := body[8] != 0
	if hasSource {
		n := cyphal.NodeId(body[9])
		r.Source = &n
	}
	plen := binary.BigEndian.Uint16(body[10:12])
	rest := body[12:]
	if int(plen) > len(rest) {
		return Record{}, fmt.Errorf("uplink: malformed record payload length")
	}
	r.Payload = append([]byte(nil), rest[:plen]...)
	return r, nil
}
