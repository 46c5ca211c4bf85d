package queue

import (
	"fmt"
	"strconv"
	"strings"

	"go.dedis.ch/protobuf"
)

// record is one message file in a directory queue.
type record struct {
	Seq      int64
	Value    int64
	SentUnix int64 // nanoseconds
}

// meta describes a directory queue; it is written once at creation.
type meta struct {
	Capacity    int64
	CreatedUnix int64 // nanoseconds
}

const (
	metaFile  = "queue.meta"
	msgPrefix = "m-"
	msgSuffix = ".msg"
	tmpPrefix = ".tmp-"
)

func encodeRecord(r *record) ([]byte, error) {
	buf, err := protobuf.Encode(r)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return buf, nil
}

func decodeRecord(buf []byte) (*record, error) {
	var r record
	if err := protobuf.Decode(buf, &r); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &r, nil
}

func encodeMeta(m *meta) ([]byte, error) {
	buf, err := protobuf.Encode(m)
	if err != nil {
		return nil, fmt.Errorf("encode queue meta: %w", err)
	}
	return buf, nil
}

func decodeMeta(buf []byte) (*meta, error) {
	var m meta
	if err := protobuf.Decode(buf, &m); err != nil {
		return nil, fmt.Errorf("decode queue meta: %w", err)
	}
	return &m, nil
}

// msgName returns a file name that sorts lexically by sequence number.
func msgName(seq int64) string {
	return fmt.Sprintf("%s%020d%s", msgPrefix, seq, msgSuffix)
}

// parseMsgName returns the sequence number encoded in a message file name.
func parseMsgName(name string) (int64, bool) {
	if !strings.HasPrefix(name, msgPrefix) || !strings.HasSuffix(name, msgSuffix) {
		return 0, false
	}
	seq, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, msgPrefix), msgSuffix), 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}
