package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const recordVersion1 = 1

var errCorruptRecord = errors.New("session record corrupt")

// Encode serializes a [Session] into the compact binary record stored in
// Redis. The SessionID is the Redis key and is not part of the blob.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	if len(s.AccountID) > 255 || len(s.Role) > 255 {
		return nil, errors.New("session field length exceeded")
	}

	var buf bytes.Buffer
	buf.WriteByte(recordVersion1)

	buf.WriteByte(byte(len(s.AccountID)))
	buf.WriteString(s.AccountID)
	buf.WriteByte(byte(len(s.Role)))
	buf.WriteString(s.Role)

	if err := binary.Write(&buf, binary.BigEndian, s.TokenVersion); err != nil {
		return nil, err
	}
	buf.WriteByte(s.Status)

	for _, ts := range []int64{s.CreatedAt, s.LastSeenAt, s.AbsoluteExpiry} {
		if err := binary.Write(&buf, binary.BigEndian, ts); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a binary session record. The caller sets SessionID from
// the Redis key afterwards.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != recordVersion1 {
		return nil, errCorruptRecord
	}

	s := &Session{}

	if s.AccountID, err = readShortString(reader); err != nil {
		return nil, errCorruptRecord
	}
	if s.Role, err = readShortString(reader); err != nil {
		return nil, errCorruptRecord
	}

	if err := binary.Read(reader, binary.BigEndian, &s.TokenVersion); err != nil {
		return nil, errCorruptRecord
	}
	if s.Status, err = reader.ReadByte(); err != nil {
		return nil, errCorruptRecord
	}

	for _, ts := range []*int64{&s.CreatedAt, &s.LastSeenAt, &s.AbsoluteExpiry} {
		if err := binary.Read(reader, binary.BigEndian, ts); err != nil {
			return nil, errCorruptRecord
		}
	}

	if reader.Len() != 0 {
		return nil, errCorruptRecord
	}

	return s, nil
}

func readShortString(reader *bytes.Reader) (string, error) {
	n, err := reader.ReadByte()
	if err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
