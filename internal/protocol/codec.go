package protocol

import (
	"bytes"

	"github.com/dustnet/dustnet/crc"
	"github.com/dustnet/dustnet/internal/batch"
	"github.com/dustnet/dustnet/internal/clock"
	"github.com/juju/errors"
)

const (
	NameSize = 20
	timeSize = 7

	offName        = 1
	offIdentity    = offName + NameSize
	offTime        = offIdentity + 1
	offSampleCount = offTime + timeSize
	offLow         = offSampleCount + 1
	offHigh        = offLow + batch.Capacity
	offFrameCRC    = offHigh + batch.Capacity
	// FrameSize of identity and data messages.
	FrameSize = offFrameCRC + 1

	offAnnSender = 1 + timeSize
	offAnnNode   = offAnnSender + 1
	offAnnCRC    = offAnnNode + 1
	// AnnouncementSize of time broadcast frame.
	AnnouncementSize = offAnnCRC + 1
)

var (
	ErrUnrecognizedTag = errors.New("unrecognized message tag")
	ErrChecksum        = errors.New("frame checksum mismatch")
)

func IsUnrecognizedTag(err error) bool { return errors.Cause(err) == ErrUnrecognizedTag }
func IsChecksum(err error) bool        { return errors.Cause(err) == ErrChecksum }

func Marshal(m Message) ([]byte, error) {
	switch x := m.(type) {
	case Announcement:
		b := make([]byte, AnnouncementSize)
		b[0] = byte(TagAnnouncement)
		putTime(b[1:], x.Time)
		b[offAnnSender] = x.SenderID
		b[offAnnNode] = x.NodeID
		b[offAnnCRC] = crc.CRC8_p93_n(0, b[:offAnnCRC])
		return b, nil

	case IdentityRequest:
		return marshalFrame(TagIdentityRequest, x.Name, 0, x.Time, x.SampleCount, &x.Batch)
	case IdentityResponse:
		return marshalFrame(TagIdentityResponse, "", x.Identity, x.Time, 0, &x.Batch)
	case DataRequest:
		if int(x.SampleCount) > batch.Capacity {
			return nil, errors.NotValidf("sample_count=%d", x.SampleCount)
		}
		return marshalFrame(TagDataRequest, x.Name, x.Identity, x.Time, x.SampleCount, &x.Batch)

	case nil:
		return nil, errors.NotValidf("nil message")
	}
	return nil, errors.Annotatef(ErrUnrecognizedTag, "type=%T", m)
}

func marshalFrame(tag Tag, name string, identity uint8, t clock.WallClock, count uint8, p *batch.Payload) ([]byte, error) {
	if len(name) > NameSize {
		return nil, errors.NotValidf("name=%q longer than %d", name, NameSize)
	}
	b := make([]byte, FrameSize)
	b[0] = byte(tag)
	copy(b[offName:offName+NameSize], name)
	b[offIdentity] = identity
	putTime(b[offTime:], t)
	b[offSampleCount] = count
	copy(b[offLow:offHigh], p.Low[:])
	copy(b[offHigh:offFrameCRC], p.High[:])
	b[offFrameCRC] = crc.CRC8_p93_n(0, b[:offFrameCRC])
	return b, nil
}

// Unmarshal decodes any frame. Unknown tag returns error satisfying
// IsUnrecognizedTag, short or corrupted frames NotValid or ErrChecksum.
func Unmarshal(b []byte) (Message, error) {
	if len(b) == 0 {
		return nil, errors.NotValidf("frame length=0")
	}
	tag := Tag(b[0])
	switch tag {
	case TagAnnouncement:
		if len(b) != AnnouncementSize {
			return nil, errors.NotValidf("%s frame length=%d", tag, len(b))
		}
		if err := checkCRC(tag, b); err != nil {
			return nil, err
		}
		return Announcement{
			Time:     getTime(b[1:]),
			SenderID: b[offAnnSender],
			NodeID:   b[offAnnNode],
		}, nil

	case TagIdentityRequest, TagIdentityResponse, TagDataRequest:
		if len(b) != FrameSize {
			return nil, errors.NotValidf("%s frame length=%d", tag, len(b))
		}
		if err := checkCRC(tag, b); err != nil {
			return nil, err
		}
		var p batch.Payload
		copy(p.Low[:], b[offLow:offHigh])
		copy(p.High[:], b[offHigh:offFrameCRC])
		name := getName(b[offName : offName+NameSize])
		t := getTime(b[offTime:])
		switch tag {
		case TagIdentityRequest:
			return IdentityRequest{Name: name, Time: t, SampleCount: b[offSampleCount], Batch: p}, nil
		case TagIdentityResponse:
			return IdentityResponse{Identity: b[offIdentity], Time: t, Batch: p}, nil
		default:
			return DataRequest{Name: name, Identity: b[offIdentity], Time: t, SampleCount: b[offSampleCount], Batch: p}, nil
		}
	}
	return nil, errors.Annotatef(ErrUnrecognizedTag, "tag=%d", uint8(tag))
}

func checkCRC(tag Tag, b []byte) error {
	last := len(b) - 1
	if expect := crc.CRC8_p93_n(0, b[:last]); expect != b[last] {
		return errors.Annotatef(ErrChecksum, "%s crc=%02x expected=%02x", tag, b[last], expect)
	}
	return nil
}

func putTime(b []byte, t clock.WallClock) {
	_ = b[timeSize-1]
	b[0] = t.Year
	b[1] = t.Month
	b[2] = t.Day
	b[3] = t.Hour
	b[4] = t.Minute
	b[5] = t.Second
	b[6] = t.Ticks
}

func getTime(b []byte) clock.WallClock {
	_ = b[timeSize-1]
	return clock.WallClock{Year: b[0], Month: b[1], Day: b[2], Hour: b[3], Minute: b[4], Second: b[5], Ticks: b[6]}
}

func getName(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
