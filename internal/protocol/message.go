// Package protocol defines leaf/gateway radio messages and their fixed-size
// wire encoding. Every frame ends with CRC-8 (poly 0x93) of preceding bytes.
package protocol

import (
	"fmt"

	"github.com/dustnet/dustnet/internal/batch"
	"github.com/dustnet/dustnet/internal/clock"
)

type Tag uint8

const (
	TagIdentityRequest  Tag = 0
	TagDataRequest      Tag = 1
	TagIdentityResponse Tag = 2
	TagAnnouncement     Tag = 0x10
)

func (self Tag) String() string {
	switch self {
	case TagIdentityRequest:
		return "IdentityRequest"
	case TagDataRequest:
		return "DataRequest"
	case TagIdentityResponse:
		return "IdentityResponse"
	case TagAnnouncement:
		return "Announcement"
	}
	return fmt.Sprintf("Tag(%d)", uint8(self))
}

const (
	SensorName = "Dust sensor"
	// Sample count advertised in IdentityRequest.
	DefaultSampleCount = 20
	// Identity of the gateway in Announcement, also "to everyone".
	GatewayIdentity = 0
)

type Message interface {
	Tag() Tag
}

// IdentityRequest is sent by unidentified leaf in reply to first announcement.
type IdentityRequest struct {
	Name        string
	Time        clock.WallClock
	SampleCount uint8
	Batch       batch.Payload // placeholder, echoed back
}

type IdentityResponse struct {
	Identity uint8
	Time     clock.WallClock
	Batch    batch.Payload
}

type DataRequest struct {
	Name        string
	Identity    uint8
	Time        clock.WallClock
	SampleCount uint8
	Batch       batch.Payload
}

// Announcement is periodic gateway time broadcast.
type Announcement struct {
	Time     clock.WallClock
	SenderID uint8
	NodeID   uint8
}

func (IdentityRequest) Tag() Tag  { return TagIdentityRequest }
func (IdentityResponse) Tag() Tag { return TagIdentityResponse }
func (DataRequest) Tag() Tag      { return TagDataRequest }
func (Announcement) Tag() Tag     { return TagAnnouncement }
