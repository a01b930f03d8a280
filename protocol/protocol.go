// Package protocol implements the Klipper serial wire format used between
// the host and the LCD firmware: VLQ argument encoding, CRC16 framing and
// the sequence/ack transport.
package protocol

// Version is the firmware version reported in the data dictionary.
const Version = "0.2.0-lcd"

// Frame layout. A frame is:
//
//	len | seq | payload... | crc_hi | crc_lo | sync
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64

	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1

	MessageValueSync = 0x7E
	MessageDest      = 0x10
	MessageSeqMask   = 0x0F

	// MessageMax bounds a single outbound scratch buffer. Several frames
	// (ack plus responses) are batched into it between link flushes.
	MessageMax = 512
)
