package protocol

import "sync/atomic"

// CommandHandler receives one decoded command id; it must consume exactly
// its own arguments from data.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the MCU side of the Klipper framing layer. It validates
// inbound frames, tracks the host sequence number, answers every frame
// with an ack/nak and hands the payload commands to a CommandHandler.
type Transport struct {
	synced  uint32 // atomic bool
	nextSeq uint32 // atomic, always MessageDest|seq

	output  OutputBuffer
	handler CommandHandler

	onReset func()
	onFlush func()
}

func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		synced:  1,
		nextSeq: MessageDest,
		output:  output,
		handler: handler,
	}
}

// SetResetCallback installs a hook run when the host restarts its
// sequence numbering.
func (t *Transport) SetResetCallback(fn func()) { t.onReset = fn }

// SetFlushCallback installs a hook run right after an ack is encoded, so
// the link can push it out ahead of any buffered responses.
func (t *Transport) SetFlushCallback(fn func()) { t.onFlush = fn }

// Receive consumes complete frames from input. A trailing partial frame
// stays in input for the next call. Bytes the link appends to input while
// a command runs are left for the next call.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()
	total := len(data)
	for len(data) > 0 {
		if !t.isSynced() {
			data = t.resync(data)
			continue
		}
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		frameLen, ok := t.checkFrame(data)
		if !ok {
			t.setSynced(false)
			continue
		}
		if frameLen == 0 {
			break
		}
		seq := data[MessagePositionSeq]
		payload := data[MessageHeaderSize : frameLen-MessageTrailerSize]
		data = data[frameLen:]
		t.accept(seq, payload)
	}
	if consumed := total - len(data); consumed > 0 {
		input.Pop(consumed)
	}
}

// resync drops bytes up to and including the next sync byte.
func (t *Transport) resync(data []byte) []byte {
	for i, b := range data {
		if b == MessageValueSync {
			t.setSynced(true)
			t.encodeAckNak()
			return data[i+1:]
		}
	}
	return nil
}

// checkFrame validates the frame at the head of data. It returns a zero
// length with ok set when more bytes are needed.
func (t *Transport) checkFrame(data []byte) (int, bool) {
	if len(data) < MessageLengthMin {
		return 0, true
	}
	n := int(data[MessagePositionLen])
	if n < MessageLengthMin || n > MessageLengthMax {
		return 0, false
	}
	if data[MessagePositionSeq]&^MessageSeqMask != MessageDest {
		return 0, false
	}
	if len(data) < n {
		return 0, true
	}
	if data[n-MessageTrailerSync] != MessageValueSync {
		return 0, false
	}
	crc := uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1])
	if crc != CRC16(data[:n-MessageTrailerSize]) {
		return 0, false
	}
	return n, true
}

func (t *Transport) accept(seq uint8, payload []byte) {
	expected := uint8(atomic.LoadUint32(&t.nextSeq))
	if seq == MessageDest && expected != MessageDest {
		// Host restarted its numbering.
		atomic.StoreUint32(&t.nextSeq, MessageDest)
		expected = MessageDest
		if t.onReset != nil {
			t.onReset()
		}
	}
	if seq == expected {
		atomic.StoreUint32(&t.nextSeq, uint32(((seq+1)&MessageSeqMask)|MessageDest))
		_ = t.dispatch(payload)
	}
	// A stale sequence still gets an answer; it acts as a nak carrying
	// the sequence we expect.
	t.encodeAckNak()
}

func (t *Transport) dispatch(payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.setSynced(false)
		}
	}()
	for len(payload) > 0 {
		id, err := DecodeVLQUint(&payload)
		if err != nil {
			t.setSynced(false)
			return err
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(id), &payload); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) encodeAckNak() {
	seq := uint8(atomic.LoadUint32(&t.nextSeq))
	crc := CRC16([]byte{MessageLengthMin, seq})
	t.output.Output([]byte{MessageLengthMin, seq, byte(crc >> 8), byte(crc), MessageValueSync})
	if t.onFlush != nil {
		t.onFlush()
	}
}

// EncodeFrame wraps whatever body writes into one outbound frame.
func (t *Transport) EncodeFrame(body func(output OutputBuffer)) {
	start := t.output.CurPosition()
	t.output.Output([]byte{0, uint8(atomic.LoadUint32(&t.nextSeq))})
	body(t.output)
	t.output.Update(start, uint8(len(t.output.DataSince(start))+MessageTrailerSize))
	crc := CRC16(t.output.DataSince(start))
	t.output.Output([]byte{byte(crc >> 8), byte(crc), MessageValueSync})
}

// SendCommand encodes a response message: its id followed by args.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns the transport to its power-on state.
func (t *Transport) Reset() {
	atomic.StoreUint32(&t.synced, 1)
	atomic.StoreUint32(&t.nextSeq, MessageDest)
	if t.onReset != nil {
		t.onReset()
	}
}

func (t *Transport) isSynced() bool { return atomic.LoadUint32(&t.synced) != 0 }

func (t *Transport) setSynced(v bool) {
	var n uint32
	if v {
		n = 1
	}
	atomic.StoreUint32(&t.synced, n)
}
