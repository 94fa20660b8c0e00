package zigbee

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ASH protocol bytes and control-field encodings. ASH is the Silicon Labs
// UART gateway protocol carrying EZSP: DATA frames hold a 3-bit frame
// number and the ack number of the next frame expected from the peer;
// ACK/NAK frames carry only the ack number. Reserved bytes inside a frame
// are escaped with 0x7D and the flip bit.
const (
	ashFlag       = 0x7E
	ashEscape     = 0x7D
	ashXON        = 0x11
	ashXOFF       = 0x13
	ashFlipBit    = 0x20
	ashCancelByte = 0x1A
	ashSubstitute = 0x18

	ashFrameData   = 0x00
	ashFrameACK    = 0x80
	ashFrameNAK    = 0xA0
	ashFrameRST    = 0xC0
	ashFrameRSTACK = 0xC1
	ashFrameERROR  = 0xC2

	ashMaxRetries   = 3
	ashRetryTimeout = 1 * time.Second
	ashMaxFrameLen  = 256
)

type ashState int

const (
	ashStateDisconnected ashState = iota
	ashStateResetPending
	ashStateConnected
	ashStateFailed
)

// pendingFrame is an unacknowledged DATA frame awaiting its ACK,
// retransmitted by the retry loop until the NCP confirms it.
type pendingFrame struct {
	frame    []byte
	sentAt   time.Time
	attempts int
}

// ASHLayer frames EZSP payloads for the serial link and runs the ASH
// acknowledge/retransmit machinery.
type ASHLayer struct {
	serial *SerialPort

	stateMu sync.RWMutex
	state   ashState

	// txSeq numbers outgoing DATA frames; rxSeq is the frame number we
	// expect from the NCP next and doubles as our outgoing ack number.
	seqMu   sync.Mutex
	txSeq   uint8
	rxSeq   uint8
	pending map[uint8]*pendingFrame

	recvCh chan []byte
	connCh chan struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// NewASHLayer wraps a serial port in the ASH framing layer. Call Connect
// to perform the RST/RSTACK handshake before sending.
func NewASHLayer(s *SerialPort) *ASHLayer {
	return &ASHLayer{
		serial:  s,
		state:   ashStateDisconnected,
		pending: make(map[uint8]*pendingFrame),
		recvCh:  make(chan []byte, 16),
		connCh:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

// Connect resets the NCP and waits for its RSTACK. The read and retry
// loops keep running until Close.
func (a *ASHLayer) Connect() error {
	a.setState(ashStateResetPending)

	if err := a.sendRST(); err != nil {
		return fmt.Errorf("send RST: %w", err)
	}

	go a.readLoop()
	go a.retryLoop()

	select {
	case <-a.connCh:
		log.Info().Msg("ASH connection established")
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for RSTACK")
	case <-a.stop:
		return fmt.Errorf("stopped")
	}
}

// SendData wraps an EZSP payload in a DATA frame and tracks it for
// retransmission until acknowledged.
func (a *ASHLayer) SendData(payload []byte) error {
	if !a.IsConnected() {
		return fmt.Errorf("ASH not connected")
	}

	a.seqMu.Lock()
	seq := a.txSeq
	a.txSeq = (a.txSeq + 1) & 0x07
	// DATA control: frmNum in bits 6-4, reTx clear, ackNum in bits 2-0.
	control := (seq << 4) | (a.rxSeq & 0x07)
	frame := ashEncode(append([]byte{control}, payload...))
	a.pending[seq] = &pendingFrame{frame: frame, sentAt: time.Now()}
	a.seqMu.Unlock()

	log.Debug().
		Uint8("seq", seq).
		Int("payload_len", len(payload)).
		Msg("ASH TX DATA")

	if _, err := a.serial.Write(frame); err != nil {
		return fmt.Errorf("write DATA frame: %w", err)
	}
	return nil
}

// RecvData returns the channel carrying inbound EZSP payloads.
func (a *ASHLayer) RecvData() <-chan []byte {
	return a.recvCh
}

// IsConnected reports whether the handshake completed and the link has not
// failed.
func (a *ASHLayer) IsConnected() bool {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.state == ashStateConnected
}

// Close stops the read and retry loops.
func (a *ASHLayer) Close() {
	a.stopOnce.Do(func() { close(a.stop) })
}

func (a *ASHLayer) setState(s ashState) {
	a.stateMu.Lock()
	a.state = s
	a.stateMu.Unlock()
}

// sendRST flushes the NCP receiver with a cancel byte, then sends the
// reset frame.
func (a *ASHLayer) sendRST() error {
	if _, err := a.serial.Write([]byte{ashCancelByte}); err != nil {
		return err
	}
	log.Debug().Msg("ASH TX RST")
	return a.sendControl(ashFrameRST)
}

// sendControl transmits a single-byte control frame (RST, ACK, NAK).
func (a *ASHLayer) sendControl(control byte) error {
	_, err := a.serial.Write(ashEncode([]byte{control}))
	return err
}

func (a *ASHLayer) sendACK() error {
	a.seqMu.Lock()
	ack := a.rxSeq & 0x07
	a.seqMu.Unlock()
	log.Debug().Uint8("ack", ack).Msg("ASH TX ACK")
	return a.sendControl(byte(ashFrameACK) | ack)
}

func (a *ASHLayer) sendNAK() {
	a.seqMu.Lock()
	ack := a.rxSeq & 0x07
	a.seqMu.Unlock()
	if err := a.sendControl(byte(ashFrameNAK) | ack); err != nil {
		log.Error().Err(err).Msg("ASH NAK send failed")
	}
}

// readLoop assembles frames from the byte stream. Cancel and substitute
// bytes discard the partial frame; XON/XOFF are stripped; a flag byte
// terminates the frame.
func (a *ASHLayer) readLoop() {
	buf := make([]byte, 0, ashMaxFrameLen)

	for {
		select {
		case <-a.stop:
			return
		default:
		}

		b, err := a.serial.ReadByte()
		if err != nil {
			select {
			case <-a.stop:
				return
			default:
			}
			log.Error().Err(err).Msg("ASH read error")
			continue
		}

		switch b {
		case ashCancelByte, ashSubstitute:
			buf = buf[:0]
		case ashXON, ashXOFF:
		case ashFlag:
			if len(buf) > 0 {
				a.processFrame(buf)
				buf = buf[:0]
			}
		default:
			buf = append(buf, b)
			if len(buf) > ashMaxFrameLen {
				buf = buf[:0]
			}
		}
	}
}

// retryLoop retransmits unacknowledged DATA frames. A frame that exhausts
// its retries marks the link failed; the EZSP layer sees this as the next
// send erroring out.
func (a *ASHLayer) retryLoop() {
	ticker := time.NewTicker(ashRetryTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
		}

		var resend [][]byte
		failed := false

		a.seqMu.Lock()
		for seq, p := range a.pending {
			if time.Since(p.sentAt) < ashRetryTimeout {
				continue
			}
			if p.attempts >= ashMaxRetries {
				log.Error().Uint8("seq", seq).Msg("ASH frame unacknowledged after retries, link failed")
				failed = true
				continue
			}
			p.attempts++
			p.sentAt = time.Now()
			resend = append(resend, p.frame)
			log.Warn().Uint8("seq", seq).Int("attempt", p.attempts).Msg("ASH retransmit")
		}
		if failed {
			a.pending = make(map[uint8]*pendingFrame)
		}
		a.seqMu.Unlock()

		if failed {
			a.setState(ashStateFailed)
			continue
		}
		for _, frame := range resend {
			if _, err := a.serial.Write(frame); err != nil {
				log.Error().Err(err).Msg("ASH retransmit write failed")
			}
		}
	}
}

// processFrame validates the CRC of an unstuffed frame and dispatches it
// by control byte.
func (a *ASHLayer) processFrame(stuffed []byte) {
	raw := ashUnstuff(stuffed)
	if len(raw) < 3 {
		log.Debug().Int("len", len(raw)).Msg("ASH frame too short, discarding")
		return
	}

	body := raw[:len(raw)-2]
	wireCRC := uint16(raw[len(raw)-2])<<8 | uint16(raw[len(raw)-1])
	if crc := crcCCITT(body); crc != wireCRC {
		log.Warn().Uint16("wire", wireCRC).Uint16("computed", crc).Msg("ASH CRC mismatch")
		return
	}

	control := body[0]
	switch {
	case control == ashFrameRSTACK:
		a.handleRSTACK(body)
	case control == ashFrameERROR:
		log.Error().Hex("frame", body).Msg("ASH ERROR frame received")
	case control&0x80 == ashFrameData:
		a.handleData(body)
	case control&0xE0 == ashFrameACK:
		a.handleACK(control)
	case control&0xE0 == ashFrameNAK:
		a.handleNAK(control)
	default:
		log.Debug().Uint8("control", control).Msg("ASH unknown frame type")
	}
}

// handleRSTACK completes the handshake: both sides restart at frame 0 with
// an empty window.
func (a *ASHLayer) handleRSTACK(body []byte) {
	log.Info().Hex("payload", body).Msg("ASH RSTACK received")

	a.seqMu.Lock()
	a.txSeq = 0
	a.rxSeq = 0
	a.pending = make(map[uint8]*pendingFrame)
	a.seqMu.Unlock()

	a.setState(ashStateConnected)

	select {
	case a.connCh <- struct{}{}:
	default:
	}
}

// handleData acknowledges an in-sequence DATA frame and hands its payload
// to the EZSP layer. Out-of-sequence frames are NAKed so the NCP rewinds.
func (a *ASHLayer) handleData(body []byte) {
	control := body[0]
	frmNum := (control >> 4) & 0x07
	ackNum := control & 0x07

	log.Debug().
		Uint8("frmNum", frmNum).
		Uint8("ackNum", ackNum).
		Int("payload_len", len(body)-1).
		Msg("ASH RX DATA")

	a.seqMu.Lock()
	a.releaseAckedLocked(ackNum)
	inSequence := frmNum == a.rxSeq
	if inSequence {
		a.rxSeq = (a.rxSeq + 1) & 0x07
	}
	expected := a.rxSeq
	a.seqMu.Unlock()

	if !inSequence {
		log.Warn().Uint8("expected", expected).Uint8("got", frmNum).Msg("ASH out-of-sequence DATA")
		a.sendNAK()
		return
	}

	if err := a.sendACK(); err != nil {
		log.Error().Err(err).Msg("Failed to send ACK")
	}

	payload := make([]byte, len(body)-1)
	copy(payload, body[1:])
	select {
	case a.recvCh <- payload:
	default:
		log.Warn().Msg("ASH recv channel full, dropping frame")
	}
}

func (a *ASHLayer) handleACK(control byte) {
	ackNum := control & 0x07
	log.Debug().Uint8("ack", ackNum).Msg("ASH RX ACK")

	a.seqMu.Lock()
	a.releaseAckedLocked(ackNum)
	a.seqMu.Unlock()
}

// handleNAK rewinds: the NCP asks for retransmission starting at the
// named frame.
func (a *ASHLayer) handleNAK(control byte) {
	nakNum := control & 0x07
	log.Warn().Uint8("nak", nakNum).Msg("ASH RX NAK, retransmitting")

	a.seqMu.Lock()
	p, ok := a.pending[nakNum]
	var frame []byte
	if ok {
		p.attempts++
		p.sentAt = time.Now()
		frame = p.frame
	}
	a.seqMu.Unlock()

	if ok {
		if _, err := a.serial.Write(frame); err != nil {
			log.Error().Err(err).Msg("ASH retransmit failed")
		}
	}
}

// releaseAckedLocked drops every pending frame the ack number covers.
// Callers hold seqMu.
func (a *ASHLayer) releaseAckedLocked(ackNum uint8) {
	for seq := range a.pending {
		if ashSeqBefore(seq, ackNum) {
			delete(a.pending, seq)
		}
	}
}

// ashEncode appends the CRC, stuffs reserved bytes and terminates with the
// flag byte.
func ashEncode(raw []byte) []byte {
	crc := crcCCITT(raw)
	raw = append(raw, byte(crc>>8), byte(crc&0xFF))
	frame := ashStuff(raw)
	return append(frame, ashFlag)
}

// ashStuff escapes reserved bytes with 0x7D and the flip bit.
func ashStuff(data []byte) []byte {
	out := make([]byte, 0, len(data)*2)
	for _, b := range data {
		switch b {
		case ashFlag, ashEscape, ashXON, ashXOFF, ashSubstitute, ashCancelByte:
			out = append(out, ashEscape, b^ashFlipBit)
		default:
			out = append(out, b)
		}
	}
	return out
}

// ashUnstuff reverses the escaping.
func ashUnstuff(data []byte) []byte {
	out := make([]byte, 0, len(data))
	escaped := false
	for _, b := range data {
		switch {
		case escaped:
			out = append(out, b^ashFlipBit)
			escaped = false
		case b == ashEscape:
			escaped = true
		default:
			out = append(out, b)
		}
	}
	return out
}

// crcCCITT computes CRC-CCITT (initial 0xFFFF, polynomial 0x1021) as used
// for ASH frame checksums.
func crcCCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// ashSeqBefore compares 3-bit sequence numbers with wraparound: an ack of
// N confirms every frame numbered before N within half the window.
func ashSeqBefore(seq, ack uint8) bool {
	diff := (ack - seq) & 0x07
	return diff > 0 && diff <= 4
}
