// Package touchlink drives ZLL touchlink commissioning (scan, identify,
// factory reset) through a ZNP coordinator's InterPAN mode. Frames are
// written raw to the serial transport: an EZSP stick has no InterPAN
// surface, so a session without a transport reports every operation as
// unsupported.
package touchlink

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrUnsupported = errors.New("touchlink requires a ZNP coordinator")
	ErrBusy        = errors.New("touchlink operation already in progress")
)

// ZNP MT serial framing and the AF commands the session speaks.
const (
	znpSOF            = 0xFE
	znpCmdAF          = 0x24 // SREQ | AF subsystem
	znpDataRequestExt = 0x02
	znpInterPanCtl    = 0x10

	interPanClear      = 0x00
	interPanSetChannel = 0x01
	interPanRegisterEP = 0x02
	interPanEndpoint   = 12
)

// Touchlink ZCL vocabulary: cluster 0x1000, inter-PAN frames with frame
// control 0x11 (cluster-specific, default response disabled).
const (
	zllClusterID   uint16 = 0x1000
	zclTouchlinkFC        = 0x11

	cmdScanRequest       = 0x00
	cmdScanResponse      = 0x01
	cmdIdentifyRequest   = 0x06
	cmdResetToFactoryNew = 0x07

	// Scan request body: router capable, factory-new link initiator.
	zigbeeInfoRouter       = 0x04
	touchlinkInfoInitiator = 0x12

	identifyDuration uint16 = 10
)

// Transport writes raw frames to the coordinator's serial port.
// *zigbee.SerialPort satisfies it.
type Transport interface {
	Write(p []byte) (int, error)
}

// Device is one touchlink responder heard during a scan. The IEEE is taken
// from the extended PAN id of its scan response.
type Device struct {
	IEEE           string `json:"ieee"`
	Channel        int    `json:"channel"`
	PANID          uint16 `json:"pan_id"`
	NetworkAddress uint16 `json:"network_address"`
}

// Session runs touchlink operations one at a time over the transport.
// Incoming InterPAN frames must be fed to HandleFrame by the serial reader;
// frames arriving outside a scan window are dropped.
type Session struct {
	transport Transport
	log       zerolog.Logger

	mu         sync.Mutex
	busy       bool
	registered bool

	respMu     sync.Mutex
	collecting bool
	responses  [][]byte

	// Timing knobs, overridable in tests.
	settle       time.Duration
	scanWindow   time.Duration
	actionWindow time.Duration
	resetPause   time.Duration
}

// NewSession wraps the transport. A nil transport yields a session whose
// operations all fail with ErrUnsupported, which is how the EZSP backend
// surfaces the capability gap.
func NewSession(transport Transport, log zerolog.Logger) *Session {
	return &Session{
		transport:    transport,
		log:          log.With().Str("component", "touchlink").Logger(),
		settle:       150 * time.Millisecond,
		scanWindow:   2 * time.Second,
		actionWindow: time.Second,
		resetPause:   500 * time.Millisecond,
	}
}

// Supported reports whether the coordinator can run touchlink operations.
func (s *Session) Supported() bool {
	return s.transport != nil
}

// HandleFrame ingests a touchlink ZCL frame (frame control, seq, command,
// payload) received over InterPAN while a scan window is open.
func (s *Session) HandleFrame(frame []byte) {
	s.respMu.Lock()
	defer s.respMu.Unlock()
	if !s.collecting || len(frame) <= 3 || frame[2] != cmdScanResponse {
		return
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.responses = append(s.responses, cp)
}

// Scan broadcasts touchlink scan requests and returns the devices that
// answered. channel 0 scans all of 11-26.
func (s *Session) Scan(ctx context.Context, channel int) ([]Device, error) {
	chans, err := s.acquire(channel)
	if err != nil {
		return nil, err
	}
	defer s.release()

	return s.scanChannels(ctx, chans)
}

// Identify scans, then asks every responder to blink for a few seconds.
func (s *Session) Identify(ctx context.Context, channel int) ([]Device, error) {
	chans, err := s.acquire(channel)
	if err != nil {
		return nil, err
	}
	defer s.release()

	devices, err := s.scanChannels(ctx, chans)
	if err != nil || len(devices) == 0 {
		return devices, err
	}

	for _, d := range devices {
		if err := s.setChannel(ctx, d.Channel); err != nil {
			return devices, err
		}
		payload := identifyPayload(newTransactionID(), identifyDuration)
		if err := s.send(dataRequestExt(randomSeq(), cmdIdentifyRequest, payload)); err != nil {
			return devices, fmt.Errorf("identify broadcast: %w", err)
		}
		s.log.Info().Str("ieee", d.IEEE).Int("channel", d.Channel).Msg("Touchlink identify sent")
		if err := wait(ctx, s.actionWindow); err != nil {
			return devices, err
		}
	}
	return devices, nil
}

// FactoryReset scans and resets EVERY responder to factory new. Touchlink
// has no per-device addressing at this layer; callers confine the blast
// radius with the channel argument and physical proximity.
func (s *Session) FactoryReset(ctx context.Context, channel int) ([]Device, error) {
	chans, err := s.acquire(channel)
	if err != nil {
		return nil, err
	}
	defer s.release()

	devices, err := s.scanChannels(ctx, chans)
	if err != nil || len(devices) == 0 {
		return devices, err
	}

	for _, d := range devices {
		s.log.Warn().Str("ieee", d.IEEE).Int("channel", d.Channel).Msg("Touchlink factory reset")
		if err := s.setChannel(ctx, d.Channel); err != nil {
			return devices, err
		}
		if err := s.send(dataRequestExt(randomSeq(), cmdResetToFactoryNew, resetPayload(newTransactionID()))); err != nil {
			return devices, fmt.Errorf("reset broadcast: %w", err)
		}
		if err := wait(ctx, s.actionWindow); err != nil {
			return devices, err
		}
		if err := wait(ctx, s.resetPause); err != nil {
			return devices, err
		}
	}
	return devices, nil
}

// acquire validates the channel argument and claims the session.
func (s *Session) acquire(channel int) ([]int, error) {
	if !s.Supported() {
		return nil, ErrUnsupported
	}
	chans, err := expandChannels(channel)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return nil, ErrBusy
	}
	s.busy = true
	return chans, nil
}

// release restores normal (non-InterPAN) mode and frees the session.
func (s *Session) release() {
	if err := s.send(interPanCtl(interPanClear)); err != nil {
		s.log.Error().Err(err).Msg("Restoring normal mode failed")
	}
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func (s *Session) scanChannels(ctx context.Context, chans []int) ([]Device, error) {
	var found []Device
	for _, ch := range chans {
		devices, err := s.scanChannel(ctx, ch)
		found = append(found, devices...)
		if err != nil {
			if ctx.Err() != nil {
				return found, err
			}
			s.log.Debug().Err(err).Int("channel", ch).Msg("Channel scan failed")
		}
	}
	return found, nil
}

func (s *Session) scanChannel(ctx context.Context, ch int) ([]Device, error) {
	if err := s.setChannel(ctx, ch); err != nil {
		return nil, err
	}

	s.beginCollect()
	frame := dataRequestExt(randomSeq(), cmdScanRequest, scanPayload(newTransactionID()))
	if err := s.send(frame); err != nil {
		s.endCollect()
		return nil, fmt.Errorf("scan broadcast: %w", err)
	}
	waitErr := wait(ctx, s.scanWindow)
	responses := s.endCollect()

	var devices []Device
	for _, r := range responses {
		if d, ok := parseScanResponse(r[3:], ch); ok {
			devices = append(devices, d)
			s.log.Info().Str("ieee", d.IEEE).Int("channel", ch).Msg("Touchlink device found")
		}
	}
	return devices, waitErr
}

// setChannel switches the radio to InterPAN mode on the given channel,
// registering the InterPAN endpoint on first use.
func (s *Session) setChannel(ctx context.Context, ch int) error {
	if err := s.send(interPanCtl(interPanSetChannel, uint8(ch))); err != nil {
		return fmt.Errorf("set InterPAN channel %d: %w", ch, err)
	}
	if err := wait(ctx, s.settle); err != nil {
		return err
	}

	s.mu.Lock()
	registered := s.registered
	s.mu.Unlock()
	if registered {
		return nil
	}

	if err := s.send(interPanCtl(interPanRegisterEP, interPanEndpoint)); err != nil {
		return fmt.Errorf("register InterPAN endpoint: %w", err)
	}
	if err := wait(ctx, s.settle); err != nil {
		return err
	}
	s.mu.Lock()
	s.registered = true
	s.mu.Unlock()
	return nil
}

func (s *Session) send(frame []byte) error {
	_, err := s.transport.Write(frame)
	return err
}

func (s *Session) beginCollect() {
	s.respMu.Lock()
	s.collecting = true
	s.responses = nil
	s.respMu.Unlock()
}

func (s *Session) endCollect() [][]byte {
	s.respMu.Lock()
	defer s.respMu.Unlock()
	s.collecting = false
	out := s.responses
	s.responses = nil
	return out
}

// expandChannels maps the API's channel argument onto the scan list:
// 0 means all Zigbee channels.
func expandChannels(channel int) ([]int, error) {
	if channel == 0 {
		chans := make([]int, 0, 16)
		for ch := 11; ch <= 26; ch++ {
			chans = append(chans, ch)
		}
		return chans, nil
	}
	if channel < 11 || channel > 26 {
		return nil, fmt.Errorf("channel %d out of range 11-26", channel)
	}
	return []int{channel}, nil
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func newTransactionID() uint32 {
	return rand.Uint32N(0xFFFFFFFF) + 1
}

func randomSeq() uint8 {
	return uint8(rand.IntN(256))
}

// --- wire builders ---

// znpFrame wraps an AF request in MT serial framing: SOF, length, the
// command bytes and an XOR checksum over length and body.
func znpFrame(cmd1 uint8, payload []byte) []byte {
	body := make([]byte, 0, 2+len(payload))
	body = append(body, znpCmdAF, cmd1)
	body = append(body, payload...)

	fcs := byte(len(body))
	for _, b := range body {
		fcs ^= b
	}

	frame := make([]byte, 0, len(body)+3)
	frame = append(frame, znpSOF, byte(len(body)))
	frame = append(frame, body...)
	return append(frame, fcs)
}

// interPanCtl builds an AF.InterPanCtl request (sub-command + arguments).
func interPanCtl(sub uint8, data ...uint8) []byte {
	payload := make([]byte, 0, 1+len(data))
	payload = append(payload, sub)
	payload = append(payload, data...)
	return znpFrame(znpInterPanCtl, payload)
}

// dataRequestExt builds an AF.DataRequestExt broadcast carrying a touchlink
// ZCL frame to every listener on the InterPAN channel.
func dataRequestExt(seq uint8, commandID uint8, zclPayload []byte) []byte {
	zcl := make([]byte, 0, 3+len(zclPayload))
	zcl = append(zcl, zclTouchlinkFC, seq, commandID)
	zcl = append(zcl, zclPayload...)

	p := make([]byte, 0, 20+len(zcl))
	p = append(p, 0x0F)                                           // AddrBroadcast
	p = append(p, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00) // 0xFFFF as 8-byte address
	p = append(p, 0xFE)                                           // InterPAN destination endpoint
	p = append(p, 0xFF, 0xFF)                                     // destination PAN
	p = append(p, interPanEndpoint)
	p = append(p, byte(zllClusterID&0xFF), byte(zllClusterID>>8))
	p = append(p, seq, 0x00, 0x1E) // transaction, options, radius
	p = append(p, byte(len(zcl)), byte(len(zcl)>>8))
	p = append(p, zcl...)
	return znpFrame(znpDataRequestExt, p)
}

func scanPayload(transID uint32) []byte {
	p := make([]byte, 6)
	binary.LittleEndian.PutUint32(p, transID)
	p[4] = zigbeeInfoRouter
	p[5] = touchlinkInfoInitiator
	return p
}

func identifyPayload(transID uint32, duration uint16) []byte {
	p := make([]byte, 6)
	binary.LittleEndian.PutUint32(p, transID)
	binary.LittleEndian.PutUint16(p[4:], duration)
	return p
}

func resetPayload(transID uint32) []byte {
	p := make([]byte, 4)
	binary.LittleEndian.PutUint32(p, transID)
	return p
}

// parseScanResponse extracts a device from a scan response ZCL payload.
// The responder's identity comes from the extended PAN id field.
func parseScanResponse(payload []byte, channel int) (Device, bool) {
	if len(payload) < 27 {
		return Device{}, false
	}

	epid := payload[13:21]
	rev := make([]byte, 8)
	for i := range rev {
		rev[i] = epid[7-i]
	}

	return Device{
		IEEE:           hex.EncodeToString(rev),
		Channel:        channel,
		PANID:          binary.LittleEndian.Uint16(payload[23:25]),
		NetworkAddress: binary.LittleEndian.Uint16(payload[25:27]),
	}, true
}
