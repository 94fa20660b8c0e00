package touchlink

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeTransport records written frames and can invoke a hook per write,
// which tests use to inject scan responses mid-window.
type fakeTransport struct {
	mu      sync.Mutex
	frames  [][]byte
	onWrite func(frame []byte)
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	f.mu.Lock()
	f.frames = append(f.frames, cp)
	hook := f.onWrite
	f.mu.Unlock()
	if hook != nil {
		hook(cp)
	}
	return len(p), nil
}

func (f *fakeTransport) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.frames))
	copy(out, f.frames)
	return out
}

func newTestSession(t *fakeTransport) *Session {
	s := NewSession(t, zerolog.Nop())
	s.settle = time.Millisecond
	s.scanWindow = 10 * time.Millisecond
	s.actionWindow = time.Millisecond
	s.resetPause = time.Millisecond
	return s
}

// scanResponseFrame builds a ZCL scan response whose extended PAN id
// little-endian bytes reverse to the given IEEE.
func scanResponseFrame(ieeeLE [8]byte, panID, nwk uint16) []byte {
	frame := make([]byte, 3+27)
	frame[0] = zclTouchlinkFC
	frame[1] = 0x42
	frame[2] = cmdScanResponse
	copy(frame[3+13:], ieeeLE[:])
	binary.LittleEndian.PutUint16(frame[3+23:], panID)
	binary.LittleEndian.PutUint16(frame[3+25:], nwk)
	return frame
}

func TestZNPFrame(t *testing.T) {
	frame := interPanCtl(interPanSetChannel, 11)
	want := []byte{0xFE, 0x04, 0x24, 0x10, 0x01, 0x0B, 0x3A}
	if len(frame) != len(want) {
		t.Fatalf("frame length = %d, want %d", len(frame), len(want))
	}
	for i := range want {
		if frame[i] != want[i] {
			t.Errorf("frame[%d] = 0x%02X, want 0x%02X", i, frame[i], want[i])
		}
	}
}

func TestZNPFrameChecksum(t *testing.T) {
	frame := znpFrame(znpInterPanCtl, []byte{interPanClear})
	// FCS covers length and body.
	var fcs byte
	for _, b := range frame[1 : len(frame)-1] {
		fcs ^= b
	}
	if frame[len(frame)-1] != fcs {
		t.Errorf("fcs = 0x%02X, want 0x%02X", frame[len(frame)-1], fcs)
	}
}

func TestDataRequestExtLayout(t *testing.T) {
	frame := dataRequestExt(0x21, cmdScanRequest, scanPayload(0x04030201))
	if frame[0] != znpSOF {
		t.Fatalf("sof = 0x%02X", frame[0])
	}
	if frame[2] != znpCmdAF || frame[3] != znpDataRequestExt {
		t.Fatalf("cmd = 0x%02X 0x%02X, want 0x24 0x02", frame[2], frame[3])
	}

	p := frame[4 : len(frame)-1]
	if p[0] != 0x0F {
		t.Errorf("addr mode = 0x%02X, want 0x0F", p[0])
	}
	if p[1] != 0xFF || p[2] != 0xFF {
		t.Errorf("dst addr = % X, want FF FF ...", p[1:9])
	}
	if p[9] != 0xFE {
		t.Errorf("dst endpoint = 0x%02X, want 0xFE", p[9])
	}
	if p[10] != 0xFF || p[11] != 0xFF {
		t.Errorf("dst pan = % X, want FF FF", p[10:12])
	}
	if p[12] != interPanEndpoint {
		t.Errorf("src endpoint = %d, want %d", p[12], interPanEndpoint)
	}
	if got := binary.LittleEndian.Uint16(p[13:15]); got != zllClusterID {
		t.Errorf("cluster = 0x%04X, want 0x%04X", got, zllClusterID)
	}
	if p[15] != 0x21 {
		t.Errorf("trans id = 0x%02X, want 0x21", p[15])
	}
	if p[16] != 0x00 || p[17] != 0x1E {
		t.Errorf("options/radius = 0x%02X 0x%02X, want 0x00 0x1E", p[16], p[17])
	}

	zclLen := int(binary.LittleEndian.Uint16(p[18:20]))
	zcl := p[20:]
	if len(zcl) != zclLen {
		t.Fatalf("zcl length = %d, header says %d", len(zcl), zclLen)
	}
	if zcl[0] != zclTouchlinkFC || zcl[1] != 0x21 || zcl[2] != cmdScanRequest {
		t.Errorf("zcl header = % X", zcl[:3])
	}
	if got := binary.LittleEndian.Uint32(zcl[3:7]); got != 0x04030201 {
		t.Errorf("transaction = 0x%08X, want 0x04030201", got)
	}
	if zcl[7] != zigbeeInfoRouter || zcl[8] != touchlinkInfoInitiator {
		t.Errorf("scan info = 0x%02X 0x%02X", zcl[7], zcl[8])
	}
}

func TestIdentifyPayload(t *testing.T) {
	p := identifyPayload(0x11223344, 10)
	if len(p) != 6 {
		t.Fatalf("payload length = %d, want 6", len(p))
	}
	if got := binary.LittleEndian.Uint32(p[:4]); got != 0x11223344 {
		t.Errorf("transaction = 0x%08X", got)
	}
	if got := binary.LittleEndian.Uint16(p[4:]); got != 10 {
		t.Errorf("duration = %d, want 10", got)
	}
}

func TestParseScanResponse(t *testing.T) {
	ieeeLE := [8]byte{0xC4, 0xB3, 0xA2, 0x01, 0x00, 0x8D, 0x15, 0x00}
	frame := scanResponseFrame(ieeeLE, 0xABCD, 0x4321)

	d, ok := parseScanResponse(frame[3:], 15)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if d.IEEE != "00158d0001a2b3c4" {
		t.Errorf("ieee = %q, want 00158d0001a2b3c4", d.IEEE)
	}
	if d.Channel != 15 {
		t.Errorf("channel = %d, want 15", d.Channel)
	}
	if d.PANID != 0xABCD {
		t.Errorf("pan id = 0x%04X, want 0xABCD", d.PANID)
	}
	if d.NetworkAddress != 0x4321 {
		t.Errorf("nwk = 0x%04X, want 0x4321", d.NetworkAddress)
	}
}

func TestParseScanResponseTooShort(t *testing.T) {
	if _, ok := parseScanResponse(make([]byte, 26), 11); ok {
		t.Error("expected short payload to be rejected")
	}
}

func TestScanCollectsResponses(t *testing.T) {
	ieeeLE := [8]byte{0xC4, 0xB3, 0xA2, 0x01, 0x00, 0x8D, 0x15, 0x00}
	ft := &fakeTransport{}
	s := newTestSession(ft)

	// Respond as soon as the scan request broadcast goes out.
	ft.onWrite = func(frame []byte) {
		if len(frame) > 3 && frame[3] == znpDataRequestExt {
			s.HandleFrame(scanResponseFrame(ieeeLE, 0x1234, 0x0001))
		}
	}

	devices, err := s.Scan(context.Background(), 11)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("devices = %d, want 1", len(devices))
	}
	if devices[0].IEEE != "00158d0001a2b3c4" {
		t.Errorf("ieee = %q", devices[0].IEEE)
	}
	if devices[0].Channel != 11 {
		t.Errorf("channel = %d, want 11", devices[0].Channel)
	}

	// First write sets the channel, then endpoint registration, the scan
	// broadcast and finally the restore to normal mode.
	frames := ft.written()
	if len(frames) != 4 {
		t.Fatalf("writes = %d, want 4", len(frames))
	}
	if frames[0][3] != znpInterPanCtl || frames[0][4] != interPanSetChannel {
		t.Errorf("first frame = % X, want InterPanCtl set channel", frames[0])
	}
	if frames[1][3] != znpInterPanCtl || frames[1][4] != interPanRegisterEP {
		t.Errorf("second frame = % X, want InterPanCtl register endpoint", frames[1])
	}
	if frames[2][3] != znpDataRequestExt {
		t.Errorf("third frame = % X, want DataRequestExt", frames[2])
	}
	last := frames[len(frames)-1]
	if last[3] != znpInterPanCtl || last[4] != interPanClear {
		t.Errorf("last frame = % X, want InterPanCtl clear", last)
	}
}

func TestScanEndpointRegisteredOnce(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(ft)

	if _, err := s.Scan(context.Background(), 11); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if _, err := s.Scan(context.Background(), 12); err != nil {
		t.Fatalf("second scan: %v", err)
	}

	registrations := 0
	for _, f := range ft.written() {
		if f[3] == znpInterPanCtl && f[4] == interPanRegisterEP {
			registrations++
		}
	}
	if registrations != 1 {
		t.Errorf("endpoint registrations = %d, want 1", registrations)
	}
}

func TestHandleFrameOutsideWindowDropped(t *testing.T) {
	s := newTestSession(&fakeTransport{})
	s.HandleFrame(scanResponseFrame([8]byte{1}, 0, 0))

	s.respMu.Lock()
	n := len(s.responses)
	s.respMu.Unlock()
	if n != 0 {
		t.Errorf("responses = %d, want 0", n)
	}
}

func TestHandleFrameIgnoresOtherCommands(t *testing.T) {
	s := newTestSession(&fakeTransport{})
	s.beginCollect()
	defer s.endCollect()

	frame := scanResponseFrame([8]byte{1}, 0, 0)
	frame[2] = cmdIdentifyRequest
	s.HandleFrame(frame)

	s.respMu.Lock()
	n := len(s.responses)
	s.respMu.Unlock()
	if n != 0 {
		t.Errorf("responses = %d, want 0", n)
	}
}

func TestUnsupportedWithoutTransport(t *testing.T) {
	s := NewSession(nil, zerolog.Nop())
	if s.Supported() {
		t.Error("nil transport should not be supported")
	}
	if _, err := s.Scan(context.Background(), 0); err != ErrUnsupported {
		t.Errorf("scan err = %v, want ErrUnsupported", err)
	}
	if _, err := s.Identify(context.Background(), 11); err != ErrUnsupported {
		t.Errorf("identify err = %v, want ErrUnsupported", err)
	}
	if _, err := s.FactoryReset(context.Background(), 11); err != ErrUnsupported {
		t.Errorf("reset err = %v, want ErrUnsupported", err)
	}
}

func TestConcurrentOperationRejected(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(ft)
	s.scanWindow = 50 * time.Millisecond

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := s.Scan(context.Background(), 11)
		done <- err
	}()

	<-started
	time.Sleep(5 * time.Millisecond)
	if _, err := s.Scan(context.Background(), 11); err != ErrBusy {
		t.Errorf("second scan err = %v, want ErrBusy", err)
	}
	if err := <-done; err != nil {
		t.Errorf("first scan err = %v", err)
	}
}

func TestExpandChannels(t *testing.T) {
	all, err := expandChannels(0)
	if err != nil {
		t.Fatalf("expand 0: %v", err)
	}
	if len(all) != 16 || all[0] != 11 || all[15] != 26 {
		t.Errorf("all channels = %v", all)
	}

	one, err := expandChannels(15)
	if err != nil {
		t.Fatalf("expand 15: %v", err)
	}
	if len(one) != 1 || one[0] != 15 {
		t.Errorf("single channel = %v", one)
	}

	if _, err := expandChannels(27); err == nil {
		t.Error("expected channel 27 to be rejected")
	}
	if _, err := expandChannels(5); err == nil {
		t.Error("expected channel 5 to be rejected")
	}
}

func TestScanCancelledByContext(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(ft)
	s.scanWindow = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	if _, err := s.Scan(ctx, 11); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}

	// The session must still restore normal mode and release the lock.
	last := ft.written()[len(ft.written())-1]
	if last[3] != znpInterPanCtl || last[4] != interPanClear {
		t.Errorf("last frame = % X, want InterPanCtl clear", last)
	}
	if _, err := s.Scan(context.Background(), 11); err != nil {
		t.Errorf("follow-up scan err = %v", err)
	}
}
