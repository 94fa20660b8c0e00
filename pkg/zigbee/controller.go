package zigbee

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/zcl"
)

// EmberDeviceUpdate values from the trust center join callback.
const (
	emberSecuredRejoin   = 0x00
	emberUnsecuredJoin   = 0x01
	emberDeviceLeft      = 0x02
	emberUnsecuredRejoin = 0x03
)

// EventHandler receives radio events. The gateway implements it. Callbacks
// run on the EZSP dispatch goroutine; implementations must not block.
type EventHandler interface {
	HandlePacket(p device.Packet)
	DeviceJoined(ieee string, nwk uint16)
	DeviceLeft(ieee string)
}

// NetworkOptions carries the formation parameters. They are only applied
// when no network exists on the NCP; an established network resumes as-is.
type NetworkOptions struct {
	Channel       uint8
	PANID         uint16
	ExtendedPANID [8]byte
	NetworkKey    [16]byte
}

// Options configures the controller.
type Options struct {
	Port    string
	Baud    int
	Network NetworkOptions
}

type zclKey struct {
	nwk     uint16
	cluster uint16
	seq     uint8
	command uint8
}

type zdoKey struct {
	cluster uint16
	seq     uint8
}

type scanSession struct {
	results map[int]float64
	done    chan struct{}
}

// Controller drives an EZSP coordinator over serial and implements
// device.Radio. Incoming APS frames are surfaced to the EventHandler as
// device.Packet; solicited ZCL and ZDO responses are additionally matched
// to their waiting callers.
type Controller struct {
	serial *SerialPort
	ash    *ASHLayer
	ezsp   *EZSPLayer

	coordIEEE string

	addrMu    sync.RWMutex
	nwkToIEEE map[uint16]string
	ieeeToNWK map[string]uint16

	handlerMu sync.RWMutex
	handler   EventHandler

	zclMu      sync.Mutex
	zclPending map[zclKey]chan []byte

	zdoMu      sync.Mutex
	zdoSeq     uint8
	zdoPending map[zdoKey]chan []byte

	lookupMu sync.Mutex
	lookups  map[uint16]struct{}

	scanMu sync.Mutex
	scan   *scanSession

	connected bool
	connMu    sync.RWMutex
}

// NewController opens the serial port, brings up ASH and EZSP, and resumes
// or forms the network described by opts.Network.
func NewController(opts Options) (*Controller, error) {
	log.Info().Str("port", opts.Port).Msg("Initializing Zigbee controller")
	s, err := OpenSerial(opts.Port, opts.Baud)
	if err != nil {
		return nil, fmt.Errorf("open serial: %w", err)
	}

	ash := NewASHLayer(s)
	ezsp := NewEZSPLayer(ash)

	c := &Controller{
		serial:     s,
		ash:        ash,
		ezsp:       ezsp,
		nwkToIEEE:  make(map[uint16]string),
		ieeeToNWK:  make(map[string]uint16),
		zclPending: make(map[zclKey]chan []byte),
		zdoPending: make(map[zdoKey]chan []byte),
		lookups:    make(map[uint16]struct{}),
	}

	ezsp.SetCallbackHandler(c.handleCallback)

	log.Info().Msg("Connecting ASH layer")
	if err := ash.Connect(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("ASH connect: %w", err)
	}

	log.Info().Msg("Starting EZSP processing")
	ezsp.Start()

	log.Info().Msg("Initializing EZSP stack")
	if err := c.initStack(opts.Network); err != nil {
		c.Close()
		return nil, fmt.Errorf("init stack: %w", err)
	}

	eui, err := ezsp.GetEUI64()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("read coordinator EUI64: %w", err)
	}
	c.coordIEEE = zcl.EUI64String(eui[:])

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	log.Info().Str("ieee", c.coordIEEE).Msg("Zigbee EZSP controller initialized")
	return c, nil
}

// initStack negotiates the EZSP version, configures the stack, and resumes
// or forms the network.
func (c *Controller) initStack(net NetworkOptions) error {
	log.Info().Msg("Negotiating EZSP version")
	proto, _, stackVer, err := c.ezsp.NegotiateVersion()
	if err != nil {
		return err
	}
	log.Info().Uint8("protocol", proto).Uint16("stack", stackVer).Msg("EZSP version OK")

	log.Info().Msg("Configuring EZSP stack")
	if err := c.ezsp.ConfigureStack(); err != nil {
		return err
	}

	log.Info().Msg("Initializing Zigbee network")
	status, err := c.ezsp.NetworkInit()
	if err != nil {
		return err
	}

	if status == emberSuccess || status == emberNetworkUp {
		log.Info().Msg("Resumed existing Zigbee network")
		return nil
	}

	log.Info().
		Uint8("status", status).
		Uint8("channel", net.Channel).
		Msg("No existing network, forming new one")

	if err := c.ezsp.SetInitialSecurityState(net.NetworkKey); err != nil {
		return fmt.Errorf("set security state: %w", err)
	}
	if err := c.ezsp.FormNetwork(net.Channel, net.PANID, net.ExtendedPANID); err != nil {
		return fmt.Errorf("form network: %w", err)
	}

	// Give the stack a moment to raise the network-up status.
	time.Sleep(500 * time.Millisecond)
	return nil
}

// SetEventHandler wires the gateway. Packets arriving before a handler is
// set are dropped.
func (c *Controller) SetEventHandler(h EventHandler) {
	c.handlerMu.Lock()
	c.handler = h
	c.handlerMu.Unlock()
}

// RegisterAddress seeds the NWK<->IEEE table, used at startup to restore
// the mapping for devices loaded from the database.
func (c *Controller) RegisterAddress(ieee string, nwk uint16) {
	c.addrMu.Lock()
	c.nwkToIEEE[nwk] = ieee
	c.ieeeToNWK[ieee] = nwk
	c.addrMu.Unlock()
}

// ResolveIEEE maps a network address to the IEEE it was last seen with.
func (c *Controller) ResolveIEEE(nwk uint16) (string, bool) {
	c.addrMu.RLock()
	defer c.addrMu.RUnlock()
	ieee, ok := c.nwkToIEEE[nwk]
	return ieee, ok
}

// CoordinatorIEEE returns the NCP's canonical IEEE address.
func (c *Controller) CoordinatorIEEE() string {
	return c.coordIEEE
}

// IsConnected reports whether the ASH session is up.
func (c *Controller) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.ash.IsConnected()
}

// Close shuts down the EZSP stack and the serial port.
func (c *Controller) Close() {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.ezsp.Close()
	c.ash.Close()
	if err := c.serial.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close serial port")
	}

	log.Info().Msg("Zigbee controller closed")
}

// --- EZSP callbacks ---

func (c *Controller) handleCallback(frameID uint16, data []byte) {
	switch frameID {
	case ezspTrustCenterJoinHandler:
		c.handleTrustCenterJoin(data)
	case ezspIncomingMessageHandler:
		c.handleIncomingMessage(data)
	case ezspStackStatusHandler:
		c.handleStackStatus(data)
	case ezspEnergyScanResultHandler:
		c.handleEnergyScanResult(data)
	case ezspScanCompleteHandler:
		c.handleScanComplete(data)
	default:
		log.Debug().Uint16("frameID", frameID).Msg("Unhandled EZSP callback")
	}
}

// handleTrustCenterJoin processes device join, rejoin and leave events.
// Callback layout: newNodeId(2) + newNodeEui64(8) + status(1) +
// policyDecision(1) + parentOfNewNodeId(2).
func (c *Controller) handleTrustCenterJoin(data []byte) {
	if len(data) < 11 {
		return
	}

	nwk := binary.LittleEndian.Uint16(data[0:2])
	ieee := zcl.EUI64String(data[2:10])
	status := data[10]

	log.Info().
		Str("ieee", ieee).
		Uint16("nwk", nwk).
		Uint8("status", status).
		Msg("Trust center join event")

	if status == emberDeviceLeft {
		c.addrMu.Lock()
		delete(c.ieeeToNWK, ieee)
		delete(c.nwkToIEEE, nwk)
		c.addrMu.Unlock()

		if h := c.eventHandler(); h != nil {
			h.DeviceLeft(ieee)
		}
		return
	}

	// Join or rejoin: either way the address table learns the new NWK.
	c.RegisterAddress(ieee, nwk)
	if h := c.eventHandler(); h != nil {
		h.DeviceJoined(ieee, nwk)
	}
}

// handleIncomingMessage parses an incomingMessageHandler callback into a
// device.Packet. Layout: type(1) + apsFrame(11) + lastHopLqi(1) +
// lastHopRssi(1) + sender(2) + bindingIndex(1) + addressIndex(1) +
// messageLength(1) + message(N).
func (c *Controller) handleIncomingMessage(data []byte) {
	if len(data) < 19 {
		return
	}

	profileID := binary.LittleEndian.Uint16(data[1:3])
	clusterID := binary.LittleEndian.Uint16(data[3:5])
	srcEndpoint := data[5]
	dstEndpoint := data[6]
	lqi := data[12]
	rssi := int8(data[13])
	sender := binary.LittleEndian.Uint16(data[14:16])
	msgLen := int(data[18])

	if len(data) < 19+msgLen {
		return
	}
	message := make([]byte, msgLen)
	copy(message, data[19:19+msgLen])

	ieee, known := c.ResolveIEEE(sender)

	pkt := device.Packet{
		Src:         device.Address{IEEE: ieee, NWK: sender},
		SrcEndpoint: srcEndpoint,
		DstEndpoint: dstEndpoint,
		ProfileID:   profileID,
		ClusterID:   clusterID,
		LQI:         lqi,
		RSSI:        rssi,
		HasLQI:      true,
		HasRSSI:     true,
		Data:        message,
	}

	if profileID == zdoProfile {
		c.dispatchZDO(clusterID, message)
	} else {
		c.dispatchZCL(sender, clusterID, message)
		if !known {
			// Learn the sender's IEEE so the next packet resolves.
			go c.requestIEEE(sender)
		}
	}

	if h := c.eventHandler(); h != nil {
		h.HandlePacket(pkt)
	}
}

func (c *Controller) handleStackStatus(data []byte) {
	if len(data) < 1 {
		return
	}
	switch data[0] {
	case emberNetworkUp:
		log.Info().Msg("Stack status: network up")
	case emberNetworkDown:
		log.Warn().Msg("Stack status: network down")
	default:
		log.Info().Uint8("status", data[0]).Msg("Stack status changed")
	}
}

func (c *Controller) handleEnergyScanResult(data []byte) {
	if len(data) < 2 {
		return
	}
	channel := int(data[0])
	rssi := int8(data[1])

	c.scanMu.Lock()
	if c.scan != nil {
		c.scan.results[channel] = rssiToEnergy(rssi)
	}
	c.scanMu.Unlock()
}

func (c *Controller) handleScanComplete(data []byte) {
	c.scanMu.Lock()
	s := c.scan
	c.scanMu.Unlock()
	if s != nil {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	}
}

func (c *Controller) eventHandler() EventHandler {
	c.handlerMu.RLock()
	defer c.handlerMu.RUnlock()
	return c.handler
}

// --- solicited response matching ---

func (c *Controller) awaitZCL(key zclKey) chan []byte {
	ch := make(chan []byte, 1)
	c.zclMu.Lock()
	c.zclPending[key] = ch
	c.zclMu.Unlock()
	return ch
}

func (c *Controller) dropZCL(key zclKey) {
	c.zclMu.Lock()
	delete(c.zclPending, key)
	c.zclMu.Unlock()
}

// dispatchZCL delivers a global response frame to its waiting caller. The
// frame still flows to the packet handler afterwards, so attribute values
// in read responses reach the state engine too.
func (c *Controller) dispatchZCL(sender uint16, cluster uint16, frame []byte) {
	h, payload, err := zcl.ParseHeader(frame)
	if err != nil || !h.IsGlobal() {
		return
	}

	key := zclKey{nwk: sender, cluster: cluster, seq: h.Seq, command: h.Command}
	c.zclMu.Lock()
	ch, ok := c.zclPending[key]
	if ok {
		delete(c.zclPending, key)
	}
	c.zclMu.Unlock()

	if ok {
		ch <- payload
	}
}

func (c *Controller) nextZDOSeq() uint8 {
	c.zdoMu.Lock()
	defer c.zdoMu.Unlock()
	c.zdoSeq++
	if c.zdoSeq == 0 {
		c.zdoSeq = 1
	}
	return c.zdoSeq
}

func (c *Controller) awaitZDO(cluster uint16, seq uint8) chan []byte {
	ch := make(chan []byte, 1)
	c.zdoMu.Lock()
	c.zdoPending[zdoKey{cluster: cluster, seq: seq}] = ch
	c.zdoMu.Unlock()
	return ch
}

func (c *Controller) dropZDO(cluster uint16, seq uint8) {
	c.zdoMu.Lock()
	delete(c.zdoPending, zdoKey{cluster: cluster, seq: seq})
	c.zdoMu.Unlock()
}

func (c *Controller) dispatchZDO(cluster uint16, payload []byte) {
	if cluster&zdoResponseBit == 0 || len(payload) < 1 {
		return
	}

	key := zdoKey{cluster: cluster, seq: payload[0]}
	c.zdoMu.Lock()
	ch, ok := c.zdoPending[key]
	if ok {
		delete(c.zdoPending, key)
	}
	c.zdoMu.Unlock()

	if ok {
		ch <- payload
		return
	}

	// Unsolicited IEEE address responses still teach us the mapping.
	if cluster == zdoIEEEAddrReq|zdoResponseBit {
		if ieee, nwk, err := parseIEEEAddrRsp(payload); err == nil {
			c.RegisterAddress(zcl.EUI64String(ieee), nwk)
		}
	}
}

// requestIEEE asks the network who owns a NWK address. Fire-and-forget;
// the response lands in dispatchZDO. At most one lookup per address runs
// at a time.
func (c *Controller) requestIEEE(nwk uint16) {
	c.lookupMu.Lock()
	if _, busy := c.lookups[nwk]; busy {
		c.lookupMu.Unlock()
		return
	}
	c.lookups[nwk] = struct{}{}
	c.lookupMu.Unlock()
	defer func() {
		c.lookupMu.Lock()
		delete(c.lookups, nwk)
		c.lookupMu.Unlock()
	}()

	seq := c.nextZDOSeq()
	ch := c.awaitZDO(zdoIEEEAddrReq|zdoResponseBit, seq)
	defer c.dropZDO(zdoIEEEAddrReq|zdoResponseBit, seq)

	if err := c.ezsp.SendUnicast(nwk, zdoProfile, zdoIEEEAddrReq, 0, 0, buildIEEEAddrReq(seq, nwk)); err != nil {
		log.Debug().Err(err).Uint16("nwk", nwk).Msg("IEEE address request failed")
		return
	}

	select {
	case payload := <-ch:
		if ieee, rspNwk, err := parseIEEEAddrRsp(payload); err == nil {
			c.RegisterAddress(zcl.EUI64String(ieee), rspNwk)
		}
	case <-time.After(5 * time.Second):
	}
}

// --- device.Radio ---

// resolveNWK prefers the live address table over the caller's snapshot so
// commands keep working across rejoins.
func (c *Controller) resolveNWK(addr device.Address) uint16 {
	if addr.IEEE != "" {
		c.addrMu.RLock()
		nwk, ok := c.ieeeToNWK[addr.IEEE]
		c.addrMu.RUnlock()
		if ok {
			return nwk
		}
	}
	return addr.NWK
}

// sendUnicast runs the blocking EZSP send under the caller's context.
func (c *Controller) sendUnicast(ctx context.Context, nwk uint16, profile, cluster uint16, dstEndpoint uint8, frame []byte) error {
	if !c.IsConnected() {
		return device.ErrNotConnected
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.ezsp.SendUnicast(nwk, profile, cluster, 1, dstEndpoint, frame)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%w: %v", device.ErrUnreachable, err)
		}
		return nil
	case <-ctx.Done():
		return ctxError(ctx)
	}
}

func (c *Controller) ReadAttributes(ctx context.Context, addr device.Address, endpoint uint8, cluster uint16, attrs []uint16) (map[uint16]any, error) {
	nwk := c.resolveNWK(addr)
	seq := zcl.NextSeq()

	key := zclKey{nwk: nwk, cluster: cluster, seq: seq, command: zcl.CmdReadAttributesResponse}
	ch := c.awaitZCL(key)
	defer c.dropZCL(key)

	if err := c.sendUnicast(ctx, nwk, zcl.ProfileHomeAutomation, cluster, endpoint, zcl.BuildReadAttributes(seq, attrs...)); err != nil {
		return nil, err
	}

	select {
	case payload := <-ch:
		reports := zcl.ParseReadAttributesResponse(payload)
		out := make(map[uint16]any, len(reports))
		for id, r := range reports {
			out[id] = r.Value
		}
		return out, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("read attributes cluster 0x%04X: %w", cluster, ctxError(ctx))
	}
}

func (c *Controller) WriteAttributes(ctx context.Context, addr device.Address, endpoint uint8, cluster uint16, records []zcl.AttributeRecord) error {
	nwk := c.resolveNWK(addr)
	seq := zcl.NextSeq()

	key := zclKey{nwk: nwk, cluster: cluster, seq: seq, command: zcl.CmdWriteAttributesResponse}
	ch := c.awaitZCL(key)
	defer c.dropZCL(key)

	if err := c.sendUnicast(ctx, nwk, zcl.ProfileHomeAutomation, cluster, endpoint, zcl.BuildWriteAttributes(seq, records...)); err != nil {
		return err
	}

	select {
	case payload := <-ch:
		if len(payload) >= 1 && payload[0] != 0x00 {
			return fmt.Errorf("write attributes cluster 0x%04X: status 0x%02X", cluster, payload[0])
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("write attributes cluster 0x%04X: %w", cluster, ctxError(ctx))
	}
}

func (c *Controller) ConfigureReporting(ctx context.Context, addr device.Address, endpoint uint8, cluster uint16, configs []zcl.ReportConfig) error {
	nwk := c.resolveNWK(addr)
	seq := zcl.NextSeq()

	key := zclKey{nwk: nwk, cluster: cluster, seq: seq, command: zcl.CmdConfigureReportingResponse}
	ch := c.awaitZCL(key)
	defer c.dropZCL(key)

	if err := c.sendUnicast(ctx, nwk, zcl.ProfileHomeAutomation, cluster, endpoint, zcl.BuildConfigureReporting(seq, configs...)); err != nil {
		return err
	}

	select {
	case payload := <-ch:
		if len(payload) >= 1 && payload[0] != 0x00 {
			return fmt.Errorf("configure reporting cluster 0x%04X: status 0x%02X", cluster, payload[0])
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("configure reporting cluster 0x%04X: %w", cluster, ctxError(ctx))
	}
}

// Bind binds the device's cluster to the coordinator so reports route here.
func (c *Controller) Bind(ctx context.Context, addr device.Address, endpoint uint8, cluster uint16) error {
	srcIEEE, err := device.IEEEWireBytes(addr.IEEE)
	if err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	dstIEEE, err := device.IEEEWireBytes(c.coordIEEE)
	if err != nil {
		return fmt.Errorf("bind: coordinator ieee: %w", err)
	}

	nwk := c.resolveNWK(addr)
	seq := c.nextZDOSeq()
	ch := c.awaitZDO(zdoBindReq|zdoResponseBit, seq)
	defer c.dropZDO(zdoBindReq|zdoResponseBit, seq)

	frame := buildBindReq(seq, srcIEEE, endpoint, cluster, dstIEEE, 1)
	if err := c.sendUnicast(ctx, nwk, zdoProfile, zdoBindReq, 0, frame); err != nil {
		return err
	}

	select {
	case payload := <-ch:
		status, err := parseZDOStatus(payload)
		if err != nil {
			return err
		}
		if status != zdoStatusSuccess {
			return fmt.Errorf("bind cluster 0x%04X: status 0x%02X", cluster, status)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("bind cluster 0x%04X: %w", cluster, ctxError(ctx))
	}
}

func (c *Controller) SendClusterCommand(ctx context.Context, addr device.Address, endpoint uint8, cluster uint16, commandID uint8, payload []byte) error {
	nwk := c.resolveNWK(addr)
	frame := zcl.EncodeClusterCommand(zcl.NextSeq(), commandID, payload)
	return c.sendUnicast(ctx, nwk, zcl.ProfileHomeAutomation, cluster, endpoint, frame)
}

// AddToGroup sends a Groups cluster Add Group command with an empty name.
func (c *Controller) AddToGroup(ctx context.Context, addr device.Address, endpoint uint8, group uint16) error {
	payload := []byte{byte(group), byte(group >> 8), 0x00}
	return c.SendClusterCommand(ctx, addr, endpoint, 0x0004, 0x00, payload)
}

// EnergyScan scans the given channels and returns per-channel energy on the
// 0-255 scale. One scan at a time; concurrent calls fail.
func (c *Controller) EnergyScan(ctx context.Context, channels []int, duration uint8) (map[int]float64, error) {
	if !c.IsConnected() {
		return nil, device.ErrNotConnected
	}

	var mask uint32
	for _, ch := range channels {
		if ch >= 11 && ch <= 26 {
			mask |= 1 << uint(ch)
		}
	}
	if mask == 0 {
		return nil, fmt.Errorf("energy scan: no valid channels")
	}

	session := &scanSession{results: make(map[int]float64), done: make(chan struct{})}
	c.scanMu.Lock()
	if c.scan != nil {
		c.scanMu.Unlock()
		return nil, fmt.Errorf("energy scan already running")
	}
	c.scan = session
	c.scanMu.Unlock()

	defer func() {
		c.scanMu.Lock()
		c.scan = nil
		c.scanMu.Unlock()
	}()

	if err := c.ezsp.StartEnergyScan(mask, duration); err != nil {
		return nil, err
	}

	select {
	case <-session.done:
	case <-ctx.Done():
		return nil, fmt.Errorf("energy scan: %w", ctxError(ctx))
	}

	c.scanMu.Lock()
	out := make(map[int]float64, len(session.results))
	for ch, e := range session.results {
		out[ch] = e
	}
	c.scanMu.Unlock()
	return out, nil
}

// PermitJoin opens the network on the NCP and tells routers to do the same.
func (c *Controller) PermitJoin(ctx context.Context, seconds uint8) error {
	if !c.IsConnected() {
		return device.ErrNotConnected
	}
	if err := c.ezsp.PermitJoining(seconds); err != nil {
		return err
	}

	seq := c.nextZDOSeq()
	frame := buildMgmtPermitJoinReq(seq, seconds)
	if err := c.ezsp.SendBroadcast(broadcastRouters, zdoProfile, zdoMgmtPermitJoinReq, 0, 0, frame); err != nil {
		return fmt.Errorf("permit join broadcast: %w", err)
	}

	log.Info().Uint8("seconds", seconds).Msg("Permit join window")
	return nil
}

// Leave asks a device to leave the network.
func (c *Controller) Leave(ctx context.Context, addr device.Address) error {
	ieee, err := device.IEEEWireBytes(addr.IEEE)
	if err != nil {
		return fmt.Errorf("leave: %w", err)
	}

	nwk := c.resolveNWK(addr)
	seq := c.nextZDOSeq()
	ch := c.awaitZDO(zdoMgmtLeaveReq|zdoResponseBit, seq)
	defer c.dropZDO(zdoMgmtLeaveReq|zdoResponseBit, seq)

	if err := c.sendUnicast(ctx, nwk, zdoProfile, zdoMgmtLeaveReq, 0, buildMgmtLeaveReq(seq, ieee)); err != nil {
		return err
	}

	select {
	case payload := <-ch:
		status, err := parseZDOStatus(payload)
		if err != nil {
			return err
		}
		if status != zdoStatusSuccess {
			return fmt.Errorf("leave: status 0x%02X", status)
		}
	case <-ctx.Done():
		// The device may have left without answering; treat a timeout as
		// best-effort success after cleaning our table.
		log.Debug().Str("ieee", addr.IEEE).Msg("Leave request unanswered")
	}

	c.addrMu.Lock()
	delete(c.ieeeToNWK, addr.IEEE)
	delete(c.nwkToIEEE, nwk)
	c.addrMu.Unlock()
	return nil
}

// Interview walks a joined device: active endpoints first, then a simple
// descriptor per endpoint.
func (c *Controller) Interview(ctx context.Context, addr device.Address) ([]device.EndpointDescriptor, error) {
	nwk := c.resolveNWK(addr)

	seq := c.nextZDOSeq()
	ch := c.awaitZDO(zdoActiveEPReq|zdoResponseBit, seq)
	defer c.dropZDO(zdoActiveEPReq|zdoResponseBit, seq)

	if err := c.sendUnicast(ctx, nwk, zdoProfile, zdoActiveEPReq, 0, buildActiveEPReq(seq, nwk)); err != nil {
		return nil, err
	}

	var endpoints []uint8
	select {
	case payload := <-ch:
		_, eps, err := parseActiveEPRsp(payload)
		if err != nil {
			return nil, err
		}
		endpoints = eps
	case <-ctx.Done():
		return nil, fmt.Errorf("active endpoints: %w", ctxError(ctx))
	}

	descriptors := make([]device.EndpointDescriptor, 0, len(endpoints))
	for _, ep := range endpoints {
		desc, err := c.simpleDescriptor(ctx, nwk, ep)
		if err != nil {
			log.Warn().Err(err).Str("ieee", addr.IEEE).Uint8("endpoint", ep).Msg("Simple descriptor failed")
			continue
		}
		descriptors = append(descriptors, device.EndpointDescriptor{
			ID:          desc.Endpoint,
			ProfileID:   desc.ProfileID,
			DeviceType:  desc.DeviceID,
			InClusters:  desc.InClusters,
			OutClusters: desc.OutClusters,
		})
	}

	if len(descriptors) == 0 {
		return nil, fmt.Errorf("interview %s: no endpoints described", addr.IEEE)
	}
	return descriptors, nil
}

func (c *Controller) simpleDescriptor(ctx context.Context, nwk uint16, endpoint uint8) (SimpleDescriptor, error) {
	seq := c.nextZDOSeq()
	ch := c.awaitZDO(zdoSimpleDescReq|zdoResponseBit, seq)
	defer c.dropZDO(zdoSimpleDescReq|zdoResponseBit, seq)

	if err := c.sendUnicast(ctx, nwk, zdoProfile, zdoSimpleDescReq, 0, buildSimpleDescReq(seq, nwk, endpoint)); err != nil {
		return SimpleDescriptor{}, err
	}

	select {
	case payload := <-ch:
		return parseSimpleDescRsp(payload)
	case <-ctx.Done():
		return SimpleDescriptor{}, fmt.Errorf("simple descriptor ep %d: %w", endpoint, ctxError(ctx))
	}
}

// --- helpers ---

// ctxError maps a context deadline onto the radio's timeout sentinel.
func ctxError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return device.ErrTimeout
	}
	return ctx.Err()
}

// rssiToEnergy maps a dBm reading onto the 0-255 energy scale, clamped to
// the radio's practical range (-92 dBm quiet, -20 dBm saturated).
func rssiToEnergy(rssi int8) float64 {
	const floor, ceil = -92.0, -20.0
	v := float64(rssi)
	if v <= floor {
		return 0
	}
	if v >= ceil {
		return 255
	}
	return math.Round((v-floor)/(ceil-floor)*255*100) / 100
}
