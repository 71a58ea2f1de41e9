package mqtt

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-io/go-mqtt/packet"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Session runs one MQTT connection over a Transport: the CONNECT handshake, keep-alive,
// subscriptions and QoS 0/1/2 delivery in both directions.
//
// A Session is started once. After it fails or is stopped it cannot be reused; create a new one
// with a fresh Transport instead.
type Session struct {
	options   Options
	version   byte
	transport Transport
	log       logrus.FieldLogger

	mu       sync.RWMutex
	state    State
	err      error
	clientID string
	connack  *packet.CONNACK
	maxQoS   uint8
	retain   bool

	maxOut atomic.Uint32 // server Maximum Packet Size, 0 means unlimited

	inFight   *InFight
	decoder   *packet.Decoder
	keepAlive *keepAlive
	delivery  *delivery
	limiter   *rate.Limiter

	// read loop only
	inbound map[uint16]struct{} // QoS 2 identifiers awaiting PUBREL
	aliases map[uint16]string   // v5.0 inbound topic aliases

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	done   chan struct{}
	once   sync.Once
}

// NewSession returns a Session in StateSetup that will run over t.
func NewSession(t Transport, opts ...Option) *Session {
	return newSession(t, newOptions(opts...))
}

func newSession(t Transport, options Options) *Session {
	s := &Session{
		options:   options,
		version:   options.Version,
		transport: t,
		log:       options.Logger.WithField("client_id", options.ClientID),
		state:     StateSetup,
		clientID:  options.ClientID,
		maxQoS:    2,
		retain:    true,
		inFight:   newInFight(),
		decoder:   packet.NewDecoder(options.Version),
		delivery:  newDelivery(),
		inbound:   make(map[uint16]struct{}),
		aliases:   make(map[uint16]string),
		done:      make(chan struct{}),
	}
	s.decoder.MaxPacketSize = options.MaxPacketSize
	if options.PublishRate > 0 {
		burst := options.PublishBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(options.PublishRate, burst)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.group, s.ctx = errgroup.WithContext(s.ctx)
	s.keepAlive = newKeepAlive(func() error {
		return s.send(&packet.PINGREQ{FixedHeader: s.header(PINGREQ)})
	})
	stat.Sessions.WithLabelValues(StateSetup.String()).Inc()
	return s
}

// State returns the current state. The error is set in StateWaiting and StateFailed.
func (s *Session) State() (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.state {
	case StateWaiting, StateFailed:
		return s.state, s.err
	}
	return s.state, nil
}

// Done is closed when the session reaches StateFailed or StateCancelled.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns nil until Done is closed, then the failure or ErrCancelled.
func (s *Session) Err() error {
	select {
	case <-s.done:
	default:
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// ClientID returns the client identifier in use, the server assigned one under v5.0 if any.
func (s *Session) ClientID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientID
}

// ConnAck returns the accepted CONNACK, nil before StateReady.
func (s *Session) ConnAck() *packet.CONNACK {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connack
}

// OnMessage sets the handler for inbound application messages. Messages are handed over one at a
// time in arrival order on a goroutine owned by the session.
func (s *Session) OnMessage(fn func(*packet.Message)) {
	s.delivery.setHandler(fn)
}

// Start opens the transport, performs the CONNECT/CONNACK handshake and returns once the session is
// ready. ctx bounds the handshake only; the session lives until Stop or a fatal error. Start may be
// called once.
func (s *Session) Start(ctx context.Context) error {
	if err := s.transition(StateSetup, StatePreparing); err != nil {
		return err
	}
	s.log.WithField("version", s.version).Info("client connecting")

	s.transport.Start(s.ctx)
	if err := s.awaitTransport(ctx); err != nil {
		s.fail(err)
		return err
	}

	s.group.Go(s.readLoop)
	s.group.Go(func() error {
		return s.keepAlive.run(s.ctx)
	})
	go s.delivery.run()
	go s.supervise()

	connack, err := s.handshake(ctx)
	if err != nil {
		s.fail(err)
		return err
	}

	interval := time.Duration(s.options.KeepAlive) * s.options.keepAliveUnit
	if p := connack.Props; p != nil && p.ServerKeepAlive != nil {
		interval = time.Duration(*p.ServerKeepAlive) * s.options.keepAliveUnit
	}

	s.mu.Lock()
	if s.state != StatePreparing {
		err := s.err
		s.mu.Unlock()
		return err
	}
	s.connack = connack
	s.setState(StateReady, nil)
	s.mu.Unlock()

	s.keepAlive.begin(interval)
	s.log.WithFields(logrus.Fields{
		"session_present": connack.SessionPresent,
		"keepalive":       interval,
	}).Info("client connected")
	return nil
}

func (s *Session) awaitTransport(ctx context.Context) error {
	timer := time.NewTimer(s.options.ConnectTimeout)
	defer timer.Stop()
	for {
		select {
		case ev := <-s.transport.Events():
			switch ev.State {
			case TransportReady:
				s.mu.Lock()
				if s.state == StateWaiting {
					s.setState(StatePreparing, nil)
				}
				s.mu.Unlock()
				return nil
			case TransportWaiting:
				s.mu.Lock()
				if s.state == StatePreparing || s.state == StateWaiting {
					s.setState(StateWaiting, &TransportError{Err: ev.Err})
				}
				s.mu.Unlock()
				s.log.WithError(ev.Err).Warn("client transport waiting")
			case TransportFailed:
				return &TransportError{Err: ev.Err}
			case TransportCancelled:
				return &TransportError{Err: ErrCancelled}
			}
		case <-timer.C:
			return fmt.Errorf("%w: transport not ready after %s", ErrTimeout, s.options.ConnectTimeout)
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		case <-s.done:
			return s.Err()
		}
	}
}

func (s *Session) handshake(ctx context.Context) (*packet.CONNACK, error) {
	connect := &packet.CONNECT{
		FixedHeader:  s.header(CONNECT),
		CleanSession: s.options.CleanSession,
		KeepAlive:    s.options.KeepAlive,
		ClientID:     s.options.ClientID,
		Will:         s.options.Will,
		Username:     s.options.Username,
		Password:     s.options.Password,
	}
	if s.version == packet.VERSION500 {
		connect.Props = s.options.ConnectProperties
		if size := s.options.MaxPacketSize; size != 0 {
			props := packet.Properties{}
			if connect.Props != nil {
				props = *connect.Props
			}
			props.MaximumPacketSize = size
			connect.Props = &props
		}
	}

	pkt, err := s.await(ctx, s.options.ConnectTimeout, CONNACK, 0, connect)
	if err != nil {
		return nil, err
	}
	connack, ok := pkt.(*packet.CONNACK)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTypeMismatch, pkt)
	}
	if err := connackError(s.version, connack.ReasonCode); err != nil {
		s.log.WithField("reason_code", connack.ReasonCode).Error("client connect refused")
		return nil, err
	}

	if p := connack.Props; p != nil {
		s.mu.Lock()
		if p.AssignedClientIdentifier != "" {
			s.clientID = p.AssignedClientIdentifier
		}
		if p.MaximumQoS != nil {
			s.maxQoS = *p.MaximumQoS
		}
		if p.RetainAvailable != nil {
			s.retain = *p.RetainAvailable == 1
		}
		s.mu.Unlock()
		s.maxOut.Store(p.MaximumPacketSize)
		if p.AssignedClientIdentifier != "" {
			s.log.WithField("assigned_client_id", p.AssignedClientIdentifier).Info("client identifier assigned")
		}
	}
	return connack, nil
}

// Subscribe sends one SUBSCRIBE for subs and returns the SUBACK codes, one per subscription in order.
// A failure code for any subscription is reported as a *RejectedError alongside the codes.
func (s *Session) Subscribe(ctx context.Context, subs ...packet.Subscription) ([]packet.ReasonCode, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	id, err := s.inFight.Reserve()
	if err != nil {
		return nil, err
	}
	defer s.inFight.Release(id)

	pkt, err := s.await(ctx, s.options.AckTimeout, SUBACK, id, &packet.SUBSCRIBE{
		FixedHeader:   s.header(SUBSCRIBE),
		PacketID:      id,
		Subscriptions: subs,
	})
	if err != nil {
		s.log.WithError(err).Warn("client subscribe failed")
		return nil, err
	}
	suback, ok := pkt.(*packet.SUBACK)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTypeMismatch, pkt)
	}
	if len(suback.ReasonCodes) != len(subs) {
		err := fmt.Errorf("%w: SUBACK has %d codes for %d subscriptions", ErrCorruptData, len(suback.ReasonCodes), len(subs))
		s.fail(err)
		return nil, err
	}
	for i, code := range suback.ReasonCodes {
		if code.Failed() {
			s.log.WithField("topic", subs[i].TopicFilter).WithField("reason_code", code).Warn("client subscribe failed")
			return suback.ReasonCodes, &RejectedError{Err: ErrProtocolRejection, Code: code}
		}
	}
	s.log.WithField("subscriptions", len(subs)).Info("client subscribed")
	return suback.ReasonCodes, nil
}

// Unsubscribe sends one UNSUBSCRIBE and waits for its UNSUBACK. The codes are only present under v5.0.
func (s *Session) Unsubscribe(ctx context.Context, filters ...string) ([]packet.ReasonCode, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	id, err := s.inFight.Reserve()
	if err != nil {
		return nil, err
	}
	defer s.inFight.Release(id)

	pkt, err := s.await(ctx, s.options.AckTimeout, UNSUBACK, id, &packet.UNSUBSCRIBE{
		FixedHeader:  s.header(UNSUBSCRIBE),
		PacketID:     id,
		TopicFilters: filters,
	})
	if err != nil {
		return nil, err
	}
	unsuback, ok := pkt.(*packet.UNSUBACK)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTypeMismatch, pkt)
	}
	if s.version == packet.VERSION500 && len(unsuback.ReasonCodes) != len(filters) {
		err := fmt.Errorf("%w: UNSUBACK has %d codes for %d topic filters", ErrCorruptData, len(unsuback.ReasonCodes), len(filters))
		s.fail(err)
		return nil, err
	}
	for _, code := range unsuback.ReasonCodes {
		if code.Failed() {
			return unsuback.ReasonCodes, &RejectedError{Err: ErrProtocolRejection, Code: code}
		}
	}
	return unsuback.ReasonCodes, nil
}

// Publish sends msg with the given QoS. QoS 0 returns once the packet is written, QoS 1 once PUBACK
// arrives and QoS 2 once the PUBREC, PUBREL, PUBCOMP exchange completes.
func (s *Session) Publish(ctx context.Context, msg *packet.Message, qos uint8, retain bool) error {
	if qos > 2 {
		return fmt.Errorf("%w: qos %d", ErrState, qos)
	}
	if err := s.ready(); err != nil {
		return err
	}
	s.mu.RLock()
	maxQoS, retainAvailable := s.maxQoS, s.retain
	s.mu.RUnlock()
	if qos > maxQoS {
		return fmt.Errorf("%w: qos %d above server maximum %d", ErrState, qos, maxQoS)
	}
	if retain && !retainAvailable {
		return fmt.Errorf("%w: server does not support retained messages", ErrState)
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrCancelled, err)
		}
	}

	pub := &packet.PUBLISH{FixedHeader: s.header(PUBLISH), Message: msg}
	pub.QoS = qos
	if retain {
		pub.Retain = 1
	}
	if qos == 0 {
		return s.send(pub)
	}

	id, err := s.inFight.Reserve()
	if err != nil {
		return err
	}
	defer s.inFight.Release(id)
	pub.PacketID = id

	if qos == 1 {
		pkt, err := s.await(ctx, s.options.AckTimeout, PUBACK, id, pub)
		if err != nil {
			return err
		}
		return ackError(pkt)
	}

	pkt, err := s.await(ctx, s.options.AckTimeout, PUBREC, id, pub)
	if err != nil {
		return err
	}
	if err := ackError(pkt); err != nil {
		return err
	}
	pkt, err = s.await(ctx, s.options.AckTimeout, PUBCOMP, id, &packet.PUBREL{FixedHeader: s.header(PUBREL), PacketID: id})
	if err != nil {
		return err
	}
	return ackError(pkt)
}

func ackError(pkt packet.Packet) error {
	var rc packet.ReasonCode
	switch p := pkt.(type) {
	case *packet.PUBACK:
		rc = p.ReasonCode
	case *packet.PUBREC:
		rc = p.ReasonCode
	case *packet.PUBCOMP:
		rc = p.ReasonCode
	default:
		return fmt.Errorf("%w: %s", ErrTypeMismatch, pkt)
	}
	if rc.Failed() {
		return &RejectedError{Err: ErrProtocolRejection, Code: rc}
	}
	return nil
}

// disconnectTimeout bounds the DISCONNECT write of Stop.
const disconnectTimeout = time.Second

// Stop sends DISCONNECT when the session is ready and tears it down. Pending operations fail with
// ErrCancelled. Stop never waits on a stalled connection for longer than disconnectTimeout; cancelling
// the transport releases any write still in progress. Stop is idempotent.
func (s *Session) Stop() {
	if state, _ := s.State(); state == StateReady {
		sent := make(chan error, 1)
		go func() {
			sent <- s.send(&packet.DISCONNECT{FixedHeader: s.header(DISCONNECT)})
		}()
		timer := time.NewTimer(disconnectTimeout)
		select {
		case err := <-sent:
			if err != nil {
				s.log.WithError(err).Warn("client disconnect packet send failed")
			}
		case <-timer.C:
			s.log.Warnf("client disconnect packet not written within %s", disconnectTimeout)
		}
		timer.Stop()
	}
	if s.teardown(StateCancelled, ErrCancelled) {
		s.log.Info("client disconnected")
	}
}

// supervise fails the session with the first error returned by the read loop or the keep-alive.
func (s *Session) supervise() {
	if err := s.group.Wait(); err != nil {
		s.fail(err)
	}
}

func (s *Session) fail(err error) {
	if s.teardown(StateFailed, err) {
		s.log.WithError(err).Error("client session failed")
	}
}

// teardown moves the session to a terminal state. The keep-alive stops before the transport is
// cancelled. It reports whether this call did the work.
func (s *Session) teardown(state State, err error) bool {
	done := false
	s.once.Do(func() {
		done = true
		s.mu.Lock()
		s.setState(state, err)
		s.mu.Unlock()

		s.keepAlive.halt()
		s.cancel()
		s.transport.Cancel()
		s.inFight.FailAll(err)
		s.delivery.close()
		close(s.done)
	})
	return done
}

// setState requires s.mu.
func (s *Session) setState(state State, err error) {
	stat.transition(s.state, state)
	s.state, s.err = state, err
}

func (s *Session) transition(from, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return fmt.Errorf("%w: session is %s", ErrState, s.state)
	}
	s.setState(to, nil)
	return nil
}

func (s *Session) ready() error {
	if state, _ := s.State(); state != StateReady {
		return fmt.Errorf("%w: session is %s", ErrState, state)
	}
	return nil
}

func (s *Session) header(kind byte) *packet.FixedHeader {
	return &packet.FixedHeader{Version: s.version, Kind: kind}
}

type result struct {
	pkt packet.Packet
	err error
}

// await registers for the reply of the given kind and identifier, sends req and waits up to timeout.
// A timeout or cancelled ctx fails only this operation.
func (s *Session) await(ctx context.Context, timeout time.Duration, kind byte, id uint16, req packet.Packet) (packet.Packet, error) {
	ch := make(chan result, 1)
	if err := s.inFight.Put(kind, id, func(pkt packet.Packet, err error) {
		ch <- result{pkt: pkt, err: err}
	}); err != nil {
		return nil, err
	}
	if err := s.send(req); err != nil {
		if s.ctx.Err() != nil {
			// the session is ending and FailAll reports why
			select {
			case r := <-ch:
				return r.pkt, r.err
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
			}
		}
		s.inFight.Cancel(kind, id)
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.pkt, r.err
	case <-timer.C:
		s.inFight.Cancel(kind, id)
		return nil, fmt.Errorf("%w: no %s for packet %d within %s", ErrTimeout, packet.Kind[kind], id, timeout)
	case <-ctx.Done():
		s.inFight.Cancel(kind, id)
		return nil, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
}

// send encodes pkt and writes it. A transport failure ends the session.
func (s *Session) send(pkt packet.Packet) error {
	b, err := packet.Encode(pkt)
	if err != nil {
		return err
	}
	if limit := s.maxOut.Load(); limit != 0 && uint32(len(b)) > limit {
		return fmt.Errorf("%w: %s of %d bytes exceeds server maximum packet size %d", ErrState, packet.Kind[pkt.Kind()], len(b), limit)
	}
	if err := s.transport.Send(b); err != nil {
		terr := &TransportError{Err: err}
		// a write released by teardown or by a failing loop keeps the original error
		if s.ctx.Err() == nil {
			s.fail(terr)
		}
		return terr
	}
	stat.PacketsSent.WithLabelValues(packet.Kind[pkt.Kind()]).Inc()
	stat.BytesSent.Add(float64(len(b)))
	s.log.Debugf("send %s", pkt)
	return nil
}

func (s *Session) readLoop() error {
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case ev := <-s.transport.Events():
			switch ev.State {
			case TransportFailed:
				return &TransportError{Err: ev.Err}
			case TransportCancelled:
				return &TransportError{Err: ErrCancelled}
			}
		case chunk, ok := <-s.transport.Chunks():
			if !ok {
				return s.closedError()
			}
			stat.BytesReceived.Add(float64(len(chunk)))
			pkts, err := s.decoder.Decode(chunk)
			for _, pkt := range pkts {
				if herr := s.handle(pkt); herr != nil {
					return herr
				}
			}
			if err != nil {
				return err
			}
		}
	}
}

// closedError picks the failure reported by the transport before it closed the chunk stream.
func (s *Session) closedError() error {
	for {
		select {
		case ev := <-s.transport.Events():
			if ev.Err != nil {
				return &TransportError{Err: ev.Err}
			}
		default:
			return &TransportError{Err: io.ErrUnexpectedEOF}
		}
	}
}

func (s *Session) handle(pkt packet.Packet) error {
	stat.PacketsReceived.WithLabelValues(packet.Kind[pkt.Kind()]).Inc()
	s.log.Debugf("recv %s", pkt)

	switch p := pkt.(type) {
	case *packet.CONNACK:
		if !s.inFight.Resolve(p, 0) {
			return fmt.Errorf("%w: unsolicited CONNACK", ErrUnexpectedType)
		}
	case *packet.PUBLISH:
		return s.handlePublish(p)
	case *packet.PUBREL:
		return s.handlePubrel(p)
	case *packet.PUBACK:
		s.resolve(p, p.PacketID)
	case *packet.PUBREC:
		s.resolve(p, p.PacketID)
	case *packet.PUBCOMP:
		s.resolve(p, p.PacketID)
	case *packet.SUBACK:
		s.resolve(p, p.PacketID)
	case *packet.UNSUBACK:
		s.resolve(p, p.PacketID)
	case *packet.PINGRESP:
		s.keepAlive.pong()
	case *packet.DISCONNECT:
		return &RejectedError{Err: ErrProtocolRejection, Code: p.ReasonCode}
	case *packet.AUTH:
		return fmt.Errorf("%w: enhanced authentication is not supported", ErrUnexpectedType)
	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedType, pkt)
	}
	return nil
}

func (s *Session) resolve(pkt packet.Packet, id uint16) {
	if !s.inFight.Resolve(pkt, id) {
		s.log.WithField("packet_id", id).Warnf("ignore unmatched %s", packet.Kind[pkt.Kind()])
	}
}

func (s *Session) handlePublish(pub *packet.PUBLISH) error {
	if err := s.resolveAlias(pub); err != nil {
		return err
	}
	switch pub.QoS {
	case 0:
		s.delivery.push(pub.Message)
		return nil
	case 1:
		s.delivery.push(pub.Message)
		return s.send(&packet.PUBACK{FixedHeader: s.header(PUBACK), PacketID: pub.PacketID, ReasonCode: packet.CodeSuccess})
	}
	if _, ok := s.inbound[pub.PacketID]; ok {
		s.log.WithField("packet_id", pub.PacketID).Debug("duplicate qos 2 publish, not redelivered")
	} else {
		s.inbound[pub.PacketID] = struct{}{}
		s.delivery.push(pub.Message)
	}
	return s.send(&packet.PUBREC{FixedHeader: s.header(PUBREC), PacketID: pub.PacketID, ReasonCode: packet.CodeSuccess})
}

func (s *Session) handlePubrel(pubrel *packet.PUBREL) error {
	rc := packet.CodeSuccess
	if _, ok := s.inbound[pubrel.PacketID]; ok {
		delete(s.inbound, pubrel.PacketID)
	} else {
		s.log.WithField("packet_id", pubrel.PacketID).Warn("PUBREL for unknown packet identifier")
		if s.version == packet.VERSION500 {
			rc = packet.ErrPacketIdentifierNotFound
		}
	}
	return s.send(&packet.PUBCOMP{FixedHeader: s.header(PUBCOMP), PacketID: pubrel.PacketID, ReasonCode: rc})
}

// resolveAlias fills in or records the v5.0 topic alias of an inbound PUBLISH.
func (s *Session) resolveAlias(pub *packet.PUBLISH) error {
	if pub.Props == nil || pub.Props.TopicAlias == 0 {
		return nil
	}
	alias := pub.Props.TopicAlias
	if pub.Message.TopicName != "" {
		s.aliases[alias] = pub.Message.TopicName
		return nil
	}
	topic, ok := s.aliases[alias]
	if !ok {
		return &RejectedError{Err: ErrProtocolRejection, Code: packet.ErrTopicAliasInvalid}
	}
	pub.Message.TopicName = topic
	return nil
}
