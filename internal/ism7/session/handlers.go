package session

import (
	"context"
	"fmt"

	"github.com/nerrad567/ism7-bridge/internal/ism7/device"
	"github.com/nerrad567/ism7-bridge/internal/ism7/dispatch"
	"github.com/nerrad567/ism7-bridge/internal/ism7/protocol"
)

// logon sends the logon request. Everything after it is driven by
// dispatcher callbacks.
func (s *Session) logon(ctx context.Context) error {
	s.dispatcher.Once(dispatch.Key{Kind: protocol.KindLogonResponse}, s.onLogon)

	if err := s.transition(ctx, eventAuthenticate); err != nil {
		return err
	}
	frame, err := protocol.EncodeLogon(s.cfg.Password)
	if err != nil {
		return err
	}
	return s.send(ctx, frame)
}

func (s *Session) onLogon(ctx context.Context, msg protocol.Message) error {
	resp, ok := msg.(*protocol.LogonResponse)
	if !ok {
		return fmt.Errorf("%w: unexpected %s", protocol.ErrMalformedPayload, msg.Kind())
	}
	if !protocol.IsOK(resp.State) {
		return fmt.Errorf("%w: state %q: %s", ErrInvalidLoginState, resp.State, resp.ErrorMsg)
	}
	s.logger.Info("logged on", "session", s.id)

	if err := s.transition(ctx, eventFetchConfig); err != nil {
		return err
	}
	s.dispatcher.Once(dispatch.Key{Kind: protocol.KindSystemConfigResponse}, s.onSystemConfig)

	frame, err := protocol.EncodeSystemConfig(resp.SID)
	if err != nil {
		return err
	}
	return s.send(ctx, frame)
}

func (s *Session) onSystemConfig(ctx context.Context, msg protocol.Message) error {
	resp, ok := msg.(*protocol.SystemConfigResponse)
	if !ok {
		return fmt.Errorf("%w: unexpected %s", protocol.ErrMalformedPayload, msg.Kind())
	}
	s.logger.Info("system config received", "session", s.id, "bus_devices", len(resp.BusDevices))
	s.observer.BusDevicesDiscovered(ctx, s.id, resp.BusDevices)

	if err := s.transition(ctx, eventBootstrap); err != nil {
		return err
	}

	for _, bd := range resp.BusDevices {
		ba, err := device.ParseBusAddress(bd.BusAddress)
		if err != nil {
			s.logger.Warn("ignoring bus device", "session", s.id, "ba", bd.BusAddress, "error", err)
			continue
		}

		if _, err := s.devices.AddDevice(s.cfg.Host, ba); err != nil {
			return err
		}

		reqs := s.devices.ReadRequests(ba)
		if len(reqs) == 0 {
			s.logger.Debug("no telegrams to pull", "session", s.id, "ba", ba.String())
			continue
		}
		if err := s.pull(ctx, ba, reqs); err != nil {
			return err
		}
	}
	return nil
}

// pull reads every declared telegram of one bus address once.
func (s *Session) pull(ctx context.Context, ba device.BusAddress, reqs []device.ReadRequest) error {
	req := s.readBundle(protocol.BundlePull, reqs, 0)
	s.dispatcher.Once(bundleKey(req.BundleID), func(ctx context.Context, msg protocol.Message) error {
		return s.onPull(ctx, ba, reqs, msg)
	})

	frame, err := protocol.EncodeBundle(req)
	if err != nil {
		return err
	}
	s.logger.Debug("pull bundle sent", "session", s.id, "bundle", req.BundleID, "ba", ba.String(), "telegrams", len(reqs))
	return s.send(ctx, frame)
}

func (s *Session) onPull(ctx context.Context, ba device.BusAddress, reqs []device.ReadRequest, msg protocol.Message) error {
	resp, err := bundleResponse(msg)
	if err != nil {
		return err
	}
	applied, err := s.apply(resp, protocol.BundlePull)
	if err != nil {
		return err
	}
	if applied == 0 {
		s.logger.Warn("pull returned no values, device not subscribed", "session", s.id, "ba", ba.String())
		return nil
	}
	if err := s.publish(ctx); err != nil {
		return err
	}
	return s.subscribe(ctx, ba, reqs)
}

// subscribe registers a push bundle for one bus address.
func (s *Session) subscribe(ctx context.Context, ba device.BusAddress, reqs []device.ReadRequest) error {
	req := s.readBundle(protocol.BundlePush, reqs, int(s.cfg.PushInterval.Seconds()))
	s.dispatcher.Subscribe(bundleKey(req.BundleID), s.onPush)

	frame, err := protocol.EncodeBundle(req)
	if err != nil {
		return err
	}
	if err := s.send(ctx, frame); err != nil {
		return err
	}
	s.logger.Info("push subscription sent", "session", s.id, "bundle", req.BundleID, "ba", ba.String(), "telegrams", len(reqs))
	return s.transition(ctx, eventSubscribe)
}

func (s *Session) onPush(ctx context.Context, msg protocol.Message) error {
	resp, err := bundleResponse(msg)
	if err != nil {
		return err
	}
	if _, err := s.apply(resp, protocol.BundlePush); err != nil {
		return err
	}
	return s.publish(ctx)
}

func (s *Session) onWriteResponse(ctx context.Context, msg protocol.Message) error {
	resp, err := bundleResponse(msg)
	if err != nil {
		return err
	}
	if _, err := s.apply(resp, protocol.BundleWrite); err != nil {
		return err
	}
	return s.publish(ctx)
}

func (s *Session) onKeepAlive(_ context.Context, msg protocol.Message) error {
	ka, ok := msg.(*protocol.KeepAliveMessage)
	if !ok {
		return fmt.Errorf("%w: unexpected %s", protocol.ErrMalformedPayload, msg.Kind())
	}
	s.lastAck.Store(int32(ka.Sequence))
	s.acks.Add(1)
	return nil
}

func (s *Session) readBundle(t protocol.BundleType, reqs []device.ReadRequest, pushInterval int) *protocol.BundleRequest {
	req := &protocol.BundleRequest{
		BundleID: s.nextBundleID(),
		Gateway:  gatewayID,
		Type:     t,
	}
	for _, r := range reqs {
		req.Reads = append(req.Reads, protocol.ReadItem{
			Service:      protocol.FormatService(r.Service),
			BusAddress:   r.BusAddress.String(),
			TelegramID:   r.TelegramID,
			PushInterval: pushInterval,
		})
	}
	return req
}

// bundleResponse checks the batch state of a bundle response.
func bundleResponse(msg protocol.Message) (*protocol.BundleResponse, error) {
	resp, ok := msg.(*protocol.BundleResponse)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected %s", protocol.ErrMalformedPayload, msg.Kind())
	}
	if resp.ErrorMsg != "" {
		return nil, fmt.Errorf("%w: bundle %s: %s", ErrBundle, resp.BundleID, resp.ErrorMsg)
	}
	if !protocol.IsOK(resp.State) {
		return nil, fmt.Errorf("%w: bundle %s state %q", ErrBundle, resp.BundleID, resp.State)
	}
	return resp, nil
}

// apply routes the successful items of a bundle response to the registry.
// Items with a non-OK state are skipped.
func (s *Session) apply(resp *protocol.BundleResponse, t protocol.BundleType) (int, error) {
	applied, failed := 0, 0
	for _, item := range resp.Items {
		if !item.OK() {
			failed++
			s.logger.Debug("telegram not ok", "session", s.id, "bundle", resp.BundleID,
				"ba", item.BusAddress, "telegram", item.TelegramID, "state", item.State)
			continue
		}

		ba, err := device.ParseBusAddress(item.BusAddress)
		if err != nil {
			return applied, fmt.Errorf("%w: bundle %s: %v", protocol.ErrMalformedPayload, resp.BundleID, err)
		}
		service, err := item.ServiceNumber()
		if err != nil {
			return applied, fmt.Errorf("bundle %s: %w", resp.BundleID, err)
		}
		low, high, err := item.Bytes()
		if err != nil {
			return applied, fmt.Errorf("bundle %s: %w", resp.BundleID, err)
		}

		if t == protocol.BundleWrite {
			s.devices.ProcessWrite(ba, item.TelegramID, service, low, high)
		} else {
			s.devices.ProcessRead(ba, item.TelegramID, service, low, high)
		}
		applied++
	}
	s.observer.BundleCompleted(t, applied, failed)
	return applied, nil
}

// publish hands every new value to the publisher.
func (s *Session) publish(ctx context.Context) error {
	batch, err := s.devices.Collect()
	if err != nil {
		return err
	}
	if batch.Empty() || s.publisher == nil {
		return nil
	}
	return s.publisher.Publish(ctx, batch)
}
