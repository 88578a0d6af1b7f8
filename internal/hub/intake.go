package hub

import "github.com/nerrad567/armlink/internal/armband"

// HandleConnected registers a newly connected device, applies the unlock
// policy and subscribes the handle to the sample feed.
// A duplicate connect for a registered handle is ignored.
func (h *Hub) HandleConnected(ev armband.ConnectEvent) {
	id := ev.Identity()
	id.Arm = armband.ParseArm(string(id.Arm))
	id.XDirection = armband.ParseXDirection(string(id.XDirection))

	rec, created, closed := h.admit(ev.Handle, id)
	if closed {
		h.log().Debug("connect after shutdown discarded", "handle", int(ev.Handle))
		return
	}
	if !created {
		h.log().Debug("duplicate connect ignored", "handle", int(ev.Handle))
		return
	}

	h.log().Info("armband connected",
		"handle", int(rec.Handle),
		"arm", string(rec.Arm),
		"x_direction", string(rec.XDirection))

	switch h.unlockPolicy {
	case UnlockPolicyTimed:
		h.dispatch(ev.Handle, armband.UnlockCommand(armband.UnlockTimed))
	case UnlockPolicyHold:
		h.dispatch(ev.Handle, armband.UnlockCommand(armband.UnlockHold))
	}

	h.subscribeSamples(ev.Handle)
}

// admit registers the device and records the connect. The connect is
// recorded under lifeMu so ShutdownAll cannot record the disconnect first.
func (h *Hub) admit(handle armband.Handle, id armband.Identity) (rec armband.Record, created, closed bool) {
	h.lifeMu.RLock()
	defer h.lifeMu.RUnlock()

	if h.closed {
		return armband.Record{}, false, true
	}
	if !h.registry.Upsert(handle, id) {
		return armband.Record{}, false, false
	}
	rec, _ = h.registry.Get(handle)
	h.recorder.RecordConnect(rec)
	return rec, true, false
}

func (h *Hub) subscribeSamples(handle armband.Handle) {
	if h.samples == nil {
		return
	}

	if err := h.samples.SubscribeSamples(handle, h.HandleSample); err != nil {
		h.log().Warn("sample subscription failed", "handle", int(handle), "error", err)
		return
	}

	// ShutdownAll may have released subscriptions while this one was in flight.
	if h.isClosed() {
		if err := h.samples.UnsubscribeSamples(handle); err != nil {
			h.log().Warn("sample unsubscribe failed", "handle", int(handle), "error", err)
		}
	}
}

// HandleDisconnected removes the device and releases its sample subscription.
// Unknown handles are ignored.
func (h *Hub) HandleDisconnected(handle armband.Handle) {
	rec, ok := h.evict(handle)
	if !ok {
		h.log().Debug("disconnect for unknown handle ignored", "handle", int(handle))
		return
	}

	if h.samples != nil {
		if err := h.samples.UnsubscribeSamples(handle); err != nil {
			h.log().Warn("sample unsubscribe failed", "handle", int(handle), "error", err)
		}
	}

	h.log().Info("armband disconnected", "handle", int(handle), "arm", string(rec.Arm))
	h.recorder.RecordDisconnect(rec)
}

func (h *Hub) evict(handle armband.Handle) (armband.Record, bool) {
	h.lifeMu.RLock()
	defer h.lifeMu.RUnlock()

	if h.closed {
		return armband.Record{}, false
	}
	return h.registry.Remove(handle)
}

// HandleSample applies one telemetry sample to its device.
// Samples for unregistered handles are stale and are discarded.
func (h *Hub) HandleSample(s armband.Sample) {
	if err := s.Validate(); err != nil {
		h.log().Debug("invalid sample dropped", "handle", int(s.Handle), "error", err)
		return
	}

	h.lifeMu.RLock()
	defer h.lifeMu.RUnlock()

	if h.closed {
		return
	}
	if !h.registry.Update(s.Handle, func(r *armband.Record) { s.Apply(r) }) {
		h.log().Debug("stale sample discarded", "handle", int(s.Handle), "kind", string(s.Kind))
		return
	}

	if s.Kind == armband.SampleEMG {
		h.emgMu.Lock()
		copy(h.emg, s.EMG)
		h.emgMu.Unlock()
	}
}
