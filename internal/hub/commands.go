package hub

import "github.com/nerrad567/armlink/internal/armband"

// Lock locks a device. It returns false if the handle is not connected or
// the sink rejects the command.
func (h *Hub) Lock(handle armband.Handle) bool {
	return h.dispatch(handle, armband.LockCommand())
}

// Unlock unlocks a device, until relock by timeout or, with hold, until Lock.
func (h *Hub) Unlock(handle armband.Handle, hold bool) bool {
	t := armband.UnlockTimed
	if hold {
		t = armband.UnlockHold
	}
	return h.dispatch(handle, armband.UnlockCommand(t))
}

// Vibrate pulses a device's haptic motor. An unknown vibration type returns false.
func (h *Hub) Vibrate(handle armband.Handle, v armband.VibrationType) bool {
	return h.dispatch(handle, armband.VibrateCommand(v))
}

// SetStreaming enables or disables raw EMG streaming for a device and records
// the requested mode on its record. The mode is only recorded on the
// connection the command was sent to.
func (h *Hub) SetStreaming(handle armband.Handle, enabled bool) bool {
	gen, ok := h.send(handle, armband.StreamingCommand(enabled))
	if !ok {
		return false
	}

	h.lifeMu.RLock()
	defer h.lifeMu.RUnlock()

	if h.closed {
		return false
	}
	if !h.registry.UpdateGeneration(handle, gen, func(r *armband.Record) { r.Streaming = enabled }) {
		h.log().Debug("streaming mode dropped, handle reconnected", "handle", int(handle))
		return false
	}
	return true
}

// ShutdownAll sends a timed unlock to every connected device, releases all
// feed subscriptions and clears the registry. It is terminal and idempotent.
func (h *Hub) ShutdownAll() {
	h.lifeMu.Lock()
	if h.closed {
		h.lifeMu.Unlock()
		return
	}
	h.closed = true
	started := h.started
	recs := h.registry.Snapshot()
	h.registry.Clear()
	h.lifeMu.Unlock()

	// Intake is now excluded; nothing below can race a registry mutation.
	release := armband.UnlockCommand(armband.UnlockTimed)
	for _, rec := range recs {
		err := h.sink.Send(rec.Handle, release)
		if err != nil {
			h.log().Warn("shutdown unlock failed", "handle", int(rec.Handle), "error", err)
		}
		h.recorder.RecordCommand(rec.Handle, release, err == nil)

		if h.samples != nil {
			if err := h.samples.UnsubscribeSamples(rec.Handle); err != nil {
				h.log().Warn("sample unsubscribe failed", "handle", int(rec.Handle), "error", err)
			}
		}
		recordShutdown(h.recorder, rec)
	}

	if started && h.discovery != nil {
		if err := h.discovery.UnsubscribeDiscovery(); err != nil {
			h.log().Warn("discovery unsubscribe failed", "error", err)
		}
	}

	h.emgMu.Lock()
	clear(h.emg)
	h.emgMu.Unlock()

	h.log().Info("hub shut down", "devices_released", len(recs))
}

func (h *Hub) dispatch(handle armband.Handle, cmd armband.Command) bool {
	_, ok := h.send(handle, cmd)
	return ok
}

// send validates cmd and the handle, then forwards cmd to the sink.
// It returns the registry generation of the connection cmd was addressed to.
func (h *Hub) send(handle armband.Handle, cmd armband.Command) (uint64, bool) {
	if err := cmd.Validate(); err != nil {
		h.log().Debug("invalid command rejected", "handle", int(handle), "error", err)
		return 0, false
	}

	h.lifeMu.RLock()
	gen, live := h.registry.Generation(handle)
	live = live && !h.closed
	h.lifeMu.RUnlock()
	if !live {
		h.log().Debug("command for unknown handle", "handle", int(handle), "command", cmd.String())
		return 0, false
	}

	if err := h.sink.Send(handle, cmd); err != nil {
		h.log().Warn("command send failed", "handle", int(handle), "command", cmd.String(), "error", err)
		h.recorder.RecordCommand(handle, cmd, false)
		return 0, false
	}

	h.log().Debug("command sent", "handle", int(handle), "command", cmd.String())
	h.recorder.RecordCommand(handle, cmd, true)
	return gen, true
}
