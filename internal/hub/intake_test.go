package hub

import (
	"math/rand"
	"testing"

	"github.com/nerrad567/armlink/internal/armband"
)

func TestHub_HandleConnected(t *testing.T) {
	f := newTestHub(t, 4, UnlockPolicyTimed)
	f.discovery.connect(1, armband.ArmLeft)

	rec, ok := f.hub.Device(1)
	if !ok {
		t.Fatal("device not registered after connect")
	}
	if rec.Arm != armband.ArmLeft {
		t.Errorf("Arm = %q, want %q", rec.Arm, armband.ArmLeft)
	}
	if rec.Pose != armband.PoseUnknown {
		t.Errorf("Pose = %q, want %q", rec.Pose, armband.PoseUnknown)
	}
	if rec.Unlocked {
		t.Error("Unlocked = true before any unlocked sample")
	}
	if !f.samples.subscribed(1) {
		t.Error("handle not subscribed to sample feed")
	}

	cmds := f.sink.commands()
	if len(cmds) != 1 || cmds[0].Command != armband.UnlockCommand(armband.UnlockTimed) {
		t.Errorf("connect commands = %+v, want one timed unlock", cmds)
	}
	if len(f.recorder.connects) != 1 {
		t.Errorf("recorded connects = %d, want 1", len(f.recorder.connects))
	}
}

func TestHub_HandleConnected_UnlockPolicy(t *testing.T) {
	tests := []struct {
		policy UnlockPolicy
		want   []armband.Command
	}{
		{policy: UnlockPolicyTimed, want: []armband.Command{armband.UnlockCommand(armband.UnlockTimed)}},
		{policy: UnlockPolicyHold, want: []armband.Command{armband.UnlockCommand(armband.UnlockHold)}},
		{policy: UnlockPolicyNone, want: nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			f := newTestHub(t, 4, tt.policy)
			f.discovery.connect(3, armband.ArmRight)

			cmds := f.sink.commands()
			if len(cmds) != len(tt.want) {
				t.Fatalf("sent %d commands, want %d", len(cmds), len(tt.want))
			}
			for i := range tt.want {
				if cmds[i].Command != tt.want[i] || cmds[i].Handle != 3 {
					t.Errorf("command[%d] = %+v, want %v to handle 3", i, cmds[i], tt.want[i])
				}
			}
		})
	}
}

func TestHub_HandleConnected_Duplicate(t *testing.T) {
	f := newTestHub(t, 4, UnlockPolicyTimed)
	f.discovery.connect(1, armband.ArmLeft)
	f.samples.push(armband.Sample{Handle: 1, Kind: armband.SamplePose, Pose: armband.PoseFist})

	f.discovery.connect(1, armband.ArmRight)

	if f.hub.Count() != 1 {
		t.Errorf("Count() = %d, want 1", f.hub.Count())
	}
	rec, _ := f.hub.Device(1)
	if rec.Arm != armband.ArmLeft || rec.Pose != armband.PoseFist {
		t.Errorf("duplicate connect changed record: arm=%q pose=%q", rec.Arm, rec.Pose)
	}
	if len(f.sink.commands()) != 1 {
		t.Errorf("duplicate connect sent %d commands, want 1 total", len(f.sink.commands()))
	}
}

func TestHub_HandleConnected_NormalisesIdentity(t *testing.T) {
	f := newTestHub(t, 4, UnlockPolicyNone)
	f.hub.HandleConnected(armband.ConnectEvent{Handle: 2, Arm: "LEFT", XDirection: "sideways"})

	rec, _ := f.hub.Device(2)
	if rec.Arm != armband.ArmLeft {
		t.Errorf("Arm = %q, want %q", rec.Arm, armband.ArmLeft)
	}
	if rec.XDirection != armband.XDirectionUnknown {
		t.Errorf("XDirection = %q, want %q", rec.XDirection, armband.XDirectionUnknown)
	}
}

func TestHub_HandleDisconnected(t *testing.T) {
	f := newTestHub(t, 4, UnlockPolicyNone)
	f.discovery.connect(1, armband.ArmLeft)
	f.discovery.disconnect(1)

	if f.hub.Count() != 0 {
		t.Errorf("Count() = %d, want 0", f.hub.Count())
	}
	if f.samples.subscribed(1) {
		t.Error("sample subscription not released")
	}
	if len(f.recorder.disconnects) != 1 {
		t.Errorf("recorded disconnects = %d, want 1", len(f.recorder.disconnects))
	}

	// Unknown handle is not an error and records nothing.
	f.discovery.disconnect(42)
	if len(f.recorder.disconnects) != 1 {
		t.Error("disconnect of unknown handle was recorded")
	}
}

func TestHub_HandleSample(t *testing.T) {
	f := newTestHub(t, 4, UnlockPolicyNone)
	f.discovery.connect(1, armband.ArmLeft)

	f.samples.push(armband.Sample{Handle: 1, Kind: armband.SamplePose, Pose: armband.PoseWaveOut})
	f.samples.push(armband.Sample{Handle: 1, Kind: armband.SampleGyroscope, Vector: armband.Vector3{X: 1, Y: 2, Z: 2}})
	f.samples.push(armband.Sample{Handle: 1, Kind: armband.SampleUnlocked})

	rec, _ := f.hub.Device(1)
	if rec.Pose != armband.PoseWaveOut {
		t.Errorf("Pose = %q, want %q", rec.Pose, armband.PoseWaveOut)
	}
	if rec.Gyroscope != (armband.Vector3{X: 1, Y: 2, Z: 2}) {
		t.Errorf("Gyroscope = %+v", rec.Gyroscope)
	}
	if !rec.Unlocked {
		t.Error("Unlocked = false after unlocked sample")
	}
	if rec.Arm != armband.ArmLeft {
		t.Errorf("sample changed Arm to %q", rec.Arm)
	}

	t.Run("invalid sample dropped", func(t *testing.T) {
		f.hub.HandleSample(armband.Sample{Handle: 1, Kind: armband.SamplePose, Pose: "moonwalk"})
		rec, _ := f.hub.Device(1)
		if rec.Pose != armband.PoseWaveOut {
			t.Errorf("invalid pose applied: %q", rec.Pose)
		}
	})
}

func TestHub_StaleSampleChangesNothing(t *testing.T) {
	f := newTestHub(t, 4, UnlockPolicyNone)
	f.discovery.connect(1, armband.ArmLeft)
	f.discovery.connect(2, armband.ArmRight)
	f.discovery.disconnect(2)

	before := f.hub.Frame(2)
	beforeEMG := f.hub.EMGData()

	kinds := []armband.Sample{
		{Handle: 2, Kind: armband.SamplePose, Pose: armband.PoseFist},
		{Handle: 2, Kind: armband.SampleEMG, EMG: []int{9, 9, 9, 9}},
		{Handle: 2, Kind: armband.SampleUnlocked},
		{Handle: 77, Kind: armband.SampleOrientation, Orientation: armband.Quaternion{W: 1}},
	}
	for _, s := range kinds {
		f.hub.HandleSample(s)
	}

	if f.hub.Count() != 1 {
		t.Errorf("Count() = %d, want 1", f.hub.Count())
	}
	after := f.hub.Frame(2)
	if after.Poses[0] != before.Poses[0] || after.Unlocked[0] != before.Unlocked[0] {
		t.Error("stale sample modified a live record")
	}
	if after.Handles[1].Present {
		t.Error("stale sample re-created a record")
	}
	for i, v := range f.hub.EMGData() {
		if v != beforeEMG[i] {
			t.Errorf("stale EMG sample reached shared buffer: %v", f.hub.EMGData())
			break
		}
	}
}

func TestHub_EMGRoundTrip(t *testing.T) {
	f := newTestHub(t, 4, UnlockPolicyNone)
	f.discovery.connect(1, armband.ArmLeft)

	f.samples.push(armband.Sample{Handle: 1, Kind: armband.SampleEMG, EMG: []int{1, 0, 2, 3}})

	want := []int{1, 0, 2, 3}
	got := f.hub.EMGData()
	if len(got) != len(want) {
		t.Fatalf("EMGData() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("EMGData() = %v, want %v", got, want)
		}
	}

	perDevice, ok := f.hub.EMGDataFor(1)
	if !ok {
		t.Fatal("EMGDataFor(1) not found")
	}
	for i := range want {
		if perDevice[i] != want[i] {
			t.Fatalf("EMGDataFor(1) = %v, want %v", perDevice, want)
		}
	}

	if _, ok := f.hub.EMGDataFor(5); ok {
		t.Error("EMGDataFor(5) found a device that never connected")
	}
}

func TestHub_EMGPerDevice(t *testing.T) {
	f := newTestHub(t, 2, UnlockPolicyNone)
	f.discovery.connect(1, armband.ArmLeft)
	f.discovery.connect(2, armband.ArmRight)

	f.samples.push(armband.Sample{Handle: 1, Kind: armband.SampleEMG, EMG: []int{10, 11}})
	f.samples.push(armband.Sample{Handle: 2, Kind: armband.SampleEMG, EMG: []int{20, 21}})

	left, _ := f.hub.EMGDataFor(1)
	right, _ := f.hub.EMGDataFor(2)
	if left[0] != 10 || right[0] != 20 {
		t.Errorf("per-device EMG mixed: left=%v right=%v", left, right)
	}

	// The shared buffer holds whichever sample arrived last.
	if shared := f.hub.EMGData(); shared[0] != 20 {
		t.Errorf("EMGData() = %v, want last sample [20 21]", shared)
	}
}

// TestHub_RegistrySizeMatchesEvents checks that after any connect/disconnect
// sequence the hub holds exactly the handles connected and not yet disconnected.
func TestHub_RegistrySizeMatchesEvents(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 30; run++ {
		f := newTestHub(t, 4, UnlockPolicyNone)
		live := make(map[armband.Handle]bool)

		for step := 0; step < 100; step++ {
			h := armband.Handle(rng.Intn(8))
			if rng.Intn(3) > 0 {
				f.discovery.connect(h, armband.ArmLeft)
				live[h] = true
			} else {
				f.discovery.disconnect(h)
				delete(live, h)
			}
		}

		if f.hub.Count() != len(live) {
			t.Fatalf("run %d: Count() = %d, want %d", run, f.hub.Count(), len(live))
		}
		for _, s := range f.hub.Handles(len(live)) {
			if !s.Present {
				if len(live) > 0 {
					t.Fatalf("run %d: absent slot with %d live devices", run, len(live))
				}
				continue
			}
			if !live[s.Value] {
				t.Fatalf("run %d: handle %d present but not live", run, s.Value)
			}
		}
		if f.samples.count() != len(live) {
			t.Fatalf("run %d: %d sample subscriptions, want %d", run, f.samples.count(), len(live))
		}
	}
}
