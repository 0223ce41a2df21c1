package detector

import (
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

// fakeService answers each frame from reply.json, except the second frame
// gets a line that is not JSON and the fourth makes the process exit without
// replying. The frame counter lives next to the script so it survives
// restarts.
const fakeService = `#!/bin/sh
dir=$(dirname "$0")
while :; do
	hdr=$(dd bs=1 count=4 2>/dev/null | od -An -tu1)
	[ -z "$hdr" ] && exit 0
	set -- $hdr
	n=$(( ($1 << 24) | ($2 << 16) | ($3 << 8) | $4 ))
	dd bs=1 count=$n of=/dev/null 2>/dev/null
	count=$(cat "$dir/count" 2>/dev/null || echo 0)
	count=$((count + 1))
	echo $count > "$dir/count"
	case $count in
	2) echo 'not json' ;;
	4) exit 3 ;;
	*) cat "$dir/reply.json" ;;
	esac
done
`

func newFakeService(t *testing.T) *ServiceDetector {
	t.Helper()
	if testing.Short() {
		t.Skip("starts a subprocess")
	}
	for _, tool := range []string{"/bin/sh", "dd", "od"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available: %v", tool, err)
		}
	}

	dir := t.TempDir()
	script := filepath.Join(dir, ServiceScript)
	if err := os.WriteFile(script, []byte(fakeService), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	reply := `{"people": [` + jsonFloats(NumJoints*ValuesPerJoint, 2.5) + `]}` + "\n"
	if err := os.WriteFile(filepath.Join(dir, "reply.json"), []byte(reply), 0o644); err != nil {
		t.Fatalf("write reply: %v", err)
	}

	d, err := NewServiceDetector(Config{ScriptPath: script, PythonPath: "/bin/sh", MinConfidence: 0.1})
	if err != nil {
		t.Fatalf("NewServiceDetector() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestServiceDetector_RecoversFromBrokenExchange(t *testing.T) {
	d := newFakeService(t)

	frame := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)
	defer frame.Close()

	steps := []struct {
		name    string
		wantErr bool
	}{
		{name: "good reply"},
		{name: "malformed reply", wantErr: true},
		{name: "restarted after malformed reply"},
		{name: "service exits mid request", wantErr: true},
		{name: "restarted after exit"},
	}

	var lastPid int
	for _, step := range steps {
		skeletons, err := d.Detect(&frame)
		if step.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", step.name)
			}
			if d.started {
				t.Fatalf("%s: service still marked running after a failed exchange", step.name)
			}
			continue
		}

		if err != nil {
			t.Fatalf("%s: unexpected error: %v", step.name, err)
		}
		if len(skeletons) != 1 {
			t.Fatalf("%s: expected 1 skeleton, got %d", step.name, len(skeletons))
		}
		if math.Abs(float64(skeletons[0][Neck].X)-2.5) > 1e-6 {
			t.Errorf("%s: neck x = %f, want 2.5", step.name, skeletons[0][Neck].X)
		}

		pid := d.cmd.Process.Pid
		if lastPid != 0 && pid == lastPid {
			t.Errorf("%s: expected a new process, pid %d reused", step.name, pid)
		}
		lastPid = pid
	}
}

func TestServiceDetector_EmptyFrameSkipsService(t *testing.T) {
	d := newFakeService(t)

	frame := gocv.NewMat()
	defer frame.Close()

	skeletons, err := d.Detect(&frame)
	if err != nil || skeletons != nil {
		t.Fatalf("Detect(empty) = %v, %v; want nil, nil", skeletons, err)
	}
	if d.started {
		t.Error("empty frame must not start the service")
	}
}
