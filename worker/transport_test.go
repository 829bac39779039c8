package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"go.aimuz.me/murmur/protocol"
)

// peer is the far end of an attached transport.
type peer struct {
	in   *bufio.Reader
	inR  *io.PipeReader
	out  *io.PipeWriter
	exit chan ExitStatus
}

func attachPeer(tr *Transport) *peer {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	p := &peer{
		in:   bufio.NewReader(inR),
		inR:  inR,
		out:  outW,
		exit: make(chan ExitStatus, 1),
	}
	tr.attach(inW, outR, func() ExitStatus { return <-p.exit }, func() error {
		p.out.Close()
		select {
		case p.exit <- ExitStatus{Code: -1, Signal: "killed"}:
		default:
		}
		return nil
	})
	return p
}

func (p *peer) write(t *testing.T, lines ...string) {
	t.Helper()
	for _, l := range lines {
		if _, err := io.WriteString(p.out, l+"\n"); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}
}

func (p *peer) terminate(status ExitStatus) {
	p.out.Close()
	p.exit <- status
}

func collect(tr *Transport) <-chan protocol.Message {
	msgs := make(chan protocol.Message, 16)
	tr.OnMessage(func(m protocol.Message) { msgs <- m })
	return msgs
}

func recv(t *testing.T, msgs <-chan protocol.Message) protocol.Message {
	t.Helper()
	select {
	case m := <-msgs:
		return m
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return protocol.Message{}
	}
}

func command(t *testing.T, a protocol.Action) protocol.Message {
	t.Helper()
	msg, err := protocol.NewCommand(a, nil)
	if err != nil {
		t.Fatalf("NewCommand() error = %v", err)
	}
	return msg
}

func TestTransport_DeliversInOrderAndDropsMalformed(t *testing.T) {
	tr := New(Config{}, nil)
	msgs := collect(tr)
	p := attachPeer(tr)

	p.write(t,
		`{"kind":"update","updateKind":"status","data":"recording"}`,
		`not json at all`,
		``,
		`{"kind":"update"}`,
		`{"kind":"response","channel":"fetchAllModes","id":"a-1","data":[]}`,
	)

	first := recv(t, msgs)
	if first.Kind != protocol.KindUpdate || first.UpdateKind != protocol.UpdateStatus {
		t.Errorf("first = %+v, want status update", first)
	}
	second := recv(t, msgs)
	if second.Kind != protocol.KindResponse || second.ID != "a-1" {
		t.Errorf("second = %+v, want response a-1", second)
	}

	p.terminate(ExitStatus{})
	<-tr.Done()
	select {
	case m := <-msgs:
		t.Errorf("unexpected extra message %+v", m)
	default:
	}
}

func TestTransport_SendWritesOneLine(t *testing.T) {
	tr := New(Config{}, nil)
	p := attachPeer(tr)

	msg, err := protocol.NewRequest(protocol.SetDevice, "x-1", map[string]string{"deviceId": "mic"})
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	errc := make(chan error, 1)
	go func() { errc <- tr.Send(msg) }()

	line, err := p.in.ReadString('\n')
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if err := <-errc; err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if strings.Count(line, "\n") != 1 {
		t.Errorf("frame %q is not a single line", line)
	}
	got, err := protocol.Decode([]byte(line))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.ID != "x-1" || got.Channel != protocol.SetDevice {
		t.Errorf("decoded %+v, want setDevice x-1", got)
	}

	p.terminate(ExitStatus{})
	<-tr.Done()
}

func TestTransport_ExitClosesChannelBeforeHandler(t *testing.T) {
	tr := New(Config{}, nil)

	toggle := command(t, protocol.ActionToggle)
	var sendErr error
	statusc := make(chan ExitStatus, 1)
	tr.OnExit(func(s ExitStatus) {
		sendErr = tr.Send(toggle)
		statusc <- s
	})
	p := attachPeer(tr)

	p.terminate(ExitStatus{Code: 139, Signal: "segmentation fault"})

	status := <-statusc
	if status.Code != 139 || status.Requested {
		t.Errorf("status = %+v, want unrequested exit 139", status)
	}
	if !errors.Is(sendErr, ErrChannelClosed) {
		t.Errorf("Send() inside exit handler error = %v, want ErrChannelClosed", sendErr)
	}

	<-tr.Done()
	if err := tr.Send(command(t, protocol.ActionCancel)); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Send() after exit error = %v, want ErrChannelClosed", err)
	}
}

func TestTransport_CloseIsRequestedAndIdempotent(t *testing.T) {
	tr := New(Config{StopTimeout: time.Second}, nil)
	var got ExitStatus
	tr.OnExit(func(s ExitStatus) { got = s })
	p := attachPeer(tr)

	// The peer exits once its stdin is closed.
	go func() {
		_, _ = io.Copy(io.Discard, p.inR)
		p.terminate(ExitStatus{})
	}()

	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if !got.Requested {
		t.Errorf("status = %+v, want Requested", got)
	}
}

func TestTransport_CloseReleasesBlockedSend(t *testing.T) {
	tr := New(Config{StopTimeout: 100 * time.Millisecond}, nil)
	var got ExitStatus
	tr.OnExit(func(s ExitStatus) { got = s })
	// The peer is alive but never reads its stdin.
	attachPeer(tr)

	const senders = 2
	level := command(t, protocol.ActionRequestAudioLevel)
	errc := make(chan error, senders)
	for range senders {
		go func() { errc <- tr.Send(level) }()
	}
	time.Sleep(20 * time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- tr.Close() }()

	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close() blocked behind a pending write")
	}

	for range senders {
		select {
		case err := <-errc:
			if !errors.Is(err, ErrChannelClosed) {
				t.Errorf("Send() error = %v, want ErrChannelClosed", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Send() still blocked after Close")
		}
	}
	if !got.Requested || got.Signal != "killed" {
		t.Errorf("status = %+v, want requested kill", got)
	}
}

func TestTransport_CloseBeforeStart(t *testing.T) {
	tr := New(Config{}, nil)
	if err := tr.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := tr.Send(command(t, protocol.ActionToggle)); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Send() before Start error = %v, want ErrChannelClosed", err)
	}
}

func TestConfig_Environ(t *testing.T) {
	env := Config{Production: true, DataDir: "/data", ExtraEnv: []string{"X=1"}}.Environ()

	want := []string{
		"MURMUR_ENV=production",
		"MURMUR_DATA_DIR=/data",
		"MURMUR_LOG_LEVEL=info",
		"MURMUR_IO_ENCODING=utf-8",
		"X=1",
	}
	tail := env[len(env)-len(want):]
	for i := range want {
		if tail[i] != want[i] {
			t.Errorf("env[%d] = %q, want %q", i, tail[i], want[i])
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Real subprocess
// ─────────────────────────────────────────────────────────────────────────────

const helperEnv = "MURMUR_WANT_HELPER_PROCESS"

// TestHelperProcess is not a real test. It is re-executed as the worker by
// the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}

	fmt.Fprintln(os.Stderr, "helper \xff starting")
	ready, _ := protocol.Encode(protocol.NewProgress(protocol.StepInit, protocol.ProgressComplete))
	os.Stdout.Write(ready)

	reader := bufio.NewReader(os.Stdin)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			os.Exit(0)
		}
		msg, err := protocol.Decode(line)
		if err != nil {
			continue
		}
		switch msg.Kind {
		case protocol.KindRequest:
			resp, _ := protocol.NewResponse(msg.Channel, msg.ID, os.Getenv(EnvDataDir))
			frame, _ := protocol.Encode(resp)
			os.Stdout.Write(frame)
		case protocol.KindCommand:
			if msg.Action == protocol.ActionToggle {
				os.Exit(3)
			}
		}
	}
}

func helperConfig(t *testing.T) Config {
	return Config{
		Path:        os.Args[0],
		Args:        []string{"-test.run=^TestHelperProcess$"},
		DataDir:     t.TempDir(),
		ExtraEnv:    []string{helperEnv + "=1"},
		StopTimeout: 5 * time.Second,
	}
}

func TestTransport_RealProcessRoundTripAndCrash(t *testing.T) {
	cfg := helperConfig(t)
	tr := New(cfg, nil)
	msgs := collect(tr)
	statusc := make(chan ExitStatus, 1)
	tr.OnExit(func(s ExitStatus) { statusc <- s })

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := tr.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	ready := recv(t, msgs)
	if ready.UpdateKind != protocol.UpdateProgress || ready.Step != protocol.StepInit {
		t.Fatalf("first message = %+v, want init progress", ready)
	}

	req, _ := protocol.NewRequest(protocol.FetchAllDevices, "h-1", nil)
	if err := tr.Send(req); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	resp := recv(t, msgs)
	var dir string
	if err := json.Unmarshal(resp.Data, &dir); err != nil || dir != cfg.DataDir {
		t.Errorf("response data = %s, want %q", resp.Data, cfg.DataDir)
	}

	if err := tr.Send(command(t, protocol.ActionToggle)); err != nil {
		t.Fatalf("Send(toggle) error = %v", err)
	}

	select {
	case status := <-statusc:
		if status.Code != 3 || status.Requested {
			t.Errorf("status = %+v, want unrequested exit 3", status)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker exit not detected")
	}
	if err := tr.Send(req); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("Send() after crash error = %v, want ErrChannelClosed", err)
	}
}

func TestTransport_RealProcessClose(t *testing.T) {
	tr := New(helperConfig(t), nil)
	msgs := collect(tr)
	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	recv(t, msgs)

	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	status := tr.ExitStatus()
	if !status.Requested || status.Code != 0 {
		t.Errorf("status = %+v, want requested clean exit", status)
	}
}
