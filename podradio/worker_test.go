package podradio

import (
	"testing"
	"time"
)

func newTestWorker(bridge RadioBridge) *Worker {
	e := mustEngine(bridge)
	return NewWorker(e, bridge, nil, WithWorkerSleep(func(time.Duration) {}))
}

func TestWorkerRunsOneConversationAndStops(t *testing.T) {
	bridge := &fakeBridge{}
	podReply := RadioPacket{
		Address:  Address(0x11111111),
		Type:     PacketTypePOD,
		Sequence: NextPacketSequence(0),
		Body:     encodeReassemblyBody(0, 0, []byte("pong")),
	}
	bridge.steps = []fakeStep{{reply: encodeRaw(NewDefaultPacketCodec(), podReply)}}

	w := newTestWorker(bridge)

	msg, err := w.SendMessageGetMessage(ConversationRequest{
		MessageBody:    []byte("ping"),
		MessageAddress: Address(0x22222222),
	})
	if err != nil {
		t.Fatalf("SendMessageGetMessage() error = %v", err)
	}
	if string(msg.Body) != "pong" {
		t.Fatalf("msg.Body = %q, want %q", msg.Body, "pong")
	}

	w.Stop()
	if bridge.connectCalls == 0 {
		t.Fatalf("expected worker startup to call bridge.Connect")
	}
}

func TestWorkerSerializesConcurrentRequests(t *testing.T) {
	// Each conversation advances the engine's packet sequence twice:
	// once when the terminal exchange succeeds, once more when the
	// Worker builds the closing ACK (runConversation, mirroring
	// protocol_radio.py's "packet_sequence + 1" just before the final
	// ACK send). The next conversation's outbound packet therefore
	// carries seq+3 relative to the previous conversation's starting
	// sequence, so each scripted reply must match that progression.
	// Each reply is followed by two silent steps for that conversation's
	// closing ACK drain (the primary send and its extra 1s listen), so
	// the drain ends on silence instead of consuming the next reply.
	bridge := &fakeBridge{}
	seq := PacketSequence(0)
	for i := 0; i < 3; i++ {
		replySeq := NextPacketSequence(seq)
		reply := RadioPacket{
			Address:  Address(0x11111111),
			Type:     PacketTypePOD,
			Sequence: replySeq,
			Body:     encodeReassemblyBody(0, MessageSequence(i), []byte("pong")),
		}
		bridge.steps = append(bridge.steps, fakeStep{reply: encodeRaw(NewDefaultPacketCodec(), reply)}, fakeStep{}, fakeStep{})
		seq = NextPacketSequence(NextPacketSequence(replySeq))
	}

	w := newTestWorker(bridge)

	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := w.SendMessageGetMessage(ConversationRequest{
				MessageBody:    []byte("ping"),
				MessageAddress: Address(0x22222222),
			})
			results <- err
		}()
	}

	for i := 0; i < 3; i++ {
		select {
		case err := <-results:
			if err != nil {
				t.Fatalf("SendMessageGetMessage() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for conversation %d", i)
		}
	}

	w.Stop()
}

func TestWorkerStartupRetriesUntilConnectSucceeds(t *testing.T) {
	bridge := &fakeBridge{connectErr: errConnectFailed{}, connectFailuresRemaining: 2}
	w := newTestWorker(bridge)
	w.Stop()

	if bridge.connectCalls != 3 {
		t.Fatalf("connectCalls = %d, want 3 (two failures then success)", bridge.connectCalls)
	}
}

type errConnectFailed struct{}

func (errConnectFailed) Error() string { return "simulated connect failure" }
