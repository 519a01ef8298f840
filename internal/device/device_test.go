// ABOUTME: Tests for the device adapter layer
// ABOUTME: Tests the silence-filling queue reader and null backend lifecycle
package device

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/Airwave-Project/airwave-go/internal/audio"
	"github.com/Airwave-Project/airwave-go/internal/queue"
)

func TestQueueReaderDrainsPackets(t *testing.T) {
	q := queue.New(10)
	q.Enqueue([]byte{1, 2, 3, 4})
	q.Enqueue([]byte{5, 6, 7, 8})

	r := NewQueueReader(q)

	buf := make([]byte, 8)
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if n != 8 {
		t.Errorf("expected full read of 8, got %d", n)
	}
	if !bytes.Equal(buf, []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("unexpected bytes: %v", buf)
	}
}

func TestQueueReaderSpansPacketBoundaries(t *testing.T) {
	q := queue.New(10)
	q.Enqueue([]byte{1, 2, 3})

	r := NewQueueReader(q)

	buf := make([]byte, 2)
	r.Read(buf)
	if !bytes.Equal(buf, []byte{1, 2}) {
		t.Errorf("first read: expected [1 2], got %v", buf)
	}

	q.Enqueue([]byte{4})
	r.Read(buf)
	if !bytes.Equal(buf, []byte{3, 4}) {
		t.Errorf("second read: expected [3 4], got %v", buf)
	}
}

func TestQueueReaderFillsSilenceNotEOF(t *testing.T) {
	q := queue.New(10)
	q.Enqueue([]byte{9, 9})

	r := NewQueueReader(q)

	buf := []byte{1, 1, 1, 1, 1, 1}
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("expected no error on underrun, got %v", err)
	}
	if n != len(buf) {
		t.Errorf("expected full read of %d, got %d", len(buf), n)
	}
	if !bytes.Equal(buf, []byte{9, 9, 0, 0, 0, 0}) {
		t.Errorf("expected silence fill, got %v", buf)
	}

	// Completely empty queue: still a full silent read, never EOF.
	n, err = r.Read(buf)
	if err != nil || n != len(buf) {
		t.Errorf("empty queue read: expected (%d, nil), got (%d, %v)", len(buf), n, err)
	}
}

func TestQueueReaderEOFAfterClose(t *testing.T) {
	q := queue.New(10)
	r := NewQueueReader(q)

	r.Close()

	if _, err := r.Read(make([]byte, 4)); err != io.EOF {
		t.Errorf("expected io.EOF after close, got %v", err)
	}
}

func TestNullBackendSessionLifecycle(t *testing.T) {
	b := NewNull()
	if _, err := b.NewSession(); err == nil {
		t.Error("expected NewSession to fail before Open")
	}

	if err := b.Open(audio.DefaultFormat()); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	s, err := b.NewSession()
	if err != nil {
		t.Fatalf("session allocation failed: %v", err)
	}

	if err := s.Start(); err == nil {
		t.Error("expected Start to fail without an attached source")
	}

	q := queue.New(10)
	q.Enqueue(make([]byte, 1024))
	s.Attach(NewQueueReader(q))

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Error("expected second Start to fail")
	}

	// Stop and Release are idempotent.
	if err := s.Stop(); err != nil {
		t.Errorf("stop failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second stop failed: %v", err)
	}
	if err := s.Release(); err != nil {
		t.Errorf("release failed: %v", err)
	}
	if err := s.Release(); err != nil {
		t.Errorf("second release failed: %v", err)
	}

	if err := s.Start(); err == nil {
		t.Error("expected Start to fail on a released session")
	}
}

func TestNullBackendDrainsQueue(t *testing.T) {
	b := NewNull()
	b.Open(audio.DefaultFormat())

	q := queue.New(100)
	for i := 0; i < 20; i++ {
		q.Enqueue(make([]byte, 1024))
	}

	s, _ := b.NewSession()
	s.Attach(NewQueueReader(q))
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Release()

	deadline := time.Now().Add(3 * time.Second)
	for q.BytesConsumed() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if q.BytesConsumed() == 0 {
		t.Error("expected null session to consume queued audio")
	}
}

func TestSessionIdentity(t *testing.T) {
	b := NewNull()
	b.Open(audio.DefaultFormat())

	s1, _ := b.NewSession()
	s2, _ := b.NewSession()

	if s1.ID() == "" {
		t.Error("expected non-empty session ID")
	}
	if s1.ID() == s2.ID() {
		t.Error("expected distinct session IDs")
	}
}
