package connpool

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/synnergy-kv/aspike/internal/socket"
)

// startEchoServer spins up a local TCP listener that accepts and holds
// connections open, for pool tests that only care about connection counts.
func startEchoServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go io_discard(c)
		}
	}()
	return ln.Addr().String()
}

func io_discard(c net.Conn) {
	buf := make([]byte, 4096)
	for {
		if _, err := c.Read(buf); err != nil {
			c.Close()
			return
		}
	}
}

func TestAcquireReleaseReusesConnection(t *testing.T) {
	addr := startEchoServer(t)
	d := socket.NewDialer(time.Second, 0)
	p := New(d, addr, Limits{MinConnections: 0, MaxConnections: 2, MaxSocketIdle: time.Minute})

	s1, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	p.Release(s1)
	if got := p.Total(); got != 1 {
		t.Fatalf("expected total 1 after release, got %d", got)
	}

	s2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire 2: %v", err)
	}
	if s2 != s1 {
		t.Fatal("expected the released socket to be reused")
	}
}

func TestAcquireFailsAtCapacity(t *testing.T) {
	addr := startEchoServer(t)
	d := socket.NewDialer(time.Second, 0)
	p := New(d, addr, Limits{MaxConnections: 1, MaxSocketIdle: time.Minute})

	if _, err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := p.Acquire(context.Background()); err != ErrAtCapacity {
		t.Fatalf("expected ErrAtCapacity, got %v", err)
	}
}

func TestTotalNeverNegative(t *testing.T) {
	addr := startEchoServer(t)
	d := socket.NewDialer(time.Second, 0)
	p := New(d, addr, Limits{MaxConnections: 4, MaxSocketIdle: time.Minute})

	s, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	p.Release(s)
	p.Release(s) // double release should not drive total negative
	if p.Total() < 0 {
		t.Fatalf("total went negative: %d", p.Total())
	}
}

func TestTrimIdleRespectsMinimum(t *testing.T) {
	addr := startEchoServer(t)
	d := socket.NewDialer(time.Second, 0)
	p := New(d, addr, Limits{MinConnections: 1, MaxConnections: 4, MaxSocketIdle: time.Minute})

	var socks []*socket.Socket
	for i := 0; i < 3; i++ {
		s, err := p.Acquire(context.Background())
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		socks = append(socks, s)
	}
	for _, s := range socks {
		p.Release(s)
	}

	closed := p.TrimIdle()
	if closed != 2 {
		t.Fatalf("expected 2 trimmed down to the minimum, got %d", closed)
	}
	if p.Total() != 1 {
		t.Fatalf("expected 1 remaining connection, got %d", p.Total())
	}
}

func TestRecoverListDrainsWithinDeadline(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	sock := &socket.Socket{Conn: client, Addr: "pipe"}

	go func() {
		time.Sleep(5 * time.Millisecond)
		server.Write([]byte("rest"))
	}()

	rl := NewRecoverList()
	rl.Register(sock, []byte("partial-already-read-"), len("partial-already-read-")+4)

	recovered := false
	deadline := time.Now().Add(time.Second)
	for !recovered && time.Now().Before(deadline) {
		rl.Drain(func(*socket.Socket) { recovered = true }, func(*socket.Socket) {})
		if !recovered {
			time.Sleep(5 * time.Millisecond)
		}
	}
	if !recovered {
		t.Fatal("expected socket to recover within deadline")
	}
}
