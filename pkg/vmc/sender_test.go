package vmc

import (
	"net"
	"strings"
	"testing"
	"time"
)

// listenUDP binds an ephemeral local UDP port and returns the conn and port.
func listenUDP(t *testing.T) (*net.UDPConn, int) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to bind UDP listener: %v", err)
	}
	return conn, conn.LocalAddr().(*net.UDPAddr).Port
}

// readPackets collects datagrams until count arrive or the deadline passes.
func readPackets(t *testing.T, conn *net.UDPConn, count int) [][]byte {
	t.Helper()
	var packets [][]byte
	buf := make([]byte, 2048)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for len(packets) < count {
		n, err := conn.Read(buf)
		if err != nil {
			break
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		packets = append(packets, pkt)
	}
	return packets
}

func baseParams() map[string]float64 {
	return map[string]float64{
		"head_yaw": 0, "head_pitch": 0, "head_roll": 0,
		"Blink_L": 0.1, "Blink_R": 0.2,
		"A": 0.3, "I": 0.1, "U": 0.1, "E": 0.05, "O": 0.2, "Joy": 0.4,
	}
}

func TestSender_SendsRotationAndBlends(t *testing.T) {
	conn, port := listenUDP(t)
	defer conn.Close()

	s := NewSender("127.0.0.1", port, true)
	if err := s.SendTrackingData(baseParams()); err != nil {
		t.Fatalf("SendTrackingData: %v", err)
	}

	// One rotation message plus one per standard blend shape.
	packets := readPackets(t, conn, 1+len(standardBlendShapes))
	if len(packets) != 1+len(standardBlendShapes) {
		t.Fatalf("got %d packets, want %d", len(packets), 1+len(standardBlendShapes))
	}

	if !strings.HasPrefix(string(packets[0]), addrRootRotation) {
		t.Errorf("first packet should be the rotation message, got %q", packets[0][:20])
	}
	for _, pkt := range packets[1:] {
		if !strings.HasPrefix(string(pkt), addrBlendValue) {
			t.Errorf("expected blend message, got %q", pkt[:20])
		}
	}

	// Blend order is the fixed standard order.
	for i, name := range standardBlendShapes {
		if !strings.Contains(string(packets[1+i]), name) {
			t.Errorf("packet %d should carry blend %q", 1+i, name)
		}
	}
}

func TestSender_ForwardsCustomBlends(t *testing.T) {
	conn, port := listenUDP(t)
	defer conn.Close()

	s := NewSender("127.0.0.1", port, true)
	params := baseParams()
	params["MouthSmileL"] = 0.5
	params["MouthSmileR"] = 0.6
	if err := s.SendTrackingData(params); err != nil {
		t.Fatalf("SendTrackingData: %v", err)
	}

	packets := readPackets(t, conn, 1+len(standardBlendShapes)+2)
	if len(packets) != 1+len(standardBlendShapes)+2 {
		t.Fatalf("got %d packets, want %d", len(packets), 1+len(standardBlendShapes)+2)
	}
	// Custom names are sorted, so L precedes R.
	last2 := string(packets[len(packets)-2]) + string(packets[len(packets)-1])
	if !strings.Contains(string(packets[len(packets)-2]), "MouthSmileL") ||
		!strings.Contains(string(packets[len(packets)-1]), "MouthSmileR") {
		t.Errorf("custom blends missing or out of order: %q", last2)
	}
}

func TestSender_DisabledSendsNothing(t *testing.T) {
	conn, port := listenUDP(t)
	defer conn.Close()

	s := NewSender("127.0.0.1", port, false)
	if err := s.SendTrackingData(baseParams()); err != nil {
		t.Fatalf("SendTrackingData: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 64)
	if n, _ := conn.Read(buf); n > 0 {
		t.Errorf("disabled sender emitted %d bytes", n)
	}
}

func TestSender_ConnectionState(t *testing.T) {
	s := NewSender("127.0.0.1", DefaultPort, true)
	if !s.IsConnected() {
		t.Error("sender should be bound after NewSender")
	}

	s.Disconnect()
	if s.IsConnected() {
		t.Error("sender should be unbound after Disconnect")
	}
	// Sends while unbound are silently dropped.
	if err := s.SendTrackingData(baseParams()); err != nil {
		t.Errorf("send while unbound should be a no-op, got %v", err)
	}

	s.Connect()
	if !s.IsConnected() {
		t.Error("sender should rebind after Connect")
	}
}

func TestCustomBlendNames(t *testing.T) {
	params := baseParams()
	params["Zeta"] = 1
	params["Alpha"] = 1

	names := customBlendNames(params)
	if len(names) != 2 || names[0] != "Alpha" || names[1] != "Zeta" {
		t.Errorf("got %v, want [Alpha Zeta]", names)
	}
}
