// Package vmc broadcasts tracking parameters over the VMC protocol:
// OSC messages carried on fire-and-forget UDP datagrams. Loss is tolerated,
// the next frame supersedes anything dropped.
package vmc

import (
	"sort"
	"sync"

	"github.com/hypebeast/go-osc/osc"

	"github.com/openvtuber/go-facelink/internal/log"
)

// Well-known VMC endpoints.
const (
	DefaultHost = "127.0.0.1"

	// DefaultPort is the VSeeFace receiver port.
	DefaultPort = 39539

	// AlternatePort is the VMC protocol port used by other receivers
	// such as VMagicMirror.
	AlternatePort = 39540
)

// OSC addresses defined by the VMC protocol.
const (
	addrRootRotation = "/VMC/Ext/Root/Rot"
	addrBlendValue   = "/VMC/Ext/Blend/Val"
)

// standardBlendShapes is the fixed send order for the well-known blend
// shapes. Receivers do not require an order, but a stable one keeps packet
// captures comparable between runs.
var standardBlendShapes = []string{
	"Blink_L", "Blink_R", "A", "I", "U", "E", "O", "Joy",
}

// rotation channel keys consumed by the root-rotation message rather than
// forwarded as blend shapes.
var rotationKeys = map[string]bool{
	"head_yaw": true, "head_pitch": true, "head_roll": true,
}

// Sender broadcasts tracking parameters to a single host:port target.
// "Connected" means a target is bound; UDP gives no reachability signal.
type Sender struct {
	mu      sync.Mutex
	host    string
	port    int
	enabled bool
	client  *osc.Client
}

// NewSender creates a sender for the given target and binds it immediately.
func NewSender(host string, port int, enabled bool) *Sender {
	s := &Sender{host: host, port: port, enabled: enabled}
	s.Connect()
	return s
}

// Connect (re)binds the outbound target.
func (s *Sender) Connect() {
	s.mu.Lock()
	s.client = osc.NewClient(s.host, s.port)
	s.mu.Unlock()
	log.Info("vmc sender bound", "host", s.host, "port", s.port)
}

// Disconnect unbinds the target. Subsequent sends are dropped until
// Connect is called again.
func (s *Sender) Disconnect() {
	s.mu.Lock()
	s.client = nil
	s.mu.Unlock()
	log.Info("vmc sender unbound")
}

// IsConnected reports whether a target is currently bound.
func (s *Sender) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

// SetEnabled toggles sending without unbinding the target.
func (s *Sender) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

// UpdateTarget rebinds the sender to a new host:port.
func (s *Sender) UpdateTarget(host string, port int) {
	s.mu.Lock()
	s.host = host
	s.port = port
	s.client = osc.NewClient(host, port)
	s.mu.Unlock()
	log.Info("vmc target updated", "host", host, "port", port)
}

// SendTrackingData broadcasts one frame: a root-rotation quaternion built
// from the head channels, then one blend-value message per named shape.
// The standard shapes go out first in fixed order, any custom names follow
// sorted. A failed send is logged and skipped; the remaining messages for
// the frame are still sent.
func (s *Sender) SendTrackingData(params map[string]float64) error {
	s.mu.Lock()
	client := s.client
	enabled := s.enabled
	s.mu.Unlock()

	if !enabled || client == nil {
		return nil
	}

	q := EulerToQuaternion(params["head_roll"], params["head_pitch"], params["head_yaw"])
	rot := osc.NewMessage(addrRootRotation)
	rot.Append(float32(q.W))
	rot.Append(float32(q.X))
	rot.Append(float32(q.Y))
	rot.Append(float32(q.Z))
	if err := client.Send(rot); err != nil {
		log.Warn("vmc rotation send failed", "err", err)
	}

	for _, name := range standardBlendShapes {
		s.sendBlend(client, name, params[name])
	}
	for _, name := range customBlendNames(params) {
		s.sendBlend(client, name, params[name])
	}
	return nil
}

// SendRaw sends an arbitrary OSC message, for receivers with custom address
// mappings.
func (s *Sender) SendRaw(address string, args ...any) error {
	s.mu.Lock()
	client := s.client
	enabled := s.enabled
	s.mu.Unlock()

	if !enabled || client == nil {
		return nil
	}

	msg := osc.NewMessage(address)
	for _, a := range args {
		msg.Append(a)
	}
	if err := client.Send(msg); err != nil {
		log.Warn("vmc raw send failed", "address", address, "err", err)
		return err
	}
	return nil
}

func (s *Sender) sendBlend(client *osc.Client, name string, value float64) {
	msg := osc.NewMessage(addrBlendValue)
	msg.Append(name)
	msg.Append(float32(value))
	msg.Append(int32(1)) // apply flag
	if err := client.Send(msg); err != nil {
		log.Warn("vmc blend send failed", "blend", name, "err", err)
	}
}

// customBlendNames returns the parameter names that are neither rotation
// channels nor standard blend shapes, sorted for a stable send order.
func customBlendNames(params map[string]float64) []string {
	std := make(map[string]bool, len(standardBlendShapes))
	for _, n := range standardBlendShapes {
		std[n] = true
	}
	var names []string
	for name := range params {
		if !rotationKeys[name] && !std[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
