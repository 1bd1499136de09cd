package usbctl

import (
	"context"
	"os"

	"github.com/keysas-fr/keysas-io/pkg/kerrors"
	"github.com/keysas-fr/keysas-io/pkg/log"
	"github.com/keysas-fr/keysas-io/pkg/transfer"
	"github.com/keysas-fr/keysas-io/pkg/verify"
)

// AuthOracle is the optional user-authentication hook invoked before an
// ingress copy when Yubikey support is enabled (spec §4.F dispatch rule 2).
// An error means auth failed: the copy is skipped but the device is still
// marked ready, matching the original daemon's "skip the copy but still
// mark ready" behavior.
type AuthOracle func() error

// Publisher pushes a device-state Snapshot to whatever is observing this
// Controller. In production this is the single WebSocket connection the
// Controller was created for (spec §5: one udev monitor and one event loop
// per client, no cross-client shared state); in tests it is a fake.
type Publisher interface {
	Publish(Snapshot) error
}

// Config wires a Controller to its dependencies.
type Config struct {
	CA        *verify.CACertificates
	SasIn     string
	SasOut    string
	YubikeyOn bool
	Auth      AuthOracle
	Publisher Publisher
}

// Controller owns the three device sets exclusively (spec §5: no locks
// needed) and implements the dispatch procedure of spec §4.F.
type Controller struct {
	cfg  Config
	sets *deviceSets
}

func NewController(cfg Config) *Controller {
	return &Controller{cfg: cfg, sets: newDeviceSets()}
}

// Run drains source until ctx is canceled. A transient source error is
// logged and the loop continues; ctx cancellation returns cleanly.
func (c *Controller) Run(ctx context.Context, source EventSource) error {
	c.publish()
	for {
		ev, err := source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Errorf("udev event source error: %s", err)
			continue
		}
		c.handle(ev)
	}
}

func (c *Controller) publish() {
	if c.cfg.Publisher == nil {
		return
	}
	yubi := YubikeyStatus{Active: c.cfg.YubikeyOn, Yubikeys: listYubikeys()}
	_ = c.cfg.Publisher.Publish(c.sets.snapshot(yubi))
}

// listYubikeys enumerates attached Yubikeys as "vendor/product" pairs.
// Detection is out of scope for this package (spec's Non-goals exclude
// Fido2/HMAC enrollment); the status field is always reported, just empty
// when no enumeration backend is wired in.
func listYubikeys() []string { return nil }

func (c *Controller) handle(ev RawEvent) {
	switch ev.Action {
	case "add":
		if ev.Properties["DEVTYPE"] != "partition" {
			return
		}
		c.handleAdd(ev)
	case "remove":
		c.handleRemove(ev)
	}
}

func (c *Controller) handleAdd(ev RawEvent) {
	identity, devName, err := extractIdentity(ev)
	if err != nil {
		log.Errorf("malformed add event, skipping: %s", err)
		return
	}
	prod := product(identity)
	disk := diskPath(devName)

	verdict, err := c.verifyDevice(disk, identity)
	switch {
	case err == nil && verdict:
		c.dispatchEgress(prod, disk)
	default:
		// Both "false" and "error" (unreadable signature) are treated as
		// unsigned, per spec §4.F dispatch rule 3.
		c.dispatchIngress(prod, disk)
	}
}

func (c *Controller) verifyDevice(disk string, identity verify.DeviceIdentity) (bool, error) {
	f, err := os.OpenFile(disk, os.O_RDONLY, 0)
	if err != nil {
		return false, kerrors.New(kerrors.IoTransient, "usbctl.verifyDevice.open", err)
	}
	defer f.Close()
	return verify.Verify(c.cfg.CA, identity, f)
}

func (c *Controller) dispatchEgress(prod, disk string) {
	if c.sets.contains(c.sets.out, prod) {
		return
	}
	c.sets.out[prod] = struct{}{}
	c.publish()

	if err := transfer.MoveDeviceOut(disk, c.cfg.SasOut); err != nil {
		log.Errorf("egress transfer failed: %s", err)
	}
	c.publish()
}

func (c *Controller) dispatchIngress(prod, disk string) {
	if c.sets.contains(c.sets.in, prod) {
		return
	}
	c.sets.in[prod] = struct{}{}
	c.publish()

	doCopy := true
	if c.cfg.YubikeyOn && c.cfg.Auth != nil {
		if err := c.cfg.Auth(); err != nil {
			log.Errorf("user auth failed, skipping copy but marking ready: %s", err)
			doCopy = false
		}
	}
	if doCopy {
		if err := transfer.CopyDeviceIn(disk, c.cfg.SasIn); err != nil {
			log.Errorf("ingress transfer failed: %s", err)
		}
	}
	c.publish()
}

func (c *Controller) handleRemove(ev RawEvent) {
	identity, _, err := extractIdentity(ev)
	if err != nil {
		c.sets.resetAll()
		c.publish()
		return
	}
	c.sets.removeAll(product(identity))
	c.publish()
}
