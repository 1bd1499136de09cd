package usbctl

import (
	"fmt"

	"github.com/keysas-fr/keysas-io/pkg/kerrors"
	"github.com/keysas-fr/keysas-io/pkg/verify"
)

// requiredProperties are the udev properties spec §4.F step 1 requires on
// every add event; a missing one must be logged and skipped, not crash.
var requiredProperties = []string{"ID_VENDOR_ID", "ID_MODEL_ID", "ID_REVISION", "DEVNAME", "ID_SERIAL"}

// extractIdentity reads the required properties off ev, returning the
// DeviceIdentity for signature verification and the raw DEVNAME.
func extractIdentity(ev RawEvent) (verify.DeviceIdentity, string, error) {
	values := make(map[string]string, len(requiredProperties))
	for _, key := range requiredProperties {
		v, ok := ev.Properties[key]
		if !ok || v == "" {
			return verify.DeviceIdentity{}, "", kerrors.New(kerrors.BadInput, "usbctl.extractIdentity",
				fmt.Errorf("missing required udev property %s", key))
		}
		values[key] = v
	}

	identity := verify.DeviceIdentity{
		VendorID: values["ID_VENDOR_ID"],
		ModelID:  values["ID_MODEL_ID"],
		Revision: values["ID_REVISION"],
		Serial:   values["ID_SERIAL"],
	}
	return identity, values["DEVNAME"], nil
}

// product is the dedup key "vendor/model/revision" (spec §4.F step 2).
func product(id verify.DeviceIdentity) string {
	return id.VendorID + "/" + id.ModelID + "/" + id.Revision
}

// diskPath strips a trailing run of digits from a partition device path
// ("/dev/sdb1" -> "/dev/sdb"), since the signature lives on the disk, not
// the partition (spec §4.F step 3).
func diskPath(devName string) string {
	i := len(devName)
	for i > 0 && devName[i-1] >= '0' && devName[i-1] <= '9' {
		i--
	}
	return devName[:i]
}
