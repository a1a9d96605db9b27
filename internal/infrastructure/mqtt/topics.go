package mqtt

import (
	"fmt"
	"strings"
)

// catalogSegment namespaces every catalog topic under the main topic.
const catalogSegment = "catalog"

// Topics builds catalog topics under a root, normally the main topic read
// from the general collection.
//
//	topics := mqtt.Topics{Root: "SMM"}
//	topics.Entity("devices", 20009)
//	// Returns: "SMM/catalog/devices/20009"
type Topics struct {
	Root string
}

func (t Topics) base() string {
	return strings.TrimSuffix(t.Root, "/") + "/" + catalogSegment
}

// Entity returns the change announcement topic of one document.
//
// Example: SMM/catalog/plants/101
func (t Topics) Entity(kind string, id int) string {
	return fmt.Sprintf("%s/%s/%d", t.base(), kind, id)
}

// Status returns the retained presence topic of the catalog service.
//
// Example: SMM/catalog/status
func (t Topics) Status() string {
	return t.base() + "/status"
}

// DeviceStatus returns the topic field agents publish status updates on.
//
// Example: SMM/catalog/devices/status
func (t Topics) DeviceStatus() string {
	return t.base() + "/devices/status"
}

// AllEntities returns a pattern matching every change announcement.
//
// Pattern: SMM/catalog/+/+
func (t Topics) AllEntities() string {
	return t.base() + "/+/+"
}
