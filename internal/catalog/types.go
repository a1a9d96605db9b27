package catalog

import (
	"strconv"
	"time"
)

// TimeLayout is the stored layout of lastUpdated (UTC).
const TimeLayout = "2006-01-02 15:04:05"

// DateLayout is the layout of plantDate.
const DateLayout = "2006-01-02"

// Kind identifies an entity collection.
type Kind string

// Entity kinds. The values double as REST path segments.
const (
	KindPlant  Kind = "plants"
	KindDevice Kind = "devices"
	KindUser   Kind = "users"
)

// Kinds lists every entity kind in sweep order.
var Kinds = []Kind{KindPlant, KindDevice, KindUser}

// ParseKind maps a path segment to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindPlant, KindDevice, KindUser:
		return Kind(s), true
	}
	return "", false
}

// Singular returns "plant", "device" or "user".
func (k Kind) Singular() string {
	switch k {
	case KindPlant:
		return "plant"
	case KindDevice:
		return "device"
	case KindUser:
		return "user"
	}
	return string(k)
}

// Plant is a growing unit tracked by the catalog.
type Plant struct {
	PlantID         int    `json:"plantId" bson:"plantId"`
	PlantDate       string `json:"plantDate" bson:"plantDate"`
	DeviceInventory []int  `json:"deviceInventory" bson:"deviceInventory"`
	LastUpdated     string `json:"lastUpdated" bson:"lastUpdated"`
}

// DeviceLocation ties a device to its plant.
type DeviceLocation struct {
	PlantID int `json:"plantId" bson:"plantId"`
}

// ServiceDetail describes how to reach one of a device's services.
type ServiceDetail struct {
	ServiceType string   `json:"serviceType" bson:"serviceType"`
	Topics      []string `json:"topics,omitempty" bson:"topics,omitempty"`
	ServiceIP   string   `json:"serviceIp,omitempty" bson:"serviceIp,omitempty"`
}

// Device is a sensor or actuator attached to a plant.
//
// A device created through EnsureOrPatchDeviceStatus carries only deviceId,
// deviceStatus and lastUpdated until it registers in full, hence the
// omitempty on everything else.
type Device struct {
	DeviceID          int             `json:"deviceId" bson:"deviceId"`
	DeviceType        string          `json:"deviceType,omitempty" bson:"deviceType,omitempty"`
	DeviceName        string          `json:"deviceName,omitempty" bson:"deviceName,omitempty"`
	DeviceLocation    *DeviceLocation `json:"deviceLocation,omitempty" bson:"deviceLocation,omitempty"`
	DeviceStatus      string          `json:"deviceStatus" bson:"deviceStatus"`
	StatusOptions     []string        `json:"statusOptions,omitempty" bson:"statusOptions,omitempty"`
	MeasureTypes      []string        `json:"measureTypes,omitempty" bson:"measureTypes,omitempty"`
	AvailableServices []string        `json:"availableServices,omitempty" bson:"availableServices,omitempty"`
	ServicesDetails   []ServiceDetail `json:"servicesDetails,omitempty" bson:"servicesDetails,omitempty"`
	LastUpdated       string          `json:"lastUpdated" bson:"lastUpdated"`
}

// PlantID returns the plant the device is located at, if any.
func (d *Device) PlantID() (int, bool) {
	if d.DeviceLocation == nil {
		return 0, false
	}
	return d.DeviceLocation.PlantID, true
}

// User is a chat-bot user owning devices.
type User struct {
	UserID          int    `json:"userId" bson:"userId"`
	UserName        string `json:"userName" bson:"userName"`
	TelegramID      string `json:"telegramId" bson:"telegramId"`
	DeviceInventory []int  `json:"deviceInventory" bson:"deviceInventory"`
	LastUpdated     string `json:"lastUpdated" bson:"lastUpdated"`
}

// Broker is the MQTT broker address handed out to field agents.
type Broker struct {
	IP   string `json:"IP" bson:"IP"`
	Port int    `json:"port" bson:"port"`
}

// Settings are the well-known documents of the general collection.
type Settings struct {
	Broker    Broker
	MainTopic string
}

// Result reports a successful write.
type Result struct {
	Kind    Kind
	ID      int
	Created bool
	Message string
}

// FormatTimestamp renders t in the stored lastUpdated layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTimestamp parses a stored lastUpdated value as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, s, time.UTC)
}

// ParseID parses a business id path segment. Only the canonical decimal
// form is accepted, so "+201" and "0201" do not alias plant 201.
func ParseID(s string) (int, bool) {
	id, err := strconv.Atoi(s)
	if err != nil || strconv.Itoa(id) != s {
		return 0, false
	}
	return id, true
}
