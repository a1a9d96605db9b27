package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields by their JSON names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Wire shapes. Pointers distinguish an absent field from a zero value, so
// "required" means present rather than non-zero.

type plantPayload struct {
	PlantID   *int    `json:"plantId" validate:"required"`
	PlantDate *string `json:"plantDate" validate:"required"`
}

type locationPayload struct {
	PlantID *int `json:"plantId" validate:"required"`
}

type servicePayload struct {
	ServiceType *string  `json:"serviceType" validate:"required,oneof=MQTT REST"`
	Topics      []string `json:"topics"`
	ServiceIP   *string  `json:"serviceIp"`
}

type devicePayload struct {
	DeviceID          *int             `json:"deviceId" validate:"required"`
	DeviceType        *string          `json:"deviceType" validate:"required,oneof=sensor actuator"`
	DeviceName        *string          `json:"deviceName" validate:"required"`
	DeviceLocation    *locationPayload `json:"deviceLocation" validate:"required"`
	DeviceStatus      *string          `json:"deviceStatus" validate:"required"`
	StatusOptions     []string         `json:"statusOptions" validate:"required"`
	MeasureTypes      []string         `json:"measureTypes" validate:"required"`
	AvailableServices []string         `json:"availableServices" validate:"required,dive,oneof=MQTT REST"`
	ServicesDetails   []servicePayload `json:"servicesDetails" validate:"required,dive"`
}

type userPayload struct {
	UserID          *int    `json:"userId" validate:"required"`
	UserName        *string `json:"userName" validate:"required"`
	TelegramID      *string `json:"telegramId" validate:"required"`
	DeviceInventory []int   `json:"deviceInventory"`
}

type statusPayload struct {
	DeviceID *int    `json:"deviceId" validate:"required"`
	Status   *string `json:"status" validate:"required"`
}

// DecodePlant parses and schema-checks a plant payload.
// Any inbound deviceInventory or lastUpdated is ignored.
func DecodePlant(body []byte) (Plant, error) {
	var p plantPayload
	if err := decodePayload(body, &p); err != nil {
		return Plant{}, err
	}
	return Plant{PlantID: *p.PlantID, PlantDate: *p.PlantDate}, nil
}

// DecodeDevice parses and schema-checks a device payload.
func DecodeDevice(body []byte) (Device, error) {
	var p devicePayload
	if err := decodePayload(body, &p); err != nil {
		return Device{}, err
	}

	d := Device{
		DeviceID:          *p.DeviceID,
		DeviceType:        *p.DeviceType,
		DeviceName:        *p.DeviceName,
		DeviceLocation:    &DeviceLocation{PlantID: *p.DeviceLocation.PlantID},
		DeviceStatus:      *p.DeviceStatus,
		StatusOptions:     p.StatusOptions,
		MeasureTypes:      p.MeasureTypes,
		AvailableServices: p.AvailableServices,
		ServicesDetails:   make([]ServiceDetail, 0, len(p.ServicesDetails)),
	}
	for _, s := range p.ServicesDetails {
		detail := ServiceDetail{ServiceType: *s.ServiceType, Topics: s.Topics}
		if s.ServiceIP != nil {
			detail.ServiceIP = *s.ServiceIP
		}
		d.ServicesDetails = append(d.ServicesDetails, detail)
	}
	return d, nil
}

// DecodeUser parses and schema-checks a user payload.
func DecodeUser(body []byte) (User, error) {
	var p userPayload
	if err := decodePayload(body, &p); err != nil {
		return User{}, err
	}
	u := User{
		UserID:          *p.UserID,
		UserName:        *p.UserName,
		TelegramID:      *p.TelegramID,
		DeviceInventory: p.DeviceInventory,
	}
	if u.DeviceInventory == nil {
		u.DeviceInventory = []int{}
	}
	return u, nil
}

// DecodeStatus parses a {deviceId, status} payload.
func DecodeStatus(body []byte) (deviceID int, status string, err error) {
	var p statusPayload
	if err := decodePayload(body, &p); err != nil {
		return 0, "", err
	}
	return *p.DeviceID, *p.Status, nil
}

// ValidatePlant checks the semantic rules of a plant.
func ValidatePlant(p Plant) error {
	if _, err := time.Parse(DateLayout, p.PlantDate); err != nil {
		return fmt.Errorf("%w: plantDate %q must be YYYY-MM-DD", ErrInvalidDate, p.PlantDate)
	}
	return nil
}

// ValidateDevice checks the semantic rules of a device.
// Plant existence is checked by the repository at write time.
func ValidateDevice(d Device) error {
	if d.DeviceLocation == nil {
		return fmt.Errorf("%w: deviceLocation is required", ErrInvalidRecord)
	}
	if !slices.Contains(d.StatusOptions, d.DeviceStatus) {
		return fmt.Errorf("%w: %q must be one of %v", ErrInvalidStatus, d.DeviceStatus, d.StatusOptions)
	}
	return nil
}

// decodePayload normalises field names, decodes into dst and runs the
// struct tags. Every failure wraps ErrInvalidRecord.
func decodePayload(body []byte, dst any) error {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("%w: body must be a JSON object: %v", ErrInvalidRecord, err)
	}
	if doc == nil {
		return fmt.Errorf("%w: body must be a JSON object", ErrInvalidRecord)
	}

	canonical, err := json.Marshal(Normalize(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	dec := json.NewDecoder(bytes.NewReader(canonical))
	if err := dec.Decode(dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: %s must be %s, got %s", ErrInvalidRecord, typeErr.Field, typeErr.Type, typeErr.Value)
		}
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fieldErrorMessage(fe))
		}
		return fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(msgs, "; "))
	}
	return nil
}

// fieldErrorMessage renders a validator failure using the JSON path of the
// field, e.g. "servicesDetails[0].serviceType must be one of [MQTT REST]".
func fieldErrorMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation for '%s'", field, fe.Tag())
	}
}
