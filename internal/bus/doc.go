// Package bus connects the catalog registry to the MQTT broker.
//
// Announcer publishes registry events as JSON under
// {mainTopic}/catalog/{kind}/{id}. ListenDeviceStatus subscribes to
// {mainTopic}/catalog/devices/status and applies each {deviceId, status}
// message through the registry's ensure-or-patch operation, the same path
// PUT /devices/status takes.
package bus
