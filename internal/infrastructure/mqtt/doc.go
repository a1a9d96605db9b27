// Package mqtt provides MQTT connectivity for the plant catalog.
//
// The catalog uses the broker for two things:
//   - announcing catalog changes under {mainTopic}/catalog/{kind}/{id}
//   - receiving device status updates from field agents on
//     {mainTopic}/catalog/devices/status
//
// The service's own presence is retained on {mainTopic}/catalog/status,
// with a Last Will and Testament so a crash reads as offline.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mainTopic)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	client.Publish(topics.Entity("plants", 101), payload, 1, false)
//
// Subscriptions are tracked and restored after a reconnect.
package mqtt
