// Package influxdb writes catalog statistics to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. The sweeper records
// one catalog_sweep point per pass and a catalog_inventory point with the
// surviving document counts; *Client satisfies catalog.StatsWriter.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sweeper.SetStatsWriter(client)
//
// # Error Handling
//
// Writes are non-blocking and batched (batch_size, flush_interval). Batch
// failures arrive asynchronously through the SetOnError callback.
// Connection and health check errors are returned directly.
package influxdb
