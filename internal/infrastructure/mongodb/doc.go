// Package mongodb provides MongoDB connectivity for the plant catalog.
//
// It owns the driver client lifecycle: the client is opened once at process
// start by Connect, handed to the catalog's MongoRepository through
// Database, and closed on shutdown. Nothing else in the process dials
// MongoDB.
//
// # Usage
//
//	client, err := mongodb.Connect(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	repo := catalog.NewMongoRepository(client.Database(), cols)
package mongodb
