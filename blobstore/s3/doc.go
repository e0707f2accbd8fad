// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	client := s3.NewFromConfig(cfg)
//	store := s3blob.NewStore(client, "my-bucket", "indexes/items/")
//	dev, err := blobdev.New(ctx, store)
//
// Store depends only on the Client interface, which *s3.Client satisfies.
package s3
