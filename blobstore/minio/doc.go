// Package minio provides a blobstore.BlobStore backed by the MinIO client,
// for MinIO and other S3-compatible object stores (Ceph, Garage,
// SeaweedFS).
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	store := minioblob.NewStore(client, "my-bucket", "indexes/items/")
//	dev, err := blobdev.New(ctx, store)
package minio
