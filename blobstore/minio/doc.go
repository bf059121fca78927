// Package minio provides a BlobStore implementation using the MinIO client.
//
// It works with MinIO and other S3-compatible systems (Ceph, SeaweedFS,
// Garage) and needs no AWS configuration, which suits on-premise indexing
// farms that publish archives to a local object store.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	store := minioblob.NewStore(client, "indexes", "chromium/")
package minio
