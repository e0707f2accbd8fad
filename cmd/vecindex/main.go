// Command vecindex creates, loads and queries vector indexes stored on a
// page device.
//
// Usage:
//
//	vecindex --device <spec> <command> [flags]
//
// Commands:
//
//	create  - Format a device with index parameters (YAML)
//	build   - Bulk-load an empty index from a vector file
//	insert  - Insert vectors into a built index
//	delete  - Delete vectors by id
//	search  - Query the nearest neighbors of a vector
//	vacuum  - Reclaim deleted vectors
//	inspect - Print parameters and statistics
//
// Devices:
//
//	file:/path/index.db          single page file (a bare path works too)
//	badger:/path/dir             Badger key-value store
//	s3://bucket/prefix           S3 (credentials from the AWS default chain)
//	minio://host:port/bucket/prefix  MinIO (MINIO_ACCESS_KEY / MINIO_SECRET_KEY)
package main

import (
	"fmt"
	"os"

	"github.com/hupe1980/vecindex/cmd/vecindex/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
