// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command scanflightd wires a runtime environment, a scan planner,
// and the flight service together behind a handful of flags. It is
// ambient wiring, not a new external collaborator: query parsing and
// cluster scheduling remain out of scope, the same way cmd/snellerd's
// "daemon" sub-command only wires an HTTP listener and a tenant
// manager together.
package main

import (
	"flag"
	"log"
	"net"
	"os"

	"github.com/google/uuid"

	"github.com/coredb-io/colscan/aws"
	"github.com/coredb-io/colscan/flight"
	"github.com/coredb-io/colscan/objstore"
	"github.com/coredb-io/colscan/runtimeenv"
	"github.com/coredb-io/colscan/scan"
)

func main() {
	root := flag.String("root", ".", "root directory to scan for columnar files")
	ext := flag.String("ext", ".ion", "file extension to select under -root")
	batchSize := flag.Int("batch-size", runtimeenv.DefaultBatchSize, "target rows per emitted batch")
	maxConcurrency := flag.Int("max-concurrency", 4, "maximum number of scan partitions")
	listen := flag.String("listen", "127.0.0.1:9100", "endpoint to listen on for flight requests")
	s3Bucket := flag.String("s3-bucket", "", "if set, scan this S3 bucket instead of -root on local disk")
	flag.Parse()

	logger := log.New(os.Stderr, "", log.Lshortfile)

	env, err := runtimeenv.New(runtimeenv.DefaultConfig().WithBatchSize(*batchSize))
	if err != nil {
		logger.Fatalf("initializing runtime environment: %s", err)
	}
	logger.Printf("runtime environment ready: %s", env.Memory)

	store, err := newStore(*s3Bucket)
	if err != nil {
		logger.Fatalf("configuring object store: %s", err)
	}
	sc, err := scan.TryFromPath(store, *root, scan.Options{
		Extension:      *ext,
		BatchSize:      env.BatchSize(),
		MaxConcurrency: *maxConcurrency,
	})
	if err != nil {
		logger.Fatalf("planning scan of %s: %s", *root, err)
	}
	logger.Printf("discovered %d rows across %s under %s", sc.Statistics.RowCount, sc.OutputPartitioning(), *root)

	l, err := net.Listen("tcp", *listen)
	if err != nil {
		logger.Fatalf("listening on %s: %s", *listen, err)
	}
	logger.Printf("flight service listening on %s", l.Addr())

	for {
		conn, err := l.Accept()
		if err != nil {
			logger.Printf("accept: %s", err)
			continue
		}
		connID := uuid.New().String()
		go func() {
			if err := flight.Serve(conn, store); err != nil {
				logger.Printf("flight connection %s from %s: %s", connID, conn.RemoteAddr(), err)
			}
		}()
	}
}

// newStore returns an S3-backed store signed with ambient
// credentials when bucket is non-empty, or a local-disk store
// otherwise -- the same ambient-credential-discovery convention as
// aws.AmbientKey's other callers in the corpus.
func newStore(bucket string) (objstore.Store, error) {
	if bucket == "" {
		return objstore.NewLocalStore(), nil
	}
	key, err := aws.AmbientKey("s3", aws.DefaultDerive)
	if err != nil {
		return nil, err
	}
	return objstore.NewS3Store(key, bucket), nil
}
