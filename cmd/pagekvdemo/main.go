// Command pagekvdemo is a small manual-exercise CLI for the storage core,
// in the spirit of the teacher's cmd/seed and cmd/dump_sample: not part of
// the core, just a way to poke it from a shell.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"pagekv/cursor"
	"pagekv/engine"
)

func main() {
	dataDir := flag.String("data", "./data", "directory holding table files")
	frames := flag.Int("frames", engine.DefaultFrameCount, "buffer pool frame count")
	table := flag.String("table", "demo", "table name")
	inspect := flag.Bool("inspect", false, "dump the table's index structure and exit")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	e, err := engine.Open(*dataDir, *frames, logger)
	if err != nil {
		logger.Fatal("open engine", zap.Error(err))
	}
	defer e.Close()

	if *inspect {
		indexFile, err := e.IndexFile(*table)
		if err != nil {
			logger.Fatal("open index file", zap.Error(err))
		}
		if err := cursor.Inspect(os.Stdout, e.Pool(), indexFile); err != nil {
			logger.Fatal("inspect", zap.Error(err))
		}
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: pagekvdemo [-data dir] [-table name] [-inspect] <insert|read|remove> key [value]")
		os.Exit(2)
	}

	key, op := parseKey(args, logger)
	switch op {
	case "insert":
		if len(args) < 3 {
			logger.Fatal("insert requires a value")
		}
		if err := e.Insert(*table, key, []byte(args[2])); err != nil {
			logger.Fatal("insert", zap.Error(err))
		}
	case "read":
		value, err := e.Read(*table, key)
		if err != nil {
			logger.Fatal("read", zap.Error(err))
		}
		fmt.Println(string(value))
	case "remove":
		if err := e.Remove(*table, key); err != nil {
			logger.Fatal("remove", zap.Error(err))
		}
	default:
		logger.Fatal("unknown operation", zap.String("op", op))
	}
}

func parseKey(args []string, logger *zap.Logger) (int32, string) {
	if len(args) < 2 {
		logger.Fatal("missing key argument")
	}
	var key int32
	if _, err := fmt.Sscanf(args[1], "%d", &key); err != nil {
		logger.Fatal("key must be an integer", zap.String("key", args[1]))
	}
	return key, args[0]
}
