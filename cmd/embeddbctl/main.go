// Command embeddbctl is a minimal, scriptable front end for the
// embeddb engine: put/get/scan/sort against a set of on-disk files,
// one invocation at a time.
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"os"

	"github.com/flashdb/embeddb"
	"github.com/flashdb/embeddb/pagefile"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "embeddbctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: embeddbctl <put|get|scan|sort> [flags]")
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	dir := fs.String("dir", ".", "directory holding data/index/var/temp files")
	keySize := fs.Int("keysize", 8, "fixed key width in bytes")
	dataSize := fs.Int("datasize", 8, "fixed data width in bytes")
	key := fs.Uint64("key", 0, "record key, as a little-endian uint64")
	val := fs.Uint64("value", 0, "record value, as a little-endian uint64")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	dataFile := pagefile.NewDiskFile(*dir + "/data.db")
	indexFile := pagefile.NewDiskFile(*dir + "/index.db")
	varFile := pagefile.NewDiskFile(*dir + "/var.db")

	cfg := embeddb.NewConfig(*keySize, *dataSize, dataFile, indexFile, varFile)
	e, err := embeddb.Init(*cfg)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer e.Close()

	switch args[0] {
	case "put":
		return cmdPut(e, *keySize, *dataSize, *key, *val)
	case "get":
		return cmdGet(e, *keySize, *dataSize, *key)
	case "scan":
		return cmdScan(e, *keySize, *dataSize)
	case "sort":
		tempFile := pagefile.NewDiskFile(*dir + "/sort.tmp")
		return cmdSort(e, *keySize, *dataSize, tempFile)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func cmdPut(e *embeddb.Engine, keySize, dataSize int, key, val uint64) error {
	k := make([]byte, keySize)
	v := make([]byte, dataSize)
	binary.LittleEndian.PutUint64(k, key)
	binary.LittleEndian.PutUint64(v, val)
	if err := e.Put(k, v); err != nil {
		return err
	}
	return e.Flush()
}

func cmdGet(e *embeddb.Engine, keySize, dataSize int, key uint64) error {
	k := make([]byte, keySize)
	binary.LittleEndian.PutUint64(k, key)
	v := make([]byte, dataSize)
	if err := e.Get(k, v); err != nil {
		return err
	}
	fmt.Println(binary.LittleEndian.Uint64(v))
	return nil
}

func cmdScan(e *embeddb.Engine, keySize, dataSize int) error {
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	it, err := e.InitIterator(embeddb.Filter{})
	if err != nil {
		return err
	}
	defer it.Close()

	for {
		ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		fmt.Fprintf(w, "%d\t%d\n",
			binary.LittleEndian.Uint64(it.Key()),
			binary.LittleEndian.Uint64(it.Data()))
	}
}

func cmdSort(e *embeddb.Engine, keySize, dataSize int, tempFile pagefile.PageFile) error {
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	cur, err := e.OrderBy(embeddb.Filter{}, tempFile, 6, 10)
	if err != nil {
		return err
	}
	defer cur.Close()

	for {
		ok, err := cur.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		fmt.Fprintf(w, "%d\t%d\n",
			binary.LittleEndian.Uint64(cur.Key()),
			binary.LittleEndian.Uint64(cur.Data()))
	}
}
