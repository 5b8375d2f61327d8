// Command relaybench compresses a raw block file and reports wire-byte
// savings, in the spirit of cmd/client's single-purpose CLIs. It runs
// the compressor only; the output is not decompressed or compared with
// the original block.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/blkrelay/relaynode/hashutil"
	"github.com/blkrelay/relaynode/relay"
)

func main() {
	blockFile := flag.String("block", "", "path to a raw block (80-byte header + varint txcount + txs)")
	checkMerkle := flag.Bool("merkle", false, "verify the merkle root while compressing/decompressing")
	prime := flag.Bool("prime", true, "prime the send-cache with every tx in the block before compressing, simulating a peer that has already seen them all")
	flag.Parse()

	if len(*blockFile) == 0 {
		fmt.Fprintln(os.Stderr, "missing -block")
		os.Exit(1)
	}

	block, err := ioutil.ReadFile(*blockFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read block file: %v\n", err)
		os.Exit(1)
	}

	codec, err := relay.New(relay.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "build codec: %v\n", err)
		os.Exit(1)
	}

	txs, err := splitTransactions(block)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse block: %v\n", err)
		os.Exit(1)
	}

	if *prime {
		for _, tx := range txs {
			codec.GetRelayTransaction(tx)
		}
	}

	hash := hashutil.Default.Sum(block[:80])
	compressed, err := codec.MaybeCompressBlock(hash, block, *checkMerkle)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compress: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("original block:    %d bytes\n", len(block))
	fmt.Printf("compressed block:  %d bytes\n", len(compressed))
	fmt.Printf("transactions:      %d\n", len(txs))
	fmt.Printf("savings:           %.1f%%\n", 100*(1-float64(len(compressed))/float64(len(block))))
}
