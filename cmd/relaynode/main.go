// Command relaynode is the block-relay codec's daemon entry point: it
// loads a JSON config (cmd/anti996/config.go's shape), builds a
// relay.Codec, listens for relaynet connections, and serves cache
// occupancy stats over statsrpc.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/blkrelay/relaynode/relay"
	"github.com/blkrelay/relaynode/relaynet"
	"github.com/blkrelay/relaynode/statsrpc"
	"github.com/blkrelay/relaynode/utils"
)

func main() {
	cf := flag.String("c", "", "config file")
	flag.Parse()

	conf, err := parseConfig(*cf)
	if err != nil {
		log.Fatal(err)
	}
	utils.SetLogLevel(conf.LogLevel)
	logger := utils.GetStdoutLog()

	codec, err := relay.New(codecConfig(conf))
	if err != nil {
		logger.Fatal("build codec failed:%v\n", err)
	}

	listenAddr := fmt.Sprintf("%s:%d", conf.IP, conf.Port)
	ln, err := relaynet.Listen(listenAddr)
	if err != nil {
		logger.Fatal("relaynet listen on %s failed:%v\n", listenAddr, err)
	}
	logger.Info("relaynet listening on %s\n", listenAddr)

	statsServer := statsrpc.NewServer(&statsrpc.Config{Port: conf.HTTPPort, Codec: codec})
	statsServer.Start()
	logger.Info("stats http server listening on %s:%d\n", statsrpc.LocalHost, conf.HTTPPort)

	go acceptLoop(ln, codec, conf.CheckMerkle, logger)

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, os.Interrupt, syscall.SIGTERM)
	<-sc

	logger.Infoln("Quitting......")
	statsServer.Stop()
	ln.Stop()
	logger.Infoln("Bye!")
}

func acceptLoop(ln *relaynet.Listener, codec *relay.Codec, checkMerkle bool, logger *utils.Logger) {
	for conn := range ln.Accept() {
		go serveConn(conn, codec, checkMerkle, logger)
	}
}

func serveConn(conn *relaynet.Conn, codec *relay.Codec, checkMerkle bool, logger *utils.Logger) {
	defer conn.Close()

	for {
		txCount, err := conn.ReadRelayHeader()
		if err != nil {
			logger.Debug("connection from %v closed:%v\n", conn.RemoteAddr(), err)
			return
		}

		wireBytes, block, hash, err := codec.DecompressRelayBlock(conn.Read, txCount, checkMerkle)
		if err != nil {
			logger.Warn("decompress from %v failed:%v\n", conn.RemoteAddr(), err)
			return
		}

		logger.Info("decompressed block %x from %v: %d bytes on the wire, %d bytes reconstructed\n",
			hash, conn.RemoteAddr(), wireBytes, len(block))
	}
}
