package relaynet

import (
	"net"
	"time"

	"github.com/blkrelay/relaynode/utils"
)

const (
	acceptQueueSize = 128
	acceptPollTimeout = 2 * time.Second
)

// Listener accepts inbound relaynet connections, using the same
// LoopMode-driven, SetDeadline-polled accept loop utils.LoopMode is
// built for, specialized to hand back *Conn (a relay.Read-compatible
// stream) instead of a generic framed-packet connection.
type Listener struct {
	ln     *net.TCPListener
	accept chan *Conn
	lm     *utils.LoopMode
}

// Listen starts accepting connections on addr (host:port).
func Listen(addr string) (*Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		ln:     ln,
		accept: make(chan *Conn, acceptQueueSize),
		lm:     utils.NewLoop(1),
	}
	go l.loop()
	l.lm.StartWorking()
	return l, nil
}

// Accept returns the channel new inbound connections arrive on.
func (l *Listener) Accept() <-chan *Conn {
	return l.accept
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() string {
	return l.ln.Addr().String()
}

// Stop closes the listener and waits for its accept loop to exit.
func (l *Listener) Stop() {
	if l.lm.Stop() {
		l.ln.Close()
	}
}

func (l *Listener) loop() {
	l.lm.Add()
	defer l.lm.Done()

	for {
		select {
		case <-l.lm.D:
			return
		default:
			l.ln.SetDeadline(time.Now().Add(acceptPollTimeout))
			conn, err := l.ln.AcceptTCP()
			if err != nil {
				continue
			}

			select {
			case l.accept <- newConn(conn):
			default:
				logger.Warnln("relaynet listener accept queue full, dropping connection")
				conn.Close()
			}
		}
	}
}
