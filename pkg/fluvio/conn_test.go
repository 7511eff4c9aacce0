package fluvio

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nimbusstream/fluvio-go/pkg/flbin"
	"github.com/nimbusstream/fluvio-go/pkg/flerr"
)

// Arbitrary API key values used only to drive the fake broker in these
// tests; they carry no protocol meaning of their own.
const (
	fakeUnaryAPIKey  int16 = 9001
	fakeStreamAPIKey int16 = 9002
)

// readRequestFrame reads one length-prefixed request frame from conn and
// returns its header fields and body, mirroring what a real broker would
// decode from writeRequest's output.
func readRequestFrame(conn net.Conn) (apiKey, apiVersion int16, corrID int32, body []byte, err error) {
	frame, err := readFrame(conn)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	r := flbin.NewReader(frame)
	apiKey = r.Int16()
	apiVersion = r.Int16()
	corrID = r.Int32()
	_ = r.NullableString()
	body = r.Raw(r.Remaining())
	return apiKey, apiVersion, corrID, body, r.Err()
}

// writeUnaryResponse writes a trivial one-shot response frame for corrID.
func writeUnaryResponse(conn net.Conn, corrID int32) error {
	w := flbin.NewWriter(8)
	w.Int32(corrID)
	w.Int16(0)
	return writeFrame(conn, w.Bytes())
}

// writeStreamFrame writes one stream-fetch-shaped response frame for
// corrID, in the field order flmsg.DecodeStreamFetchFrame expects.
func writeStreamFrame(conn net.Conn, corrID int32, streamID uint32) error {
	fw := flbin.NewWriter(32)
	fw.String("t")
	fw.Uint32(streamID)
	fw.Int32(0)
	fw.Int16(0)
	fw.Int64(0)
	fw.Int64(0)
	fw.OptionalTag(false)
	fw.PutBytes(nil)

	w := flbin.NewWriter(8 + fw.Len())
	w.Int32(corrID)
	w.Raw(fw.Bytes())
	return writeFrame(conn, w.Bytes())
}

func testConnCfg() cfg {
	c := defaultCfg()
	c.enableCircuitBreaker = false
	c.enableAutoReconnect = false
	c.maxRetries = 1
	c.retryBaseDelay = 5 * time.Millisecond
	c.requestTimeout = 2 * time.Second
	return c
}

func TestConnDoRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		serverConn, err := ln.Accept()
		if err != nil {
			return
		}
		defer serverConn.Close()
		apiKey, _, corrID, _, err := readRequestFrame(serverConn)
		if err != nil || apiKey != fakeUnaryAPIKey {
			return
		}
		writeUnaryResponse(serverConn, corrID)
	}()

	cn := newConn("data", ln.Addr().String(), testConnCfg())
	require.NoError(t, cn.connect(context.Background()))
	defer cn.close()

	body, err := cn.do(context.Background(), fakeUnaryAPIKey, 1, []byte("ping"))
	require.NoError(t, err)
	require.NotNil(t, body)
}

func TestConnDispatchesResponsesByCorrelationID(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		serverConn, err := ln.Accept()
		if err != nil {
			return
		}
		defer serverConn.Close()

		var corrIDs []int32
		for i := 0; i < 2; i++ {
			_, _, corrID, _, err := readRequestFrame(serverConn)
			if err != nil {
				return
			}
			corrIDs = append(corrIDs, corrID)
		}
		// Reply in reverse order: a correct implementation dispatches
		// by correlation id, not by write order.
		for i := len(corrIDs) - 1; i >= 0; i-- {
			writeUnaryResponse(serverConn, corrIDs[i])
		}
	}()

	cn := newConn("data", ln.Addr().String(), testConnCfg())
	require.NoError(t, cn.connect(context.Background()))
	defer cn.close()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, errs[i] = cn.do(context.Background(), fakeUnaryAPIKey, 1, []byte("ping"))
		}()
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
}

// TestConnStreamBackpressureStallsReaderAndUnaryCalls drives the reader
// goroutine's single streaming channel past its bounded capacity and
// confirms the resulting block stalls every other exchange on the same
// connection, not just the stream itself, until the channel is drained.
func TestConnStreamBackpressureStallsReaderAndUnaryCalls(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		sc, err := ln.Accept()
		if err == nil {
			accepted <- sc
		}
	}()

	c := testConnCfg()
	c.requestTimeout = 200 * time.Millisecond
	cn := newConn("data", ln.Addr().String(), c)
	require.NoError(t, cn.connect(context.Background()))
	defer cn.close()

	serverConn := <-accepted
	defer serverConn.Close()

	frames, cancel, err := cn.openStream(context.Background(), fakeStreamAPIKey, 1, []byte("sub"))
	require.NoError(t, err)
	defer cancel()

	_, _, streamCorrID, _, err := readRequestFrame(serverConn)
	require.NoError(t, err)

	// One more frame than the channel can hold: the reader goroutine
	// buffers up to capacity, then blocks delivering the next one.
	for i := 0; i < streamChanCapacity+1; i++ {
		require.NoError(t, writeStreamFrame(serverConn, streamCorrID, uint32(i)))
	}

	go func() {
		for {
			apiKey, _, corrID, _, err := readRequestFrame(serverConn)
			if err != nil {
				return
			}
			if apiKey == fakeUnaryAPIKey {
				_ = writeUnaryResponse(serverConn, corrID)
			}
		}
	}()

	// Give the reader goroutine time to fill the channel and block.
	time.Sleep(100 * time.Millisecond)

	_, err = cn.do(context.Background(), fakeUnaryAPIKey, 1, []byte("ping"))
	require.ErrorIs(t, err, flerr.Timeout)

	// Draining one frame unblocks the reader goroutine.
	<-frames

	_, err = cn.do(context.Background(), fakeUnaryAPIKey, 1, []byte("ping-after-drain"))
	require.NoError(t, err)
}

func TestConnReadFailureFailsPendingAndClosesStreams(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		sc, err := ln.Accept()
		if err == nil {
			accepted <- sc
		}
	}()

	cn := newConn("data", ln.Addr().String(), testConnCfg())
	require.NoError(t, cn.connect(context.Background()))
	defer cn.close()

	serverConn := <-accepted

	frames, _, err := cn.openStream(context.Background(), fakeStreamAPIKey, 1, []byte("sub"))
	require.NoError(t, err)

	serverConn.Close()

	doErr := make(chan error, 1)
	go func() {
		_, err := cn.do(context.Background(), fakeUnaryAPIKey, 1, []byte("ping"))
		doErr <- err
	}()

	require.ErrorIs(t, <-doErr, flerr.Disconnected)

	_, ok := <-frames
	require.False(t, ok, "stream channel must close on connection failure")
}

// TestConnAutoReconnectRedials confirms a dropped connection, once
// detected, is transparently redialed on the next operation when
// auto-reconnect is enabled.
func TestConnAutoReconnectRedials(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			sc, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, sc)
			mu.Unlock()
			go func(sc net.Conn) {
				for {
					apiKey, _, corrID, _, err := readRequestFrame(sc)
					if err != nil {
						return
					}
					if apiKey == fakeUnaryAPIKey {
						_ = writeUnaryResponse(sc, corrID)
					}
				}
			}(sc)
		}
	}()

	c := testConnCfg()
	c.enableAutoReconnect = true
	c.maxReconnectAttempts = 5
	c.reconnectBaseDelay = 10 * time.Millisecond
	cn := newConn("data", ln.Addr().String(), c)
	require.NoError(t, cn.connect(context.Background()))
	defer cn.close()

	_, err = cn.do(context.Background(), fakeUnaryAPIKey, 1, []byte("ping"))
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, conns, 1)
	conns[0].Close()
	mu.Unlock()

	require.Eventually(t, func() bool {
		return cn.getState() != stateConnected
	}, time.Second, 5*time.Millisecond)

	_, err = cn.do(context.Background(), fakeUnaryAPIKey, 1, []byte("ping-after-reconnect"))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, conns, 2)
}
