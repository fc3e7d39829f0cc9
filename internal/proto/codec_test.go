package proto

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingConn counts bytes read and written through a connection.
type countingConn struct {
	net.Conn
	read    int
	written []byte
}

func (c *countingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	c.read += n
	return n, err
}

func (c *countingConn) Write(p []byte) (int, error) {
	c.written = append(c.written, p...)
	return c.Conn.Write(p)
}

func TestHeader_MarshalRoundTrip(t *testing.T) {
	h := Header{
		Flags:       FlagIsNote | FlagNoBar,
		Timeout:     2.5,
		ImageLen:    7,
		MessageLen:  11,
		BarPart:     3,
		BarElements: 4,
	}
	buf, err := h.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, buf, HeaderSize)

	var got Header
	require.NoError(t, got.UnmarshalBinary(buf))
	assert.Equal(t, h, got)
}

func TestHeader_UnmarshalNormalises(t *testing.T) {
	buf, err := Header{Flags: 0xff00 | FlagNoImage, Timeout: -3}.MarshalBinary()
	require.NoError(t, err)

	var h Header
	require.NoError(t, h.UnmarshalBinary(buf))
	assert.Equal(t, FlagNoImage, h.Flags)
	assert.Zero(t, h.Timeout)

	assert.ErrorIs(t, h.UnmarshalBinary(buf[:10]), ErrMalformed)
}

func TestReceive_RoundTripReadsExactBytes(t *testing.T) {
	tests := []struct {
		name   string
		images []string
		text   string
	}{
		{name: "empty"},
		{name: "text only", text: "hello <b>world</b>"},
		{name: "images only", images: []string{"/tmp/a.png", "/tmp/b.png"}},
		{name: "both", images: []string{"/usr/share/icons/vol.png"}, text: "Volume\\n75%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer func() { _ = client.Close() }()
			defer func() { _ = server.Close() }()

			msg := NewMessage(FlagIsNote, tt.text, tt.images...)
			msg.Timeout = 1.5
			msg.SetBar(1, 2)

			sentinel := []byte("NEXT")
			sendErr := make(chan error, 1)
			go func() {
				if err := Send(client, msg); err != nil {
					sendErr <- err
					return
				}
				_, err := client.Write(sentinel)
				sendErr <- err
			}()

			conn := &countingConn{Conn: server}
			got, err := Receive(conn)
			require.NoError(t, err)

			assert.Equal(t, HeaderSize+msg.PayloadLen(), conn.read)
			assert.Equal(t, msg.Flags, got.Flags)
			assert.Equal(t, 1.5, got.Timeout)
			assert.Equal(t, uint32(1), got.BarPart)
			assert.Equal(t, uint32(2), got.BarElements)
			assert.Equal(t, tt.text, got.Body())
			assert.Equal(t, msg.ImagePaths(), got.ImagePaths())

			rest := make([]byte, len(sentinel))
			_, err = io.ReadFull(server, rest)
			require.NoError(t, err)
			assert.Equal(t, sentinel, rest)
			require.NoError(t, <-sendErr)

			got.Release()
			assert.True(t, got.Released())
			assert.Nil(t, got.Image)
			assert.Nil(t, got.Text)
			got.Release()
		})
	}
}

func TestReceive_AckOnlyWhenPayload(t *testing.T) {
	t.Run("payload is acknowledged once", func(t *testing.T) {
		client, server := net.Pipe()
		defer func() { _ = client.Close() }()

		conn := &countingConn{Conn: server}
		done := make(chan *Message, 1)
		go func() {
			m, err := Receive(conn)
			assert.NoError(t, err)
			_ = server.Close()
			done <- m
		}()

		hdr, _ := Header{MessageLen: 3}.MarshalBinary()
		_, err := client.Write(hdr)
		require.NoError(t, err)

		ack := make([]byte, 1)
		_, err = io.ReadFull(client, ack)
		require.NoError(t, err)
		assert.Equal(t, Ack, ack[0])

		_, err = client.Write([]byte("abc"))
		require.NoError(t, err)

		m := <-done
		require.NotNil(t, m)
		assert.Equal(t, "abc", m.Body())
		assert.Equal(t, []byte{Ack}, conn.written)
	})

	t.Run("empty payload is not acknowledged", func(t *testing.T) {
		client, server := net.Pipe()
		defer func() { _ = client.Close() }()

		conn := &countingConn{Conn: server}
		done := make(chan struct{})
		go func() {
			_, err := Receive(conn)
			assert.NoError(t, err)
			_ = server.Close()
			close(done)
		}()

		hdr, _ := Header{Flags: FlagNoBar}.MarshalBinary()
		_, err := client.Write(hdr)
		require.NoError(t, err)

		n, err := client.Read(make([]byte, 1))
		assert.Zero(t, n)
		assert.ErrorIs(t, err, io.EOF)
		<-done
		assert.Empty(t, conn.written)
	})
}

func TestReceive_Errors(t *testing.T) {
	t.Run("closed before header is aborted", func(t *testing.T) {
		_, err := Receive(&rwBuffer{r: bytes.NewReader(nil)})
		assert.ErrorIs(t, err, ErrConnectionAborted)
		assert.NotErrorIs(t, err, ErrMalformed)
	})

	t.Run("short header is malformed", func(t *testing.T) {
		_, err := Receive(&rwBuffer{r: bytes.NewReader(make([]byte, HeaderSize-1))})
		assert.ErrorIs(t, err, ErrMalformed)

		var perr *ProtocolError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "read header", perr.Op)
	})

	t.Run("short payload is malformed", func(t *testing.T) {
		hdr, _ := Header{ImageLen: 4, MessageLen: 4}.MarshalBinary()
		rw := &rwBuffer{r: bytes.NewReader(append(hdr, 'x', 'y'))}
		_, err := Receive(rw)
		assert.ErrorIs(t, err, ErrMalformed)
		assert.Equal(t, []byte{Ack}, rw.w.Bytes())
	})

	t.Run("missing payload is malformed", func(t *testing.T) {
		hdr, _ := Header{MessageLen: 4}.MarshalBinary()
		_, err := Receive(&rwBuffer{r: bytes.NewReader(hdr)})
		assert.ErrorIs(t, err, ErrMalformed)
		assert.NotErrorIs(t, err, ErrConnectionAborted)
	})

	t.Run("oversized payload is rejected before ack", func(t *testing.T) {
		hdr, _ := Header{ImageLen: MaxPayload, MessageLen: 1}.MarshalBinary()
		rw := &rwBuffer{r: bytes.NewReader(hdr)}
		_, err := Receive(rw)
		assert.ErrorIs(t, err, ErrMalformed)
		assert.Zero(t, rw.w.Len())
	})

	t.Run("slow peer times out", func(t *testing.T) {
		client, server := net.Pipe()
		defer func() { _ = client.Close() }()
		defer func() { _ = server.Close() }()

		require.NoError(t, server.SetReadDeadline(time.Now().Add(20*time.Millisecond)))
		_, err := Receive(server)
		assert.ErrorIs(t, err, ErrTimeout)
		assert.True(t, IsTimeout(err))
	})
}

func TestSend_RequiresAck(t *testing.T) {
	rw := &rwBuffer{r: bytes.NewReader([]byte{0x15})}
	err := Send(rw, NewMessage(0, "hi"))
	assert.ErrorIs(t, err, ErrNoAck)
	assert.Equal(t, HeaderSize, rw.w.Len())
}

func TestPID_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePID(&buf, 4242))
	assert.Equal(t, PIDSize, buf.Len())

	pid, err := ReadPID(&buf)
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	_, err = ReadPID(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrConnectionAborted)
}

// rwBuffer reads from r and records writes in w.
type rwBuffer struct {
	r io.Reader
	w bytes.Buffer
}

func (b *rwBuffer) Read(p []byte) (int, error)  { return b.r.Read(p) }
func (b *rwBuffer) Write(p []byte) (int, error) { return b.w.Write(p) }
