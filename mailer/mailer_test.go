package mailer

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"go-giftcard-verifier/images"

	"github.com/stretchr/testify/require"
)

var receivedAt = time.Date(2026, 3, 4, 10, 20, 30, 0, time.UTC)

func TestVerificationRequestMessage(t *testing.T) {
	msg := VerificationRequest("Visa", "VSA-1111", "a@b.com", receivedAt)
	require.Equal(t, "Gift Safer Verification Request - Visa", msg.Subject)
	require.Equal(t, "Verification request received.\n\nBrand: Visa\nCode: VSA-1111\nCustomer Email: a@b.com\nReceived At: 2026-03-04T10:20:30+00:00\n", msg.Body)
	require.Empty(t, msg.Attachments)
}

func TestScanUploadMessage(t *testing.T) {
	front := images.DataURLPayload{MainType: "image", SubType: "jpeg", Data: []byte{1, 2}}
	back := images.DataURLPayload{MainType: "image", SubType: "png", Data: []byte{3}}

	msg := ScanUpload("balance", "Google Play", "a@b.com", front, back, receivedAt)
	require.Equal(t, "Gift Safer Balance Upload - Google Play", msg.Subject)
	require.Contains(t, msg.Body, "Mode: balance\n")
	require.Len(t, msg.Attachments, 2)
	require.Equal(t, "google_play_front.jpeg", msg.Attachments[0].Filename)
	require.Equal(t, "google_play_back.png", msg.Attachments[1].Filename)
	require.Equal(t, []byte{3}, msg.Attachments[1].Data)

	require.Equal(t, "Gift Safer Scan Upload - X", ScanUpload("SCAN", "X", "e", front, back, receivedAt).Subject)
}

func TestBuildPlain(t *testing.T) {
	raw, err := build("ops@example.com", "desk@example.com", VerificationRequest("Visa", "VSA-1111", "a@b.com", receivedAt))
	require.NoError(t, err)

	m, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	subject, err := new(mime.WordDecoder).DecodeHeader(m.Header.Get("Subject"))
	require.NoError(t, err)
	require.Equal(t, "Gift Safer Verification Request - Visa", subject)
	require.Equal(t, "desk@example.com", m.Header.Get("To"))

	body, err := io.ReadAll(m.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "Code: VSA-1111")
}

func TestBuildWithAttachments(t *testing.T) {
	data := bytes.Repeat([]byte{0xff, 0xd8, 0x00}, 100)
	front := images.DataURLPayload{MainType: "image", SubType: "jpeg", Data: data}
	back := images.DataURLPayload{MainType: "image", SubType: "jpeg", Data: []byte("back")}

	raw, err := build("ops@example.com", "desk@example.com", ScanUpload("scan", "Steam", "a@b.com", front, back, receivedAt))
	require.NoError(t, err)

	m, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	mediaType, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(m.Body, params["boundary"])
	var parts []*multipart.Part
	var payloads [][]byte
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, err := io.ReadAll(p)
		require.NoError(t, err)
		parts = append(parts, p)
		payloads = append(payloads, b)
	}
	require.Len(t, parts, 3)
	require.Contains(t, string(payloads[0]), "Mode: scan")
	require.Equal(t, "steam_front.jpeg", parts[1].FileName())
	require.Equal(t, "steam_back.jpeg", parts[2].FileName())
	// base64 parts are left encoded by multipart.Reader
	for _, line := range strings.Split(strings.TrimSpace(string(payloads[1])), "\r\n") {
		require.LessOrEqual(t, len(line), 76)
	}
}

func TestSendRequiresPassword(t *testing.T) {
	tests := []struct {
		name string
		user string
	}{
		{"with user", "ops@example.com"},
		{"without user", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewSMTPMailer(Config{Host: "127.0.0.1", Port: 1, User: tt.user, To: "desk@example.com"})
			err := m.Send(context.Background(), VerificationRequest("Visa", "1", "a@b.com", receivedAt))
			require.ErrorIs(t, err, ErrMissingPassword)
		})
	}
}

func TestSendConnectFailure(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	require.NoError(t, l.Close())

	m := NewSMTPMailer(Config{Host: "127.0.0.1", Port: addr.Port, From: "ops@example.com", To: "desk@example.com", Password: "app-pass"})
	err = m.Send(context.Background(), VerificationRequest("Visa", "1", "a@b.com", receivedAt))

	var serr *SendError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, "connect", serr.Stage)
	require.Equal(t, "Email send failed: connect", err.Error())
}

// fakeSMTP accepts one session and returns the DATA payload.
func fakeSMTP(t *testing.T) (int, <-chan string) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	got := make(chan string, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		tp := textproto.NewConn(conn)
		_ = tp.PrintfLine("220 localhost ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				return
			}
			switch verb := strings.ToUpper(strings.Fields(line)[0]); verb {
			case "EHLO":
				_ = tp.PrintfLine("250-localhost")
				_ = tp.PrintfLine("250 8BITMIME")
			case "HELO", "MAIL", "RCPT", "RSET", "NOOP":
				_ = tp.PrintfLine("250 OK")
			case "DATA":
				_ = tp.PrintfLine("354 go ahead")
				b, _ := io.ReadAll(bufio.NewReader(tp.DotReader()))
				got <- string(b)
				_ = tp.PrintfLine("250 queued")
			case "QUIT":
				_ = tp.PrintfLine("221 bye")
				return
			default:
				_ = tp.PrintfLine("502 unknown")
			}
		}
	}()
	return l.Addr().(*net.TCPAddr).Port, got
}

func TestSendDelivers(t *testing.T) {
	port, got := fakeSMTP(t)
	m := NewSMTPMailer(Config{Host: "127.0.0.1", Port: port, From: "ops@example.com", To: "desk@example.com", Password: "app-pass"})

	require.NoError(t, m.Send(context.Background(), VerificationRequest("Visa", "VSA-1111", "a@b.com", receivedAt)))

	select {
	case data := <-got:
		require.Contains(t, data, "Code: VSA-1111")
		require.Contains(t, data, "To: desk@example.com")
	case <-time.After(5 * time.Second):
		t.Fatal("no message delivered")
	}
}
